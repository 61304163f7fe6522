package command

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-invoice/invoice"
)

// BatchLoader loads the invoice IDs to export.
type BatchLoader func(ctx context.Context) ([]string, error)

// BatchExporter exports a single invoice.
type BatchExporter interface {
	Execute(ctx context.Context, msg ExportInvoice) error
}

// BatchLimits bounds batch execution throughput.
type BatchLimits struct {
	MaxInvoices int
	MinInterval time.Duration
}

// BatchCommand wires CLI/Cron execution for batch invoice exports.
type BatchCommand struct {
	exporter   BatchExporter
	loader     BatchLoader
	cliConfig  gcmd.CLIConfig
	cronConfig gcmd.HandlerConfig
	limits     BatchLimits
	logger     invoice.Logger
	sleep      func(time.Duration)
}

// BatchOption customizes batch commands.
type BatchOption func(*BatchCommand)

// WithBatchCLIConfig overrides CLI configuration.
func WithBatchCLIConfig(cfg gcmd.CLIConfig) BatchOption {
	return func(cmd *BatchCommand) {
		cmd.cliConfig = cfg
	}
}

// WithBatchCronConfig overrides cron configuration.
func WithBatchCronConfig(cfg gcmd.HandlerConfig) BatchOption {
	return func(cmd *BatchCommand) {
		cmd.cronConfig = cfg
	}
}

// WithBatchLimits overrides batch execution limits.
func WithBatchLimits(limits BatchLimits) BatchOption {
	return func(cmd *BatchCommand) {
		cmd.limits = limits
	}
}

// WithBatchLogger sets the logger for per-invoice results.
func WithBatchLogger(logger invoice.Logger) BatchOption {
	return func(cmd *BatchCommand) {
		cmd.logger = logger
	}
}

// NewBatchExportCommand creates a batch export CLI/Cron command.
func NewBatchExportCommand(exporter BatchExporter, loader BatchLoader, opts ...BatchOption) *BatchCommand {
	cmd := &BatchCommand{
		exporter: exporter,
		loader:   loader,
		cliConfig: gcmd.CLIConfig{
			Path:        []string{"invoices-export"},
			Description: "Export invoice PDFs in batch",
			Group:       "invoices",
		},
		cronConfig: gcmd.HandlerConfig{Expression: "0 2 * * *"},
		logger:     invoice.NopLogger{},
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cmd)
		}
	}
	return cmd
}

// CronHandler executes scheduled batch exports.
func (c *BatchCommand) CronHandler() func() error {
	return func() error {
		_, err := c.Run(context.Background(), "")
		return err
	}
}

// CronOptions returns cron configuration.
func (c *BatchCommand) CronOptions() gcmd.HandlerConfig {
	if c == nil {
		return gcmd.HandlerConfig{}
	}
	return c.cronConfig
}

// CLIHandler exposes the CLI handler.
func (c *BatchCommand) CLIHandler() any {
	return &batchCLI{cmd: c}
}

// CLIOptions returns CLI configuration.
func (c *BatchCommand) CLIOptions() gcmd.CLIConfig {
	if c == nil {
		return gcmd.CLIConfig{}
	}
	return c.cliConfig
}

// Run exports every loaded invoice, stopping at the first failure. When from
// is set, IDs are read from that JSON file instead of the loader.
func (c *BatchCommand) Run(ctx context.Context, from string) (int, error) {
	if c == nil {
		return 0, errors.New("batch command is nil", errors.CategoryInternal).
			WithTextCode("BATCH_CMD_NIL")
	}
	if c.exporter == nil {
		return 0, errors.New("batch exporter is required", errors.CategoryValidation).
			WithTextCode("EXPORTER_REQUIRED")
	}

	ids, err := c.loadIDs(ctx, from)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, id := range ids {
		if c.limits.MaxInvoices > 0 && count >= c.limits.MaxInvoices {
			break
		}
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		var result invoice.ExportResult
		if err := c.exporter.Execute(ctx, ExportInvoice{InvoiceID: id, Result: &result}); err != nil {
			return count, err
		}
		c.logger.Infof("batch: exported invoice %s as %s", id, result.Filename)
		count++
		if c.limits.MinInterval > 0 && c.sleep != nil {
			c.sleep(c.limits.MinInterval)
		}
	}
	return count, nil
}

func (c *BatchCommand) loadIDs(ctx context.Context, from string) ([]string, error) {
	if strings.TrimSpace(from) != "" {
		return loadBatchIDsFromFile(from)
	}
	if c.loader == nil {
		return nil, errors.New("batch loader not configured", errors.CategoryValidation).
			WithTextCode("LOADER_REQUIRED")
	}
	return c.loader(ctx)
}

type batchCLI struct {
	cmd  *BatchCommand
	From string `kong:"name='from',help='Path to a JSON array of invoice IDs'"`
}

func (c *batchCLI) Run() error {
	if c == nil || c.cmd == nil {
		return errors.New("batch command is required", errors.CategoryInternal).
			WithTextCode("BATCH_CMD_NIL")
	}
	_, err := c.cmd.Run(context.Background(), c.From)
	return err
}

func loadBatchIDsFromFile(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "read batch file failed").
			WithTextCode("BATCH_FILE_READ")
	}

	var ids []string
	if err := json.Unmarshal(content, &ids); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "batch file invalid JSON").
			WithTextCode("BATCH_FILE_INVALID")
	}
	return ids, nil
}
