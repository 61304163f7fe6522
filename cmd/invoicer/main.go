// Command invoicer renders, exports and serves invoices.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/goliatone/go-command/dispatcher"
	job "github.com/goliatone/go-job"
	"github.com/urfave/cli/v2"

	invoicejob "github.com/goliatone/go-invoice/adapters/job"
	storebun "github.com/goliatone/go-invoice/adapters/store/bun"
	"github.com/goliatone/go-invoice/command"
	"github.com/goliatone/go-invoice/config"
	"github.com/goliatone/go-invoice/invoice"
	invoicecallback "github.com/goliatone/go-invoice/sources/callback"
)

func main() {
	if err := newApp().RunContext(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	invoiceFlags := []cli.Flag{
		&cli.StringFlag{Name: "id", Usage: "invoice ID to load from the database"},
		&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "invoice JSON file"},
	}

	return &cli.App{
		Name:  "invoicer",
		Usage: "render and export invoices",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file",
				EnvVars: []string{config.EnvPrefix + "_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "render",
				Usage: "render an invoice as preview, html or pdf",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "target", Aliases: []string{"t"}, Value: string(invoice.TargetPDF), Usage: "preview, html or pdf"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: "-", Usage: "output file, - for stdout"},
				}, invoiceFlags...),
				Action: withRuntime(renderAction),
			},
			{
				Name:  "export",
				Usage: "export an invoice PDF to the artifact store",
				Flags: append([]cli.Flag{
					&cli.IntFlag{Name: "retries", Usage: "retry timeouts and transient failures this many times"},
				}, invoiceFlags...),
				Action: withRuntime(exportAction),
			},
			{
				Name:  "export-batch",
				Usage: "export every stored invoice, or the IDs listed in a JSON file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "from", Usage: "JSON array of invoice IDs"},
					&cli.IntFlag{Name: "max", Usage: "stop after this many exports"},
					&cli.DurationFlag{Name: "interval", Usage: "pause between exports"},
				},
				Action: withRuntime(exportBatchAction),
			},
			{
				Name:   "serve",
				Usage:  "serve the invoice HTTP API",
				Action: withRuntime(serveAction),
			},
			{
				Name:  "settings",
				Usage: "manage stored settings",
				Subcommands: []*cli.Command{
					{
						Name:  "set",
						Usage: "store a setting value",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "key", Required: true},
							&cli.StringFlag{Name: "value", Required: true},
						},
						Action: withRuntime(settingsSetAction),
					},
				},
			},
			{
				Name:  "invoices",
				Usage: "manage stored invoices",
				Subcommands: []*cli.Command{
					{
						Name:  "import",
						Usage: "store an invoice JSON file",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Required: true},
						},
						Action: withRuntime(importAction),
					},
				},
			},
		},
	}
}

// withRuntime loads configuration, wires dependencies and subscribes the
// command handlers for the duration of action.
func withRuntime(action func(c *cli.Context, rt *runtime) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := config.Load(c.String("config"))
		if err != nil {
			return err
		}
		logger, err := config.NewLogger(cfg.Logging)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		rt, err := newRuntime(c.Context, cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := rt.Close(); err != nil {
				logger.Errorf("close runtime: %v", err)
			}
		}()

		subs, err := command.RegisterHandlers(nil, rt.service, rt.settings)
		if err != nil {
			return err
		}
		defer func() {
			for _, sub := range subs {
				sub.Unsubscribe()
			}
		}()

		return action(c, rt)
	}
}

func renderAction(c *cli.Context, rt *runtime) error {
	id, inv, err := invoiceArgs(c)
	if err != nil {
		return err
	}
	out, closeOut, err := openOutput(c.String("out"), c.App.Writer)
	if err != nil {
		return err
	}
	defer closeOut()

	stats, err := dispatcher.DispatchWithResult[command.RenderInvoice, invoice.RenderStats](
		c.Context,
		command.RenderInvoice{
			InvoiceID: id,
			Invoice:   inv,
			Target:    invoice.Target(strings.ToLower(c.String("target"))),
			Output:    out,
		},
	)
	if err != nil {
		return err
	}
	rt.logger.Infof("rendered %s: %d bytes, %d pages", c.String("target"), stats.Bytes, stats.Pages)
	return nil
}

func exportAction(c *cli.Context, rt *runtime) error {
	id, inv, err := invoiceArgs(c)
	if err != nil {
		return err
	}
	task := invoicejob.NewExportTask(invoicejob.TaskConfig{
		Logger: rt.logger,
		RetryPolicy: invoicejob.RetryPolicy{
			MaxRetries: c.Int("retries"),
			Backoff: job.BackoffConfig{
				Strategy:    job.BackoffExponential,
				Interval:    500 * time.Millisecond,
				MaxInterval: 5 * time.Second,
				Jitter:      true,
			},
		},
	})
	result, err := task.Run(c.Context, invoicejob.Payload{InvoiceID: id, Invoice: inv})
	if err != nil {
		return err
	}
	if result.Artifact != nil {
		fmt.Fprintln(c.App.Writer, result.Artifact.Key)
	}
	return nil
}

func exportBatchAction(c *cli.Context, rt *runtime) error {
	var loader command.BatchLoader
	if rt.invoices != nil {
		loader = rt.invoices.IDs
	}
	batch := command.NewBatchExportCommand(
		command.NewExportInvoiceHandler(rt.service),
		loader,
		command.WithBatchLogger(rt.logger),
		command.WithBatchLimits(command.BatchLimits{
			MaxInvoices: c.Int("max"),
			MinInterval: c.Duration("interval"),
		}),
	)
	count, err := batch.Run(c.Context, c.String("from"))
	fmt.Fprintf(c.App.Writer, "exported %d invoices\n", count)
	return err
}

func settingsSetAction(c *cli.Context, rt *runtime) error {
	if rt.db == nil {
		return cli.Exit("settings set requires store.database_dsn", 1)
	}
	repo := storebun.NewSettingsRepository(rt.db)
	if err := repo.Set(c.Context, c.String("key"), c.String("value")); err != nil {
		return err
	}
	return dispatcher.Dispatch(c.Context, command.InvalidateSettings{})
}

func importAction(c *cli.Context, rt *runtime) error {
	if rt.invoices == nil {
		return cli.Exit("invoices import requires store.database_dsn", 1)
	}
	inv, err := invoicecallback.ReadInvoiceFile(c.String("file"))
	if err != nil {
		return err
	}
	if err := rt.invoices.Save(c.Context, inv); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, inv.ID)
	return nil
}

// invoiceArgs returns either an ID for the service to load or an invoice
// decoded from --file.
func invoiceArgs(c *cli.Context) (string, *invoice.Invoice, error) {
	id, file := c.String("id"), c.String("file")
	switch {
	case file != "":
		inv, err := invoicecallback.ReadInvoiceFile(file)
		if err != nil {
			return "", nil, err
		}
		return "", &inv, nil
	case id != "":
		return id, nil, nil
	default:
		return "", nil, cli.Exit("one of --id or --file is required", 1)
	}
}

func openOutput(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return stdout, func() {}, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", path, err)
	}
	return file, func() { _ = file.Close() }, nil
}
