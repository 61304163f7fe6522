// Package invoicejob runs invoice exports as go-job tasks with retries and
// cancellation.
package invoicejob

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/goliatone/go-command/dispatcher"
	errorslib "github.com/goliatone/go-errors"
	job "github.com/goliatone/go-job"

	"github.com/goliatone/go-invoice/command"
	"github.com/goliatone/go-invoice/invoice"
)

const (
	DefaultExportTaskID   = "invoice:export"
	DefaultExportTaskPath = "invoice:export"
)

var (
	backoffRand   = rand.New(rand.NewSource(time.Now().UnixNano()))
	backoffRandMu sync.Mutex
)

// Payload captures the job execution input. Invoice, when set, is exported
// as-is instead of being loaded by ID.
type Payload struct {
	InvoiceID string           `json:"invoice_id,omitempty"`
	Invoice   *invoice.Invoice `json:"invoice,omitempty"`
}

func (p Payload) key() string {
	if p.InvoiceID != "" {
		return p.InvoiceID
	}
	if p.Invoice != nil {
		if p.Invoice.ID != "" {
			return p.Invoice.ID
		}
		return p.Invoice.InvoiceNumber
	}
	return ""
}

// MessageBuilderFunc builds an execution message for non-queue paths.
type MessageBuilderFunc func(ctx context.Context) (*job.ExecutionMessage, error)

// ExportDispatch dispatches an export command.
type ExportDispatch func(ctx context.Context, msg command.ExportInvoice) error

// TaskConfig configures the export task.
type TaskConfig struct {
	ID             string
	Path           string
	Config         job.Config
	HandlerOptions job.HandlerOptions
	RetryPolicy    RetryPolicy
	CancelRegistry *CancelRegistry
	Logger         invoice.Logger
	Dispatch       ExportDispatch
	MessageBuilder MessageBuilderFunc
}

// ExportTask exports invoices to the artifact store.
type ExportTask struct {
	id             string
	path           string
	config         job.Config
	handlerOptions job.HandlerOptions
	retryPolicy    RetryPolicy
	cancelRegistry *CancelRegistry
	logger         invoice.Logger
	dispatch       ExportDispatch
	messageBuilder MessageBuilderFunc
	sleep          func(ctx context.Context, d time.Duration) error
}

// NewExportTask creates a new export task. Without a Dispatch it sends
// commands through the go-command dispatcher.
func NewExportTask(cfg TaskConfig) *ExportTask {
	logger := cfg.Logger
	if logger == nil {
		logger = invoice.NopLogger{}
	}
	id := cfg.ID
	if id == "" {
		id = DefaultExportTaskID
	}
	path := cfg.Path
	if path == "" {
		path = DefaultExportTaskPath
	}
	dispatch := cfg.Dispatch
	if dispatch == nil {
		dispatch = func(ctx context.Context, msg command.ExportInvoice) error {
			return dispatcher.Dispatch(ctx, msg)
		}
	}

	return &ExportTask{
		id:             id,
		path:           path,
		config:         cfg.Config,
		handlerOptions: cfg.HandlerOptions,
		retryPolicy:    cfg.RetryPolicy,
		cancelRegistry: cfg.CancelRegistry,
		logger:         logger,
		dispatch:       dispatch,
		messageBuilder: cfg.MessageBuilder,
		sleep:          sleepWithContext,
	}
}

// GetID returns the task identifier.
func (t *ExportTask) GetID() string { return t.id }

// GetHandler returns a handler for non-queue execution paths.
func (t *ExportTask) GetHandler() func() error {
	return func() error {
		if t == nil {
			return invoice.NewError(invoice.KindInternal, "task is nil", nil)
		}
		if t.messageBuilder == nil {
			return invoice.NewError(invoice.KindNotImpl, "job message builder not configured", nil)
		}

		ctx := context.Background()
		msg, err := t.messageBuilder(ctx)
		if err != nil {
			return err
		}
		if msg == nil {
			return invoice.NewError(invoice.KindValidation, "execution message is required", nil)
		}
		return t.Execute(ctx, msg)
	}
}

// GetHandlerConfig returns scheduler options for the task.
func (t *ExportTask) GetHandlerConfig() job.HandlerOptions { return t.handlerOptions }

// GetConfig returns task config defaults.
func (t *ExportTask) GetConfig() job.Config { return t.config }

// GetPath returns the task path.
func (t *ExportTask) GetPath() string { return t.path }

// GetEngine returns nil because this task is code-driven.
func (t *ExportTask) GetEngine() job.Engine { return nil }

// Execute runs the export described by the message payload.
func (t *ExportTask) Execute(ctx context.Context, msg *job.ExecutionMessage) error {
	if t == nil {
		return invoice.NewError(invoice.KindInternal, "task is nil", nil)
	}
	payload, err := decodePayload(msg)
	if err != nil {
		return err
	}
	_, err = t.Run(ctx, payload)
	return err
}

// Run exports the payload invoice, retrying retryable failures with the
// configured backoff.
func (t *ExportTask) Run(ctx context.Context, payload Payload) (invoice.ExportResult, error) {
	if t == nil {
		return invoice.ExportResult{}, invoice.NewError(invoice.KindInternal, "task is nil", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	key := payload.key()
	if key == "" {
		return invoice.ExportResult{}, invoice.NewError(invoice.KindValidation, "invoice ID is required", nil)
	}

	execCtx := ctx
	if t.cancelRegistry != nil {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithCancel(ctx)
		defer cancel()
		release := t.cancelRegistry.Register(key, cancel)
		defer release()
	}

	policy := t.retryPolicy
	attempt := 0
	for {
		if err := execCtx.Err(); err != nil {
			return invoice.ExportResult{}, err
		}

		var result invoice.ExportResult
		err := t.dispatch(execCtx, command.ExportInvoice{
			InvoiceID: payload.InvoiceID,
			Invoice:   payload.Invoice,
			Result:    &result,
		})
		if err == nil {
			return result, nil
		}

		if !policy.shouldRetry(err) || attempt >= policy.MaxRetries {
			return invoice.ExportResult{}, err
		}

		attempt++
		t.logger.Infof("invoice %s: export attempt %d failed, retrying: %v", key, attempt, err)
		if delay := policy.backoffDelay(attempt); delay > 0 {
			if serr := t.sleep(execCtx, delay); serr != nil {
				return invoice.ExportResult{}, serr
			}
		}
	}
}

// NewExecutionMessage wraps a payload for the task. The invoice key doubles
// as the idempotency key so queued duplicates merge.
func (t *ExportTask) NewExecutionMessage(payload Payload) (*job.ExecutionMessage, error) {
	encoded, err := encodePayload(payload)
	if err != nil {
		return nil, err
	}
	msg := &job.ExecutionMessage{
		JobID:      t.id,
		ScriptPath: t.path,
		Config:     t.config,
		Parameters: map[string]any{"payload": encoded},
	}
	if key := payload.key(); key != "" {
		msg.IdempotencyKey = key
		msg.DedupPolicy = job.DedupPolicyMerge
	}
	return msg, nil
}

func encodePayload(payload Payload) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, invoice.NewError(invoice.KindValidation, "payload is not serializable", err)
	}
	return json.RawMessage(raw), nil
}

func decodePayload(msg *job.ExecutionMessage) (Payload, error) {
	if msg == nil || msg.Parameters == nil {
		return Payload{}, invoice.NewError(invoice.KindValidation, "job payload is required", nil)
	}

	raw, ok := msg.Parameters["payload"]
	if !ok {
		return Payload{}, invoice.NewError(invoice.KindValidation, "job payload missing", nil)
	}

	switch value := raw.(type) {
	case Payload:
		return value, nil
	case *Payload:
		if value == nil {
			return Payload{}, invoice.NewError(invoice.KindValidation, "job payload is nil", nil)
		}
		return *value, nil
	case json.RawMessage:
		return unmarshalPayload(value)
	case []byte:
		return unmarshalPayload(value)
	case string:
		return unmarshalPayload([]byte(value))
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return Payload{}, invoice.NewError(invoice.KindValidation, "job payload is invalid", err)
		}
		return unmarshalPayload(data)
	}
}

func unmarshalPayload(data []byte) (Payload, error) {
	if len(data) == 0 {
		return Payload{}, invoice.NewError(invoice.KindValidation, "job payload is empty", nil)
	}
	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Payload{}, invoice.NewError(invoice.KindValidation, "job payload is invalid", err)
	}
	return payload, nil
}

// RetryPolicy determines retry behavior for retryable errors.
type RetryPolicy struct {
	MaxRetries int
	Backoff    job.BackoffConfig
	Retryable  func(error) bool
}

func (p RetryPolicy) shouldRetry(err error) bool {
	if err == nil || p.MaxRetries <= 0 {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return defaultRetryable(err)
}

func (p RetryPolicy) backoffDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return computeBackoffDelay(attempt, p.Backoff)
}

// defaultRetryable retries timeouts, temporary network failures and
// internal errors. Validation, parse and render failures are final.
func defaultRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errorslib.IsRetryableError(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout() || netErr.Temporary()
	}
	var invErr *invoice.InvoiceError
	if errors.As(err, &invErr) {
		switch invErr.Kind {
		case invoice.KindTimeout, invoice.KindInternal:
			return true
		}
	}
	return false
}

func computeBackoffDelay(attempt int, cfg job.BackoffConfig) time.Duration {
	if attempt <= 0 {
		return 0
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}

	maxInterval := cfg.MaxInterval
	if maxInterval <= 0 {
		maxInterval = 5 * time.Second
	}

	switch cfg.Strategy {
	case job.BackoffFixed:
		return applyJitter(interval, cfg.Jitter)
	case job.BackoffExponential:
		delay := interval
		for i := 1; i < attempt; i++ {
			delay *= 2
			if delay > maxInterval {
				delay = maxInterval
				break
			}
		}
		return applyJitter(delay, cfg.Jitter)
	default:
		return 0
	}
}

func applyJitter(delay time.Duration, jitter bool) time.Duration {
	if !jitter || delay <= 0 {
		return delay
	}
	// +/-50%
	half := float64(delay) * 0.5
	backoffRandMu.Lock()
	offset := (backoffRand.Float64()*2 - 1) * half
	backoffRandMu.Unlock()
	jittered := float64(delay) + offset
	if jittered < 0 {
		return 0
	}
	return time.Duration(jittered)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
