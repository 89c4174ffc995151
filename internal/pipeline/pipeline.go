// Package pipeline runs the two request flows of a session: chat commands
// sent to a command interpreter, and receipt images sent to a vision
// extractor. Each flow turns one external round trip into a bill update plus
// a transcript entry, or into a notice when the round trip fails.
//
// The two flows are independent and may overlap. A result is always merged
// into the state current at completion time, not the state captured at
// submission, so a slow receipt scan can overwrite a total that a later
// command already set. BillState.Version makes this visible to callers.
package pipeline

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/mmynk/splitchat/internal/chatlog"
	"github.com/mmynk/splitchat/internal/merge"
	"github.com/mmynk/splitchat/internal/metrics"
	"github.com/mmynk/splitchat/internal/models"
	"github.com/mmynk/splitchat/internal/storage"
)

// DefaultTimeout bounds one external round trip.
const DefaultTimeout = 60 * time.Second

// Interpreter turns a free-text chat command into a reply and a delta.
type Interpreter interface {
	Interpret(ctx context.Context, message string, bill models.BillState) (*models.CommandResult, error)
}

// Extractor reads the total from a receipt image.
type Extractor interface {
	Extract(ctx context.Context, image []byte, mimeType string) (*models.ReceiptExtraction, error)
}

// Pipeline orchestrates the command and vision flows over one session store.
type Pipeline struct {
	store       storage.Store
	engine      *merge.Engine
	interpreter Interpreter
	extractor   Extractor
	metrics     *metrics.Metrics
	timeout     time.Duration
	configErr   *ConfigurationError

	command gate
	vision  gate
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTimeout sets the per-round-trip timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithMetrics records flow metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithEngine replaces the merge engine.
func WithEngine(e *merge.Engine) Option {
	return func(p *Pipeline) {
		p.engine = e
	}
}

// New creates a pipeline backed by the given collaborators.
func New(store storage.Store, interpreter Interpreter, extractor Extractor, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:       store,
		engine:      merge.New(),
		interpreter: interpreter,
		extractor:   extractor,
		timeout:     DefaultTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewDisabled creates a pipeline whose flows always fail with cause. A single
// notice explaining this is appended to the transcript. Direct edits
// (SetTotal, RemoveExpense) keep working.
func NewDisabled(ctx context.Context, store storage.Store, cause *ConfigurationError, opts ...Option) (*Pipeline, error) {
	p := New(store, nil, nil, opts...)
	p.configErr = cause

	_, err := store.Update(ctx, func(cur storage.Snapshot) storage.Snapshot {
		cur.Log = cur.Log.Append(chatlog.NewMessage(models.RoleNotice, disabledText))
		return cur
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record configuration notice: %w", err)
	}
	slog.Warn("Pipeline disabled", "reason", cause.Reason)
	return p, nil
}

// ConfigError returns the startup configuration error, or nil if both flows
// are available.
func (p *Pipeline) ConfigError() error {
	if p.configErr == nil {
		return nil
	}
	return p.configErr
}

// Pending reports whether flow has a request in flight.
func (p *Pipeline) Pending(flow Flow) bool {
	switch flow {
	case FlowCommand:
		return p.command.current() != nil
	case FlowVision:
		return p.vision.current() != nil
	}
	return false
}

// Snapshot returns the current session state.
func (p *Pipeline) Snapshot(ctx context.Context) (storage.Snapshot, error) {
	return p.store.Load(ctx)
}

// SubmitCommand records text in the transcript and sends it, together with
// the bill as it is now, to the command interpreter.
func (p *Pipeline) SubmitCommand(ctx context.Context, text string) (*Task, error) {
	if p.configErr != nil {
		p.metrics.ObserveRequest(string(FlowCommand), metrics.OutcomeRejected)
		return nil, p.configErr
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}

	task := newTask(FlowCommand)
	if !p.command.acquire(task) {
		p.metrics.ObserveRequest(string(FlowCommand), metrics.OutcomeRejected)
		return nil, ErrBusy
	}

	snap, err := p.appendMessage(ctx, chatlog.NewMessage(models.RoleUser, text))
	if err != nil {
		p.command.release(task)
		return nil, err
	}
	submitted := snap.Bill

	call := func(ctx context.Context) (resolution, error) {
		result, err := p.interpreter.Interpret(ctx, text, submitted)
		if err != nil {
			return resolution{}, err
		}
		if result == nil {
			return resolution{}, errors.New("interpreter returned no result")
		}
		if err := result.Validate(); err != nil {
			return resolution{}, fmt.Errorf("invalid interpreter result: %w", err)
		}

		delta := result.Data
		return resolution{
			apply: func(current models.BillState) models.BillState {
				if current.Version != submitted.Version {
					slog.Info("Bill changed while command was pending",
						"submitted_version", submitted.Version,
						"current_version", current.Version,
					)
				}
				return p.engine.Apply(current, delta)
			},
			message: chatlog.NewMessage(models.RoleAssistant, strings.TrimSpace(result.Reply)),
		}, nil
	}
	wrap := func(err error) error { return &InterpretationError{Err: err} }

	p.launch(ctx, &p.command, task, call, wrap, commandFailedText)
	return task, nil
}

// SubmitReceipt records a scanning placeholder and sends the image to the
// vision extractor. An empty mimeType is detected from the image bytes.
func (p *Pipeline) SubmitReceipt(ctx context.Context, image []byte, mimeType string) (*Task, error) {
	if p.configErr != nil {
		p.metrics.ObserveRequest(string(FlowVision), metrics.OutcomeRejected)
		return nil, p.configErr
	}
	if len(image) == 0 {
		return nil, ErrEmptyInput
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(image)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("%w: got %s", ErrUnsupportedMedia, mimeType)
	}

	task := newTask(FlowVision)
	if !p.vision.acquire(task) {
		p.metrics.ObserveRequest(string(FlowVision), metrics.OutcomeRejected)
		return nil, ErrBusy
	}

	if _, err := p.appendMessage(ctx, chatlog.NewMessage(models.RoleNotice, scanningText)); err != nil {
		p.vision.release(task)
		return nil, err
	}

	p.metrics.ObserveReceipt(len(image))
	slog.Info("Receipt submitted",
		"mime_type", mimeType,
		"size_bytes", len(image),
		"fingerprint", fingerprint(image),
	)

	call := func(ctx context.Context) (resolution, error) {
		extraction, err := p.extractor.Extract(ctx, image, mimeType)
		if err != nil {
			return resolution{}, err
		}
		if extraction == nil {
			return resolution{}, errors.New("extractor returned no result")
		}
		if err := extraction.Validate(); err != nil {
			return resolution{}, fmt.Errorf("invalid extraction: %w", err)
		}

		total := extraction.Total
		return resolution{
			apply: func(current models.BillState) models.BillState {
				return p.engine.Apply(current, models.CommandDelta{SetTotal: &total})
			},
			message: chatlog.NewMessage(models.RoleNotice, receiptFoundText(total, extraction.ItemsSummary)),
		}, nil
	}
	wrap := func(err error) error { return &ExtractionError{Err: err} }

	p.launch(ctx, &p.vision, task, call, wrap, scanFailedText)
	return task, nil
}

// SetTotal edits the total directly, bypassing the command flow.
func (p *Pipeline) SetTotal(ctx context.Context, total float64) (models.BillState, error) {
	if err := models.ValidateTotal(total); err != nil {
		return models.BillState{}, err
	}
	snap, err := p.store.Update(ctx, func(cur storage.Snapshot) storage.Snapshot {
		cur.Bill = p.engine.Apply(cur.Bill, models.CommandDelta{SetTotal: &total})
		return cur
	})
	if err != nil {
		return models.BillState{}, fmt.Errorf("failed to set total: %w", err)
	}
	p.metrics.SetBillVersion(snap.Bill.Version)
	return snap.Bill, nil
}

// RemoveExpense deletes one individual expense. Unknown IDs are ignored.
func (p *Pipeline) RemoveExpense(ctx context.Context, id string) (models.BillState, error) {
	snap, err := p.store.Update(ctx, func(cur storage.Snapshot) storage.Snapshot {
		cur.Bill = p.engine.RemoveExpense(cur.Bill, id)
		return cur
	})
	if err != nil {
		return models.BillState{}, fmt.Errorf("failed to remove expense: %w", err)
	}
	p.metrics.SetBillVersion(snap.Bill.Version)
	return snap.Bill, nil
}

// resolution is what a successful round trip contributes: how to derive the
// next bill from the current one, and what to append to the transcript.
type resolution struct {
	apply   func(models.BillState) models.BillState
	message models.ChatMessage
}

// launch runs call on its own goroutine with a detached, time-limited
// context. A failed or panicking call is wrapped with wrap and recorded as a
// notice with failedText; the bill is left alone. The outcome is merged into
// whatever state is current when the call returns, then the gate is released
// and the task's Done channel closed.
func (p *Pipeline) launch(
	ctx context.Context,
	g *gate,
	task *Task,
	call func(context.Context) (resolution, error),
	wrap func(error) error,
	failedText string,
) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	task.cancel = cancel
	flow := string(task.flow)
	p.metrics.SetInFlight(flow, true)

	go func() {
		defer cancel()

		res, err := invoke(callCtx, call)
		p.metrics.ObserveDuration(flow, time.Since(task.started))

		var failure error
		if err != nil {
			failure = wrap(err)
			res = resolution{message: chatlog.NewMessage(models.RoleNotice, failedText)}
			slog.Warn("Flow failed", "flow", flow, "error", err, "duration_ms", time.Since(task.started).Milliseconds())
		}

		snap, serr := p.store.Update(context.Background(), func(cur storage.Snapshot) storage.Snapshot {
			if res.apply != nil {
				cur.Bill = res.apply(cur.Bill)
			}
			cur.Log = cur.Log.Append(res.message)
			return cur
		})
		if serr != nil {
			slog.Error("Failed to record flow outcome", "flow", flow, "error", serr)
			failure = errors.Join(failure, serr)
		}

		task.outcome = Outcome{
			Flow:    task.flow,
			Bill:    snap.Bill,
			Message: res.message,
			Err:     failure,
		}
		if failure == nil {
			p.metrics.ObserveRequest(flow, metrics.OutcomeApplied)
			p.metrics.SetBillVersion(snap.Bill.Version)
			slog.Info("Flow applied", "flow", flow, "version", snap.Bill.Version, "duration_ms", time.Since(task.started).Milliseconds())
		} else {
			p.metrics.ObserveRequest(flow, metrics.OutcomeFailed)
		}

		// The gauge is cleared while the gate is still held so a submission
		// that slips in after release is not reported as idle.
		p.metrics.SetInFlight(flow, false)
		g.release(task)
		close(task.done)
	}()
}

// invoke runs call, turning a panic in a collaborator into an error.
func invoke(ctx context.Context, call func(context.Context) (resolution, error)) (res resolution, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = resolution{}, fmt.Errorf("collaborator panicked: %v", r)
		}
	}()
	return call(ctx)
}

func (p *Pipeline) appendMessage(ctx context.Context, msg models.ChatMessage) (storage.Snapshot, error) {
	snap, err := p.store.Update(ctx, func(cur storage.Snapshot) storage.Snapshot {
		cur.Log = cur.Log.Append(msg)
		return cur
	})
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("failed to record message: %w", err)
	}
	return snap, nil
}

// fingerprint identifies a receipt image in logs without logging its content.
func fingerprint(image []byte) string {
	sum := blake2b.Sum256(image)
	return hex.EncodeToString(sum[:8])
}
