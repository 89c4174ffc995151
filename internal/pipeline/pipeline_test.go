package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mmynk/splitchat/internal/gemini"
	"github.com/mmynk/splitchat/internal/metrics"
	"github.com/mmynk/splitchat/internal/models"
	"github.com/mmynk/splitchat/internal/storage"
	"github.com/mmynk/splitchat/internal/storage/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type interpreterFunc func(ctx context.Context, message string, bill models.BillState) (*models.CommandResult, error)

func (f interpreterFunc) Interpret(ctx context.Context, message string, bill models.BillState) (*models.CommandResult, error) {
	return f(ctx, message, bill)
}

type extractorFunc func(ctx context.Context, image []byte, mimeType string) (*models.ReceiptExtraction, error)

func (f extractorFunc) Extract(ctx context.Context, image []byte, mimeType string) (*models.ReceiptExtraction, error) {
	return f(ctx, image, mimeType)
}

func ptr[T any](v T) *T {
	return &v
}

// pngHeader is enough for content sniffing to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func newTestPipeline(t *testing.T, interp Interpreter, ext Extractor, opts ...Option) (*Pipeline, *memory.Store) {
	t.Helper()
	store := memory.New(InitialSnapshot())
	t.Cleanup(func() { store.Close() })
	return New(store, interp, ext, opts...), store
}

func wait(t *testing.T, task *Task) Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := task.Wait(ctx)
	require.NoError(t, err)
	return out
}

func load(t *testing.T, store storage.Store) storage.Snapshot {
	t.Helper()
	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	return snap
}

func TestSubmitCommand_AppliesDelta(t *testing.T) {
	var seen models.BillState
	interp := interpreterFunc(func(_ context.Context, msg string, bill models.BillState) (*models.CommandResult, error) {
		seen = bill
		assert.Equal(t, "300 total, Amy and Bo, Amy had a 30 drink", msg)
		return &models.CommandResult{
			Reply: "Got it!",
			Data: models.CommandDelta{
				SetTotal:   ptr(300.0),
				AddPeople:  []string{"Amy", "Bo"},
				AddExpense: []models.ExpenseInput{{Person: "Amy", Item: "drink", Cost: 30}},
			},
		}, nil
	})
	p, store := newTestPipeline(t, interp, nil)

	task, err := p.SubmitCommand(context.Background(), "  300 total, Amy and Bo, Amy had a 30 drink ")
	require.NoError(t, err)
	assert.Equal(t, FlowCommand, task.Flow())

	out := wait(t, task)
	require.True(t, out.Applied(), "outcome error: %v", out.Err)
	assert.Equal(t, 300.0, out.Bill.TotalBill)
	assert.Equal(t, []string{"Amy", "Bo"}, out.Bill.People)
	require.Len(t, out.Bill.Expenses, 1)
	assert.Equal(t, uint64(1), out.Bill.Version)
	assert.Equal(t, uint64(0), seen.Version, "interpreter should see the state at submission")

	msgs := load(t, store).Log.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, models.RoleNotice, msgs[0].Role)
	assert.Equal(t, models.RoleUser, msgs[1].Role)
	assert.Equal(t, "300 total, Amy and Bo, Amy had a 30 drink", msgs[1].Text)
	assert.Equal(t, models.RoleAssistant, msgs[2].Role)
	assert.Equal(t, "Got it!", msgs[2].Text)
	assert.False(t, p.Pending(FlowCommand))
}

func TestSubmitCommand_InterpreterFailureLeavesStateUntouched(t *testing.T) {
	tests := []struct {
		name   string
		interp interpreterFunc
	}{
		{
			name: "transport error",
			interp: func(context.Context, string, models.BillState) (*models.CommandResult, error) {
				return nil, errors.New("connection reset")
			},
		},
		{
			name: "nil result",
			interp: func(context.Context, string, models.BillState) (*models.CommandResult, error) {
				return nil, nil
			},
		},
		{
			name: "negative cost",
			interp: func(context.Context, string, models.BillState) (*models.CommandResult, error) {
				return &models.CommandResult{
					Reply: "ok",
					Data: models.CommandDelta{
						SetTotal:   ptr(10.0),
						AddExpense: []models.ExpenseInput{{Person: "Amy", Item: "refund", Cost: -5}},
					},
				}, nil
			},
		},
		{
			name: "empty reply",
			interp: func(context.Context, string, models.BillState) (*models.CommandResult, error) {
				return &models.CommandResult{Data: models.CommandDelta{SetTotal: ptr(10.0)}}, nil
			},
		},
		{
			name: "interpreter panics",
			interp: func(context.Context, string, models.BillState) (*models.CommandResult, error) {
				panic("nil map write")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, store := newTestPipeline(t, tt.interp, nil)
			_, err := p.SetTotal(context.Background(), 42)
			require.NoError(t, err)
			before := load(t, store).Bill

			task, err := p.SubmitCommand(context.Background(), "add a refund")
			require.NoError(t, err)
			out := wait(t, task)

			var interpErr *InterpretationError
			require.ErrorAs(t, out.Err, &interpErr)
			assert.False(t, out.Applied())
			assert.Equal(t, models.RoleNotice, out.Message.Role)
			assert.Equal(t, commandFailedText, out.Message.Text)

			after := load(t, store)
			if diff := cmp.Diff(before, after.Bill); diff != "" {
				t.Errorf("bill changed after failed command (-before +after):\n%s", diff)
			}
			last, _ := after.Log.Last()
			assert.Equal(t, commandFailedText, last.Text)
			assert.False(t, p.Pending(FlowCommand), "gate should be released")
		})
	}
}

func TestSubmitCommand_NeverRemovesExpenses(t *testing.T) {
	var reply string
	interp := interpreterFunc(func(context.Context, string, models.BillState) (*models.CommandResult, error) {
		return gemini.ParseCommandResult(reply)
	})
	p, store := newTestPipeline(t, interp, nil)

	reply = `{"reply": "Coffee for Amy.", "data": {"addExpense": [{"person": "Amy", "item": "coffee", "cost": 5}]}}`
	task, err := p.SubmitCommand(context.Background(), "Amy had a coffee")
	require.NoError(t, err)
	out := wait(t, task)
	require.Len(t, out.Bill.Expenses, 1)
	before := load(t, store).Bill

	reply = fmt.Sprintf(`{"reply": "Gone!", "data": {"removeExpenseId": %q}}`, out.Bill.Expenses[0].ID)
	task, err = p.SubmitCommand(context.Background(), "forget Amy's coffee")
	require.NoError(t, err)
	out = wait(t, task)
	require.True(t, out.Applied(), "outcome error: %v", out.Err)

	if diff := cmp.Diff(before, load(t, store).Bill); diff != "" {
		t.Errorf("command changed expenses (-before +after):\n%s", diff)
	}
}

func TestSubmitCommand_BusyWhilePending(t *testing.T) {
	release := make(chan struct{})
	interp := interpreterFunc(func(ctx context.Context, _ string, _ models.BillState) (*models.CommandResult, error) {
		<-release
		return &models.CommandResult{Reply: "ok", Data: models.CommandDelta{AddPeople: []string{"Amy"}}}, nil
	})
	ext := extractorFunc(func(context.Context, []byte, string) (*models.ReceiptExtraction, error) {
		return &models.ReceiptExtraction{Total: 80, ItemsSummary: "Steak 40"}, nil
	})
	p, store := newTestPipeline(t, interp, ext)

	first, err := p.SubmitCommand(context.Background(), "Amy is here")
	require.NoError(t, err)
	assert.True(t, p.Pending(FlowCommand))

	_, err = p.SubmitCommand(context.Background(), "Bo too")
	assert.ErrorIs(t, err, ErrBusy)

	// The vision flow is independent.
	scan, err := p.SubmitReceipt(context.Background(), pngHeader, "")
	require.NoError(t, err)
	scanOut := wait(t, scan)
	require.NoError(t, scanOut.Err)
	assert.Equal(t, 80.0, scanOut.Bill.TotalBill)

	close(release)
	out := wait(t, first)
	require.NoError(t, out.Err)
	assert.False(t, p.Pending(FlowCommand))

	// The rejected submission was not recorded.
	for _, m := range load(t, store).Log.Messages() {
		assert.NotEqual(t, "Bo too", m.Text)
	}

	// Idle again: a new submission is accepted.
	next, err := p.SubmitCommand(context.Background(), "Bo too")
	require.NoError(t, err)
	wait(t, next)
}

func TestFlows_LastWriterWins(t *testing.T) {
	scanRelease := make(chan struct{})
	interp := interpreterFunc(func(context.Context, string, models.BillState) (*models.CommandResult, error) {
		return &models.CommandResult{Reply: "Total set to 100", Data: models.CommandDelta{SetTotal: ptr(100.0)}}, nil
	})
	ext := extractorFunc(func(context.Context, []byte, string) (*models.ReceiptExtraction, error) {
		<-scanRelease
		return &models.ReceiptExtraction{Total: 55.5, ItemsSummary: ""}, nil
	})
	p, _ := newTestPipeline(t, interp, ext)

	scan, err := p.SubmitReceipt(context.Background(), pngHeader, "image/png")
	require.NoError(t, err)

	cmd, err := p.SubmitCommand(context.Background(), "the total is 100")
	require.NoError(t, err)
	cmdOut := wait(t, cmd)
	require.NoError(t, cmdOut.Err)
	assert.Equal(t, 100.0, cmdOut.Bill.TotalBill)

	close(scanRelease)
	scanOut := wait(t, scan)
	require.NoError(t, scanOut.Err)

	// The slower scan overwrites the total set by the command.
	assert.Equal(t, 55.5, scanOut.Bill.TotalBill)
	assert.Greater(t, scanOut.Bill.Version, cmdOut.Bill.Version)
	assert.Contains(t, scanOut.Message.Text, "55.50")
}

func TestSubmitCommand_Timeout(t *testing.T) {
	interp := interpreterFunc(func(ctx context.Context, _ string, _ models.BillState) (*models.CommandResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	p, _ := newTestPipeline(t, interp, nil, WithTimeout(20*time.Millisecond))

	task, err := p.SubmitCommand(context.Background(), "hello?")
	require.NoError(t, err)
	out := wait(t, task)

	assert.ErrorIs(t, out.Err, context.DeadlineExceeded)
	var interpErr *InterpretationError
	assert.ErrorAs(t, out.Err, &interpErr)
	assert.False(t, p.Pending(FlowCommand))
}

func TestTask_Cancel(t *testing.T) {
	interp := interpreterFunc(func(ctx context.Context, _ string, _ models.BillState) (*models.CommandResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	p, _ := newTestPipeline(t, interp, nil)

	task, err := p.SubmitCommand(context.Background(), "never mind")
	require.NoError(t, err)
	task.Cancel()

	out := wait(t, task)
	assert.ErrorIs(t, out.Err, context.Canceled)
}

func TestTask_WaitGivesUpWithoutCanceling(t *testing.T) {
	release := make(chan struct{})
	interp := interpreterFunc(func(context.Context, string, models.BillState) (*models.CommandResult, error) {
		<-release
		return &models.CommandResult{Reply: "ok", Data: models.CommandDelta{SetTotal: ptr(9.0)}}, nil
	})
	p, _ := newTestPipeline(t, interp, nil)

	// A submission whose request context is already gone still completes.
	reqCtx, cancelReq := context.WithCancel(context.Background())
	task, err := p.SubmitCommand(reqCtx, "total 9")
	require.NoError(t, err)
	cancelReq()

	_, err = task.Wait(reqCtx)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	out := wait(t, task)
	require.NoError(t, out.Err)
	assert.Equal(t, 9.0, out.Bill.TotalBill)
}

func TestSubmitReceipt(t *testing.T) {
	t.Run("success sets total and posts summary", func(t *testing.T) {
		var gotType string
		ext := extractorFunc(func(_ context.Context, img []byte, mimeType string) (*models.ReceiptExtraction, error) {
			gotType = mimeType
			return &models.ReceiptExtraction{Total: 128.4, ItemsSummary: "Lobster 60, wine 35."}, nil
		})
		p, store := newTestPipeline(t, nil, ext)

		task, err := p.SubmitReceipt(context.Background(), []byte("jpeg bytes"), "image/jpeg")
		require.NoError(t, err)
		out := wait(t, task)

		require.NoError(t, out.Err)
		assert.Equal(t, "image/jpeg", gotType)
		assert.Equal(t, 128.4, out.Bill.TotalBill)
		assert.Equal(t, models.RoleNotice, out.Message.Role)
		assert.Contains(t, out.Message.Text, "128.40")
		assert.Contains(t, out.Message.Text, "Lobster 60, wine 35.")

		msgs := load(t, store).Log.Messages()
		require.Len(t, msgs, 3)
		assert.Equal(t, scanningText, msgs[1].Text)
	})

	t.Run("failure asks for manual entry", func(t *testing.T) {
		ext := extractorFunc(func(context.Context, []byte, string) (*models.ReceiptExtraction, error) {
			return &models.ReceiptExtraction{Total: -3}, nil
		})
		p, store := newTestPipeline(t, nil, ext)
		before := load(t, store).Bill

		task, err := p.SubmitReceipt(context.Background(), pngHeader, "")
		require.NoError(t, err)
		out := wait(t, task)

		var extErr *ExtractionError
		require.ErrorAs(t, out.Err, &extErr)
		assert.ErrorIs(t, out.Err, models.ErrInvalidTotal)
		assert.Equal(t, scanFailedText, out.Message.Text)
		if diff := cmp.Diff(before, load(t, store).Bill); diff != "" {
			t.Errorf("bill changed after failed scan (-before +after):\n%s", diff)
		}
	})

	t.Run("rejects non-images", func(t *testing.T) {
		p, _ := newTestPipeline(t, nil, nil)

		_, err := p.SubmitReceipt(context.Background(), []byte("%PDF-1.7"), "")
		assert.ErrorIs(t, err, ErrUnsupportedMedia)

		_, err = p.SubmitReceipt(context.Background(), nil, "image/png")
		assert.ErrorIs(t, err, ErrEmptyInput)
		assert.False(t, p.Pending(FlowVision))
	})
}

func TestDisabledPipeline(t *testing.T) {
	store := memory.New(InitialSnapshot())
	defer store.Close()
	cause := &ConfigurationError{Reason: "GEMINI_API_KEY is not set"}

	p, err := NewDisabled(context.Background(), store, cause)
	require.NoError(t, err)
	assert.Equal(t, cause, p.ConfigError())

	_, err = p.SubmitCommand(context.Background(), "hi")
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Same(t, cause, cfgErr)

	_, err = p.SubmitReceipt(context.Background(), pngHeader, "image/png")
	require.ErrorAs(t, err, &cfgErr)

	// Exactly one notice, and nothing recorded for the rejected submissions.
	msgs := load(t, store).Log.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, disabledText, msgs[1].Text)

	// Direct edits still work.
	bill, err := p.SetTotal(context.Background(), 75)
	require.NoError(t, err)
	assert.Equal(t, 75.0, bill.TotalBill)
}

func TestSubmitCommand_EmptyInput(t *testing.T) {
	p, _ := newTestPipeline(t, nil, nil)
	_, err := p.SubmitCommand(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.False(t, p.Pending(FlowCommand))
}

func TestDirectEdits(t *testing.T) {
	interp := interpreterFunc(func(context.Context, string, models.BillState) (*models.CommandResult, error) {
		return &models.CommandResult{Reply: "noted", Data: models.CommandDelta{
			AddExpense: []models.ExpenseInput{{Person: "Amy", Item: "coffee", Cost: 5}},
		}}, nil
	})
	p, _ := newTestPipeline(t, interp, nil)

	_, err := p.SetTotal(context.Background(), -1)
	assert.ErrorIs(t, err, models.ErrInvalidTotal)

	task, err := p.SubmitCommand(context.Background(), "Amy had a coffee")
	require.NoError(t, err)
	out := wait(t, task)
	require.Len(t, out.Bill.Expenses, 1)

	unchanged, err := p.RemoveExpense(context.Background(), "nonexistent")
	require.NoError(t, err)
	if diff := cmp.Diff(out.Bill, unchanged); diff != "" {
		t.Errorf("removing unknown id changed bill (-want +got):\n%s", diff)
	}

	bill, err := p.RemoveExpense(context.Background(), out.Bill.Expenses[0].ID)
	require.NoError(t, err)
	assert.Empty(t, bill.Expenses)
}

func TestMetricsRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	interp := interpreterFunc(func(context.Context, string, models.BillState) (*models.CommandResult, error) {
		return nil, errors.New("boom")
	})
	p, _ := newTestPipeline(t, interp, nil, WithMetrics(metrics.New(reg)))

	task, err := p.SubmitCommand(context.Background(), "hello")
	require.NoError(t, err)
	wait(t, task)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["splitchat_flow_requests_total"])
	assert.True(t, names["splitchat_flow_duration_seconds"])
}

func inFlight(t *testing.T, reg *prometheus.Registry, flow Flow) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != "splitchat_flows_in_flight" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "flow" && l.GetValue() == string(flow) {
					return m.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("no in-flight gauge for %s", flow)
	return 0
}

func TestMetrics_InFlightFollowsGate(t *testing.T) {
	reg := prometheus.NewRegistry()
	release := make(chan struct{})
	calls := 0
	interp := interpreterFunc(func(ctx context.Context, _ string, _ models.BillState) (*models.CommandResult, error) {
		calls++
		if calls > 1 {
			<-release
		}
		return &models.CommandResult{Reply: "ok"}, nil
	})
	p, _ := newTestPipeline(t, interp, nil, WithMetrics(metrics.New(reg)))

	task, err := p.SubmitCommand(context.Background(), "first")
	require.NoError(t, err)
	wait(t, task)
	assert.Equal(t, 0.0, inFlight(t, reg, FlowCommand))

	task, err = p.SubmitCommand(context.Background(), "second")
	require.NoError(t, err)
	assert.Equal(t, 1.0, inFlight(t, reg, FlowCommand), "pending submission must read as in flight")

	close(release)
	wait(t, task)
	assert.Equal(t, 0.0, inFlight(t, reg, FlowCommand))
}
