package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"connectrpc.com/connect"

	"github.com/mmynk/splitchat/internal/calculator"
	"github.com/mmynk/splitchat/internal/models"
	"github.com/mmynk/splitchat/internal/pipeline"
)

// defaultReceiptType is assumed for data URLs without a media type.
const defaultReceiptType = "image/png"

var (
	errInvalidDataURL = errors.New("receipt data URL is not valid base64")
	errMissingImage   = errors.New("either image or dataUrl is required")
	errMissingID      = errors.New("expense id is required")

	dataURLPattern = regexp.MustCompile(`^data:(.+);base64,(.+)$`)
)

// BillService implements the Connect BillService on top of one session
// pipeline.
type BillService struct {
	pipeline *pipeline.Pipeline
}

// NewBillService creates a new BillService for the given pipeline.
func NewBillService(p *pipeline.Pipeline) *BillService {
	return &BillService{pipeline: p}
}

// GetState returns the bill, its breakdown and the transcript.
func (s *BillService) GetState(ctx context.Context, _ *connect.Request[GetStateRequest]) (*connect.Response[StateResponse], error) {
	state, err := s.state(ctx)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(state), nil
}

// SendMessage submits a chat command to the command flow.
func (s *BillService) SendMessage(ctx context.Context, req *connect.Request[SendMessageRequest]) (*connect.Response[StateResponse], error) {
	slog.Debug("SendMessage request received", "length", len(req.Msg.Text), "wait", req.Msg.Wait)

	task, err := s.pipeline.SubmitCommand(ctx, req.Msg.Text)
	if err != nil {
		return nil, toConnectError(err)
	}
	return s.afterSubmit(ctx, task, req.Msg.Wait)
}

// ScanReceipt submits a receipt image to the vision flow.
func (s *BillService) ScanReceipt(ctx context.Context, req *connect.Request[ScanReceiptRequest]) (*connect.Response[StateResponse], error) {
	image, mimeType := req.Msg.Image, req.Msg.MimeType
	if len(image) == 0 {
		if req.Msg.DataURL == "" {
			return nil, connect.NewError(connect.CodeInvalidArgument, errMissingImage)
		}
		var err error
		image, mimeType, err = decodeDataURL(req.Msg.DataURL)
		if err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
	}

	task, err := s.pipeline.SubmitReceipt(ctx, image, mimeType)
	if err != nil {
		return nil, toConnectError(err)
	}
	return s.afterSubmit(ctx, task, req.Msg.Wait)
}

// SetTotal edits the bill total without going through the interpreter.
func (s *BillService) SetTotal(ctx context.Context, req *connect.Request[SetTotalRequest]) (*connect.Response[StateResponse], error) {
	bill, err := s.pipeline.SetTotal(ctx, req.Msg.Total)
	if err != nil {
		return nil, toConnectError(err)
	}
	slog.Info("Total set", "total", bill.TotalBill, "version", bill.Version)

	state, err := s.state(ctx)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(state), nil
}

// RemoveExpense deletes one individual expense. Unknown IDs are not an error.
func (s *BillService) RemoveExpense(ctx context.Context, req *connect.Request[RemoveExpenseRequest]) (*connect.Response[StateResponse], error) {
	if req.Msg.ID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errMissingID)
	}
	bill, err := s.pipeline.RemoveExpense(ctx, req.Msg.ID)
	if err != nil {
		return nil, toConnectError(err)
	}
	slog.Info("Expense removed", "expense_id", req.Msg.ID, "version", bill.Version)

	state, err := s.state(ctx)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(state), nil
}

// Settle computes who pays whom, given who actually paid the bill.
func (s *BillService) Settle(ctx context.Context, req *connect.Request[SettleRequest]) (*connect.Response[SettleResponse], error) {
	snap, err := s.pipeline.Snapshot(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}

	breakdown := calculator.ComputeSplit(snap.Bill)
	balances, transfers, err := calculator.Settle(breakdown, req.Msg.Payments)
	if err != nil {
		slog.Warn("Settle failed", "error", err)
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	slog.Info("Settle successful", "participants", len(balances), "transfers", len(transfers))
	return connect.NewResponse(&SettleResponse{
		Breakdown: breakdown,
		Balances:  balances,
		Transfers: transfers,
	}), nil
}

// afterSubmit optionally waits for task, then reports the session state.
func (s *BillService) afterSubmit(ctx context.Context, task *pipeline.Task, wait bool) (*connect.Response[StateResponse], error) {
	var flowErr error
	if wait {
		outcome, err := task.Wait(ctx)
		if err != nil {
			return nil, toConnectError(err)
		}
		flowErr = outcome.Err
	}

	state, err := s.state(ctx)
	if err != nil {
		return nil, err
	}
	if flowErr != nil {
		state.FlowError = flowErr.Error()
	}
	return connect.NewResponse(state), nil
}

func (s *BillService) state(ctx context.Context) (*StateResponse, error) {
	snap, err := s.pipeline.Snapshot(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}

	state := &StateResponse{
		Bill:           snap.Bill,
		Breakdown:      calculator.ComputeSplit(snap.Bill),
		Messages:       snap.Log.Messages(),
		CommandPending: s.pipeline.Pending(pipeline.FlowCommand),
		VisionPending:  s.pipeline.Pending(pipeline.FlowVision),
	}
	if err := s.pipeline.ConfigError(); err != nil {
		state.ConfigError = err.Error()
	}
	return state, nil
}

// decodeDataURL splits a data:<type>;base64,<payload> URL. A bare base64
// payload is accepted and assumed to be a PNG.
func decodeDataURL(url string) ([]byte, string, error) {
	mimeType, payload := defaultReceiptType, url
	if m := dataURLPattern.FindStringSubmatch(url); m != nil {
		mimeType, payload = m[1], m[2]
	}

	image, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", errInvalidDataURL, err)
	}
	return image, mimeType, nil
}

// toConnectError maps pipeline and model errors to Connect codes.
func toConnectError(err error) error {
	var cfgErr *pipeline.ConfigurationError
	switch {
	case errors.As(err, &cfgErr):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, pipeline.ErrBusy):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, pipeline.ErrEmptyInput),
		errors.Is(err, pipeline.ErrUnsupportedMedia),
		errors.Is(err, models.ErrInvalidTotal):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}
	slog.Error("BillService internal error", "error", err)
	return connect.NewError(connect.CodeInternal, err)
}
