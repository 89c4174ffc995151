package service

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// BillServiceName is the fully-qualified name of the BillService service.
const BillServiceName = "splitchat.v1.BillService"

// Procedure paths of the BillService RPCs.
const (
	BillServiceGetStateProcedure      = "/splitchat.v1.BillService/GetState"
	BillServiceSendMessageProcedure   = "/splitchat.v1.BillService/SendMessage"
	BillServiceScanReceiptProcedure   = "/splitchat.v1.BillService/ScanReceipt"
	BillServiceSetTotalProcedure      = "/splitchat.v1.BillService/SetTotal"
	BillServiceRemoveExpenseProcedure = "/splitchat.v1.BillService/RemoveExpense"
	BillServiceSettleProcedure        = "/splitchat.v1.BillService/Settle"
)

// NewBillServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and the
// handler itself.
func NewBillServiceHandler(svc *BillService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	handlers := map[string]http.Handler{
		BillServiceGetStateProcedure:      connect.NewUnaryHandler(BillServiceGetStateProcedure, svc.GetState, opts...),
		BillServiceSendMessageProcedure:   connect.NewUnaryHandler(BillServiceSendMessageProcedure, svc.SendMessage, opts...),
		BillServiceScanReceiptProcedure:   connect.NewUnaryHandler(BillServiceScanReceiptProcedure, svc.ScanReceipt, opts...),
		BillServiceSetTotalProcedure:      connect.NewUnaryHandler(BillServiceSetTotalProcedure, svc.SetTotal, opts...),
		BillServiceRemoveExpenseProcedure: connect.NewUnaryHandler(BillServiceRemoveExpenseProcedure, svc.RemoveExpense, opts...),
		BillServiceSettleProcedure:        connect.NewUnaryHandler(BillServiceSettleProcedure, svc.Settle, opts...),
	}

	return "/" + BillServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := handlers[r.URL.Path]; ok {
			h.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
}

// BillServiceClient is a client for the BillService service.
type BillServiceClient struct {
	getState      *connect.Client[GetStateRequest, StateResponse]
	sendMessage   *connect.Client[SendMessageRequest, StateResponse]
	scanReceipt   *connect.Client[ScanReceiptRequest, StateResponse]
	setTotal      *connect.Client[SetTotalRequest, StateResponse]
	removeExpense *connect.Client[RemoveExpenseRequest, StateResponse]
	settle        *connect.Client[SettleRequest, SettleResponse]
}

// NewBillServiceClient constructs a client for the BillService service at
// baseURL (for example, http://localhost:8080).
func NewBillServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *BillServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)

	return &BillServiceClient{
		getState:      connect.NewClient[GetStateRequest, StateResponse](httpClient, baseURL+BillServiceGetStateProcedure, opts...),
		sendMessage:   connect.NewClient[SendMessageRequest, StateResponse](httpClient, baseURL+BillServiceSendMessageProcedure, opts...),
		scanReceipt:   connect.NewClient[ScanReceiptRequest, StateResponse](httpClient, baseURL+BillServiceScanReceiptProcedure, opts...),
		setTotal:      connect.NewClient[SetTotalRequest, StateResponse](httpClient, baseURL+BillServiceSetTotalProcedure, opts...),
		removeExpense: connect.NewClient[RemoveExpenseRequest, StateResponse](httpClient, baseURL+BillServiceRemoveExpenseProcedure, opts...),
		settle:        connect.NewClient[SettleRequest, SettleResponse](httpClient, baseURL+BillServiceSettleProcedure, opts...),
	}
}

// GetState calls splitchat.v1.BillService.GetState.
func (c *BillServiceClient) GetState(ctx context.Context, req *connect.Request[GetStateRequest]) (*connect.Response[StateResponse], error) {
	return c.getState.CallUnary(ctx, req)
}

// SendMessage calls splitchat.v1.BillService.SendMessage.
func (c *BillServiceClient) SendMessage(ctx context.Context, req *connect.Request[SendMessageRequest]) (*connect.Response[StateResponse], error) {
	return c.sendMessage.CallUnary(ctx, req)
}

// ScanReceipt calls splitchat.v1.BillService.ScanReceipt.
func (c *BillServiceClient) ScanReceipt(ctx context.Context, req *connect.Request[ScanReceiptRequest]) (*connect.Response[StateResponse], error) {
	return c.scanReceipt.CallUnary(ctx, req)
}

// SetTotal calls splitchat.v1.BillService.SetTotal.
func (c *BillServiceClient) SetTotal(ctx context.Context, req *connect.Request[SetTotalRequest]) (*connect.Response[StateResponse], error) {
	return c.setTotal.CallUnary(ctx, req)
}

// RemoveExpense calls splitchat.v1.BillService.RemoveExpense.
func (c *BillServiceClient) RemoveExpense(ctx context.Context, req *connect.Request[RemoveExpenseRequest]) (*connect.Response[StateResponse], error) {
	return c.removeExpense.CallUnary(ctx, req)
}

// Settle calls splitchat.v1.BillService.Settle.
func (c *BillServiceClient) Settle(ctx context.Context, req *connect.Request[SettleRequest]) (*connect.Response[SettleResponse], error) {
	return c.settle.CallUnary(ctx, req)
}
