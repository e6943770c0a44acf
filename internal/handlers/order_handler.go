package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ruralpay/cartable/internal/errs"
	"github.com/ruralpay/cartable/internal/models"
	"github.com/ruralpay/cartable/internal/services"
)

type OrderHandler struct {
	orders    *services.OrderService
	exports   *services.ExportService
	receipts  *services.ReceiptService
	validator *services.ValidationHelper
}

func NewOrderHandler(orders *services.OrderService, exports *services.ExportService, receipts *services.ReceiptService) *OrderHandler {
	return &OrderHandler{
		orders:    orders,
		exports:   exports,
		receipts:  receipts,
		validator: services.NewValidationHelper(),
	}
}

// parseFilter reads the listing query. Dates accept RFC 3339 or YYYY-MM-DD.
func parseFilter(q url.Values) (models.OrderFilter, error) {
	f := models.OrderFilter{
		AccountID: q.Get("accountId"),
		Query:     strings.TrimSpace(q.Get("q")),
	}
	for _, raw := range q["status"] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part == "" {
				continue
			}
			s, err := models.ParseOrderStatus(part)
			if err != nil {
				return f, errs.E(errs.KindValidation, "invalid status filter", err)
			}
			f.Statuses = append(f.Statuses, s)
		}
	}

	var err error
	if f.From, err = parseTime(q.Get("from"), false); err != nil {
		return f, err
	}
	if f.To, err = parseTime(q.Get("to"), true); err != nil {
		return f, err
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return f, errs.E(errs.KindValidation, "to must not be before from", nil)
	}

	if f.Page, err = parseInt(q.Get("page")); err != nil {
		return f, err
	}
	if f.PageSize, err = parseInt(q.Get("pageSize")); err != nil {
		return f, err
	}
	return f, nil
}

func parseTime(s string, endOfDay bool) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, errs.E(errs.KindValidation, fmt.Sprintf("invalid date %q", s), err)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func parseInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errs.E(errs.KindValidation, fmt.Sprintf("invalid number %q", s), err)
	}
	return n, nil
}

// ListOrders lists payment orders
// @Summary List payment orders
// @Description Filter by account, status, date range and free text; paginated
// @Tags Orders
// @Produce json
// @Security BearerAuth
// @Param accountId query string false "Account ID"
// @Param status query string false "Comma separated statuses"
// @Param from query string false "From date (RFC 3339 or YYYY-MM-DD)"
// @Param to query string false "To date (RFC 3339 or YYYY-MM-DD)"
// @Param q query string false "Title or description search"
// @Param page query int false "Page (from 1)"
// @Param pageSize query int false "Page size (max 100)"
// @Success 200 {object} models.OrderPage
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /orders [get]
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorFrom(w, r); !ok {
		return
	}
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		services.WriteError(w, err)
		return
	}
	page, err := h.orders.List(r.Context(), f)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// CreateOrder creates a draft payment order
// @Summary Create payment order
// @Description Create a draft order with its line items for an enabled account
// @Tags Orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateOrderRequest true "Order"
// @Success 201 {object} models.PaymentOrder
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /orders [post]
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req models.CreateOrderRequest
	if !decode(w, r, h.validator, &req) {
		return
	}
	order, err := h.orders.CreateDraft(r.Context(), actor, req)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// GetOrder returns an order with items, approvers and history
// @Summary Get payment order
// @Tags Orders
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Success 200 {object} models.PaymentOrder
// @Failure 404 {object} services.ErrorResponse
// @Router /orders/{orderId} [get]
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorFrom(w, r); !ok {
		return
	}
	order, err := h.orders.Get(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// SubmitOrder sends a draft for owner approval
// @Summary Submit payment order
// @Tags Orders
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Success 200 {object} models.PaymentOrder
// @Failure 403 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /orders/{orderId}/submit [post]
func (h *OrderHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.orders.Submit)
}

// CancelOrder cancels an order that has not reached the bank
// @Summary Cancel payment order
// @Tags Orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Param request body models.CancelRequest false "Reason"
// @Success 200 {object} models.PaymentOrder
// @Failure 403 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /orders/{orderId}/cancel [post]
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req models.CancelRequest
	if r.ContentLength != 0 && !decode(w, r, h.validator, &req) {
		return
	}
	order, err := h.orders.Cancel(r.Context(), actor, chi.URLParam(r, "orderId"), req.Reason)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// DispatchOrder moves an owner-approved order to the manager or the bank
// @Summary Dispatch payment order
// @Tags Orders
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Success 200 {object} models.PaymentOrder
// @Failure 409 {object} services.ErrorResponse
// @Failure 503 {object} services.ErrorResponse
// @Router /orders/{orderId}/dispatch [post]
func (h *OrderHandler) DispatchOrder(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.orders.Dispatch)
}

// ManagerApproval releases an order held for manager approval
// @Summary Manager approval
// @Tags Orders
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Success 200 {object} models.PaymentOrder
// @Failure 403 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /orders/{orderId}/manager-approval [post]
func (h *OrderHandler) ManagerApproval(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.orders.ManagerApprove)
}

// BankReport applies per line item outcomes reported by the bank
// @Summary Apply bank report
// @Tags Orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Param request body models.BankReportRequest true "pacs.002 status codes per line item"
// @Success 200 {object} models.PaymentOrder
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /orders/{orderId}/bank-report [post]
func (h *OrderHandler) BankReport(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req models.BankReportRequest
	if !decode(w, r, h.validator, &req) {
		return
	}
	order, err := h.orders.ApplyBankReport(r.Context(), actor, chi.URLParam(r, "orderId"), req)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// Receipt renders the order receipt as a QR code
// @Summary Order receipt QR
// @Tags Orders
// @Produce png
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Success 200 {file} binary
// @Failure 409 {object} services.ErrorResponse
// @Router /orders/{orderId}/receipt.png [get]
func (h *OrderHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorFrom(w, r); !ok {
		return
	}
	png, err := h.receipts.Receipt(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		services.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	_, _ = w.Write(png)
}

// Export downloads matching line items as a spreadsheet
// @Summary Export orders
// @Tags Orders
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param accountId query string false "Account ID"
// @Param status query string false "Comma separated statuses"
// @Param from query string false "From date"
// @Param to query string false "To date"
// @Param q query string false "Title or description search"
// @Success 200 {file} binary
// @Failure 400 {object} services.ErrorResponse
// @Router /orders/export [get]
func (h *OrderHandler) Export(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorFrom(w, r); !ok {
		return
	}
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		services.WriteError(w, err)
		return
	}

	var buf bytes.Buffer
	if _, err := h.exports.Export(r.Context(), f, &buf); err != nil {
		services.WriteError(w, err)
		return
	}
	name := fmt.Sprintf("orders-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", services.ExportContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = buf.WriteTo(w)
}

func (h *OrderHandler) act(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, actor models.Actor, orderID string) (*models.PaymentOrder, error)) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	order, err := op(r.Context(), actor, chi.URLParam(r, "orderId"))
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}
