package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ruralpay/cartable/internal/models"
	"github.com/ruralpay/cartable/internal/services"
)

type ApprovalHandler struct {
	approvals *services.ApprovalService
	validator *services.ValidationHelper
}

func NewApprovalHandler(approvals *services.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{
		approvals: approvals,
		validator: services.NewValidationHelper(),
	}
}

// RequestOTP issues a one-time code bound to an operation and its orders
// @Summary Request OTP
// @Description The code is delivered to the signer's phone; the response carries only the handle
// @Tags OTP
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.OTPRequest true "Operation, intent and target orders"
// @Success 201 {object} models.Challenge
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /otp/request [post]
func (h *ApprovalHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req models.OTPRequest
	if !decode(w, r, h.validator, &req) {
		return
	}
	challenge, err := h.approvals.RequestOTP(r.Context(), actor, req)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, challenge)
}

// ResendOTP replaces the code of a live challenge
// @Summary Resend OTP
// @Tags OTP
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.OTPResendRequest true "Challenge handle"
// @Success 200 {object} models.Challenge
// @Failure 422 {object} services.ErrorResponse
// @Router /otp/resend [post]
func (h *ApprovalHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req models.OTPResendRequest
	if !decode(w, r, h.validator, &req) {
		return
	}
	challenge, err := h.approvals.ResendOTP(r.Context(), actor, req.Handle)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, challenge)
}

// Decide approves or rejects a single order
// @Summary Approve or reject order
// @Tags Decisions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Param request body models.DecisionRequest true "Decision and OTP"
// @Success 200 {object} models.PaymentOrder
// @Failure 403 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /orders/{orderId}/decision [post]
func (h *ApprovalHandler) Decide(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req models.DecisionRequest
	if !decode(w, r, h.validator, &req) {
		return
	}
	order, err := h.approvals.Decide(r.Context(), actor, chi.URLParam(r, "orderId"), req)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// DecideBatch approves or rejects several orders with one OTP
// @Summary Batch approve or reject
// @Description Items are independent; the response is 200 with a per-order breakdown unless the OTP fails
// @Tags Decisions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.BatchDecisionRequest true "Orders, decision and OTP"
// @Success 200 {object} models.BatchResult
// @Failure 400 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /orders/decisions/batch [post]
func (h *ApprovalHandler) DecideBatch(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req models.BatchDecisionRequest
	if !decode(w, r, h.validator, &req) {
		return
	}
	result, err := h.approvals.DecideBatch(r.Context(), actor, req)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
