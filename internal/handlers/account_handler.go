package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ruralpay/cartable/internal/models"
	"github.com/ruralpay/cartable/internal/services"
)

type AccountHandler struct {
	accounts  *services.AccountService
	validator *services.ValidationHelper
}

func NewAccountHandler(accounts *services.AccountService) *AccountHandler {
	return &AccountHandler{
		accounts:  accounts,
		validator: services.NewValidationHelper(),
	}
}

// CreateAccount registers a multi-signer account
// @Summary Create account
// @Tags Accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateAccountRequest true "Account"
// @Success 201 {object} models.Account
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /accounts [post]
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req models.CreateAccountRequest
	if !decode(w, r, h.validator, &req) {
		return
	}
	account, err := h.accounts.CreateAccount(r.Context(), actor, req)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

// ListAccounts
// @Summary List accounts
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Account
// @Router /accounts [get]
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorFrom(w, r); !ok {
		return
	}
	accounts, err := h.accounts.ListAccounts(r.Context())
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

// GetAccount
// @Summary Get account with signers
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param accountId path string true "Account ID"
// @Success 200 {object} models.Account
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/{accountId} [get]
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorFrom(w, r); !ok {
		return
	}
	account, err := h.accounts.GetAccount(r.Context(), chi.URLParam(r, "accountId"))
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// EnableAccount
// @Summary Enable account
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param accountId path string true "Account ID"
// @Success 200 {object} models.Account
// @Router /accounts/{accountId}/enable [post]
func (h *AccountHandler) EnableAccount(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, true)
}

// DisableAccount
// @Summary Disable account
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param accountId path string true "Account ID"
// @Success 200 {object} models.Account
// @Router /accounts/{accountId}/disable [post]
func (h *AccountHandler) DisableAccount(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, false)
}

func (h *AccountHandler) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	account, err := h.accounts.SetEnabled(r.Context(), actor, chi.URLParam(r, "accountId"), enabled)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// UpdateMinSignatures changes the account quorum
// @Summary Update minimum signatures
// @Description Waiting orders are re-evaluated against the new quorum
// @Tags Accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param accountId path string true "Account ID"
// @Param request body models.UpdateMinSignaturesRequest true "Quorum"
// @Success 200 {object} models.Account
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /accounts/{accountId}/min-signatures [put]
func (h *AccountHandler) UpdateMinSignatures(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req models.UpdateMinSignaturesRequest
	if !decode(w, r, h.validator, &req) {
		return
	}
	account, err := h.accounts.UpdateMinSignatures(r.Context(), actor, chi.URLParam(r, "accountId"), req.MinSignatures)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// AddSigner
// @Summary Add signer
// @Description New signers start in EnableRequested and need an admin confirmation
// @Tags Signers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param accountId path string true "Account ID"
// @Param request body models.AddSignerRequest true "Signer"
// @Success 201 {object} models.Signer
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /accounts/{accountId}/signers [post]
func (h *AccountHandler) AddSigner(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req models.AddSignerRequest
	if !decode(w, r, h.validator, &req) {
		return
	}
	signer, err := h.accounts.AddSigner(r.Context(), actor, chi.URLParam(r, "accountId"), req)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, signer)
}

// ListSigners
// @Summary List signers
// @Tags Signers
// @Produce json
// @Security BearerAuth
// @Param accountId path string true "Account ID"
// @Success 200 {array} models.Signer
// @Router /accounts/{accountId}/signers [get]
func (h *AccountHandler) ListSigners(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorFrom(w, r); !ok {
		return
	}
	signers, err := h.accounts.ListSigners(r.Context(), chi.URLParam(r, "accountId"))
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, signers)
}

// SignerAction drives the signer lifecycle
// @Summary Signer lifecycle
// @Tags Signers
// @Produce json
// @Security BearerAuth
// @Param accountId path string true "Account ID"
// @Param signerId path string true "Signer ID"
// @Param action path string true "request-enable, request-disable, confirm or reject"
// @Success 200 {object} models.Signer
// @Failure 403 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /accounts/{accountId}/signers/{signerId}/{action} [post]
func (h *AccountHandler) SignerAction(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var op func(context.Context, models.Actor, string, string) (*models.Signer, error)
	switch chi.URLParam(r, "action") {
	case "request-enable":
		op = h.accounts.RequestEnable
	case "request-disable":
		op = h.accounts.RequestDisable
	case "confirm":
		op = h.accounts.Confirm
	case "reject":
		op = h.accounts.Reject
	default:
		http.NotFound(w, r)
		return
	}
	signer, err := op(r.Context(), actor, chi.URLParam(r, "accountId"), chi.URLParam(r, "signerId"))
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, signer)
}
