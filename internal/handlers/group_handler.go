package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ruralpay/cartable/internal/models"
	"github.com/ruralpay/cartable/internal/services"
)

type GroupHandler struct {
	groups    *services.GroupService
	validator *services.ValidationHelper
}

func NewGroupHandler(groups *services.GroupService) *GroupHandler {
	return &GroupHandler{
		groups:    groups,
		validator: services.NewValidationHelper(),
	}
}

// CreateGroup
// @Summary Create account group
// @Tags Groups
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.GroupRequest true "Group"
// @Success 201 {object} models.AccountGroup
// @Failure 400 {object} services.ErrorResponse
// @Router /groups [post]
func (h *GroupHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req models.GroupRequest
	if !decode(w, r, h.validator, &req) {
		return
	}
	group, err := h.groups.Create(r.Context(), actor, req)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

// ListGroups
// @Summary List account groups
// @Tags Groups
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.AccountGroup
// @Router /groups [get]
func (h *GroupHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorFrom(w, r); !ok {
		return
	}
	groups, err := h.groups.List(r.Context())
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

// GetGroup
// @Summary Get account group
// @Tags Groups
// @Produce json
// @Security BearerAuth
// @Param groupId path string true "Group ID"
// @Success 200 {object} models.AccountGroup
// @Failure 404 {object} services.ErrorResponse
// @Router /groups/{groupId} [get]
func (h *GroupHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorFrom(w, r); !ok {
		return
	}
	group, err := h.groups.Get(r.Context(), chi.URLParam(r, "groupId"))
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

// UpdateGroup
// @Summary Update account group
// @Tags Groups
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param groupId path string true "Group ID"
// @Param request body models.GroupRequest true "Group"
// @Success 200 {object} models.AccountGroup
// @Router /groups/{groupId} [put]
func (h *GroupHandler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req models.GroupRequest
	if !decode(w, r, h.validator, &req) {
		return
	}
	group, err := h.groups.Update(r.Context(), actor, chi.URLParam(r, "groupId"), req)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

// DeleteGroup
// @Summary Delete account group
// @Tags Groups
// @Security BearerAuth
// @Param groupId path string true "Group ID"
// @Success 204
// @Router /groups/{groupId} [delete]
func (h *GroupHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if err := h.groups.Delete(r.Context(), actor, chi.URLParam(r, "groupId")); err != nil {
		services.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EnableGroup
// @Summary Enable account group
// @Tags Groups
// @Produce json
// @Security BearerAuth
// @Param groupId path string true "Group ID"
// @Success 200 {object} models.AccountGroup
// @Router /groups/{groupId}/enable [post]
func (h *GroupHandler) EnableGroup(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, true)
}

// DisableGroup
// @Summary Disable account group
// @Tags Groups
// @Produce json
// @Security BearerAuth
// @Param groupId path string true "Group ID"
// @Success 200 {object} models.AccountGroup
// @Router /groups/{groupId}/disable [post]
func (h *GroupHandler) DisableGroup(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, false)
}

func (h *GroupHandler) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	group, err := h.groups.SetEnabled(r.Context(), actor, chi.URLParam(r, "groupId"), enabled)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

// AddAccount
// @Summary Add account to group
// @Tags Groups
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param groupId path string true "Group ID"
// @Param request body models.GroupMemberRequest true "Account"
// @Success 200 {object} models.AccountGroup
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /groups/{groupId}/accounts [post]
func (h *GroupHandler) AddAccount(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req models.GroupMemberRequest
	if !decode(w, r, h.validator, &req) {
		return
	}
	group, err := h.groups.AddAccount(r.Context(), actor, chi.URLParam(r, "groupId"), req.AccountID)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

// RemoveAccount
// @Summary Remove account from group
// @Tags Groups
// @Produce json
// @Security BearerAuth
// @Param groupId path string true "Group ID"
// @Param accountId path string true "Account ID"
// @Success 200 {object} models.AccountGroup
// @Router /groups/{groupId}/accounts/{accountId} [delete]
func (h *GroupHandler) RemoveAccount(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	group, err := h.groups.RemoveAccount(r.Context(), actor, chi.URLParam(r, "groupId"), chi.URLParam(r, "accountId"))
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}
