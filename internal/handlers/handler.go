package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/ruralpay/cartable/internal/errs"
	"github.com/ruralpay/cartable/internal/middleware"
	"github.com/ruralpay/cartable/internal/models"
	"github.com/ruralpay/cartable/internal/services"
)

const maxBodyBytes = 1_048_576

// decode reads exactly one JSON object into dst and validates it.
// It writes the error response itself and reports whether the handler may continue.
func decode(w http.ResponseWriter, r *http.Request, v *services.ValidationHelper, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		services.SendErrorResponse(w, "Invalid request body", errs.KindValidation, nil)
		return false
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", errs.KindValidation, nil)
		return false
	}

	if err := v.ValidateStruct(dst); err != nil {
		services.WriteError(w, err)
		return false
	}
	return true
}

func actorFrom(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", errs.KindUnauthenticated, nil)
	}
	return actor, ok
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
