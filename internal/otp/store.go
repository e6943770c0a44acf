package otp

import (
	"context"
	"time"

	"github.com/ruralpay/cartable/internal/models"
)

// Store persists challenges. Implementations return errs.ErrOTPNotFound for unknown handles.
type Store interface {
	Save(ctx context.Context, c *models.Challenge, retention time.Duration) error
	Load(ctx context.Context, handle string) (*models.Challenge, error)
	Delete(ctx context.Context, handle string) error

	// IncrementAttempts counts one verification attempt and returns the running total.
	IncrementAttempts(ctx context.Context, handle string, retention time.Duration) (int, error)
	ResetAttempts(ctx context.Context, handle string) error

	// MarkUsed atomically flags the challenge as consumed. It returns false when it already was.
	MarkUsed(ctx context.Context, handle string, retention time.Duration) (bool, error)
	IsUsed(ctx context.Context, handle string) (bool, error)

	// Hit counts one issuance for actorID inside a fixed window and returns the count so far.
	Hit(ctx context.Context, actorID string, window time.Duration) (int64, error)
}

// record is the stored form of a challenge; models.Challenge hides its hash from JSON responses.
type record struct {
	Handle    string               `json:"handle"`
	ActorID   string               `json:"actor_id"`
	Operation models.OperationType `json:"operation"`
	Intent    models.Intent        `json:"intent"`
	Targets   []string             `json:"targets"`
	CodeHash  string               `json:"code_hash"`
	Salt      string               `json:"salt"`
	ExpiresAt time.Time            `json:"expires_at"`
	CreatedAt time.Time            `json:"created_at"`
}

func toRecord(c *models.Challenge) record {
	return record{
		Handle:    c.Handle,
		ActorID:   c.ActorID,
		Operation: c.Operation,
		Intent:    c.Intent,
		Targets:   c.Targets,
		CodeHash:  c.CodeHash,
		Salt:      c.Salt,
		ExpiresAt: c.ExpiresAt,
		CreatedAt: c.CreatedAt,
	}
}

func (r record) challenge() *models.Challenge {
	return &models.Challenge{
		Handle:    r.Handle,
		ActorID:   r.ActorID,
		Operation: r.Operation,
		Intent:    r.Intent,
		Targets:   r.Targets,
		CodeHash:  r.CodeHash,
		Salt:      r.Salt,
		ExpiresAt: r.ExpiresAt,
		CreatedAt: r.CreatedAt,
	}
}
