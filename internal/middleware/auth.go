package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ruralpay/cartable/internal/errs"
	"github.com/ruralpay/cartable/internal/models"
	"github.com/ruralpay/cartable/internal/services"
)

type contextKey string

const actorKey contextKey = "actor"

var ErrInvalidToken = errors.New("invalid token")

// TokenManager issues and parses HS256 tokens carrying user_id and roles claims.
type TokenManager struct {
	secretKey []byte
	issuer    string
	ttl       time.Duration
}

func NewTokenManager(secretKey, issuer string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenManager{secretKey: []byte(secretKey), issuer: issuer, ttl: ttl}
}

func (tm *TokenManager) GenerateToken(actor models.Actor) (string, error) {
	roles := make([]string, len(actor.Roles))
	for i, r := range actor.Roles {
		roles[i] = string(r)
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": actor.ID,
		"roles":   roles,
		"iss":     tm.issuer,
		"exp":     now.Add(tm.ttl).Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secretKey)
}

func (tm *TokenManager) ParseToken(tokenStr string) (models.Actor, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if tm.issuer != "" {
		opts = append(opts, jwt.WithIssuer(tm.issuer))
	}
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return tm.secretKey, nil
	}, opts...)
	if err != nil || !token.Valid {
		return models.Actor{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Actor{}, ErrInvalidToken
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return models.Actor{}, ErrInvalidToken
	}

	actor := models.Actor{ID: userID}
	if raw, ok := claims["roles"].([]interface{}); ok {
		for _, r := range raw {
			if s, ok := r.(string); ok {
				actor.Roles = append(actor.Roles, models.Role(s))
			}
		}
	}
	return actor, nil
}

// AuthMiddleware resolves the bearer token into an Actor on the request context.
func AuthMiddleware(tm *TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Get token from Authorization header
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				services.SendErrorResponse(w, "Authorization header required", errs.KindUnauthenticated, nil)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				services.SendErrorResponse(w, "Invalid authorization header format", errs.KindUnauthenticated, nil)
				return
			}

			actor, err := tm.ParseToken(parts[1])
			if err != nil {
				services.SendErrorResponse(w, "Invalid token", errs.KindUnauthenticated, nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

func ActorFrom(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(models.Actor)
	return actor, ok && actor.ID != ""
}
