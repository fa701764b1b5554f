package httptransport

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"repair-job-service/internal/entity"
)

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// RequestLogger logs one line per request. It must run after
// middleware.RequestID.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w}
			start := time.Now()

			next.ServeHTTP(sw, r)

			log.Info("http request",
				zap.String("req_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", sw.status),
				zap.Int("bytes", sw.bytes),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

// Claims is the bearer token payload: the subject is the user id and role
// is one of the entity roles.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type actorKey struct{}

func withActor(ctx context.Context, a entity.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom returns the caller placed in ctx by Authenticate.
func ActorFrom(ctx context.Context) (entity.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(entity.Actor)
	return a, ok
}

// Authenticate verifies an HS256 bearer token and stores the caller in the
// request context. Role checks happen in the service layer.
func Authenticate(secret []byte) func(http.Handler) http.Handler {
	keyFunc := func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				unauthenticated(w, "missing bearer token")
				return
			}

			var claims Claims
			if _, err := jwt.ParseWithClaims(raw, &claims, keyFunc); err != nil {
				unauthenticated(w, "invalid or expired token")
				return
			}
			userID, err := uuid.Parse(claims.Subject)
			if err != nil {
				unauthenticated(w, "token subject is not a user id")
				return
			}

			actor := entity.Actor{UserID: userID, Role: entity.Role(claims.Role)}
			next.ServeHTTP(w, r.WithContext(withActor(r.Context(), actor)))
		})
	}
}

func unauthenticated(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusUnauthorized, apiError{Kind: kindUnauthenticated, Message: msg})
}
