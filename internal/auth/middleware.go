package auth

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"cityinfo-api/internal/httpx"
)

type ctxKey string

const ctxKeyClaims ctxKey = "auth_claims"

func WithClaims(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, ctxKeyClaims, claims)
}

func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	claims, ok := ctx.Value(ctxKeyClaims).(Claims)
	return claims, ok
}

type TokenVerifier interface {
	Verify(tokenString string) (Claims, error)
}

// Gate puts token verification and policy evaluation in front of handlers.
type Gate struct {
	verifier  TokenVerifier
	evaluator *Evaluator
	recorder  Recorder
}

func NewGate(verifier TokenVerifier, evaluator *Evaluator, recorder Recorder) *Gate {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Gate{verifier: verifier, evaluator: evaluator, recorder: recorder}
}

// Authenticate rejects requests without a valid bearer token and stores the
// verified claims in the request context.
func (g *Gate) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr, err := httpx.BearerToken(r)
		if err != nil {
			g.recorder.TokenRejected("missing_token")
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		claims, err := g.verifier.Verify(tokenStr)
		if err != nil {
			g.recorder.TokenRejected(rejectionReason(err))
			status, message := StatusFor(err)
			httpx.WriteError(w, status, message)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// RequireCity authorizes the verified caller against the {cityId} path value.
func (g *Gate) RequireCity(next http.Handler) http.Handler {
	return g.Require(PolicyCityMatch, next)
}

// Require evaluates the named policy for the verified caller. It must run
// after Authenticate.
func (g *Gate) Require(policy string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		resource, ok := resourceFromRequest(r)
		if !ok {
			httpx.WriteError(w, http.StatusBadRequest, "invalid city id")
			return
		}

		decision := g.evaluator.Evaluate(policy, claims, resource)
		g.recorder.PolicyDecision(policy, decision.Allow)
		if err := decision.Err(); err != nil {
			httpx.WriteError(w, http.StatusForbidden, "forbidden")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func resourceFromRequest(r *http.Request) (Resource, bool) {
	raw := r.PathValue("cityId")
	if raw == "" {
		return Resource{}, true
	}

	cityID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || cityID <= 0 {
		return Resource{}, false
	}
	return Resource{CityID: cityID}, true
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	default:
		return "malformed"
	}
}
