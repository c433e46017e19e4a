package auth

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/getsentry/sentry-go"

	"cityinfo-api/internal/httpx"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type authenticateRequest struct {
	UserName string `json:"userName"`
	Password string `json:"password"`
}

// Authenticate exchanges a username and password for an access token. All
// credential failures produce the same 401 body.
func (h *Handler) Authenticate(w http.ResponseWriter, r *http.Request) {
	var body authenticateRequest
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	token, err := h.service.Authenticate(r.Context(), Credential{Username: body.UserName, Password: body.Password})
	if err != nil {
		var lockedErr ErrLoginLocked
		if errors.As(err, &lockedErr) {
			retryAfter := int(lockedErr.Until.Sub(h.service.now()).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		}

		status, message := StatusFor(err)
		if status >= http.StatusInternalServerError {
			sentry.CaptureException(err)
		}
		httpx.WriteError(w, status, message)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, TokenResponse{
		Token:     token.Value,
		TokenType: "Bearer",
		ExpiresIn: int64(token.ExpiresAt.Sub(token.IssuedAt).Seconds()),
	})
}
