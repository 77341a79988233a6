// -----------------------------------------------------------------------
// Digest Handler - manual digest email trigger
// -----------------------------------------------------------------------

package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/curio/internal/services/digest"
)

// DigestRequest is the payload for POST /api/digest/send. WindowHours
// bounds how far back the digest reaches (default 24).
type DigestRequest struct {
	WindowHours int `json:"window_hours" validate:"omitempty,min=1,max=168"`
}

// DigestHandler triggers digest composition and delivery on demand
type DigestHandler struct {
	digest *digest.Service
	logger arbor.ILogger
}

// NewDigestHandler creates a new digest handler
func NewDigestHandler(digestService *digest.Service, logger arbor.ILogger) *DigestHandler {
	return &DigestHandler{
		digest: digestService,
		logger: logger,
	}
}

// SendHandler composes and sends the digest email
// POST /api/digest/send
func (h *DigestHandler) SendHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	req := DigestRequest{WindowHours: 24}
	if r.ContentLength > 0 {
		if !DecodeAndValidate(w, r, &req) {
			return
		}
		if req.WindowHours == 0 {
			req.WindowHours = 24
		}
	}

	count, err := h.digest.SendDigest(r.Context(), time.Duration(req.WindowHours)*time.Hour)
	if err != nil {
		h.logger.Error().Err(err).Msg("Digest send failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"articles":     count,
		"window_hours": req.WindowHours,
	})
}
