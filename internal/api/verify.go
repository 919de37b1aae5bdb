package api

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/Priya8975/payment-notification-core/internal/notify"
	"github.com/Priya8975/payment-notification-core/internal/worker"
)

// HeaderSecret carries the merchant secret on verification requests.
const HeaderSecret = "X-Webhook-Secret"

type VerifyHandler struct {
	core   *notify.Core
	logger *slog.Logger
}

func NewVerifyHandler(core *notify.Core, logger *slog.Logger) *VerifyHandler {
	return &VerifyHandler{core: core, logger: logger}
}

type verifyResponse struct {
	Valid bool `json:"valid"`
}

// Verify checks a webhook body exactly as received. The body must not be
// re-encoded before hashing, so it is read raw.
func (h *VerifyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	valid, err := h.core.VerifySignature(body, r.Header.Get(worker.HeaderSignature), r.Header.Get(HeaderSecret))
	if err != nil {
		respondErr(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, verifyResponse{Valid: valid})
}
