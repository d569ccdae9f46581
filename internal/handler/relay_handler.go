package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"confidee-relayer/internal/model"
	"confidee-relayer/internal/service"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type RelayHandler struct {
	relay  *service.RelayService
	logger *zap.Logger
}

func NewRelayHandler(relay *service.RelayService, logger *zap.Logger) *RelayHandler {
	return &RelayHandler{relay: relay, logger: logger}
}

func (h *RelayHandler) RegisterRoutes(router chi.Router) {
	router.Post("/relayer/execute", h.Execute)
}

type relayResponse struct {
	Success  bool   `json:"success"`
	TxHash   string `json:"txHash"`
	SecretID string `json:"secretId,omitempty"`
}

// Execute relays one action and blocks until its transaction is confirmed.
func (h *RelayHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req model.RelayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, r, h.logger, service.ErrMissingFields, true)
		return
	}
	req.IdempotencyKey = r.Header.Get(IdempotencyKeyHeader)

	result, err := h.relay.Execute(r.Context(), req)
	if err != nil {
		respondWithError(w, r, h.logger, err, true)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, relayResponse{
		Success:  true,
		TxHash:   result.TxHash,
		SecretID: result.SecretID,
	})
}
