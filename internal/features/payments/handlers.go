package payments

import (
	"net/http"

	"alchemyst.ke/billing/internal/common"
)

// Handler serves the provider callback.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleCallback: POST /mpesa/callback
// The provider only needs an acknowledgement; it is sent once the receipt is
// stored.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	var cb Callback
	if err := common.DecodeJSON(r, &cb); err != nil {
		common.WriteError(w, r, err)
		return
	}
	if _, err := h.service.HandleCallback(r.Context(), cb); err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, "ok")
}
