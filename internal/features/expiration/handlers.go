package expiration

import (
	"fmt"
	"net/http"

	"alchemyst.ke/billing/internal/common"
)

// Guard authenticates the external scheduler.
type Guard interface {
	Check(r *http.Request) error
}

// Handler exposes the sweep to the external scheduler.
type Handler struct {
	service *Service
	guard   Guard
}

func NewHandler(service *Service, guard Guard) *Handler {
	return &Handler{service: service, guard: guard}
}

// HandleCheckExpirations: POST /user/check-expirations
func (h *Handler) HandleCheckExpirations(w http.ResponseWriter, r *http.Request) {
	if err := h.guard.Check(r); err != nil {
		common.WriteError(w, r, err)
		return
	}

	res, err := h.service.Sweep(r.Context())
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteOK(w,
		fmt.Sprintf("Processed expirations: %d expired, %d auto-renewed", res.Expired, res.AutoRenewed),
		res,
	)
}
