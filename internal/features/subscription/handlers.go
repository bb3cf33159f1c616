package subscription

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"alchemyst.ke/billing/internal/auth"
	"alchemyst.ke/billing/internal/common"
	"alchemyst.ke/billing/internal/features/catalog"
)

// Handler serves the /user package endpoints.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type purchaseBody struct {
	PackageType  string          `json:"packageType"`
	DurationType string          `json:"durationType"`
	TotalCost    decimal.Decimal `json:"totalCost"`
}

func (b purchaseBody) request() (PurchaseRequest, error) {
	if b.PackageType == "" || b.DurationType == "" || b.TotalCost.IsZero() {
		return PurchaseRequest{}, common.Invalid("body", "packageType, durationType and totalCost are required")
	}
	tier, err := catalog.ParseTier(b.PackageType)
	if err != nil {
		return PurchaseRequest{}, err
	}
	d, err := catalog.ParseDuration(b.DurationType)
	if err != nil {
		return PurchaseRequest{}, err
	}
	return PurchaseRequest{Tier: tier, Duration: d, TotalCost: b.TotalCost}, nil
}

type renewBody struct {
	DurationType string          `json:"durationType"`
	TotalCost    decimal.Decimal `json:"totalCost"`
}

type autoRenewBody struct {
	Enabled      *bool  `json:"enabled"`
	DurationType string `json:"durationType"`
}

func caller(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		common.WriteError(w, r, common.ErrUnauthorized)
	}
	return id.AccountID, ok
}

// HandleSubscribe: POST /user/subscribe
func (h *Handler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	var body purchaseBody
	if err := common.DecodeJSON(r, &body); err != nil {
		common.WriteError(w, r, err)
		return
	}
	req, err := body.request()
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	res, err := h.service.Subscribe(r.Context(), id, req)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteOK(w, "Subscription successful", res)
}

// HandleUpgrade: POST /user/upgrade
func (h *Handler) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	var body purchaseBody
	if err := common.DecodeJSON(r, &body); err != nil {
		common.WriteError(w, r, err)
		return
	}
	req, err := body.request()
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	res, err := h.service.Upgrade(r.Context(), id, req)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteOK(w, "Package upgraded successfully", res)
}

// HandleRenew: POST /user/renew
func (h *Handler) HandleRenew(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	var body renewBody
	if err := common.DecodeJSON(r, &body); err != nil {
		common.WriteError(w, r, err)
		return
	}
	if body.DurationType == "" || body.TotalCost.IsZero() {
		common.WriteError(w, r, common.Invalid("body", "durationType and totalCost are required"))
		return
	}
	d, err := catalog.ParseDuration(body.DurationType)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	res, err := h.service.Renew(r.Context(), id, RenewRequest{Duration: d, TotalCost: body.TotalCost})
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteOK(w, "Package renewed successfully", res)
}

// HandleAutoRenew: POST /user/auto-renew
func (h *Handler) HandleAutoRenew(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	var body autoRenewBody
	if err := common.DecodeJSON(r, &body); err != nil {
		common.WriteError(w, r, err)
		return
	}
	if body.Enabled == nil {
		common.WriteError(w, r, common.Invalid("enabled", "is required"))
		return
	}
	req := AutoRenewRequest{Enabled: *body.Enabled}
	if req.Enabled && body.DurationType != "" {
		d, err := catalog.ParseDuration(body.DurationType)
		if err != nil {
			common.WriteError(w, r, err)
			return
		}
		req.Duration = d
	}
	res, err := h.service.SetAutoRenew(r.Context(), id, req)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	msg := "Auto-renew disabled"
	if req.Enabled {
		msg = "Auto-renew enabled"
	}
	common.WriteOK(w, msg, res)
}

// HandleCancel: POST /user/cancel
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	res, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteOK(w, "Package cancelled. It is no longer active and will not auto-renew.", res)
}

// HandleCurrent: GET /user/package
func (h *Handler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	ov, err := h.service.Current(r.Context(), id)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteOK(w, "Current package retrieved", ov)
}
