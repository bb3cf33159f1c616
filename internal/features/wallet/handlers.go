package wallet

import (
	"net/http"

	"github.com/shopspring/decimal"

	"alchemyst.ke/billing/internal/auth"
	"alchemyst.ke/billing/internal/common"
)

// Handler serves the wallet endpoints. Routes are mounted behind auth.Require.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type creditBody struct {
	Amount            decimal.Decimal `json:"amount"`
	TransactionID     string          `json:"transactionId"`
	CheckoutRequestID string          `json:"checkoutRequestId"`
	Phone             string          `json:"phone"`
}

// HandleCredit: POST /mpesa/update-balance
func (h *Handler) HandleCredit(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		common.WriteError(w, r, common.ErrUnauthorized)
		return
	}

	var body creditBody
	if err := common.DecodeJSON(r, &body); err != nil {
		common.WriteError(w, r, err)
		return
	}

	bal, err := h.service.Credit(r.Context(), id.AccountID, CreditRequest{
		Amount:            body.Amount,
		TransactionID:     body.TransactionID,
		CheckoutRequestID: body.CheckoutRequestID,
		Phone:             body.Phone,
	})
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteOK(w, "Wallet balance updated successfully", map[string]any{
		"newBalance": bal.Balance,
		"currency":   bal.Currency,
	})
}

// HandleBalance: GET /mpesa/wallet/balance
func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		common.WriteError(w, r, common.ErrUnauthorized)
		return
	}
	bal, err := h.service.GetBalance(r.Context(), id.AccountID)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteOK(w, "Wallet balance retrieved", bal)
}

// HandleHistory: GET /mpesa/wallet/history
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		common.WriteError(w, r, common.ErrUnauthorized)
		return
	}
	entries, err := h.service.PaymentHistory(r.Context(), id.AccountID)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteOK(w, "Payment history retrieved", map[string]any{"transactions": entries})
}

// HandleReconcile: GET /mpesa/wallet/reconcile
func (h *Handler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		common.WriteError(w, r, common.ErrUnauthorized)
		return
	}
	rec, err := h.service.Reconcile(r.Context(), id.AccountID)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	msg := "Wallet matches payment history"
	if !rec.Consistent {
		msg = "Wallet does not match payment history"
	}
	common.WriteOK(w, msg, rec)
}
