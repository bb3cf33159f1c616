package payments

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ReceiptStore keeps provider receipts. Save reports false when a receipt
// with the same transaction id already exists.
type ReceiptStore interface {
	Save(ctx context.Context, r Receipt) (bool, error)
}

// MemoryReceipts keeps receipts in process.
type MemoryReceipts struct {
	mu       sync.Mutex
	receipts map[string]Receipt
}

func NewMemoryReceipts() *MemoryReceipts {
	return &MemoryReceipts{receipts: make(map[string]Receipt)}
}

func (m *MemoryReceipts) Save(_ context.Context, r Receipt) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.receipts[r.TransactionID]; ok {
		return false, nil
	}
	m.receipts[r.TransactionID] = r
	return true, nil
}

// Len returns the number of stored receipts.
func (m *MemoryReceipts) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.receipts)
}

// Repository stores receipts in the mpesa_receipts table.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Save(ctx context.Context, rc Receipt) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO mpesa_receipts (transaction_id, checkout_request_id, phone, amount, received_at)
		VALUES ($1, $2, $3, $4::numeric, $5)
		ON CONFLICT (transaction_id) DO NOTHING
	`, rc.TransactionID, rc.CheckoutRequestID, rc.Phone, rc.Amount.String(), rc.ReceivedAt)
	if err != nil {
		return false, fmt.Errorf("save receipt: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
