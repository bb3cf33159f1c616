package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"alchemyst.ke/billing/internal/common"
	"alchemyst.ke/billing/internal/db/postgres"
	"alchemyst.ke/billing/internal/features/catalog"
)

// Repository is the PostgreSQL Store.
// Every Update runs in one transaction holding the account row lock.
type Repository struct {
	db  *pgxpool.Pool
	tx  *postgres.TxRunner
	now func() time.Time
}

// NewRepository creates a repository that retries conflicting
// transactions up to retries times.
func NewRepository(db *pgxpool.Pool, retries int) *Repository {
	return &Repository{
		db:  db,
		tx:  postgres.NewTxRunner(db, retries),
		now: time.Now,
	}
}

// NUMERIC columns travel as text so decimal keeps every digit.
const accountColumns = `
	id, category, profile, balance::text, currency,
	package_tier, package_duration, package_total_cost::text,
	package_purchase_date, package_expiry_date, package_status,
	auto_renew, auto_renew_duration,
	is_active, is_deactivated, created_at, updated_at`

func scanAccount(row pgx.Row) (*Account, error) {
	var (
		a                    Account
		profile              []byte
		balance              string
		tier, duration       *string
		totalCost            *string
		purchase, expiry     *time.Time
		status, autoDuration *string
	)
	err := row.Scan(
		&a.ID, &a.Category, &profile, &balance, &a.Wallet.Currency,
		&tier, &duration, &totalCost,
		&purchase, &expiry, &status,
		&a.Package.AutoRenew, &autoDuration,
		&a.IsActive, &a.IsDeactivated, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(profile, &a.Profile); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if a.Wallet.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("decode balance: %w", err)
	}

	if tier != nil {
		a.Package.Tier = catalog.Tier(*tier)
	}
	if duration != nil {
		a.Package.Duration = catalog.Duration(*duration)
	}
	if totalCost != nil {
		if a.Package.TotalCost, err = decimal.NewFromString(*totalCost); err != nil {
			return nil, fmt.Errorf("decode package cost: %w", err)
		}
	}
	if purchase != nil {
		a.Package.PurchaseDate = purchase.UTC()
	}
	if expiry != nil {
		a.Package.ExpiryDate = expiry.UTC()
	}
	if status != nil {
		a.Package.Status = Status(*status)
	}
	if autoDuration != nil {
		a.Package.AutoRenewDuration = catalog.Duration(*autoDuration).Ptr()
	}
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

// packageArgs flattens the package slot into nullable column values.
func packageArgs(p Package) []any {
	if !p.Exists() {
		return []any{nil, nil, nil, nil, nil, nil, false, nil}
	}
	var autoDuration *string
	if p.AutoRenewDuration != nil {
		s := string(*p.AutoRenewDuration)
		autoDuration = &s
	}
	return []any{
		string(p.Tier), string(p.Duration), p.TotalCost.String(),
		p.PurchaseDate, p.ExpiryDate, string(p.Status),
		p.AutoRenew, autoDuration,
	}
}

func (r *Repository) Create(ctx context.Context, a *Account) error {
	if !a.Wallet.Balance.IsZero() {
		return common.Invalid("wallet.balance", "money only enters through the ledger")
	}
	profile, err := json.Marshal(a.Profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	a.IsActive = RecomputeActivation(a)

	args := []any{a.ID, string(a.Category), profile, a.Wallet.Currency}
	args = append(args, packageArgs(a.Package)...)
	args = append(args, a.IsActive, a.IsDeactivated, a.CreatedAt, a.UpdatedAt)

	_, err = r.db.Exec(ctx, `
		INSERT INTO accounts (
			id, category, profile, balance, currency,
			package_tier, package_duration, package_total_cost,
			package_purchase_date, package_expiry_date, package_status,
			auto_renew, auto_renew_duration,
			is_active, is_deactivated, created_at, updated_at
		) VALUES ($1, $2, $3, 0, $4, $5, $6, $7::numeric, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, args...)
	if postgres.SQLState(err) == postgres.CodeUniqueViolation {
		return common.Invalid("id", "account already exists")
	}
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// Update locks the account row, applies fn and writes the account together
// with the queued history rows and processed ids. fn may be called again if
// the transaction is retried.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, fn func(u *Unit) error) (*Account, error) {
	var result *Account
	err := r.tx.WithTx(ctx, func(tx pgx.Tx) error {
		a, err := scanAccount(tx.QueryRow(ctx,
			`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return common.ErrAccountNotFound
		}
		if err != nil {
			return fmt.Errorf("lock account: %w", err)
		}

		u := newUnit(a)
		if err := fn(u); err != nil {
			return err
		}
		if u.Account.Wallet.Balance.IsNegative() {
			return common.ErrInsufficientBalance
		}

		for _, txID := range u.processed {
			tag, err := tx.Exec(ctx, `
				INSERT INTO processed_transactions (account_id, transaction_id)
				VALUES ($1, $2)
				ON CONFLICT DO NOTHING
			`, id, txID)
			if err != nil {
				return fmt.Errorf("mark processed: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return common.ErrDuplicateTransaction
			}
		}

		u.seal(r.now().UTC())
		if err := r.writeAccount(ctx, tx, u.Account); err != nil {
			return err
		}
		if err := insertPayments(ctx, tx, id, u.payments); err != nil {
			return err
		}
		if err := insertPackageEvents(ctx, tx, id, u.events); err != nil {
			return err
		}

		result = u.Account
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Repository) writeAccount(ctx context.Context, tx pgx.Tx, a *Account) error {
	profile, err := json.Marshal(a.Profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	args := []any{a.ID, profile, a.Wallet.Balance.String()}
	args = append(args, packageArgs(a.Package)...)
	args = append(args, a.IsActive, a.IsDeactivated, a.UpdatedAt)

	_, err = tx.Exec(ctx, `
		UPDATE accounts SET
			profile = $2, balance = $3::numeric,
			package_tier = $4, package_duration = $5, package_total_cost = $6::numeric,
			package_purchase_date = $7, package_expiry_date = $8, package_status = $9,
			auto_renew = $10, auto_renew_duration = $11,
			is_active = $12, is_deactivated = $13, updated_at = $14
		WHERE id = $1
	`, args...)
	if postgres.SQLState(err) == postgres.CodeCheckViolation {
		return common.ErrInsufficientBalance
	}
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return nil
}

func insertPayments(ctx context.Context, tx pgx.Tx, id uuid.UUID, entries []PaymentEntry) error {
	for _, e := range entries {
		_, err := tx.Exec(ctx, `
			INSERT INTO payment_history (
				account_id, transaction_id, checkout_request_id, amount,
				phone, type, status, description, created_at
			) VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9)
		`, id, e.TransactionID, e.CheckoutRequestID, e.Amount.String(),
			e.Phone, string(e.Type), string(e.Status), e.Description, e.Timestamp)
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
	}
	return nil
}

func insertPackageEvents(ctx context.Context, tx pgx.Tx, id uuid.UUID, events []PackageEvent) error {
	for _, e := range events {
		_, err := tx.Exec(ctx, `
			INSERT INTO package_history (
				account_id, tier, duration, total_cost,
				purchase_date, expiry_date, action, created_at
			) VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8)
		`, id, string(e.Tier), string(e.Duration), e.TotalCost.String(),
			e.PurchaseDate, e.ExpiryDate, string(e.Action), e.Timestamp)
		if err != nil {
			return fmt.Errorf("insert package event: %w", err)
		}
	}
	return nil
}

func (r *Repository) ListDue(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id FROM accounts
		WHERE package_status = 'active' AND package_expiry_date <= $1
		ORDER BY package_expiry_date
	`, now)
	if err != nil {
		return nil, fmt.Errorf("list due: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("list due: %w", err)
	}
	return ids, nil
}

func (r *Repository) exists(ctx context.Context, id uuid.UUID) error {
	var ok bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&ok); err != nil {
		return fmt.Errorf("check account: %w", err)
	}
	if !ok {
		return common.ErrAccountNotFound
	}
	return nil
}

func (r *Repository) PaymentHistory(ctx context.Context, id uuid.UUID) ([]PaymentEntry, error) {
	if err := r.exists(ctx, id); err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, `
		SELECT transaction_id, checkout_request_id, amount::text,
		       phone, type, status, description, created_at
		FROM payment_history
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("payment history: %w", err)
	}
	defer rows.Close()

	var out []PaymentEntry
	for rows.Next() {
		var (
			e      PaymentEntry
			amount string
		)
		if err := rows.Scan(&e.TransactionID, &e.CheckoutRequestID, &amount,
			&e.Phone, &e.Type, &e.Status, &e.Description, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("decode amount: %w", err)
		}
		e.Timestamp = e.Timestamp.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repository) PackageHistory(ctx context.Context, id uuid.UUID) ([]PackageEvent, error) {
	if err := r.exists(ctx, id); err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, `
		SELECT tier, duration, total_cost::text, purchase_date, expiry_date, action, created_at
		FROM package_history
		WHERE account_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("package history: %w", err)
	}
	defer rows.Close()

	var out []PackageEvent
	for rows.Next() {
		var (
			e    PackageEvent
			cost string
		)
		if err := rows.Scan(&e.Tier, &e.Duration, &cost,
			&e.PurchaseDate, &e.ExpiryDate, &e.Action, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan package event: %w", err)
		}
		if e.TotalCost, err = decimal.NewFromString(cost); err != nil {
			return nil, fmt.Errorf("decode cost: %w", err)
		}
		e.PurchaseDate, e.ExpiryDate, e.Timestamp = e.PurchaseDate.UTC(), e.ExpiryDate.UTC(), e.Timestamp.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close is a no-op: the pool is owned by the app.
func (r *Repository) Close() {}
