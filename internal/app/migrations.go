package app

import "alchemyst.ke/billing/internal/db/postgres"

// Migrations are embedded in the binary to keep deploys to a single artifact.
var Migrations = []postgres.Migration{
	{Version: 1, Name: "accounts", SQL: migration001Accounts},
	{Version: 2, Name: "history", SQL: migration002History},
	{Version: 3, Name: "processed_transactions", SQL: migration003Processed},
	{Version: 4, Name: "mpesa_receipts", SQL: migration004Receipts},
}

var migration001Accounts = `
CREATE TABLE IF NOT EXISTS accounts (
    id UUID PRIMARY KEY,
    category VARCHAR(32) NOT NULL,
    profile JSONB NOT NULL DEFAULT '{}',
    balance NUMERIC(14,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
    currency VARCHAR(8) NOT NULL,
    package_tier VARCHAR(16),
    package_duration VARCHAR(16),
    package_total_cost NUMERIC(14,2),
    package_purchase_date TIMESTAMPTZ,
    package_expiry_date TIMESTAMPTZ,
    package_status VARCHAR(16),
    auto_renew BOOLEAN NOT NULL DEFAULT FALSE,
    auto_renew_duration VARCHAR(16),
    is_active BOOLEAN NOT NULL DEFAULT FALSE,
    is_deactivated BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_accounts_due
    ON accounts(package_expiry_date) WHERE package_status = 'active';
`

var migration002History = `
CREATE TABLE IF NOT EXISTS payment_history (
    id BIGSERIAL PRIMARY KEY,
    account_id UUID NOT NULL REFERENCES accounts(id),
    transaction_id VARCHAR(128) NOT NULL,
    checkout_request_id VARCHAR(128),
    amount NUMERIC(14,2) NOT NULL,
    phone VARCHAR(32),
    type VARCHAR(32) NOT NULL,
    status VARCHAR(16) NOT NULL,
    description TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_payment_history_account
    ON payment_history(account_id, created_at DESC);

CREATE TABLE IF NOT EXISTS package_history (
    id BIGSERIAL PRIMARY KEY,
    account_id UUID NOT NULL REFERENCES accounts(id),
    tier VARCHAR(16) NOT NULL,
    duration VARCHAR(16) NOT NULL,
    total_cost NUMERIC(14,2) NOT NULL,
    purchase_date TIMESTAMPTZ NOT NULL,
    expiry_date TIMESTAMPTZ NOT NULL,
    action VARCHAR(16) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_package_history_account ON package_history(account_id, id);
`

var migration003Processed = `
CREATE TABLE IF NOT EXISTS processed_transactions (
    account_id UUID NOT NULL REFERENCES accounts(id),
    transaction_id VARCHAR(128) NOT NULL,
    processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (account_id, transaction_id)
);
`

var migration004Receipts = `
CREATE TABLE IF NOT EXISTS mpesa_receipts (
    id BIGSERIAL PRIMARY KEY,
    transaction_id VARCHAR(64) UNIQUE NOT NULL,
    checkout_request_id VARCHAR(128) NOT NULL,
    phone VARCHAR(32),
    amount NUMERIC(14,2) NOT NULL,
    received_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_mpesa_receipts_checkout ON mpesa_receipts(checkout_request_id);
`
