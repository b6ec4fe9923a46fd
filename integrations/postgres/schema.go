package postgres

import (
	"context"
	"fmt"
)

const ddl = `
-- Accounts keyed by (fip_id, masked_acc_number, linked_acc_ref), normalized upper case
CREATE TABLE IF NOT EXISTS accounts (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    fip_id VARCHAR(100) NOT NULL DEFAULT '',
    masked_acc_number VARCHAR(100) NOT NULL DEFAULT '',
    linked_acc_ref VARCHAR(255) NOT NULL DEFAULT '',
    fnrk_account_id VARCHAR(255),
    account_type VARCHAR(100),
    fip_name VARCHAR(255),
    branch VARCHAR(255),
    ifsc_code VARCHAR(20),
    micr_code VARCHAR(20),
    currency VARCHAR(10),
    current_balance NUMERIC(18,2),
    balance_date_time BIGINT,
    summary JSONB DEFAULT '{}',
    profile JSONB DEFAULT '[]',
    created_at TIMESTAMPTZ DEFAULT NOW(),
    updated_at TIMESTAMPTZ DEFAULT NOW(),

    UNIQUE(fip_id, masked_acc_number, linked_acc_ref)
);

-- One row per imported bundle, natural key is the covered period
CREATE TABLE IF NOT EXISTS statements (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    account_id UUID NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    source VARCHAR(255) NOT NULL,
    from_timestamp BIGINT NOT NULL DEFAULT 0,
    to_timestamp BIGINT NOT NULL DEFAULT 0,
    no_of_transactions INTEGER NOT NULL,
    created_at TIMESTAMPTZ DEFAULT NOW(),

    UNIQUE(account_id, from_timestamp, to_timestamp)
);

-- Transactions deduplicated per account on the merge key
CREATE TABLE IF NOT EXISTS transactions (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    account_id UUID NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    statement_id UUID REFERENCES statements(id) ON DELETE SET NULL,
    txn_key VARCHAR(255) NOT NULL DEFAULT '',
    timestamp_key VARCHAR(32) NOT NULL DEFAULT '',
    amount_key VARCHAR(64) NOT NULL DEFAULT '',
    masked_key VARCHAR(100) NOT NULL DEFAULT '',
    mode VARCHAR(20) NOT NULL,
    type VARCHAR(10),
    txn_id VARCHAR(255),
    amount NUMERIC(18,2),
    narration TEXT,
    reference VARCHAR(255),
    value_date BIGINT,
    transaction_timestamp BIGINT,
    current_balance NUMERIC(18,2),
    data JSONB DEFAULT '{}',
    created_at TIMESTAMPTZ DEFAULT NOW(),

    UNIQUE(account_id, txn_key, timestamp_key, amount_key, masked_key)
);

CREATE INDEX IF NOT EXISTS idx_statements_account_id ON statements(account_id);
CREATE INDEX IF NOT EXISTS idx_transactions_account_id ON transactions(account_id);
CREATE INDEX IF NOT EXISTS idx_transactions_timestamp ON transactions(transaction_timestamp);
CREATE INDEX IF NOT EXISTS idx_transactions_mode ON transactions(mode);
`

// migrateDDL adds columns introduced after the first schema version
const migrateDDL = `
DO $$ BEGIN
    IF NOT EXISTS (SELECT 1 FROM information_schema.columns
                   WHERE table_name = 'transactions' AND column_name = 'data') THEN
        ALTER TABLE transactions ADD COLUMN data JSONB DEFAULT '{}';
    END IF;
END $$;

DO $$ BEGIN
    IF NOT EXISTS (SELECT 1 FROM information_schema.columns
                   WHERE table_name = 'accounts' AND column_name = 'profile') THEN
        ALTER TABLE accounts ADD COLUMN profile JSONB DEFAULT '[]';
    END IF;
END $$;
`

// EnsureSchema creates tables if they don't exist and runs migrations
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := db.Pool.Exec(ctx, migrateDDL); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
