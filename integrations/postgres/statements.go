package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/aqlanhadi/stmtfold/extractor/common"
	"github.com/jackc/pgx/v5"
)

// StatementExists checks whether the account already holds an import covering
// exactly the same period.
func (db *DB) StatementExists(ctx context.Context, accountID string, meta common.TransactionsMeta) (bool, string, error) {
	var id string
	err := db.Pool.QueryRow(ctx, `
		SELECT id FROM statements
		WHERE account_id = $1 AND from_timestamp = $2 AND to_timestamp = $3
	`, accountID, meta.FromTimestamp.OrElse(0), meta.ToTimestamp.OrElse(0)).Scan(&id)

	if errors.Is(err, pgx.ErrNoRows) {
		return false, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("failed to check statement: %w", err)
	}
	return true, id, nil
}

// CreateStatement records one imported bundle.
func (db *DB) CreateStatement(ctx context.Context, accountID, source string, meta common.TransactionsMeta) (string, error) {
	var id string
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO statements (account_id, source, from_timestamp, to_timestamp, no_of_transactions)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, accountID, source, meta.FromTimestamp.OrElse(0), meta.ToTimestamp.OrElse(0), meta.NoOfTransactions).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to create statement: %w", err)
	}
	return id, nil
}

// DeleteStatement removes an import record. Its transactions stay with the account.
func (db *DB) DeleteStatement(ctx context.Context, statementID string) error {
	if _, err := db.Pool.Exec(ctx, `DELETE FROM statements WHERE id = $1`, statementID); err != nil {
		return fmt.Errorf("failed to delete statement: %w", err)
	}
	return nil
}
