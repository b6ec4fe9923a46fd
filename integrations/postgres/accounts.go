package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aqlanhadi/stmtfold/assembler"
	"github.com/aqlanhadi/stmtfold/extractor/common"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// accountParams are the column values of one account row.
type accountParams struct {
	Key             assembler.AccountKey
	FnrkAccountID   *string
	AccountType     *string
	FipName         *string
	Branch          *string
	IfscCode        *string
	MicrCode        *string
	Currency        *string
	CurrentBalance  *decimal.Decimal
	BalanceDateTime *int64
	Summary         []byte
	Profile         []byte
}

func newAccountParams(bundle common.Statement) (accountParams, error) {
	s := bundle.Summary
	summaryJSON, err := json.Marshal(s)
	if err != nil {
		return accountParams{}, fmt.Errorf("failed to encode summary: %w", err)
	}
	profiles := bundle.Profile
	if profiles == nil {
		profiles = []common.Profile{}
	}
	profileJSON, err := json.Marshal(profiles)
	if err != nil {
		return accountParams{}, fmt.Errorf("failed to encode profile: %w", err)
	}

	return accountParams{
		Key:             assembler.KeyOf(s),
		FnrkAccountID:   s.FnrkAccountID,
		AccountType:     s.AccountType,
		FipName:         s.FipName,
		Branch:          s.Branch,
		IfscCode:        s.IfscCode,
		MicrCode:        s.MicrCode,
		Currency:        s.Currency,
		CurrentBalance:  numeric(s.CurrentBalance),
		BalanceDateTime: bigint(s.BalanceDateTime),
		Summary:         summaryJSON,
		Profile:         profileJSON,
	}, nil
}

// GetOrCreateAccount finds the account of a bundle by its key, refreshing the
// summary columns, or creates it.
func (db *DB) GetOrCreateAccount(ctx context.Context, bundle common.Statement) (string, error) {
	p, err := newAccountParams(bundle)
	if err != nil {
		return "", err
	}

	var id string
	err = db.Pool.QueryRow(ctx, `
		SELECT id FROM accounts
		WHERE fip_id = $1 AND masked_acc_number = $2 AND linked_acc_ref = $3
	`, p.Key.FipID, p.Key.MaskedAccNumber, p.Key.LinkedAccRef).Scan(&id)

	if err == nil {
		// Only move the balance forward; older bundles keep the stored one.
		_, err = db.Pool.Exec(ctx, `
			UPDATE accounts
			SET fnrk_account_id = COALESCE($1, fnrk_account_id),
			    account_type = COALESCE($2, account_type),
			    fip_name = COALESCE($3, fip_name),
			    branch = COALESCE($4, branch),
			    ifsc_code = COALESCE($5, ifsc_code),
			    micr_code = COALESCE($6, micr_code),
			    currency = COALESCE($7, currency),
			    current_balance = CASE WHEN $9::bigint >= COALESCE(balance_date_time, 0) THEN COALESCE($8, current_balance) ELSE current_balance END,
			    balance_date_time = GREATEST($9::bigint, balance_date_time),
			    summary = $10,
			    profile = $11,
			    updated_at = NOW()
			WHERE id = $12
		`, p.FnrkAccountID, p.AccountType, p.FipName, p.Branch, p.IfscCode, p.MicrCode, p.Currency,
			p.CurrentBalance, p.BalanceDateTime, p.Summary, p.Profile, id)
		if err != nil {
			return "", fmt.Errorf("failed to update account: %w", err)
		}
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("failed to look up account: %w", err)
	}

	err = db.Pool.QueryRow(ctx, `
		INSERT INTO accounts (
			fip_id, masked_acc_number, linked_acc_ref, fnrk_account_id, account_type, fip_name,
			branch, ifsc_code, micr_code, currency, current_balance, balance_date_time, summary, profile
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`, p.Key.FipID, p.Key.MaskedAccNumber, p.Key.LinkedAccRef, p.FnrkAccountID, p.AccountType, p.FipName,
		p.Branch, p.IfscCode, p.MicrCode, p.Currency, p.CurrentBalance, p.BalanceDateTime, p.Summary, p.Profile).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to create account: %w", err)
	}
	return id, nil
}

func numeric(n common.NullFloat) *decimal.Decimal {
	if !n.Valid {
		return nil
	}
	d := decimal.NewFromFloat(n.Float64).Round(2)
	return &d
}

func bigint(n common.NullInt) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
