package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aqlanhadi/stmtfold/assembler"
	"github.com/aqlanhadi/stmtfold/extractor/common"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const insertTransaction = `
	INSERT INTO transactions (
		account_id, statement_id, txn_key, timestamp_key, amount_key, masked_key,
		mode, type, txn_id, amount, narration, reference,
		value_date, transaction_timestamp, current_balance, data
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	ON CONFLICT (account_id, txn_key, timestamp_key, amount_key, masked_key) DO NOTHING
`

// txnRow holds the column values of one transaction.
type txnRow struct {
	Key                  assembler.DedupKey
	Mode                 string
	Type                 *string
	TxnID                *string
	Amount               *decimal.Decimal
	Narration            *string
	Reference            *string
	ValueDate            *int64
	TransactionTimestamp *int64
	CurrentBalance       *decimal.Decimal
	Data                 []byte
}

func newTxnRow(t common.Transaction) txnRow {
	data, err := json.Marshal(t)
	if err != nil {
		data = []byte("{}")
	}
	return txnRow{
		Key:                  assembler.KeyOfTransaction(t),
		Mode:                 t.Mode,
		Type:                 t.Type,
		TxnID:                t.TxnID,
		Amount:               numeric(t.Amount),
		Narration:            t.Narration,
		Reference:            t.Reference,
		ValueDate:            bigint(t.ValueDate),
		TransactionTimestamp: bigint(t.TransactionTimestamp),
		CurrentBalance:       numeric(t.CurrentBalance),
		Data:                 data,
	}
}

// CreateTransactions inserts the transactions of an account in one batch.
// Rows already stored under the same dedup key are skipped. It returns the
// number of rows actually inserted.
func (db *DB) CreateTransactions(ctx context.Context, accountID, statementID string, transactions []common.Transaction) (int, error) {
	if len(transactions) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, t := range transactions {
		r := newTxnRow(t)
		batch.Queue(insertTransaction,
			accountID, statementID, r.Key.TxnID, r.Key.Timestamp, r.Key.Amount, r.Key.Masked,
			r.Mode, r.Type, r.TxnID, r.Amount, r.Narration, r.Reference,
			r.ValueDate, r.TransactionTimestamp, r.CurrentBalance, r.Data,
		)
	}

	br := db.Pool.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for range transactions {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("failed to insert transaction: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}
