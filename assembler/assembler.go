// Package assembler merges partial statements into one bundle per account.
package assembler

import (
	"reflect"
	"sort"
	"strings"
	"unicode"

	"github.com/aqlanhadi/stmtfold/extractor/common"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/iter"
	"github.com/tiendc/go-deepcopy"
)

// AccountKey identifies an account across documents.
type AccountKey struct {
	FipID           string
	MaskedAccNumber string
	LinkedAccRef    string
}

// KeyOf builds the normalized key of a summary.
func KeyOf(s common.Summary) AccountKey {
	return AccountKey{
		FipID:           common.Upper(s.FipID),
		MaskedAccNumber: common.Upper(s.MaskedAccNumber),
		LinkedAccRef:    common.Upper(s.LinkedAccRef),
	}
}

// FileName is the bundle file name for the key.
func (k AccountKey) FileName() string {
	return "bank_" + safeComponent(k.FipID) + "_" + safeComponent(k.MaskedAccNumber) + "_" + safeComponent(k.LinkedAccRef) + ".json"
}

func safeComponent(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}

// Bundle is the merged statement of one account.
type Bundle struct {
	Key       AccountKey
	Statement common.Statement
}

// Assembler accumulates partials until Assemble is called.
type Assembler struct {
	partials []common.Statement
	workers  int
}

// New returns an Assembler merging up to workers groups at once.
func New(workers int) *Assembler {
	if workers <= 0 {
		workers = 1
	}
	return &Assembler{workers: workers}
}

// Add queues one partial statement.
func (a *Assembler) Add(partials ...common.Statement) {
	a.partials = append(a.partials, partials...)
}

// Len is the number of queued partials.
func (a *Assembler) Len() int {
	return len(a.partials)
}

type group struct {
	key      AccountKey
	partials []common.Statement
}

// groups buckets the partials by key in order of first appearance.
func (a *Assembler) groups() []group {
	index := map[AccountKey]int{}
	var out []group
	for _, p := range a.partials {
		key := KeyOf(p.Summary)
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, group{key: key})
		}
		out[i].partials = append(out[i].partials, p)
	}
	return out
}

// Assemble merges every account group. Bundles come out in the order their
// account first appeared.
func (a *Assembler) Assemble() []Bundle {
	groups := a.groups()
	pool := iter.Mapper[group, Bundle]{MaxGoroutines: a.workers}
	bundles := pool.Map(groups, func(g *group) Bundle {
		return Bundle{Key: g.key, Statement: merge(g.partials)}
	})
	log.Debug().Int("partials", len(a.partials)).Int("accounts", len(bundles)).Msg("assembled")
	return bundles
}

// Assemble is a one-shot helper over New, Add and Assemble.
func Assemble(partials []common.Statement, workers int) []Bundle {
	a := New(workers)
	a.Add(partials...)
	return a.Assemble()
}

func merge(partials []common.Statement) common.Statement {
	var (
		profiles  [][]common.Profile
		summaries []common.Summary
		txns      [][]common.Transaction
	)
	for _, p := range partials {
		profiles = append(profiles, p.Profile)
		summaries = append(summaries, p.Summary)
		txns = append(txns, p.Transactions)
	}

	mergedProfiles := MergeProfiles(profiles)
	mergedSummary := MergeSummaries(summaries)
	mergedTxns := MergeTransactions(txns)

	return common.Statement{
		Profile:          mergedProfiles,
		Summary:          mergedSummary,
		Transactions:     mergedTxns,
		TransactionsMeta: ComputeMeta(mergedSummary, mergedProfiles, mergedTxns),
	}
}

type profileKey struct {
	pan, masked, fip string
}

// MergeProfiles dedups profiles by (pan, maskedAccNumber, fipId). A retained
// profile only gains values for its empty fields; ckycCompliance becomes true
// when any duplicate says so.
func MergeProfiles(lists [][]common.Profile) []common.Profile {
	index := map[profileKey]int{}
	out := []common.Profile{}
	for _, list := range lists {
		for _, p := range list {
			key := profileKey{common.Upper(p.Pan), common.Upper(p.MaskedAccNumber), common.Upper(p.FipID)}
			i, ok := index[key]
			if !ok {
				index[key] = len(out)
				out = append(out, clone(p))
				continue
			}
			fillEmpty(&out[i], p)
			if p.CkycCompliance != nil && *p.CkycCompliance {
				yes := true
				out[i].CkycCompliance = &yes
			}
		}
	}
	return out
}

// MergeSummaries starts from the summary with the latest balanceDateTime and
// fills its gaps from the others in order. Balances and limits are point in
// time values: the last summary carrying one wins.
func MergeSummaries(summaries []common.Summary) common.Summary {
	if len(summaries) == 0 {
		return common.Summary{}
	}

	latest := 0
	for i := 1; i < len(summaries); i++ {
		cur, cand := summaries[latest].BalanceDateTime, summaries[i].BalanceDateTime
		if cand.Valid && (!cur.Valid || cand.Int64 > cur.Int64) {
			latest = i
		}
	}

	merged := clone(summaries[latest])
	for _, s := range summaries {
		fillEmpty(&merged, s)
		for _, pair := range []struct{ dst, src *common.NullFloat }{
			{&merged.CurrentBalance, &s.CurrentBalance},
			{&merged.CurrentODLimit, &s.CurrentODLimit},
			{&merged.DrawingLimit, &s.DrawingLimit},
			{&merged.PendingAmount, &s.PendingAmount},
		} {
			if pair.src.Valid {
				*pair.dst = *pair.src
			}
		}
	}
	return merged
}

// DedupKey identifies a transaction across overlapping statements.
type DedupKey struct {
	TxnID     string
	Timestamp string
	Amount    string
	Masked    string
}

// KeyOfTransaction builds the dedup key. Zero timestamps and amounts count as absent.
func KeyOfTransaction(t common.Transaction) DedupKey {
	key := DedupKey{TxnID: common.Upper(t.TxnID), Masked: common.Upper(t.MaskedAccNumber)}
	if t.TransactionTimestamp.Valid && t.TransactionTimestamp.Int64 != 0 {
		key.Timestamp = t.TransactionTimestamp.String()
	}
	if t.Amount.Valid && t.Amount.Float64 != 0 {
		key.Amount = t.Amount.String()
	}
	return key
}

// MergeTransactions concatenates, drops repeats of (txnId, timestamp, amount,
// account) keeping the first, and sorts by timestamp with undated rows first.
func MergeTransactions(lists [][]common.Transaction) []common.Transaction {
	seen := map[DedupKey]bool{}
	out := []common.Transaction{}
	for _, list := range lists {
		for _, t := range list {
			key := KeyOfTransaction(t)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TransactionTimestamp.OrElse(-1) < out[j].TransactionTimestamp.OrElse(-1)
	})
	return out
}

// ComputeMeta derives the transactionsMeta block of a merged bundle.
func ComputeMeta(sum common.Summary, profiles []common.Profile, txns []common.Transaction) common.TransactionsMeta {
	var prof common.Profile
	if len(profiles) > 0 {
		prof = profiles[0]
	}
	fromTxns := func(get func(common.Transaction) *string) *string {
		for _, t := range txns {
			if v := get(t); !common.Blank(v) {
				return v
			}
		}
		return nil
	}

	meta := common.TransactionsMeta{
		FipID:            firstPresent(sum.FipID, prof.FipID, fromTxns(func(t common.Transaction) *string { return t.FipID })),
		LinkedAccRef:     firstPresent(sum.LinkedAccRef, prof.LinkedAccRef, fromTxns(func(t common.Transaction) *string { return t.LinkedAccRef })),
		FnrkAccountID:    firstPresent(sum.FnrkAccountID, prof.FnrkAccountID, fromTxns(func(t common.Transaction) *string { return t.FnrkAccountID })),
		MaskedAccNumber:  firstPresent(sum.MaskedAccNumber, prof.MaskedAccNumber, fromTxns(func(t common.Transaction) *string { return t.MaskedAccNumber })),
		NoOfTransactions: len(txns),
	}

	for _, t := range txns {
		ts := t.TransactionTimestamp
		if !ts.Valid {
			ts = t.ValueDate
		}
		if !ts.Valid {
			continue
		}
		if !meta.FromTimestamp.Valid || ts.Int64 < meta.FromTimestamp.Int64 {
			meta.FromTimestamp = ts
		}
		if !meta.ToTimestamp.Valid || ts.Int64 > meta.ToTimestamp.Int64 {
			meta.ToTimestamp = ts
		}
	}
	if !meta.FromTimestamp.Valid && !meta.ToTimestamp.Valid {
		meta.FromTimestamp = sum.BalanceDateTime
		meta.ToTimestamp = sum.BalanceDateTime
	}
	return meta
}

func firstPresent(values ...*string) *string {
	for _, v := range values {
		if !common.Blank(v) {
			return v
		}
	}
	return nil
}

func clone[T any](src T) T {
	var dst T
	if err := deepcopy.Copy(&dst, src); err != nil {
		log.Warn().Err(err).Msg("deep copy failed, sharing record")
		return src
	}
	return dst
}

// fillEmpty copies every present field of src into the matching empty field of dst.
func fillEmpty[T any](dst *T, src T) {
	dv := reflect.ValueOf(dst).Elem()
	sv := reflect.ValueOf(src)
	for i := 0; i < dv.NumField(); i++ {
		if isEmpty(dv.Field(i)) && !isEmpty(sv.Field(i)) {
			dv.Field(i).Set(sv.Field(i))
		}
	}
}

func isEmpty(v reflect.Value) bool {
	switch x := v.Interface().(type) {
	case *string:
		return common.Blank(x)
	case *bool:
		return x == nil
	case common.NullFloat:
		return !x.Valid
	case common.NullInt:
		return !x.Valid
	}
	return v.IsZero()
}
