// Package summary reads account summary facts (branch, currency, IFSC, MICR,
// closing balance) from the first pages of a statement.
package summary

import (
	"regexp"
	"strings"

	"github.com/aqlanhadi/stmtfold/extractor/common"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type config struct {
	BranchLabel    *regexp.Regexp
	Currency       *regexp.Regexp
	IFSC           *regexp.Regexp
	IFSCLabel      *regexp.Regexp
	MICR           *regexp.Regexp
	MICRLabel      *regexp.Regexp
	MICRContext    []string
	ClosingBalance *regexp.Regexp
	FirstPages     int
	FirstTables    int
}

var defaults = map[string]string{
	"branch_label":    `(?i)\b(branch\s*name|branch\s*office|branch|office|location)\b`,
	"currency":        `(?i)\b(INR|USD|EUR|GBP|AUD|CAD)\b`,
	"ifsc":            `\b[A-Z]{4}0[A-Z0-9]{6}\b`,
	"ifsc_label":      `(?i)\b(ifsc\s*code|ifsc|swift\s*code)\b`,
	"micr":            `\b\d{9}\b`,
	"micr_label":      `(?i)\b(micr\s*code|micr)\b`,
	"closing_balance": `(?i)closing\s*balance[^\d\-]*(-?[\d,]+\.\d{1,2})`,
}

var cleanup = regexp.MustCompile(`\(cid:\d+\)|cid:\d+|\(INR\)`)

func pattern(key string) *regexp.Regexp {
	if p := viper.GetString("summary.patterns." + key); p != "" {
		if re, err := regexp.Compile(p); err == nil {
			return re
		}
		log.Warn().Str("pattern", key).Msg("invalid summary pattern, using default")
	}
	return regexp.MustCompile(defaults[key])
}

func intOr(key string, fallback int) int {
	if v := viper.GetInt(key); v > 0 {
		return v
	}
	return fallback
}

func loadConfig() config {
	return config{
		BranchLabel:    pattern("branch_label"),
		Currency:       pattern("currency"),
		IFSC:           pattern("ifsc"),
		IFSCLabel:      pattern("ifsc_label"),
		MICR:           pattern("micr"),
		MICRLabel:      pattern("micr_label"),
		MICRContext:    []string{"micr", "code", "branch"},
		ClosingBalance: pattern("closing_balance"),
		FirstPages:     intOr("summary.first_pages", 3),
		FirstTables:    intOr("summary.first_tables", 3),
	}
}

// Extract builds a summary from the statement text, seeded by the hints.
// Values present in hints.Summary are kept; text only fills the gaps.
func Extract(pages []common.Page, tables []common.Table, hints common.Hints) common.Summary {
	cfg := loadConfig()

	var s common.Summary
	if hints.Summary != nil {
		s = *hints.Summary
	}

	fill(&s.FipID, hints.FipID)
	fill(&s.FipName, hints.FipName)
	fill(&s.LinkedAccRef, hints.LinkedAccRef)
	fill(&s.FnrkAccountID, hints.FnrkAccountID)
	fill(&s.AccountType, hints.AccountType)
	if known := hints.KnownAccounts(); len(known) == 1 {
		fill(&s.MaskedAccNumber, known[0].Number)
	}

	var texts []string
	for i, p := range pages {
		if i >= cfg.FirstPages {
			break
		}
		texts = append(texts, p.Text)
	}
	text := strings.Join(texts, "\n")
	head := tables
	if len(head) > cfg.FirstTables {
		head = head[:cfg.FirstTables]
	}

	fill(&s.Branch, cfg.branch(text, head))
	fill(&s.Currency, cfg.currency(text, head))
	fill(&s.IfscCode, cfg.ifsc(text, head))
	fill(&s.MicrCode, cfg.micr(text, head))
	if !s.CurrentBalance.Valid {
		if m := cfg.ClosingBalance.FindStringSubmatch(text); m != nil {
			if v, ok := common.CleanAmount(m[1]); ok {
				s.CurrentBalance = common.FloatOf(v)
			}
		}
	}
	return s
}

func fill(dst **string, value string) {
	if common.Blank(*dst) {
		*dst = common.Str(strings.TrimSpace(value))
	}
}

// lineAt returns the full line of text around [start, end).
func lineAt(text string, start, end int) (string, int) {
	lineStart := strings.LastIndex(text[:start], "\n") + 1
	lineEnd := strings.Index(text[end:], "\n")
	if lineEnd == -1 {
		lineEnd = len(text)
	} else {
		lineEnd += end
	}
	return text[lineStart:lineEnd], lineStart
}

// rightCell looks for a cell matching label and returns the cell next to it.
func rightCell(tables []common.Table, label *regexp.Regexp, accept func(string) string) string {
	for _, t := range tables {
		for _, row := range t.Rows {
			for i, cell := range row {
				if cell == nil || !label.MatchString(*cell) || i+1 >= len(row) || row[i+1] == nil {
					continue
				}
				if v := accept(strings.TrimSpace(*row[i+1])); v != "" {
					return v
				}
			}
		}
	}
	return ""
}

func (c config) branch(text string, tables []common.Table) string {
	for _, loc := range c.BranchLabel.FindAllStringIndex(text, -1) {
		line, lineStart := lineAt(text, loc[0], loc[1])
		after := strings.TrimLeft(line[loc[1]-lineStart:], ":- \t")
		name := strings.TrimSpace(cleanup.ReplaceAllString(after, ""))
		if len(name) > 3 {
			return name
		}
	}
	return rightCell(tables, c.BranchLabel, func(v string) string {
		if len(v) > 3 {
			return v
		}
		return ""
	})
}

// currency returns the most frequent currency code, the earliest on ties.
func (c config) currency(text string, tables []common.Table) string {
	counts := map[string]int{}
	best := ""
	for _, m := range c.Currency.FindAllString(text, -1) {
		code := strings.ToUpper(m)
		counts[code]++
		if best == "" || counts[code] > counts[best] {
			best = code
		}
	}
	if best != "" {
		return best
	}
	for _, t := range tables {
		for _, row := range t.Rows {
			for _, cell := range row {
				if cell == nil {
					continue
				}
				if m := c.Currency.FindString(*cell); m != "" {
					return strings.ToUpper(m)
				}
			}
		}
	}
	return ""
}

func (c config) ifsc(text string, tables []common.Table) string {
	for _, loc := range c.IFSCLabel.FindAllStringIndex(text, -1) {
		line, _ := lineAt(text, loc[0], loc[1])
		if m := c.IFSC.FindString(line); m != "" {
			return m
		}
	}
	if m := c.IFSC.FindString(text); m != "" {
		return m
	}
	if v := rightCell(tables, c.IFSCLabel, c.IFSC.FindString); v != "" {
		return v
	}
	for _, t := range tables {
		if m := c.IFSC.FindString(t.Text()); m != "" {
			return m
		}
	}
	return ""
}

// micr prefers labelled values. A bare nine digit number is only taken when
// the surrounding text mentions MICR, code or branch, to avoid account numbers.
func (c config) micr(text string, tables []common.Table) string {
	for _, loc := range c.MICRLabel.FindAllStringIndex(text, -1) {
		line, _ := lineAt(text, loc[0], loc[1])
		if m := c.MICR.FindString(line); m != "" {
			return m
		}
	}
	if v := rightCell(tables, c.MICRLabel, c.MICR.FindString); v != "" {
		return v
	}
	for _, loc := range c.MICR.FindAllStringIndex(text, -1) {
		from := max(0, loc[0]-20)
		to := min(len(text), loc[1]+20)
		context := strings.ToLower(text[from:to])
		for _, word := range c.MICRContext {
			if strings.Contains(context, word) {
				return text[loc[0]:loc[1]]
			}
		}
	}
	return ""
}
