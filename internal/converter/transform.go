package converter

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/nconklindev/csvpipe/internal/config"
	"github.com/nconklindev/csvpipe/internal/types"
)

// IndexHeader maps column names to their position. A repeated name keeps
// its last position.
func IndexHeader(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, name := range headers {
		idx[name] = i
	}
	return idx
}

// BuildPlan resolves the rule columns against a header. Names that are not
// in the header are skipped, and a name listed twice in one family is only
// applied once.
func BuildPlan(headers []string, rules *config.Rules) types.Plan {
	idx := IndexHeader(headers)
	lookup := func(names []string) []int {
		var out []int
		seen := make(map[int]bool, len(names))
		for _, name := range names {
			if i, ok := idx[name]; ok && !seen[i] {
				seen[i] = true
				out = append(out, i)
			}
		}
		return out
	}

	return types.Plan{
		DateIdx:   lookup(rules.DateColumns),
		AmountIdx: lookup(rules.AmountColumns),
		QuoteIdx:  lookup(rules.QuoteColumns),
	}
}

// NormalizeDate turns 01-02-2020 into 01.02.2020.
func NormalizeDate(s string) string {
	return strings.ReplaceAll(s, "-", ".")
}

// NormalizeAmount drops spaces and appends suffix when the value has no
// decimal comma. Values that already contain a comma are kept as they are.
func NormalizeAmount(s, suffix string) string {
	s = strings.ReplaceAll(s, " ", "")
	if !strings.Contains(s, ",") {
		s += suffix
	}
	return s
}

func Quote(s string) string {
	return `"` + s + `"`
}

// TransformRow rewrites row in place: dates first, then amounts, then
// quoting. Indices past the end of a short row are ignored.
func TransformRow(row []string, plan types.Plan, rules *config.Rules) {
	for _, i := range plan.DateIdx {
		if i < len(row) {
			row[i] = NormalizeDate(row[i])
		}
	}
	for _, i := range plan.AmountIdx {
		if i < len(row) {
			row[i] = NormalizeAmount(row[i], rules.AmountSuffix)
		}
	}
	for _, i := range plan.QuoteIdx {
		if i < len(row) {
			row[i] = Quote(row[i])
		}
	}
}

// HeaderLine renders the output header: the index column and every input
// column, all quoted.
func HeaderLine(headers []string, rules *config.Rules) string {
	quoted := make([]string, 0, len(headers)+1)
	quoted = append(quoted, Quote(rules.IndexHeader))
	for _, h := range headers {
		quoted = append(quoted, Quote(h))
	}
	return strings.Join(quoted, rules.Delimiter)
}

// RowLine renders a transformed row prefixed with its 1-based number.
func RowLine(lp int, row []string, rules *config.Rules) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(lp))
	for _, field := range row {
		b.WriteString(rules.Delimiter)
		b.WriteString(field)
	}
	return b.String()
}

// rowWriter numbers and writes rows for one output file.
type rowWriter struct {
	w     *bufio.Writer
	rules *config.Rules
	plan  types.Plan
	lp    int
}

func newRowWriter(w *bufio.Writer, headers []string, rules *config.Rules) *rowWriter {
	return &rowWriter{w: w, rules: rules, plan: BuildPlan(headers, rules)}
}

func (rw *rowWriter) writeHeader(headers []string) error {
	_, err := rw.w.WriteString(HeaderLine(headers, rw.rules) + "\n")
	return err
}

func (rw *rowWriter) writeRow(row []string) error {
	rw.lp++
	TransformRow(row, rw.plan, rw.rules)
	_, err := rw.w.WriteString(RowLine(rw.lp, row, rw.rules) + "\n")
	return err
}
