package types

type ConversionResult struct {
	InputFile     string
	OutputFile    string
	ColumnsFound  []string
	RowsProcessed int
}

// FileData holds a header and a sample of rows for previewing a file.
type FileData struct {
	Headers   []string
	Rows      [][]string
	HeaderRow int
}

// Plan lists the header positions each rewrite family applies to.
// Columns named by the rules but missing from the header are not listed.
type Plan struct {
	DateIdx   []int
	AmountIdx []int
	QuoteIdx  []int
}

// Columns returns the distinct header names touched by the plan, in header order.
func (p Plan) Columns(headers []string) []string {
	seen := make(map[int]bool)
	for _, group := range [][]int{p.DateIdx, p.AmountIdx, p.QuoteIdx} {
		for _, idx := range group {
			seen[idx] = true
		}
	}

	var cols []string
	for i, h := range headers {
		if seen[i] {
			cols = append(cols, h)
		}
	}
	return cols
}
