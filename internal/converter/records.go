package converter

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"unicode/utf8"
)

var errInvalidUTF8 = errors.New("invalid UTF-8 text")

// lineCounter counts the newlines the csv reader pulls from the file.
// Once the reader hits EOF the count covers the whole input.
type lineCounter struct {
	r io.Reader
	n int
}

func (lc *lineCounter) Read(p []byte) (int, error) {
	n, err := lc.r.Read(p)
	lc.n += bytes.Count(p[:n], []byte{'\n'})
	return n, err
}

// recordReader reads comma-separated records line by line. Unlike a bare
// csv.Reader it returns an empty record for every blank line, so record
// numbers stay aligned with input lines. Fields must be valid UTF-8.
type recordReader struct {
	r       *csv.Reader
	lines   *lineCounter
	prevEnd int // last input line used by a returned record
	blanks  int // blank records owed before next
	next    []string
	eof     bool
}

func newRecordReader(r io.Reader) *recordReader {
	lc := &lineCounter{r: r}
	reader := csv.NewReader(lc)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	return &recordReader{r: reader, lines: lc}
}

func (rr *recordReader) Read() ([]string, error) {
	if rr.blanks > 0 {
		rr.blanks--
		return []string{}, nil
	}
	if rr.next != nil {
		record := rr.next
		rr.next = nil
		return record, nil
	}
	if rr.eof {
		return nil, io.EOF
	}

	record, err := rr.r.Read()
	if errors.Is(err, io.EOF) {
		rr.eof = true
		// blank lines after the last record
		if trailing := rr.lines.n - rr.prevEnd; trailing > 0 {
			rr.blanks = trailing - 1
			return []string{}, nil
		}
		return nil, io.EOF
	}
	if err != nil {
		return nil, err
	}

	start, _ := rr.r.FieldPos(0)
	for _, field := range record {
		if !utf8.ValidString(field) {
			return nil, &csv.ParseError{StartLine: start, Line: start, Err: errInvalidUTF8}
		}
	}

	// A quoted last field may span lines; its newlines come back as "\n".
	last := len(record) - 1
	lastLine, _ := rr.r.FieldPos(last)
	gap := start - rr.prevEnd - 1
	rr.prevEnd = lastLine + strings.Count(record[last], "\n")

	if gap > 0 {
		rr.blanks = gap - 1
		rr.next = record
		return []string{}, nil
	}
	return record, nil
}

// InputOffset reports how many bytes of input have been consumed.
func (rr *recordReader) InputOffset() int64 {
	return rr.r.InputOffset()
}
