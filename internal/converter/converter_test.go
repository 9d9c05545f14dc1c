package converter

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/nconklindev/csvpipe/internal/config"

	"github.com/xuri/excelize/v2"
)

var fixedNow = time.Date(2024, 3, 5, 14, 7, 9, 0, time.Local)

func newTestConverter(rules *config.Rules) *Converter {
	c := New(rules, nil)
	c.now = func() time.Time { return fixedNow }
	return c
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(string(data), "\n") {
		t.Fatalf("output %q is not newline terminated", data)
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestConvertCSV(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "Date and amount",
			input: "A,AKT_DATA,KWOTA_NOM\nx,01-02-2020,100\n",
			want: []string{
				`"LP"|"A"|"AKT_DATA"|"KWOTA_NOM"`,
				`1|x|"01.02.2020"|100,00`,
			},
		},
		{
			name:  "Amount with comma keeps decimals",
			input: "A,KWOTA_BRUT\ny,\"1 234,56\"\n",
			want: []string{
				`"LP"|"A"|"KWOTA_BRUT"`,
				`1|y|1234,56`,
			},
		},
		{
			name:  "Unquoted comma splits the amount",
			input: "A,KWOTA_BRUT\ny,1 234,56\n",
			want: []string{
				`"LP"|"A"|"KWOTA_BRUT"`,
				`1|y|1234,00|56`,
			},
		},
		{
			name:  "No rule columns leaves rows untouched",
			input: "A,B,C\n1-2,3 4,x\n5,6,7\n",
			want: []string{
				`"LP"|"A"|"B"|"C"`,
				`1|1-2|3 4|x`,
				`2|5|6|7`,
			},
		},
		{
			name:  "Identifier columns quoted",
			input: "PUP_NIP,PUP_NAZWA,AKT_SYM,BF_NAZWA,PP_DATA,OPIS\n123,Firma,FV/1,Bank,2020-01-31,a-b\n",
			want: []string{
				`"LP"|"PUP_NIP"|"PUP_NAZWA"|"AKT_SYM"|"BF_NAZWA"|"PP_DATA"|"OPIS"`,
				`1|"123"|"Firma"|"FV/1"|"Bank"|2020.01.31|a-b`,
			},
		},
		{
			name:  "Short row skips missing fields",
			input: "A,KWOTA_NOM,AKT_DATA\nx\ny,5\n",
			want: []string{
				`"LP"|"A"|"KWOTA_NOM"|"AKT_DATA"`,
				`1|x`,
				`2|y|5,00`,
			},
		},
		{
			name:  "Header only",
			input: "A,B,KWOTA_NOM\n",
			want: []string{
				`"LP"|"A"|"B"|"KWOTA_NOM"`,
			},
		},
		{
			name:  "Quoted field with comma",
			input: "A,PUP_NAZWA\n1,\"Kowalski, Jan\"\n",
			want: []string{
				`"LP"|"A"|"PUP_NAZWA"`,
				`1|1|"Kowalski, Jan"`,
			},
		},
		{
			name:  "Blank line keeps its number",
			input: "A,KWOTA_NOM\nx,1\n\ny,2\n",
			want: []string{
				`"LP"|"A"|"KWOTA_NOM"`,
				`1|x|1,00`,
				`2`,
				`3|y|2,00`,
			},
		},
		{
			name:  "Blank lines after header and at the end",
			input: "A,KWOTA_NOM\r\n\r\nx,1\r\n\n",
			want: []string{
				`"LP"|"A"|"KWOTA_NOM"`,
				`1`,
				`2|x|1,00`,
				`3`,
			},
		},
		{
			name:  "CRLF line endings",
			input: "A,KWOTA_NOM\r\nx,7\r\n",
			want: []string{
				`"LP"|"A"|"KWOTA_NOM"`,
				`1|x|7,00`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			input := filepath.Join(dir, "raport.csv")
			writeFile(t, input, tt.input)

			result, err := newTestConverter(nil).Convert(input, nil)
			if err != nil {
				t.Fatalf("Convert failed: %v", err)
			}

			wantOut := filepath.Join(dir, "raport_05-03-2024_14-07-09.csv")
			if result.OutputFile != wantOut {
				t.Errorf("OutputFile = %s; want %s", result.OutputFile, wantOut)
			}

			got := readLines(t, result.OutputFile)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("output mismatch\ngot:  %q\nwant: %q", got, tt.want)
			}

			if result.RowsProcessed != len(tt.want)-1 {
				t.Errorf("RowsProcessed = %d; want %d", result.RowsProcessed, len(tt.want)-1)
			}

			// Input is never modified
			data, err := os.ReadFile(input)
			if err != nil {
				t.Fatal(err)
			}
			if string(data) != tt.input {
				t.Errorf("input file changed: %q", data)
			}

			entries, err := os.ReadDir(dir)
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != 2 {
				t.Errorf("expected input and output only, got %d entries", len(entries))
			}
		})
	}
}

func TestConvertMultilineFieldThenBlankLine(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "multi.csv")
	writeFile(t, input, "A,PUP_NAZWA\nx,\"Firma\nOddzial\"\n\ny,z\n")

	result, err := newTestConverter(nil).Convert(input, nil)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	data, err := os.ReadFile(result.OutputFile)
	if err != nil {
		t.Fatal(err)
	}
	want := "\"LP\"|\"A\"|\"PUP_NAZWA\"\n1|x|\"Firma\nOddzial\"\n2\n3|y|\"z\"\n"
	if string(data) != want {
		t.Errorf("output = %q; want %q", data, want)
	}
	if result.RowsProcessed != 3 {
		t.Errorf("RowsProcessed = %d; want 3", result.RowsProcessed)
	}
}

func TestConvertNumbersEveryRow(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "rows.csv")

	var b strings.Builder
	b.WriteString("ID,KWOTA_NOM\n")
	for i := 0; i < 250; i++ {
		b.WriteString("r,1\n")
	}
	writeFile(t, input, b.String())

	progress := make(chan float64, 1000)
	result, err := newTestConverter(nil).Convert(input, progress)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	lines := readLines(t, result.OutputFile)
	if len(lines) != 251 {
		t.Fatalf("got %d lines; want 251", len(lines))
	}
	for i, line := range lines[1:] {
		lp := strings.SplitN(line, "|", 2)[0]
		if want := strconv.Itoa(i + 1); lp != want {
			t.Fatalf("line %d has LP %s; want %s", i+1, lp, want)
		}
	}

	close(progress)
	var last float64
	for p := range progress {
		if p < 0 || p > 1 {
			t.Errorf("progress %f out of range", p)
		}
		last = p
	}
	if last != 1 {
		t.Errorf("last progress = %f; want 1", last)
	}
}

func TestConvertColumnsFound(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "cols.csv")
	writeFile(t, input, "OPIS,KWOTA_BRUT,AKT_DATA,PUP_NIP\na,1,2020-01-01,9\n")

	result, err := newTestConverter(nil).Convert(input, nil)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	want := []string{"KWOTA_BRUT", "AKT_DATA", "PUP_NIP"}
	if !reflect.DeepEqual(result.ColumnsFound, want) {
		t.Errorf("ColumnsFound = %v; want %v", result.ColumnsFound, want)
	}
}

func TestConvertCustomRules(t *testing.T) {
	rules, err := config.Parse([]byte("delimiter: \";\"\nindex_header: NR\namount_columns: [KWOTA]\nquote_columns: []\n"))
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	input := filepath.Join(dir, "custom.csv")
	writeFile(t, input, "KWOTA,AKT_DATA\n10,2020-01-01\n")

	result, err := newTestConverter(rules).Convert(input, nil)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	want := []string{`"NR";"KWOTA";"AKT_DATA"`, `1;10,00;2020.01.01`}
	if got := readLines(t, result.OutputFile); !reflect.DeepEqual(got, want) {
		t.Errorf("got %q; want %q", got, want)
	}
}

func TestConvertErrors(t *testing.T) {
	t.Run("Empty file", func(t *testing.T) {
		dir := t.TempDir()
		input := filepath.Join(dir, "empty.csv")
		writeFile(t, input, "")

		_, err := newTestConverter(nil).Convert(input, nil)
		if !errors.Is(err, ErrMalformedInput) {
			t.Fatalf("err = %v; want ErrMalformedInput", err)
		}

		entries, _ := os.ReadDir(dir)
		if len(entries) != 1 {
			t.Errorf("failed conversion left %d files behind", len(entries)-1)
		}
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := newTestConverter(nil).Convert(filepath.Join(t.TempDir(), "missing.csv"), nil)
		if !errors.Is(err, ErrIO) {
			t.Fatalf("err = %v; want ErrIO", err)
		}
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("err = %v; want it to wrap os.ErrNotExist", err)
		}
	})

	t.Run("Directory as input", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "folder.csv")
		if err := os.Mkdir(dir, 0755); err != nil {
			t.Fatal(err)
		}
		_, err := newTestConverter(nil).Convert(dir, nil)
		if !errors.Is(err, ErrIO) && !errors.Is(err, ErrMalformedInput) {
			t.Fatalf("err = %v; want a conversion error", err)
		}
	})

	t.Run("Invalid UTF-8", func(t *testing.T) {
		dir := t.TempDir()
		input := filepath.Join(dir, "latin2.csv")
		writeFile(t, input, "A,B\nok,1\nx,\xff\xfe\n")

		_, err := newTestConverter(nil).Convert(input, nil)
		if !errors.Is(err, ErrMalformedInput) {
			t.Fatalf("err = %v; want ErrMalformedInput", err)
		}
		var ce *ConversionError
		if !errors.As(err, &ce) || ce.Line != 3 {
			t.Errorf("err = %v; want it reported on line 3", err)
		}

		entries, _ := os.ReadDir(dir)
		if len(entries) != 1 {
			t.Errorf("failed conversion left %d files behind", len(entries)-1)
		}
	})

	t.Run("Bad workbook", func(t *testing.T) {
		input := filepath.Join(t.TempDir(), "broken.xlsx")
		writeFile(t, input, "not a zip")

		_, err := newTestConverter(nil).Convert(input, nil)
		if !errors.Is(err, ErrIO) {
			t.Fatalf("err = %v; want ErrIO", err)
		}
	})
}

func TestConversionErrorMessage(t *testing.T) {
	err := malformed("/tmp/a.csv", 3, errors.New("bare quote"))
	want := "malformed input: /tmp/a.csv (line 3): bare quote"
	if err.Error() != want {
		t.Errorf("Error() = %q; want %q", err.Error(), want)
	}
}

func TestConvertXLSX(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "zestawienie.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"Zestawienie"},
		{"A", "AKT_DATA", "KWOTA_NOM"},
		{"x", "01-02-2020", "100"},
		{"y", "03-04-2021", "2 500,5"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(input); err != nil {
		t.Fatal(err)
	}
	f.Close()

	result, err := newTestConverter(nil).Convert(input, nil)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	if want := filepath.Join(dir, "zestawienie_05-03-2024_14-07-09.csv"); result.OutputFile != want {
		t.Errorf("OutputFile = %s; want %s", result.OutputFile, want)
	}

	want := []string{
		`"LP"|"A"|"AKT_DATA"|"KWOTA_NOM"`,
		`1|x|"01.02.2020"|100,00`,
		`2|y|"03.04.2021"|2500,5`,
	}
	if got := readLines(t, result.OutputFile); !reflect.DeepEqual(got, want) {
		t.Errorf("got %q; want %q", got, want)
	}
	if result.RowsProcessed != 2 {
		t.Errorf("RowsProcessed = %d; want 2", result.RowsProcessed)
	}
}

func TestReadFileData(t *testing.T) {
	dir := t.TempDir()

	t.Run("Samples limited", func(t *testing.T) {
		input := filepath.Join(dir, "sample.csv")
		var b strings.Builder
		b.WriteString("A,B\n")
		for i := 0; i < RowDetectionLimit+5; i++ {
			b.WriteString("1,2\n")
		}
		writeFile(t, input, b.String())

		data, err := ReadFileData(input)
		if err != nil {
			t.Fatalf("ReadFileData failed: %v", err)
		}
		if !reflect.DeepEqual(data.Headers, []string{"A", "B"}) {
			t.Errorf("Headers = %v", data.Headers)
		}
		if len(data.Rows) != RowDetectionLimit {
			t.Errorf("got %d sample rows; want %d", len(data.Rows), RowDetectionLimit)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		_, err := ReadFileData(filepath.Join(dir, "notes.txt"))
		if !errors.Is(err, ErrUnsupported) {
			t.Errorf("err = %v; want ErrUnsupported", err)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		input := filepath.Join(dir, "empty.csv")
		writeFile(t, input, "")
		if _, err := ReadFileData(input); !errors.Is(err, ErrMalformedInput) {
			t.Errorf("err = %v; want ErrMalformedInput", err)
		}
	})
}

func TestSupported(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"a.csv", true},
		{"A.CSV", true},
		{"b.Xlsx", true},
		{"c.txt", false},
		{"csv", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := Supported(tt.path); got != tt.want {
				t.Errorf("Supported(%q) = %v; want %v", tt.path, got, tt.want)
			}
			if err := CheckSupported(tt.path); (err == nil) != tt.want {
				t.Errorf("CheckSupported(%q) = %v", tt.path, err)
			}
		})
	}
}

func TestFindHeaderRow(t *testing.T) {
	tests := []struct {
		name string
		rows [][]string
		want int
	}{
		{"First row", [][]string{{"A", "B"}, {"1", "2"}}, 0},
		{"After title", [][]string{{"Report"}, {}, {"A", "B", "C"}, {"1", "2", "3"}}, 2},
		{"Numbers only", [][]string{{"1", "2"}, {"3", "4"}}, -1},
		{"Single column", [][]string{{"A"}, {"1"}}, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := findHeaderRow(tt.rows); got != tt.want {
				t.Errorf("findHeaderRow() = %d; want %d", got, tt.want)
			}
		})
	}
}
