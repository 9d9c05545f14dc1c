package converter

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nconklindev/csvpipe/internal/config"
	"github.com/nconklindev/csvpipe/internal/types"

	"github.com/charmbracelet/log"
	"github.com/xuri/excelize/v2"
)

const RowDetectionLimit = 10

// Converter rewrites CSV and XLSX exports into numbered, pipe-delimited files.
// It keeps no state between calls; one value can serve any number of files.
type Converter struct {
	rules  *config.Rules
	logger *log.Logger
	now    func() time.Time
}

// New returns a Converter. A nil rules uses the defaults, a nil logger
// discards output.
func New(rules *config.Rules, logger *log.Logger) *Converter {
	if rules == nil {
		rules = config.Default()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Converter{rules: rules, logger: logger, now: time.Now}
}

// Supported reports whether path has an extension the converter reads.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// CheckSupported returns an ErrUnsupported error for files the shells should
// not hand to Convert.
func CheckSupported(path string) error {
	if Supported(path) {
		return nil
	}
	return &ConversionError{Kind: ErrUnsupported, Path: path, Err: fmt.Errorf("extension %q", filepath.Ext(path))}
}

// Convert writes the converted copy of inputFile next to it and returns the
// absolute output path. Workbooks (.xlsx) are read from their first sheet;
// every other file is read as comma-separated text.
//
// progressChan, when non-nil, receives values in [0,1]. Sends never block.
func (c *Converter) Convert(inputFile string, progressChan chan<- float64) (*types.ConversionResult, error) {
	start := c.now()
	began := time.Now()

	abs, err := filepath.Abs(inputFile)
	if err != nil {
		return nil, ioError(inputFile, err)
	}

	outputFile, err := OutputPath(abs, start, c.rules.OnCollision)
	if err != nil {
		c.logger.Error("conversion failed", "input", abs, "err", err)
		return nil, err
	}

	c.logger.Debug("converting", "input", abs, "output", outputFile)

	var result *types.ConversionResult
	if strings.EqualFold(filepath.Ext(abs), ".xlsx") {
		result, err = c.convertXLSX(abs, outputFile, progressChan)
	} else {
		result, err = c.convertCSV(abs, outputFile, progressChan)
	}
	if err != nil {
		c.logger.Error("conversion failed", "input", abs, "err", err)
		return nil, err
	}

	c.logger.Info("converted",
		"input", abs,
		"output", result.OutputFile,
		"rows", result.RowsProcessed,
		"columns", strings.Join(result.ColumnsFound, ","),
		"took", time.Since(began).Round(time.Millisecond),
	)
	return result, nil
}

func reportProgress(progressChan chan<- float64, p float64) {
	if progressChan == nil {
		return
	}
	if p > 1 {
		p = 1
	}
	select {
	case progressChan <- p:
	default:
	}
}

// readHeader reads the first record. An empty file has no header.
func readHeader(path string, reader *recordReader) ([]string, error) {
	headers, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, malformed(path, 0, errors.New("empty file, no header row"))
	}
	if err != nil {
		return nil, readError(path, err)
	}
	return headers, nil
}

func (c *Converter) convertCSV(inputFile, outputFile string, progressChan chan<- float64) (*types.ConversionResult, error) {
	inFile, err := os.Open(inputFile)
	if err != nil {
		return nil, ioError(inputFile, err)
	}
	defer inFile.Close()

	var size int64
	if info, err := inFile.Stat(); err == nil {
		size = info.Size()
	}

	reader := newRecordReader(inFile)
	headers, err := readHeader(inputFile, reader)
	if err != nil {
		return nil, err
	}

	rowsProcessed := 0
	var rw *rowWriter

	err = writeAtomic(outputFile, func(w *bufio.Writer) error {
		rw = newRowWriter(w, headers, c.rules)
		if err := rw.writeHeader(headers); err != nil {
			return ioError(outputFile, err)
		}

		for {
			record, err := reader.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return readError(inputFile, err)
			}

			if err := rw.writeRow(record); err != nil {
				return ioError(outputFile, err)
			}
			rowsProcessed++

			if size > 0 {
				reportProgress(progressChan, float64(reader.InputOffset())/float64(size))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	reportProgress(progressChan, 1)

	return &types.ConversionResult{
		InputFile:     inputFile,
		OutputFile:    outputFile,
		ColumnsFound:  rw.plan.Columns(headers),
		RowsProcessed: rowsProcessed,
	}, nil
}

// convertXLSX feeds the first sheet of a workbook through the same row
// pipeline. Rows above the detected header row are dropped.
func (c *Converter) convertXLSX(inputFile, outputFile string, progressChan chan<- float64) (*types.ConversionResult, error) {
	f, err := excelize.OpenFile(inputFile)
	if err != nil {
		return nil, ioError(inputFile, err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, ioError(inputFile, err)
	}

	if len(rows) == 0 {
		return nil, malformed(inputFile, 0, errors.New("empty workbook, no header row"))
	}

	headerRowIdx := findHeaderRow(rows)
	if headerRowIdx == -1 {
		return nil, malformed(inputFile, 0, errors.New("could not find header row"))
	}

	headers := rows[headerRowIdx]
	data := rows[headerRowIdx+1:]
	totalRows := len(data)

	var rw *rowWriter
	err = writeAtomic(outputFile, func(w *bufio.Writer) error {
		rw = newRowWriter(w, headers, c.rules)
		if err := rw.writeHeader(headers); err != nil {
			return ioError(outputFile, err)
		}

		for i, row := range data {
			if err := rw.writeRow(row); err != nil {
				return ioError(outputFile, err)
			}
			reportProgress(progressChan, float64(i+1)/float64(totalRows))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	reportProgress(progressChan, 1)

	return &types.ConversionResult{
		InputFile:     inputFile,
		OutputFile:    outputFile,
		ColumnsFound:  rw.plan.Columns(headers),
		RowsProcessed: totalRows,
	}, nil
}

// ReadFileData reads headers and sample rows from a file
func ReadFileData(filePath string) (*types.FileData, error) {
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".csv":
		return readCSVData(filePath)
	case ".xlsx":
		return readXLSXData(filePath)
	default:
		return nil, CheckSupported(filePath)
	}
}

func readCSVData(filePath string) (*types.FileData, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, ioError(filePath, err)
	}
	defer file.Close()

	reader := newRecordReader(file)
	headers, err := readHeader(filePath, reader)
	if err != nil {
		return nil, err
	}

	data := &types.FileData{Headers: headers}
	for len(data.Rows) < RowDetectionLimit {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, readError(filePath, err)
		}
		data.Rows = append(data.Rows, record)
	}

	return data, nil
}

func readXLSXData(filePath string) (*types.FileData, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, ioError(filePath, err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, ioError(filePath, err)
	}

	if len(rows) == 0 {
		return nil, malformed(filePath, 0, errors.New("empty workbook, no header row"))
	}

	// Find the header row (first row with multiple non-empty cells)
	headerRowIdx := findHeaderRow(rows)
	if headerRowIdx == -1 {
		return nil, malformed(filePath, 0, errors.New("could not find header row"))
	}

	sample := rows[headerRowIdx+1:]
	if len(sample) > RowDetectionLimit {
		sample = sample[:RowDetectionLimit]
	}

	return &types.FileData{
		Headers:   rows[headerRowIdx],
		Rows:      sample,
		HeaderRow: headerRowIdx,
	}, nil
}

// findHeaderRow locates the first row that appears to be a header
// by finding the row with the most non-empty text cells
func findHeaderRow(rows [][]string) int {
	maxNonEmpty := 0
	headerIdx := -1

	// Look at first 20 rows max
	searchLimit := len(rows)
	if searchLimit > RowDetectionLimit*2 {
		searchLimit = RowDetectionLimit * 2
	}

	for i := 0; i < searchLimit; i++ {
		nonEmptyCount := 0
		hasText := false

		for _, cell := range rows[i] {
			trimmed := strings.TrimSpace(cell)
			if trimmed != "" {
				nonEmptyCount++
				if containsLetters(trimmed) {
					hasText = true
				}
			}
		}

		// Header should have multiple columns AND contain text
		if nonEmptyCount >= 2 && hasText && nonEmptyCount > maxNonEmpty {
			maxNonEmpty = nonEmptyCount
			headerIdx = i
		}
	}

	return headerIdx
}

// containsLetters checks if a string contains any alphabetic characters
func containsLetters(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}
