package converter

import (
	"encoding/csv"
	"errors"
	"fmt"
)

// Error kinds reported by a conversion. Match them with errors.Is.
var (
	ErrMalformedInput = errors.New("malformed input")
	ErrIO             = errors.New("i/o error")
	ErrUnsupported    = errors.New("unsupported file type")
)

// ConversionError carries the kind of failure together with the file and,
// for parse failures, the input line it happened on.
type ConversionError struct {
	Kind error
	Path string
	Line int
	Err  error
}

func (e *ConversionError) Error() string {
	msg := e.Kind.Error()
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Line > 0 {
		msg += fmt.Sprintf(" (line %d)", e.Line)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConversionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func ioError(path string, err error) error {
	return &ConversionError{Kind: ErrIO, Path: path, Err: err}
}

func malformed(path string, line int, err error) error {
	return &ConversionError{Kind: ErrMalformedInput, Path: path, Line: line, Err: err}
}

// readError classifies an error returned by csv.Reader. Parse errors mean the
// content is bad, anything else came from the underlying file.
func readError(path string, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return malformed(path, pe.Line, pe.Err)
	}
	return ioError(path, err)
}
