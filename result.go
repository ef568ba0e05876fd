package htmlpdf

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"
)

// Result holds a generated PDF. It outlives the browser session that
// produced it and is safe for concurrent reads.
type Result struct {
	data []byte
}

func newResult(data []byte) *Result {
	return &Result{data: data}
}

// NewResult wraps a copy of data.
func NewResult(data []byte) *Result {
	return newResult(bytes.Clone(data))
}

// NewResultFromBase64 decodes the browser's base64 transfer form.
func NewResultFromBase64(encoded string) (*Result, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding base64 PDF: %w", err)
	}
	return newResult(data), nil
}

// Bytes returns a copy of the PDF bytes.
func (r *Result) Bytes() []byte {
	return bytes.Clone(r.data)
}

// Len returns the PDF size in bytes.
func (r *Result) Len() int {
	return len(r.data)
}

// Base64 returns the PDF encoded as standard base64.
func (r *Result) Base64() string {
	return base64.StdEncoding.EncodeToString(r.data)
}

// Reader returns a reader over the PDF bytes.
func (r *Result) Reader() io.Reader {
	return bytes.NewReader(r.data)
}

// WriteTo writes the PDF to w.
func (r *Result) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r.data)
	return int64(n), err
}

// WriteFile writes the PDF to path. The directory must exist.
// Errors wrap both ErrFileOutput and the underlying os error.
func (r *Result) WriteFile(path string) error {
	// #nosec G306 -- PDF output files are intended to be readable
	if err := os.WriteFile(path, r.data, 0o644); err != nil {
		return fmt.Errorf("%w: %w", ErrFileOutput, err)
	}
	return nil
}
