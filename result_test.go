package htmlpdf

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResult_Accessors(t *testing.T) {
	t.Parallel()

	r := NewResult(minimalPDF)

	if r.Len() != len(minimalPDF) {
		t.Errorf("Len() = %d, want %d", r.Len(), len(minimalPDF))
	}
	if !bytes.Equal(r.Bytes(), minimalPDF) {
		t.Errorf("Bytes() = %q, want %q", r.Bytes(), minimalPDF)
	}
	if r.Base64() != "JVBERi0xLjQKJSVFT0YK" {
		t.Errorf("Base64() = %q", r.Base64())
	}

	data, err := io.ReadAll(r.Reader())
	if err != nil {
		t.Fatalf("reading Reader(): %v", err)
	}
	if !bytes.Equal(data, minimalPDF) {
		t.Errorf("Reader() content = %q", data)
	}

	var buf bytes.Buffer
	n, err := r.WriteTo(&buf)
	if err != nil || n != int64(len(minimalPDF)) {
		t.Errorf("WriteTo() = %d, %v", n, err)
	}
}

func TestResult_CopiesAreIndependent(t *testing.T) {
	t.Parallel()

	src := bytes.Clone(minimalPDF)
	r := NewResult(src)
	src[0] = 'X'

	out := r.Bytes()
	out[1] = 'X'

	if !bytes.HasPrefix(r.Bytes(), []byte("%PDF-")) {
		t.Errorf("Result mutated through a caller slice: %q", r.Bytes())
	}
}

func TestNewResultFromBase64(t *testing.T) {
	t.Parallel()

	r, err := NewResultFromBase64("JVBERi0xLjQKJSVFT0YK")
	if err != nil {
		t.Fatalf("NewResultFromBase64() error = %v", err)
	}
	if !bytes.Equal(r.Bytes(), minimalPDF) {
		t.Errorf("Bytes() = %q, want %q", r.Bytes(), minimalPDF)
	}

	if _, err := NewResultFromBase64("not base64!"); err == nil {
		t.Error("NewResultFromBase64() expected error for invalid input")
	}
}

func TestResult_WriteFile(t *testing.T) {
	t.Parallel()

	r := NewResult(minimalPDF)

	t.Run("writes file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "out.pdf")
		if err := r.WriteFile(path); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("reading output: %v", err)
		}
		if !bytes.Equal(data, minimalPDF) {
			t.Errorf("file content = %q", data)
		}
	})

	t.Run("missing directory", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "missing", "out.pdf")
		err := r.WriteFile(path)
		if !errors.Is(err, ErrFileOutput) {
			t.Errorf("WriteFile() error = %v, want %v", err, ErrFileOutput)
		}
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("WriteFile() error = %v, want wrapped %v", err, os.ErrNotExist)
		}
		if !strings.HasPrefix(err.Error(), ErrFileOutput.Error()) {
			t.Errorf("error message = %q", err.Error())
		}
	})
}
