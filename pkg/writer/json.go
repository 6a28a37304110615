// Package writer writes reports as plain or compressed JSON.
package writer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/retainer-prof/pkg/compression"
)

// JSONWriter encodes values of T as newline-terminated JSON. An empty Indent
// gives compact output.
type JSONWriter[T any] struct {
	Indent string
}

func NewJSONWriter[T any]() *JSONWriter[T] {
	return &JSONWriter[T]{}
}

func NewPrettyJSONWriter[T any]() *JSONWriter[T] {
	return &JSONWriter[T]{Indent: "  "}
}

func (w *JSONWriter[T]) Write(data T, out io.Writer) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", w.Indent)
	return enc.Encode(data)
}

// WriteToFile truncates path. The parent directory must exist.
func (w *JSONWriter[T]) WriteToFile(data T, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return w.Write(data, f)
}

// CompressedWriter marshals compactly, then compresses the whole buffer.
type CompressedWriter[T any] struct {
	comp compression.Compressor
}

func NewCompressedWriter[T any](comp compression.Compressor) *CompressedWriter[T] {
	return &CompressedWriter[T]{comp: comp}
}

func (w *CompressedWriter[T]) Encode(data T) ([]byte, error) {
	out, _, err := w.encode(data)
	return out, err
}

func (w *CompressedWriter[T]) encode(data T) (out []byte, plainLen int, err error) {
	plain, err := json.Marshal(data)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal: %w", err)
	}
	out, err = w.comp.Compress(plain)
	if err != nil {
		return nil, 0, fmt.Errorf("%s compress: %w", w.comp.Name(), err)
	}
	return out, len(plain), nil
}

// WriteResult reports the size of a compressed artifact against its JSON form.
type WriteResult struct {
	JSONSize       int64
	CompressedSize int64
	CompressionPct float64
}

func (w *CompressedWriter[T]) WriteToFileWithStats(data T, path string) (*WriteResult, error) {
	out, plainLen, err := w.encode(data)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}

	res := &WriteResult{JSONSize: int64(plainLen), CompressedSize: int64(len(out))}
	if plainLen > 0 {
		res.CompressionPct = float64(len(out)) / float64(plainLen) * 100
	}
	return res, nil
}
