// Package testutil provides heap snapshot fixtures for tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/retainer-prof/pkg/compression"
)

// SingleThreadSnapshot holds one running thread whose stack frame keeps a
// one-word constructor alive, plus an unreached constructor.
const SingleThreadSnapshot = `{
  "info_tables": [
    {"name": "Main.main", "kind": "TSO"},
    {"name": "Data.Maybe.Just", "kind": "CONSTR_0_1", "nnonptrs": 1},
    {"name": "ret", "kind": "RET_SMALL", "bitmap": {"layout": "P"}}
  ],
  "closures": [
    {"info": 1, "thread": {"state": "run"}, "frames": [{"info": 3, "payload": [2]}]},
    {"info": 2},
    {"info": 2}
  ],
  "roots": {"threads": [1]}
}`

// WriteSnapshot writes doc to heap.json in a fresh temporary directory and
// returns its path.
func WriteSnapshot(t *testing.T, doc string) string {
	t.Helper()
	return WriteFile(t, t.TempDir(), "heap.json", []byte(doc))
}

// WriteCompressedSnapshot writes doc compressed with comp, named so that the
// loader picks the matching decompressor.
func WriteCompressedSnapshot(t *testing.T, doc string, comp compression.Compressor) string {
	t.Helper()
	data, err := comp.Compress([]byte(doc))
	if err != nil {
		t.Fatalf("failed to compress snapshot: %v", err)
	}
	return WriteFile(t, t.TempDir(), "heap.json"+compression.Extension(comp.Type()), data)
}

// WriteFile writes content to a file in the given directory.
func WriteFile(t *testing.T, dir, filename string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	return path
}
