package writer

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retainer-prof/pkg/compression"
)

type testData struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func TestJSONWriter_Write(t *testing.T) {
	data := testData{Name: "test", Value: 42}

	t.Run("compact output", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewJSONWriter[testData]().Write(data, &buf))
		assert.Equal(t, `{"name":"test","value":42}`+"\n", buf.String())
	})

	t.Run("pretty output", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewPrettyJSONWriter[testData]().Write(data, &buf))
		assert.Contains(t, buf.String(), "\n  \"name\"")

		var decoded testData
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, data, decoded)
	})
}

func TestJSONWriter_WriteToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.json")
	require.NoError(t, NewJSONWriter[testData]().WriteToFile(testData{Name: "f", Value: 1}, path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"f","value":1}`+"\n", string(content))

	err = NewJSONWriter[testData]().WriteToFile(testData{}, filepath.Join(t.TempDir(), "missing", "x.json"))
	assert.Error(t, err)
}

func TestCompressedWriter(t *testing.T) {
	zc, err := compression.NewZstdCompressor(compression.LevelDefault)
	require.NoError(t, err)
	defer zc.Close()

	data := make([]testData, 200)
	for i := range data {
		data[i] = testData{Name: "repeated-name", Value: i % 3}
	}

	w := NewCompressedWriter[[]testData](zc)
	path := filepath.Join(t.TempDir(), "data.json.zst")
	res, err := w.WriteToFileWithStats(data, path)
	require.NoError(t, err)
	assert.Greater(t, res.JSONSize, res.CompressedSize)
	assert.Less(t, res.CompressionPct, 100.0)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	plain, err := compression.AutoDecompress(raw)
	require.NoError(t, err)

	var decoded []testData
	require.NoError(t, json.Unmarshal(plain, &decoded))
	assert.Equal(t, data, decoded)

	encoded, err := w.Encode(data)
	require.NoError(t, err)
	assert.Equal(t, compression.TypeZstd, compression.DetectType(encoded))
}

func TestCompressedWriter_Gzip(t *testing.T) {
	w := NewCompressedWriter[testData](compression.NewGzipCompressor(compression.LevelFastest))
	out, err := w.Encode(testData{Name: "g", Value: 7})
	require.NoError(t, err)

	plain, err := compression.AutoDecompress(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"g","value":7}`, string(plain))
}
