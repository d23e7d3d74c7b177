package fasta

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plain = `>seq1 first read
ACGTacgt
ACGT
>seq2
NNnn
`

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))
	return path
}

func TestLoad(t *testing.T) {
	records, err := Load(writeFile(t, "reads.fa", plain))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, Record{ID: "seq1", Seq: "ACGTACGTACGT"}, records[0])
	assert.Equal(t, Record{ID: "seq2", Seq: "NNNN"}, records[1])
}

func TestLoad_Gzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reads.fa.gz")
	fh, err := os.Create(path)
	require.NoError(t, err)
	gw := gzip.NewWriter(fh)
	_, err = gw.Write([]byte(plain))
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	require.NoError(t, fh.Close())

	records, err := Load(path)
	require.NoError(t, err)
	ids, seqs := Split(records)
	assert.Equal(t, []string{"seq1", "seq2"}, ids)
	assert.Equal(t, []string{"ACGTACGTACGT", "NNNN"}, seqs)
}

func TestLoad_Empty(t *testing.T) {
	_, err := Load(writeFile(t, "empty.fa", ""))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "blank.fa", "\n"))
	assert.Error(t, err)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.fa"))
	assert.Error(t, err)
}
