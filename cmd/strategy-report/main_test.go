package main

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/dna-evolution/pkg/strategy"
	"github.com/ducminhle1904/dna-evolution/pkg/types"
)

func saveDoc(t *testing.T, store strategy.Store, partition string) *strategy.Document {
	t.Helper()
	schema := types.DefaultGeneSchema()
	doc := strategy.NewDocument(partition, schema)
	doc.DNA = schema.ToMap(schema.Midpoints())
	doc.FailureReason = "bootstrap p(ROI>0) below threshold"
	require.NoError(t, store.Save(context.Background(), doc))
	return doc
}

func TestLoadDocuments(t *testing.T) {
	store := strategy.NewFileStore(t.TempDir())
	eng := saveDoc(t, store, "ENG")
	saveDoc(t, store, types.GlobalPartition)

	docs, err := loadDocuments(context.Background(), store)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	var ids []string
	for _, d := range docs {
		ids = append(ids, d.RunID)
	}
	assert.Contains(t, ids, eng.RunID)
}

func TestWriteComparison(t *testing.T) {
	store := strategy.NewFileStore(t.TempDir())
	saveDoc(t, store, "ENG")
	docs, err := loadDocuments(context.Background(), store)
	require.NoError(t, err)

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "comparison.csv")
	require.NoError(t, writeComparison(io.Discard, docs, types.DefaultGeneSchema(), csvPath))
	assert.FileExists(t, csvPath)

	xlsxPath := filepath.Join(dir, "comparison.xlsx")
	require.NoError(t, writeComparison(io.Discard, docs, types.DefaultGeneSchema(), xlsxPath))
	assert.FileExists(t, xlsxPath)

	assert.Error(t, writeComparison(io.Discard, nil, types.DefaultGeneSchema(), ""))
}
