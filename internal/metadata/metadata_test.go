package metadata

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing test file: %v", err)
	}
	return path
}

func TestExtractCSV(t *testing.T) {
	path := writeTestFile(t, "expression.csv",
		"gene,count,score\nTP53,10,0.5\nBRCA1,20,1.5\nEGFR,,2.5\n")

	meta, err := Extract(path)
	require.NoError(t, err)

	assert.Equal(t, "expression.csv", meta.Filename)
	assert.Equal(t, "csv", meta.FileFormat)
	assert.Equal(t, 3, meta.TotalRows)
	assert.Equal(t, 3, meta.TotalColumns)

	gene := meta.Columns[0]
	assert.Equal(t, "gene", gene.Name)
	assert.Equal(t, "object", gene.Dtype)
	assert.Equal(t, []string{"TP53", "BRCA1", "EGFR"}, gene.SampleValues)
	assert.Equal(t, 0, gene.NullCount)
	assert.Equal(t, 3, gene.UniqueCount)

	count := meta.Columns[1]
	assert.Equal(t, "int64", count.Dtype)
	assert.Equal(t, 1, count.NullCount)

	score := meta.Columns[2]
	assert.Equal(t, "float64", score.Dtype)
}

func TestExtractTSV(t *testing.T) {
	path := writeTestFile(t, "samples.tsv", "sample\tgroup\nS1\tcontrol\nS2\ttreated\n")

	meta, err := Extract(path)
	require.NoError(t, err)

	assert.Equal(t, "tsv", meta.FileFormat)
	assert.Equal(t, 2, meta.TotalRows)
	assert.Equal(t, []string{"S1", "S2"}, meta.Columns[0].SampleValues)
}

func TestExtractCapsSampleValues(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("n\n")
	for i := 0; i < 20; i++ {
		sb.WriteString("1\n")
	}
	path := writeTestFile(t, "many.csv", sb.String())

	meta, err := Extract(path)
	require.NoError(t, err)

	assert.Len(t, meta.Columns[0].SampleValues, 5)
	assert.Equal(t, 1, meta.Columns[0].UniqueCount)
}

func TestExtractUnsupportedFormat(t *testing.T) {
	path := writeTestFile(t, "weights.mat", "binary junk")

	_, err := Extract(path)
	assert.Error(t, err)
}

func TestContextBlockWithMetadata(t *testing.T) {
	path := writeTestFile(t, "data.csv", "a,b\n1,2\n")

	block := ContextBlock(path)

	assert.Contains(t, block, "### File Metadata: data.csv")
	assert.Contains(t, block, "`/data/data.csv`")
	assert.Contains(t, block, `"total_rows": 1`)
}

func TestContextBlockMissingFile(t *testing.T) {
	block := ContextBlock("/nonexistent/data.csv")

	// Never an error; the status text goes straight into planner context.
	assert.Contains(t, block, "Status: File not found")
}

func TestContextBlockUnsupportedFormat(t *testing.T) {
	path := writeTestFile(t, "weights.mat", "binary junk")

	block := ContextBlock(path)

	assert.Contains(t, block, "Unsupported for metadata extraction")
	assert.Contains(t, block, "`/data/weights.mat`")
}

func TestContextBlocksJoinsFiles(t *testing.T) {
	a := writeTestFile(t, "a.csv", "x\n1\n")
	b := writeTestFile(t, "b.csv", "y\n2\n")

	blocks := ContextBlocks([]string{a, b})

	assert.Contains(t, blocks, "a.csv")
	assert.Contains(t, blocks, "b.csv")
	assert.Less(t, strings.Index(blocks, "a.csv"), strings.Index(blocks, "b.csv"))
}
