// Package metadata turns raw data files into compact structural summaries
// for the planner's context. The planner never sees file contents, only
// column structure, dtypes, sample values, and counts. That keeps its
// context small while the full files stay readable inside the sandbox at
// /data.
package metadata

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	maxSampleValues = 5
	maxSampleLen    = 50
	// Past this many distinct values we stop counting and report -1,
	// mirroring what a caller would accept from a bounded profiler.
	maxUniqueTracked = 10000
)

// ColumnMetadata summarises one column.
type ColumnMetadata struct {
	Name         string   `json:"name"`
	Dtype        string   `json:"dtype"`
	SampleValues []string `json:"sample_values"`
	NullCount    int      `json:"null_count"`
	UniqueCount  int      `json:"unique_count"`
}

// DatasetMetadata summarises one data file.
type DatasetMetadata struct {
	Filename      string           `json:"filename"`
	FileFormat    string           `json:"file_format"`
	FileSizeBytes int64            `json:"file_size_bytes"`
	TotalRows     int              `json:"total_rows"`
	TotalColumns  int              `json:"total_columns"`
	Columns       []ColumnMetadata `json:"columns"`
}

// Extract profiles a CSV or TSV file. Other formats return an error; callers
// that feed planner context should use ContextBlock, which never fails.
func Extract(path string) (*DatasetMetadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	var sep rune
	switch ext {
	case ".csv":
		sep = ','
	case ".tsv":
		sep = '\t'
	default:
		return nil, fmt.Errorf("unsupported file format: %s (only .csv and .tsv are supported)", ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = sep
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", path, err)
	}

	profiles := make([]columnProfile, len(header))
	for i, name := range header {
		profiles[i].name = strings.TrimSpace(name)
	}

	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		rows++
		for i := range profiles {
			value := ""
			if i < len(record) {
				value = record[i]
			}
			profiles[i].observe(value)
		}
	}

	columns := make([]ColumnMetadata, len(profiles))
	for i := range profiles {
		columns[i] = profiles[i].finish()
	}

	return &DatasetMetadata{
		Filename:      filepath.Base(path),
		FileFormat:    strings.TrimPrefix(ext, "."),
		FileSizeBytes: info.Size(),
		TotalRows:     rows,
		TotalColumns:  len(columns),
		Columns:       columns,
	}, nil
}

// columnProfile accumulates per-column statistics during the single pass.
type columnProfile struct {
	name      string
	samples   []string
	nulls     int
	uniques   map[string]struct{}
	overflow  bool
	sawValue  bool
	allInt    bool
	allNumber bool
}

func (p *columnProfile) observe(value string) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || strings.EqualFold(trimmed, "nan") || strings.EqualFold(trimmed, "null") {
		p.nulls++
		return
	}

	if !p.sawValue {
		p.sawValue = true
		p.allInt = true
		p.allNumber = true
		p.uniques = make(map[string]struct{})
	}

	if len(p.samples) < maxSampleValues {
		sample := trimmed
		if len(sample) > maxSampleLen {
			sample = sample[:maxSampleLen]
		}
		p.samples = append(p.samples, sample)
	}

	if !p.overflow {
		p.uniques[trimmed] = struct{}{}
		if len(p.uniques) > maxUniqueTracked {
			p.overflow = true
			p.uniques = nil
		}
	}

	if p.allInt {
		if _, err := strconv.ParseInt(trimmed, 10, 64); err != nil {
			p.allInt = false
		}
	}
	if p.allNumber && !p.allInt {
		if _, err := strconv.ParseFloat(trimmed, 64); err != nil {
			p.allNumber = false
		}
	}
}

func (p *columnProfile) finish() ColumnMetadata {
	dtype := "object"
	switch {
	case !p.sawValue:
		dtype = "object"
	case p.allInt:
		dtype = "int64"
	case p.allNumber:
		dtype = "float64"
	}

	unique := 0
	if p.overflow {
		unique = -1
	} else if p.uniques != nil {
		unique = len(p.uniques)
	}

	samples := p.samples
	if samples == nil {
		samples = []string{}
	}

	return ColumnMetadata{
		Name:         p.name,
		Dtype:        dtype,
		SampleValues: samples,
		NullCount:    p.nulls,
		UniqueCount:  unique,
	}
}

// ContextBlock renders the planner-facing markdown block for one file. It
// never fails: extraction errors become status text inside the block, since
// the output is embedded directly into planner context.
func ContextBlock(path string) string {
	name := filepath.Base(path)
	sandboxPath := "/data/" + name

	if _, err := os.Stat(path); err != nil {
		return fmt.Sprintf("### File: %s\nStatus: File not found: %s", name, path)
	}

	meta, err := Extract(path)
	if err != nil {
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".csv" && ext != ".tsv" {
			return fmt.Sprintf(
				"### File: %s\n- **Sandbox Path**: `%s`\n(Unsupported for metadata extraction; please read content from `%s` if needed.)",
				name, sandboxPath, sandboxPath,
			)
		}
		return fmt.Sprintf(
			"### File Metadata: %s\n- **Sandbox Path**: `%s`\nStatus: Error generating metadata: %v",
			name, sandboxPath, err,
		)
	}

	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Sprintf(
			"### File Metadata: %s\n- **Sandbox Path**: `%s`\nStatus: Error generating metadata: %v",
			name, sandboxPath, err,
		)
	}

	return fmt.Sprintf(
		"### File Metadata: %s\n- **Sandbox Path**: `%s`\n- **Metadata (JSON)**:\n```json\n%s\n```\n"+
			"(Note: The full file is available at `%s`. If you need raw data for charts, read it inside code using pandas/scipy.)",
		name, sandboxPath, metaJSON, sandboxPath,
	)
}

// ContextBlocks renders the blocks for all files, joined by blank lines.
func ContextBlocks(paths []string) string {
	blocks := make([]string, 0, len(paths))
	for _, path := range paths {
		blocks = append(blocks, ContextBlock(path))
	}
	return strings.Join(blocks, "\n\n")
}
