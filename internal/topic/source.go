package topic

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Recognized input columns. Only "topic" is required; unknown columns are
// ignored so spreadsheets with extra bookkeeping columns still load.
const (
	columnTopic     = "topic"
	columnWordCount = "word_count"
	columnOutline   = "outline"
	columnCategory  = "category"
	columnTags      = "tags"
)

// outlineSeparator delimits outline section headings inside a single cell.
const outlineSeparator = "|"

// Source produces an ordered sequence of records from a CSV file, one row
// per intended post. Opening the source again restarts the sequence.
type Source struct {
	Path             string
	DefaultWordCount int
}

// Reader iterates records lazily so large batches never load fully into memory.
type Reader struct {
	file    *os.File
	csv     *csv.Reader
	columns map[string]int
	wordDef int
	row     int
}

// Open validates the header row and positions the reader at the first record.
func (s Source) Open() (*Reader, error) {
	file, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open topic source: %w", err)
	}

	cr := csv.NewReader(file)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		file.Close()
		if errors.Is(err, io.EOF) {
			return nil, errors.New("topic source is empty")
		}
		return nil, fmt.Errorf("read topic header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := columns[columnTopic]; !ok {
		file.Close()
		return nil, errors.New("topic source missing required column \"topic\"")
	}

	wordDef := s.DefaultWordCount
	if wordDef <= 0 {
		wordDef = DefaultWordCount
	}

	return &Reader{file: file, csv: cr, columns: columns, wordDef: wordDef}, nil
}

// Next returns the following record. The bool result is false once the
// sequence is exhausted.
func (r *Reader) Next() (Record, bool, error) {
	for {
		row, err := r.csv.Read()
		if errors.Is(err, io.EOF) {
			return Record{}, false, nil
		}
		if err != nil {
			return Record{}, false, fmt.Errorf("read topic row: %w", err)
		}
		r.row++

		rec := Record{
			Topic:           r.cell(row, columnTopic),
			TargetWordCount: r.wordDef,
			Category:        r.cell(row, columnCategory),
			SourceRowID:     r.row,
		}
		if rec.Topic == "" {
			// Blank rows are common at the tail of exported spreadsheets.
			continue
		}

		if raw := r.cell(row, columnWordCount); raw != "" {
			count, err := strconv.Atoi(raw)
			if err != nil {
				return Record{}, false, fmt.Errorf("row %d: word_count %q is not a number", r.row, raw)
			}
			rec.TargetWordCount = count
		}
		if raw := r.cell(row, columnOutline); raw != "" {
			rec.Outline = splitList(raw, outlineSeparator)
		}
		if raw := r.cell(row, columnTags); raw != "" {
			rec.Tags = splitList(raw, ",")
		}

		return rec, true, nil
	}
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}

func (r *Reader) cell(row []string, column string) string {
	idx, ok := r.columns[column]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func splitList(raw, sep string) []string {
	parts := strings.Split(raw, sep)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ReadAll drains a source into memory. Intended for small batches and tests.
func ReadAll(s Source) ([]Record, error) {
	reader, err := s.Open()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var records []Record
	for {
		rec, ok, err := reader.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return records, nil
		}
		records = append(records, rec)
	}
}
