package config

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Hostname is one value read from the CSV import.
type Hostname struct {
	Line int // 1-based line in the CSV file
	Name string
}

// LoadHostnames reads the CSV import at path and returns the values of
// column in file order.
func LoadHostnames(path, column string) ([]Hostname, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening import file: %w", err)
	}
	defer f.Close()

	hostnames, err := ParseHostnames(f, column)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return hostnames, nil
}

// ParseHostnames reads CSV from r. The first record is the header and must
// contain column. Empty cells and blank lines are skipped; values are trimmed.
func ParseHostnames(r io.Reader, column string) ([]Hostname, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("import file is empty, expected a header with column %q", column)
	}
	if err != nil {
		return nil, fmt.Errorf("reading import header: %w", err)
	}

	idx := -1
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if name == column {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("import header %v has no column %q", header, column)
	}

	var out []Hostname
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading import: %w", err)
		}
		if idx >= len(record) {
			continue
		}
		value := strings.TrimSpace(record[idx])
		if value == "" {
			continue
		}
		line, _ := cr.FieldPos(idx)
		out = append(out, Hostname{Line: line, Name: value})
	}
	return out, nil
}
