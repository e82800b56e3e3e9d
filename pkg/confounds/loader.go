package confounds

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// LoadTable parses a tab-separated confound file with a header row into
// a Table. Missing-value markers are preserved as NaN, never coerced to
// zero; any other non-numeric cell is a fatal input error.
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open confound file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse confound file %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("confound file %s is empty", path)
	}

	header := records[0]
	table := &Table{
		names:   make([]string, len(header)),
		columns: make(map[string][]float64, len(header)),
		rows:    len(records) - 1,
	}
	copy(table.names, header)
	for _, name := range header {
		table.columns[name] = make([]float64, 0, table.rows)
	}

	for i, record := range records[1:] {
		if len(record) != len(header) {
			return nil, fmt.Errorf("confound file %s row %d has %d fields, header has %d",
				path, i+1, len(record), len(header))
		}
		for j, cell := range record {
			name := header[j]
			if isMissing(cell) {
				table.columns[name] = append(table.columns[name], nan)
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("confound file %s row %d column %q: invalid value %q",
					path, i+1, name, cell)
			}
			table.columns[name] = append(table.columns[name], v)
		}
	}

	return table, nil
}

// LoadOutliers parses an outlier-index file with one zero-based volume
// index per line. A missing or empty file means no outliers were
// detected and yields an empty list without error; non-integer content
// or a negative index is a fatal input error. The returned indices are
// sorted and deduplicated.
func LoadOutliers(path string) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open outlier file: %w", err)
	}
	defer f.Close()

	seen := make(map[int]bool)
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		idx, err := strconv.Atoi(text)
		if err != nil {
			return nil, fmt.Errorf("outlier file %s line %d: invalid index %q", path, line, text)
		}
		if idx < 0 {
			return nil, fmt.Errorf("outlier file %s line %d: negative index %d", path, line, idx)
		}
		seen[idx] = true
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read outlier file %s: %w", path, err)
	}

	outliers := make([]int, 0, len(seen))
	for idx := range seen {
		outliers = append(outliers, idx)
	}
	sort.Ints(outliers)
	return outliers, nil
}
