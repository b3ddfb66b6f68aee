package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

func (p *Parser) parseCSV(data []byte) ([]Row, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrMalformed, err)
	}
	columns := make([]string, len(header))
	index := make(map[string]int, len(header))
	for i, h := range header {
		columns[i] = normalizeHeader(h)
		if _, dup := index[columns[i]]; !dup && columns[i] != "" {
			index[columns[i]] = i
		}
	}

	var layout *Layout
	for i := range p.Layouts {
		if p.Layouts[i].Matches(index) {
			layout = &p.Layouts[i]
			break
		}
	}

	var records [][]string
	count := 0
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if blank(rec) {
			continue
		}
		count++
		// Past the ceiling only the count is kept so the error can state it.
		if p.MaxRows <= 0 || count <= p.MaxRows {
			records = append(records, rec)
		}
	}
	if err := p.checkRows(count); err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(records))
	for i, rec := range records {
		raw := make(map[string]string, len(columns))
		for j, col := range columns {
			if col == "" || j >= len(rec) {
				continue
			}
			if _, seen := raw[col]; seen {
				continue
			}
			raw[col] = strings.TrimSpace(rec[j])
		}
		line := i + 1
		if layout != nil {
			rows = append(rows, layout.Row(line, raw))
		} else {
			rows = append(rows, genericRow(line, raw))
		}
	}
	return rows, nil
}

// sniffDelimiter picks semicolon or tab when the header line uses it more
// than commas. Several European banks export with semicolons.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	commas := bytes.Count(line, []byte(","))
	switch {
	case bytes.Count(line, []byte(";")) > commas:
		return ';'
	case bytes.Count(line, []byte("\t")) > commas:
		return '\t'
	}
	return ','
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
