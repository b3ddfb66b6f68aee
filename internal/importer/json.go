package importer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// parseJSON accepts an array of flat objects using the same field names as
// the generic csv contract. Values may be strings, numbers or null.
func (p *Parser) parseJSON(data []byte) ([]Row, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var records []map[string]any
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: expected an array of objects: %v", ErrMalformed, err)
	}

	kept := records[:0]
	for _, rec := range records {
		if len(rec) > 0 {
			kept = append(kept, rec)
		}
	}
	if err := p.checkRows(len(kept)); err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(kept))
	for i, rec := range kept {
		raw := make(map[string]string, len(rec))
		for k, v := range rec {
			key := normalizeHeader(k)
			switch val := v.(type) {
			case nil:
			case string:
				raw[key] = strings.TrimSpace(val)
			case json.Number:
				raw[key] = numberText(val)
			case bool:
				raw[key] = fmt.Sprint(val)
			default:
				return nil, fmt.Errorf("%w: row %d field %q must be a string or number", ErrMalformed, i+1, k)
			}
		}
		rows = append(rows, genericRow(i+1, raw))
	}
	return rows, nil
}

// numberText renders a JSON number in plain positional form so exponent
// notation reaches validation as the value it denotes.
func numberText(n json.Number) string {
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return n.String()
	}
	return d.String()
}
