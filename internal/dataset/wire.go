package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/gridsync/internal/record"
)

// Format translates between records and a backend's JSON.
type Format interface {
	// EncodeBatch encodes rows as a create or update request body.
	EncodeBatch(rows []record.Record) ([]byte, error)

	// DecodeList decodes a list response into records.
	DecodeList(data []byte) ([]record.Record, error)
}

// EnvelopeFormat wraps batches as {"<Envelope>": [rows...]}.
//
// ListFields hold comma-separated text in a record and a JSON array of
// strings on the wire.
type EnvelopeFormat struct {
	Envelope   string
	ListFields []string
}

// EncodeBatch implements Format.
func (f EnvelopeFormat) EncodeBatch(rows []record.Record) ([]byte, error) {
	items := make([]map[string]any, len(rows))
	for i, row := range rows {
		item := row.Map()
		for _, field := range f.ListFields {
			v, ok := row[field]
			if !ok {
				continue
			}
			item[field] = splitList(v)
		}
		items[i] = item
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(map[string]any{f.Envelope: items}); err != nil {
		return nil, fmt.Errorf("encode %s batch: %w", f.Envelope, err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

// DecodeList implements Format. It accepts a bare JSON array or an object
// carrying the array under the envelope name.
func (f EnvelopeFormat) DecodeList(data []byte) ([]record.Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return []record.Record{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var items []map[string]any
	if data[0] == '{' {
		var wrapped map[string][]map[string]any
		if err := dec.Decode(&wrapped); err != nil {
			return nil, fmt.Errorf("decode %s list: %w", f.Envelope, err)
		}
		items = wrapped[f.Envelope]
	} else if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("decode %s list: %w", f.Envelope, err)
	}

	rows := make([]record.Record, 0, len(items))
	for i, item := range items {
		for _, field := range f.ListFields {
			if list, ok := item[field].([]any); ok {
				item[field] = joinList(list)
			}
		}
		row, err := record.FromMap(item)
		if err != nil {
			return nil, fmt.Errorf("decode %s list: item %d: %w", f.Envelope, i, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func splitList(v record.Value) []string {
	out := []string{}
	if record.IsNull(v) {
		return out
	}
	for _, part := range strings.Split(record.Text(v), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func joinList(list []any) string {
	parts := make([]string, 0, len(list))
	for _, item := range list {
		v, err := record.FromAny(item)
		if err != nil {
			parts = append(parts, fmt.Sprint(item))
			continue
		}
		parts = append(parts, record.Text(v))
	}
	return strings.Join(parts, ",")
}

// IsListField reports whether field is carried as a list on the wire.
func (f EnvelopeFormat) IsListField(field string) bool {
	return slices.Contains(f.ListFields, field)
}
