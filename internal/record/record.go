package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// DefaultIdentity is the identity field used when a dataset names none.
const DefaultIdentity = "id"

// Record is one row keyed by column name.
type Record map[string]Value

// Clone returns a shallow copy; values are immutable scalars so this is
// a full copy in practice.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Overlay returns a copy of r with every field of partial written over it.
func (r Record) Overlay(partial Record) Record {
	out := r.Clone()
	for k, v := range partial {
		out[k] = v
	}
	return out
}

// Project returns a row holding exactly the given columns. Missing columns
// become Null and fields outside the set are dropped. An empty column set
// keeps the record as is.
func (r Record) Project(columns []string) Record {
	if len(columns) == 0 {
		return r.Clone()
	}
	out := make(Record, len(columns))
	for _, c := range columns {
		if v, ok := r[c]; ok && v != nil {
			out[c] = v
		} else {
			out[c] = Null{}
		}
	}
	return out
}

// Equal compares two records field by field. An absent field equals Null.
func (r Record) Equal(other Record) bool {
	for k, v := range r {
		if !Equal(v, other[k]) {
			return false
		}
	}
	for k, v := range other {
		if _, ok := r[k]; !ok && !IsNull(v) {
			return false
		}
	}
	return true
}

// Identity returns the value of the identity field and whether it is set.
func (r Record) Identity(field string) (Value, bool) {
	v, ok := r[field]
	if !ok || IsNull(v) {
		return nil, false
	}
	return v, true
}

// With returns a copy of r with key set to v.
func (r Record) With(key string, v Value) Record {
	out := r.Clone()
	out[key] = v
	return out
}

// Without returns a copy of r with key removed.
func (r Record) Without(key string) Record {
	out := r.Clone()
	delete(out, key)
	return out
}

// SortedKeys returns field names in canonical order.
func (r Record) SortedKeys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeys)
	return keys
}

// Map converts the record to plain Go values.
func (r Record) Map() map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[k] = ToAny(v)
	}
	return out
}

// FromMap builds a record from decoded JSON or YAML values.
func FromMap(m map[string]any) (Record, error) {
	out := make(Record, len(m))
	for k, raw := range m {
		v, err := FromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// MarshalJSON writes fields in canonical key order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		valBytes, err := MarshalValue(r[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a flat JSON object. Nested arrays and objects are
// rejected; wire adapters flatten them first.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	rec, err := FromMap(raw)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}

// Snapshot is the last table known to match the backend. Rows are addressed
// by their position at fetch time.
type Snapshot struct {
	Columns []string `json:"columns"`
	Rows    []Record `json:"rows"`
}

// NewSnapshot builds a snapshot over rows. When columns is empty it is
// derived from the union of row fields in canonical order.
func NewSnapshot(columns []string, rows []Record) Snapshot {
	if len(columns) == 0 {
		seen := make(Record)
		for _, r := range rows {
			for k := range r {
				seen[k] = Null{}
			}
		}
		columns = seen.SortedKeys()
	}
	if rows == nil {
		rows = []Record{}
	}
	return Snapshot{Columns: slices.Clone(columns), Rows: rows}
}

// Len returns the number of rows.
func (s Snapshot) Len() int {
	return len(s.Rows)
}

// Row returns the row at pos.
func (s Snapshot) Row(pos int) (Record, bool) {
	if pos < 0 || pos >= len(s.Rows) {
		return nil, false
	}
	return s.Rows[pos], true
}

// SortByIdentity orders rows by the identity field ascending. Rows lacking
// an identity sort first. The sort is stable.
func (s Snapshot) SortByIdentity(field string) {
	slices.SortStableFunc(s.Rows, func(a, b Record) int {
		av, _ := a.Identity(field)
		bv, _ := b.Identity(field)
		return Compare(av, bv)
	})
}

// EditBuffer is the widget's record of uncommitted changes. Updated is keyed
// by row position and carries changed fields only.
type EditBuffer struct {
	Created []Record       `json:"added_rows"`
	Updated map[int]Record `json:"edited_rows"`
	Deleted []int          `json:"deleted_rows"`
}

// Empty reports whether the buffer holds no edits.
func (b EditBuffer) Empty() bool {
	return len(b.Created) == 0 && len(b.Updated) == 0 && len(b.Deleted) == 0
}

// UpdatedPositions returns the edited positions in ascending order.
func (b EditBuffer) UpdatedPositions() []int {
	positions := make([]int, 0, len(b.Updated))
	for pos := range b.Updated {
		positions = append(positions, pos)
	}
	slices.Sort(positions)
	return positions
}
