// Package dataset is the static registry of editable datasets.
//
// Each Dataset names its identity field, its columns, the wire format its
// backend speaks and the column configuration used to render it. Datasets
// are registered up front; nothing is resolved by name at call time beyond
// a map lookup.
package dataset

import (
	"slices"
)

// Dataset describes one editable table.
type Dataset struct {
	// Name is the registry key, also used in session keys and config.
	Name string

	// Title is shown in listings.
	Title string

	// Identity is the field holding the backend-assigned row identity.
	Identity string

	// Columns is the ordered column configuration.
	Columns []Column

	// AuditColumns are appended to Columns in the audit view.
	AuditColumns []Column

	// Wire encodes batches for and decodes lists from the backend.
	Wire Format
}

// Fields returns the column field names in order.
func (d *Dataset) Fields() []string {
	fields := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		fields[i] = c.Field
	}
	return fields
}

// AuditFields returns the field names of the audit view.
func (d *Dataset) AuditFields() []string {
	fields := d.Fields()
	for _, c := range d.AuditColumns {
		fields = append(fields, c.Field)
	}
	return fields
}

// Column returns the configuration for field.
func (d *Dataset) Column(field string) (Column, bool) {
	i := slices.IndexFunc(d.Columns, func(c Column) bool { return c.Field == field })
	if i < 0 {
		return Column{}, false
	}
	return d.Columns[i], true
}

// ColumnType selects a widget editor.
type ColumnType string

const (
	TypeNumber ColumnType = "number"
	TypeText   ColumnType = "text"
	TypeLink   ColumnType = "link"
)

// Column configures how one field is rendered and edited. The reconcile
// core never validates rows against it.
type Column struct {
	Field       string     `json:"field"`
	Label       string     `json:"label"`
	Type        ColumnType `json:"type"`
	Help        string     `json:"help,omitempty"`
	Required    bool       `json:"required,omitempty"`
	Min         *float64   `json:"min,omitempty"`
	Max         *float64   `json:"max,omitempty"`
	Step        float64    `json:"step,omitempty"`
	Format      string     `json:"format,omitempty"`
	MaxChars    int        `json:"max_chars,omitempty"`
	Pattern     string     `json:"pattern,omitempty"`
	DisplayText string     `json:"display_text,omitempty"`
}

func bound(v float64) *float64 {
	return &v
}
