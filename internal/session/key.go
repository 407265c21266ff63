package session

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind names the category of data a key addresses.
type Kind string

const (
	// TableData addresses the dataset snapshot.
	TableData Kind = "TableData"

	// EditorData addresses the widget's edit buffer.
	EditorData Kind = "EditorData"

	// AuditData addresses a fetched audit history.
	AuditData Kind = "AuditData"
)

// Kinds lists every kind in a fixed order.
var Kinds = []Kind{TableData, EditorData, AuditData}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case TableData, EditorData, AuditData:
		return true
	}
	return false
}

// Key is a versioned token bound to a (dataset, kind) pair.
type Key struct {
	Dataset    string
	Kind       Kind
	Generation int64
	Token      string
}

// String renders the key as dataset|kind|generation|token.
func (k Key) String() string {
	return k.Dataset + "|" + string(k.Kind) + "|" + strconv.FormatInt(k.Generation, 10) + "|" + k.Token
}

// IsZero reports whether the key was never allocated.
func (k Key) IsZero() bool {
	return k.Token == "" && k.Generation == 0
}

// ParseKey parses the String form of a key.
func ParseKey(s string) (Key, error) {
	parts := strings.SplitN(s, "|", 4)
	if len(parts) != 4 {
		return Key{}, fmt.Errorf("malformed session key %q", s)
	}
	gen, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return Key{}, fmt.Errorf("malformed session key generation %q: %w", parts[2], err)
	}
	kind := Kind(parts[1])
	if !kind.Valid() {
		return Key{}, fmt.Errorf("unknown session key kind %q", parts[1])
	}
	return Key{Dataset: parts[0], Kind: kind, Generation: gen, Token: parts[3]}, nil
}
