// Package session holds per-user editing state for gridsync.
//
// A Store owns, for each dataset, the last fetched snapshot and a set of
// versioned keys (TableData, EditorData, AuditData). The grid widget reads
// and writes its edit buffer under the current EditorData key; rotating
// that key is the only way to force the widget to drop staged edits.
//
// Stores are created per session by a Manager. Nothing is shared between
// sessions.
package session
