// Package activity is the outbound audit port of the ledger. Services record
// entries after their transaction commits; delivery is asynchronous and a
// failed delivery never fails the operation that produced the entry.
package activity

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"
)

// Actions recorded by the order services.
const (
	ActionAddItem       = "ADD_ITEM"
	ActionRemoveItem    = "REMOVE_ITEM"
	ActionDeleteOrder   = "DELETE_ORDER"
	ActionCloseTable    = "CLOSE_TABLE"
	ActionPaymentCash   = "PAYMENT_CASH"
	ActionPaymentCard   = "PAYMENT_CARD"
	ActionItemsPaid     = "ITEMS_PAID"
	ActionTransferTable = "TRANSFER_TABLE"
	ActionMergeTables   = "MERGE_TABLES"
)

// Entry is one audit record.
type Entry struct {
	Action    string    `json:"action"`
	TableName string    `json:"tableName,omitempty"`
	Details   string    `json:"details,omitempty"`
	At        time.Time `json:"at"`
}

// Recorder accepts entries without blocking the caller.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

// Truncate shortens s to at most max runes, marking the cut with "...".
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	const marker = "..."
	if max <= len(marker) {
		return string([]rune(s)[:max])
	}
	return string([]rune(s)[:max-len(marker)]) + marker
}

// Nop drops every entry.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, Entry) {}

// Memory keeps entries in memory; used by tests and local tooling.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

// Record implements Recorder.
func (m *Memory) Record(_ context.Context, entry Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
}

// Entries returns a copy of the recorded entries.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Last returns the most recent entry and whether one exists.
func (m *Memory) Last() (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		return Entry{}, false
	}
	return m.entries[len(m.entries)-1], true
}
