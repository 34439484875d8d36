// Package rowstore persists synced order rows. Two backends exist:
// an xlsx workbook with one tab per month, and a flat CSV file with a
// sidecar checkpoint for crash recovery.
package rowstore

import (
	"github.com/newbienorbie/unifi-scraper/internal/domain"
)

// RowState is what the sync engine needs to know about an already
// stored order before deciding whether to fetch it again.
type RowState struct {
	OrderStatus string
	CreatedDate string
	LastSynced  string
	Incomplete  bool
	Reason      string
}

// Store is the row persistence surface used by the sync engine. Every
// Upsert is durable on return so a crash mid-run loses at most the
// order in flight.
type Store interface {
	// States returns the stored state keyed by order number.
	States() (map[string]RowState, error)

	// Upsert writes one order row, replacing any existing row with
	// the same order number.
	Upsert(rec domain.OrderRecord) error

	// MarkIncomplete records that an order could not be fully synced
	// this run, with the reason.
	MarkIncomplete(orderNumber, reason string) error

	// SortByCreatedDate orders the stored rows newest first, rows
	// with unparsable created dates sinking to the bottom. Called
	// once at the end of a clean run.
	SortByCreatedDate() error

	// Destination names where rows went, for run summaries.
	Destination() string

	Close() error
}
