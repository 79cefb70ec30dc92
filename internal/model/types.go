// Package model defines domain types used by the sync engine.
package model

import "time"

// RawRecord is one product row as received from the ERP snapshot.
//
// Nothing here is trusted: price may arrive as a number, a numeric string,
// or null; stock may be a number or a token such as "N/A". Fields the
// normalizer does not know about are dropped on decode.
type RawRecord struct {
	SKU   string  `json:"sku"`
	Price any     `json:"price"`
	Stock any     `json:"stock"`
	Color *string `json:"color"`
	Title string  `json:"title"`
}

// Product is the canonical, validated form of a record. Only Products are
// ever fingerprinted or sent to the remote catalog.
type Product struct {
	SKU   string  `json:"sku"`
	Title string  `json:"title"`
	Price float64 `json:"price"`
	Stock int64   `json:"stock"`
	Color string  `json:"color"`
}

// RejectionReason classifies why a raw record was excluded from a run.
type RejectionReason string

const (
	ReasonMissingSKU    RejectionReason = "missing_sku"
	ReasonDuplicateSKU  RejectionReason = "duplicate_sku"
	ReasonMissingPrice  RejectionReason = "missing_price"
	ReasonNegativePrice RejectionReason = "negative_price"
)

// Rejection records one excluded raw record for the run diagnostics.
type Rejection struct {
	SKU    string          `json:"sku"`
	Reason RejectionReason `json:"reason"`
}

// SyncStatus is the outcome persisted with a sync state record.
type SyncStatus string

const (
	StatusSuccess SyncStatus = "success"
	StatusFailed  SyncStatus = "failed"
)

// SyncStateRecord is the persisted per-SKU sync state. It is created on the
// first successful sync of a SKU and overwritten on every successful
// dispatch afterwards; this subsystem never deletes it.
type SyncStateRecord struct {
	SKU             string
	LastFingerprint string
	LastSyncedAt    time.Time
	LastStatus      SyncStatus
	SyncedAsNew     bool
}

// RunReport summarizes one orchestration run. It is returned to the caller
// and not persisted.
type RunReport struct {
	RunID            string      `json:"run_id"`
	StartedAt        time.Time   `json:"started_at"`
	FinishedAt       time.Time   `json:"finished_at"`
	Sent             int         `json:"sent"`
	SkippedUnchanged int         `json:"skipped_unchanged"`
	SkippedInvalid   int         `json:"skipped_invalid"`
	Failed           int         `json:"failed"`
	Rejections       []Rejection `json:"rejections,omitempty"`
	FailedSKUs       []string    `json:"failed_skus,omitempty"`
	Status           string      `json:"status"`
}

// Run terminal states.
const (
	RunCompleted           = "completed"
	RunCompletedWithErrors = "completed-with-errors"
)
