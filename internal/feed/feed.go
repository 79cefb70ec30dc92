// Package feed loads raw ERP snapshot records. The transport is an external
// concern; this package only provides the contract plus the reference JSON
// file implementation.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fairyhunter13/catalog-delta-sync/internal/model"
)

// Feed supplies one ordered snapshot of raw records per sync run.
type Feed interface {
	Load(ctx context.Context) ([]model.RawRecord, error)
}

// FileFeed reads a JSON array of raw records from disk.
type FileFeed struct {
	Path string
}

func (f FileFeed) Load(_ context.Context) ([]model.RawRecord, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read feed %s: %w", f.Path, err)
	}
	var raws []model.RawRecord
	if err := json.Unmarshal(b, &raws); err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", f.Path, err)
	}
	return raws, nil
}

// Static serves a fixed record list; used by tests and embedded callers.
type Static []model.RawRecord

func (s Static) Load(_ context.Context) ([]model.RawRecord, error) {
	return []model.RawRecord(s), nil
}
