// Package fingerprint computes content hashes of canonical products for
// change detection.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gowebpki/jcs"

	"github.com/fairyhunter13/catalog-delta-sync/internal/model"
)

// payload is the exact field set that participates in the hash. Prices are
// pinned to two decimals as a JSON number so that equal canonical values
// always serialize to equal bytes.
type payload struct {
	SKU   string      `json:"sku"`
	Title string      `json:"title"`
	Price json.Number `json:"price"`
	Stock int64       `json:"stock"`
	Color string      `json:"color"`
}

// Hash returns the hex SHA-256 of the RFC 8785 canonical JSON of p.
// Deterministic and order-independent: two products with identical field
// values hash identically regardless of how they were constructed.
func Hash(p model.Product) (string, error) {
	b, err := json.Marshal(payload{
		SKU:   p.SKU,
		Title: p.Title,
		Price: json.Number(strconv.FormatFloat(p.Price, 'f', 2, 64)),
		Stock: p.Stock,
		Color: p.Color,
	})
	if err != nil {
		return "", fmt.Errorf("marshal product %s: %w", p.SKU, err)
	}
	canonical, err := jcs.Transform(b)
	if err != nil {
		return "", fmt.Errorf("canonicalize product %s: %w", p.SKU, err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// CanonicalJSON exposes the canonical serialization that Hash digests.
// Used by tests to pin the byte-level format.
func CanonicalJSON(p model.Product) ([]byte, error) {
	b, err := json.Marshal(payload{
		SKU:   p.SKU,
		Title: p.Title,
		Price: json.Number(strconv.FormatFloat(p.Price, 'f', 2, 64)),
		Stock: p.Stock,
		Color: p.Color,
	})
	if err != nil {
		return nil, err
	}
	return jcs.Transform(b)
}
