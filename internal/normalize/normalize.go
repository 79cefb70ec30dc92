// Package normalize turns raw ERP snapshot records into canonical products.
//
// Everything here is pure: no network, no storage. Invalid records are
// reported as rejections and never abort the batch.
package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/fairyhunter13/catalog-delta-sync/internal/model"
)

// VATRate is the fixed tax markup applied to raw (VAT-exclusive) prices.
const VATRate = 0.21

const defaultColor = "N/A"

// Record applies the per-record rules to one raw record, in order, first
// match wins. A returned rejection means the record must not be
// fingerprinted or dispatched. Batch-level rules (duplicate SKUs) live in
// Batch.
func Record(raw model.RawRecord) (model.Product, *model.Rejection) {
	if raw.SKU == "" {
		return model.Product{}, &model.Rejection{SKU: "<unknown>", Reason: model.ReasonMissingSKU}
	}

	price, ok := coercePrice(raw.Price)
	if !ok {
		return model.Product{}, &model.Rejection{SKU: raw.SKU, Reason: model.ReasonMissingPrice}
	}
	if price < 0 {
		return model.Product{}, &model.Rejection{SKU: raw.SKU, Reason: model.ReasonNegativePrice}
	}

	stock := coerceStock(raw.Stock)

	color := defaultColor
	if raw.Color != nil && *raw.Color != "" {
		color = *raw.Color
	}

	return model.Product{
		SKU:   raw.SKU,
		Title: raw.Title,
		Price: roundCurrency(price * (1 + VATRate)),
		Stock: stock,
		Color: color,
	}, nil
}

// Batch normalizes raw records in input order. The first occurrence of a SKU
// wins; every later occurrence is rejected as a duplicate even if its data
// differs. Products and rejections together account for every input record.
func Batch(raws []model.RawRecord) ([]model.Product, []model.Rejection) {
	products := make([]model.Product, 0, len(raws))
	var rejections []model.Rejection
	seen := make(map[string]struct{}, len(raws))

	for _, raw := range raws {
		if raw.SKU != "" {
			if _, dup := seen[raw.SKU]; dup {
				rejections = append(rejections, model.Rejection{SKU: raw.SKU, Reason: model.ReasonDuplicateSKU})
				continue
			}
			seen[raw.SKU] = struct{}{}
		}
		p, rej := Record(raw)
		if rej != nil {
			rejections = append(rejections, *rej)
			continue
		}
		products = append(products, p)
	}
	return products, rejections
}

// coercePrice accepts the loose price representations the feed produces:
// JSON numbers, numeric strings, json.Number. Returns ok=false when the
// price is absent or not a number at all.
func coercePrice(v any) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// coerceStock converts a stock value to a non-negative integer; anything
// non-numeric (including "N/A") counts as 0.
func coerceStock(v any) int64 {
	var n int64
	switch t := v.(type) {
	case float64:
		n = int64(t)
	case int:
		n = int64(t)
	case int64:
		n = t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			n = i
		} else if f, ferr := t.Float64(); ferr == nil {
			n = int64(f)
		}
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		n = int64(f)
	default:
		return 0
	}
	if n < 0 {
		return 0
	}
	return n
}

func roundCurrency(v float64) float64 {
	return math.Round(v*100) / 100
}
