package cart

import (
	"encoding/json"
	"math"
	"strings"
)

// record is the durable layout: {"items":[...]}.
type record struct {
	Items []Item `json:"items"`
}

func encodeRecord(items []Item) ([]byte, error) {
	if items == nil {
		items = []Item{}
	}
	return json.Marshal(record{Items: items})
}

// decodeRecord parses a stored payload and repairs lines a well-behaved
// writer would never have produced. dropped counts discarded lines.
func decodeRecord(payload []byte) (items []Item, dropped int, err error) {
	var rec record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, 0, err
	}

	items = make([]Item, 0, len(rec.Items))
	seen := make(map[string]struct{}, len(rec.Items))
	for _, item := range rec.Items {
		if !storedItemValid(item) {
			dropped++
			continue
		}
		if _, dup := seen[item.ProductID]; dup {
			dropped++
			continue
		}
		seen[item.ProductID] = struct{}{}
		item.Quantity = clamp(item.Quantity, item.Stock)
		items = append(items, item)
	}
	return items, dropped, nil
}

func storedItemValid(item Item) bool {
	if strings.TrimSpace(item.ProductID) == "" || strings.TrimSpace(item.Title) == "" {
		return false
	}
	if math.IsNaN(item.Price) || math.IsInf(item.Price, 0) || item.Price < 0 {
		return false
	}
	return item.Stock >= 1
}
