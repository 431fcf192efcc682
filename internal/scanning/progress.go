package scanning

import (
	"github.com/joao-fontenele/assetflow/internal/domain"
)

type ItemProgress struct {
	AssetID   string `json:"asset_id"`
	AssetName string `json:"asset_name"`
	Required  int    `json:"required"`
	Scanned   int    `json:"scanned"`
}

type Progress struct {
	ScanType domain.ScanType `json:"scan_type"`
	Required int             `json:"required"`
	Scanned  int             `json:"scanned"`
	Percent  int             `json:"percent"`
	Complete bool            `json:"complete"`
	Items    []ItemProgress  `json:"items"`
}

// compute sums required quantities per asset across the order items and
// matches them against the scan events of scanType.
func compute(scanType domain.ScanType, items []domain.OrderItem, events []domain.ScanEvent) Progress {
	p := Progress{ScanType: scanType, Items: []ItemProgress{}}
	index := make(map[string]int)
	for _, it := range items {
		i, ok := index[it.AssetID]
		if !ok {
			i = len(p.Items)
			index[it.AssetID] = i
			p.Items = append(p.Items, ItemProgress{AssetID: it.AssetID, AssetName: it.AssetName})
		}
		p.Items[i].Required += it.Quantity
	}
	for _, e := range events {
		if e.ScanType != scanType {
			continue
		}
		if i, ok := index[e.AssetID]; ok {
			p.Items[i].Scanned += e.Quantity
		}
	}

	for _, it := range p.Items {
		p.Required += it.Required
		p.Scanned += min(it.Scanned, it.Required)
	}
	if p.Required > 0 {
		p.Percent = p.Scanned * 100 / p.Required
		p.Complete = p.Scanned == p.Required
	}
	return p
}
