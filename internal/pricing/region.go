package pricing

import "strings"

const (
	EmirateDubai         = "Dubai"
	EmirateAbuDhabi      = "Abu Dhabi"
	EmirateSharjah       = "Sharjah"
	EmirateAjman         = "Ajman"
	EmirateUmmAlQuwain   = "Umm Al Quwain"
	EmirateRasAlKhaimah  = "Ras Al Khaimah"
	EmirateFujairah      = "Fujairah"
	DefaultTransportZone = EmirateDubai
)

// RegionTable maps a city id to the emirate its transport rates are keyed
// by. Unmapped cities fall back to the default region.
type RegionTable struct {
	byCity   map[string]string
	fallback string
}

func NewRegionTable(byCity map[string]string, fallback string) *RegionTable {
	t := &RegionTable{byCity: make(map[string]string, len(byCity)), fallback: fallback}
	for city, emirate := range byCity {
		t.byCity[normalizeCityID(city)] = emirate
	}
	return t
}

// DefaultRegions covers the cities the warehouses deliver to today.
func DefaultRegions() *RegionTable {
	return NewRegionTable(map[string]string{
		"dubai":             EmirateDubai,
		"jebel-ali":         EmirateDubai,
		"hatta":             EmirateDubai,
		"abu-dhabi":         EmirateAbuDhabi,
		"al-ain":            EmirateAbuDhabi,
		"ruwais":            EmirateAbuDhabi,
		"sharjah":           EmirateSharjah,
		"khor-fakkan":       EmirateSharjah,
		"kalba":             EmirateSharjah,
		"ajman":             EmirateAjman,
		"umm-al-quwain":     EmirateUmmAlQuwain,
		"ras-al-khaimah":    EmirateRasAlKhaimah,
		"fujairah":          EmirateFujairah,
		"dibba-al-fujairah": EmirateFujairah,
	}, DefaultTransportZone)
}

// Resolve returns the emirate for cityID, or the fallback.
func (t *RegionTable) Resolve(cityID string) string {
	if emirate, ok := t.byCity[normalizeCityID(cityID)]; ok {
		return emirate
	}
	return t.fallback
}

func normalizeCityID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	return strings.Join(strings.Fields(strings.ReplaceAll(id, "_", " ")), "-")
}
