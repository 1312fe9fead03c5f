package region

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Region is an ISO 3166 country code the backend provisions sessions in
type Region string

// Info is the browser locale and timezone a region's sessions present
type Info struct {
	Region   Region `json:"region" yaml:"region"`
	Locale   string `json:"locale" yaml:"locale"`
	Timezone string `json:"timezone" yaml:"timezone"`
}

var defaults = []Info{
	// North America
	{"US", "en-US", "America/New_York"},
	{"CA", "en-CA", "America/Toronto"},
	{"MX", "es-MX", "America/Mexico_City"},

	// South America
	{"BR", "pt-BR", "America/Sao_Paulo"},
	{"AR", "es-AR", "America/Buenos_Aires"},
	{"CL", "es-CL", "America/Santiago"},
	{"CO", "es-CO", "America/Bogota"},
	{"PE", "es-PE", "America/Lima"},

	// Europe
	{"GB", "en-GB", "Europe/London"},
	{"DE", "de-DE", "Europe/Berlin"},
	{"FR", "fr-FR", "Europe/Paris"},
	{"ES", "es-ES", "Europe/Madrid"},
	{"IT", "it-IT", "Europe/Rome"},
	{"PT", "pt-PT", "Europe/Lisbon"},
	{"NL", "nl-NL", "Europe/Amsterdam"},
	{"BE", "nl-BE", "Europe/Brussels"},
	{"AT", "de-AT", "Europe/Vienna"},
	{"CH", "de-CH", "Europe/Zurich"},
	{"PL", "pl-PL", "Europe/Warsaw"},
	{"SE", "sv-SE", "Europe/Stockholm"},
	{"NO", "nb-NO", "Europe/Oslo"},
	{"DK", "da-DK", "Europe/Copenhagen"},
	{"FI", "fi-FI", "Europe/Helsinki"},
	{"RU", "ru-RU", "Europe/Moscow"},
	{"UA", "uk-UA", "Europe/Kyiv"},
	{"CZ", "cs-CZ", "Europe/Prague"},
	{"GR", "el-GR", "Europe/Athens"},
	{"TR", "tr-TR", "Europe/Istanbul"},

	// Asia
	{"JP", "ja-JP", "Asia/Tokyo"},
	{"CN", "zh-CN", "Asia/Shanghai"},
	{"KR", "ko-KR", "Asia/Seoul"},
	{"IN", "hi-IN", "Asia/Kolkata"},
	{"SG", "en-SG", "Asia/Singapore"},
	{"HK", "zh-HK", "Asia/Hong_Kong"},
	{"TW", "zh-TW", "Asia/Taipei"},
	{"TH", "th-TH", "Asia/Bangkok"},
	{"VN", "vi-VN", "Asia/Ho_Chi_Minh"},
	{"ID", "id-ID", "Asia/Jakarta"},
	{"MY", "ms-MY", "Asia/Kuala_Lumpur"},
	{"PH", "fil-PH", "Asia/Manila"},
	{"AE", "ar-AE", "Asia/Dubai"},
	{"SA", "ar-SA", "Asia/Riyadh"},
	{"IL", "he-IL", "Asia/Jerusalem"},

	// Oceania
	{"AU", "en-AU", "Australia/Sydney"},
	{"NZ", "en-NZ", "Pacific/Auckland"},

	// Africa
	{"ZA", "en-ZA", "Africa/Johannesburg"},
	{"EG", "ar-EG", "Africa/Cairo"},
	{"NG", "en-NG", "Africa/Lagos"},
	{"KE", "en-KE", "Africa/Nairobi"},
}

// Catalog holds the regions sessions can be requested in
type Catalog struct {
	regions map[Region]Info
	mu      sync.RWMutex
}

// NewCatalog creates a catalog with the built-in regions
func NewCatalog() *Catalog {
	c := &Catalog{
		regions: make(map[Region]Info, len(defaults)),
	}
	for _, info := range defaults {
		c.regions[info.Region] = info
	}
	return c
}

// Add registers or replaces a region
func (c *Catalog) Add(info Info) error {
	code := Normalize(string(info.Region))
	if code == "" {
		return fmt.Errorf("region code is required")
	}
	info.Region = code

	c.mu.Lock()
	defer c.mu.Unlock()
	c.regions[code] = info
	return nil
}

// Lookup returns a region's locale and timezone
func (c *Catalog) Lookup(requested string) (Info, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, exists := c.regions[Normalize(requested)]
	return info, exists
}

// RouteSession normalizes a requested region and reports whether it is in the
// catalog. An empty result means the backend picks the region itself.
func (c *Catalog) RouteSession(requested string) (Region, bool) {
	region := Normalize(requested)
	if region == "" {
		return "", true
	}

	c.mu.RLock()
	_, exists := c.regions[region]
	c.mu.RUnlock()

	return region, exists
}

// GetRegions returns all regions sorted by code
func (c *Catalog) GetRegions() []Info {
	c.mu.RLock()
	defer c.mu.RUnlock()

	regions := make([]Info, 0, len(c.regions))
	for _, info := range c.regions {
		regions = append(regions, info)
	}
	sort.Slice(regions, func(i, j int) bool {
		return regions[i].Region < regions[j].Region
	})

	return regions
}

// Normalize trims and upper-cases a region code
func Normalize(code string) Region {
	return Region(strings.ToUpper(strings.TrimSpace(code)))
}
