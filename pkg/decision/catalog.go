// pkg/decision/catalog.go
package decision

import (
	"time"
)

// CatalogEntry describes the static properties of one action. The catalog
// is configuration data, not computed state.
type CatalogEntry struct {
	Name       string
	Type       string
	Automated  bool
	Reversible bool
	Impact     string // low, medium, high
	Cooldown   time.Duration
}

// DefaultCatalog returns the built-in action catalog.
func DefaultCatalog() map[string]CatalogEntry {
	return map[string]CatalogEntry{
		"block_ip": {
			Name:       "block_ip",
			Type:       "network",
			Automated:  true,
			Reversible: true,
			Impact:     "medium",
			Cooldown:   5 * time.Minute,
		},
		"isolate_system": {
			Name:       "isolate_system",
			Type:       "containment",
			Automated:  true,
			Reversible: true,
			Impact:     "high",
			Cooldown:   15 * time.Minute,
		},
		"alert_admin": {
			Name:       "alert_admin",
			Type:       "notification",
			Automated:  true,
			Reversible: false,
			Impact:     "low",
			Cooldown:   time.Minute,
		},
		"update_firewall": {
			Name:       "update_firewall",
			Type:       "network",
			Automated:  true,
			Reversible: true,
			Impact:     "medium",
			Cooldown:   5 * time.Minute,
		},
		"scan_system": {
			Name:       "scan_system",
			Type:       "investigation",
			Automated:  true,
			Reversible: false,
			Impact:     "low",
			Cooldown:   10 * time.Minute,
		},
		"backup_data": {
			Name:       "backup_data",
			Type:       "preservation",
			Automated:  true,
			Reversible: false,
			Impact:     "low",
			Cooldown:   30 * time.Minute,
		},
		"shutdown_service": {
			Name:       "shutdown_service",
			Type:       "containment",
			Automated:  false,
			Reversible: true,
			Impact:     "high",
			Cooldown:   30 * time.Minute,
		},
		"forensic_capture": {
			Name:       "forensic_capture",
			Type:       "investigation",
			Automated:  true,
			Reversible: false,
			Impact:     "medium",
			Cooldown:   10 * time.Minute,
		},
	}
}
