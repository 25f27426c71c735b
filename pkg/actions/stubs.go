package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// stubAction is a no-op executor that records what it would have done.
// Production deployments replace these with real integrations (firewall
// APIs, EDR agents, ticketing systems).
type stubAction struct {
	name string
	run  func(params map[string]interface{}) map[string]interface{}
}

func (s *stubAction) Name() string { return s.name }

func (s *stubAction) Execute(_ context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	result := s.run(params)
	result["status"] = "completed"
	result["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	return result, nil
}

func paramString(params map[string]interface{}, key, fallback string) string {
	if v, ok := params[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// RegisterStubs loads stub executors for every action in the default
// catalog into the registry.
func RegisterStubs(r *Registry) {
	stubs := []*stubAction{
		{name: "block_ip", run: func(p map[string]interface{}) map[string]interface{} {
			return map[string]interface{}{
				"blocked_ip": paramString(p, "source_ip", "unknown"),
				"rule_id":    fmt.Sprintf("fw-rule-%s", uuid.New().String()[:8]),
			}
		}},
		{name: "isolate_system", run: func(p map[string]interface{}) map[string]interface{} {
			return map[string]interface{}{
				"isolated_system": paramString(p, "system_id", "unknown"),
				"isolation_level": "network",
			}
		}},
		{name: "update_firewall", run: func(p map[string]interface{}) map[string]interface{} {
			return map[string]interface{}{
				"rules_updated": 1,
				"rule_action":   paramString(p, "rule_action", "deny"),
			}
		}},
		{name: "scan_system", run: func(p map[string]interface{}) map[string]interface{} {
			return map[string]interface{}{
				"scan_id":     uuid.New().String(),
				"scan_target": paramString(p, "target", "localhost"),
				"scan_type":   paramString(p, "scan_type", "full"),
			}
		}},
		{name: "backup_data", run: func(p map[string]interface{}) map[string]interface{} {
			return map[string]interface{}{
				"backup_id":     uuid.New().String(),
				"backup_target": paramString(p, "target", "critical_data"),
			}
		}},
		{name: "alert_admin", run: func(p map[string]interface{}) map[string]interface{} {
			return map[string]interface{}{
				"notified":  "admin",
				"channel":   paramString(p, "channel", "pager"),
				"alert_ref": uuid.New().String(),
			}
		}},
		{name: "forensic_capture", run: func(p map[string]interface{}) map[string]interface{} {
			return map[string]interface{}{
				"capture_id":     uuid.New().String(),
				"capture_target": paramString(p, "target", "memory"),
			}
		}},
		{name: "shutdown_service", run: func(p map[string]interface{}) map[string]interface{} {
			return map[string]interface{}{
				"service":       paramString(p, "service", "unknown"),
				"shutdown_mode": "graceful",
			}
		}},
	}
	for _, s := range stubs {
		r.Register(s)
	}
}
