// pkg/decision/rules.go
package decision

// ResponseRule maps a threat type to a fixed action set. A rule fires when
// the detected threat's confidence reaches MinConfidence.
type ResponseRule struct {
	ThreatType    string
	MinConfidence float64
	Actions       []ruleAction
}

type ruleAction struct {
	Name     string
	Priority Priority
}

// DefaultRules returns the built-in threat-type response rules.
func DefaultRules() map[string]ResponseRule {
	return map[string]ResponseRule{
		"sql_injection": {
			ThreatType:    "sql_injection",
			MinConfidence: 0.8,
			Actions: []ruleAction{
				{Name: "block_ip", Priority: PriorityUrgent},
				{Name: "update_firewall", Priority: PriorityHigh},
			},
		},
		"xss_attempt": {
			ThreatType:    "xss_attempt",
			MinConfidence: 0.7,
			Actions: []ruleAction{
				{Name: "update_firewall", Priority: PriorityHigh},
			},
		},
		"command_injection": {
			ThreatType:    "command_injection",
			MinConfidence: 0.7,
			Actions: []ruleAction{
				{Name: "block_ip", Priority: PriorityUrgent},
				{Name: "forensic_capture", Priority: PriorityHigh},
			},
		},
		"malware_signature": {
			ThreatType:    "malware_signature",
			MinConfidence: 0.7,
			Actions: []ruleAction{
				{Name: "isolate_system", Priority: PriorityUrgent},
				{Name: "forensic_capture", Priority: PriorityHigh},
			},
		},
		"brute_force": {
			ThreatType:    "brute_force",
			MinConfidence: 0.7,
			Actions: []ruleAction{
				{Name: "block_ip", Priority: PriorityHigh},
			},
		},
		"data_exfiltration": {
			ThreatType:    "data_exfiltration",
			MinConfidence: 0.7,
			Actions: []ruleAction{
				{Name: "isolate_system", Priority: PriorityUrgent},
				{Name: "backup_data", Priority: PriorityHigh},
			},
		},
	}
}

// severityFallback is the baseline action set contributed for every
// analysis regardless of which rules fired, keyed by final severity.
func severityFallback(severity string) []ruleAction {
	switch severity {
	case "critical":
		return []ruleAction{
			{Name: "isolate_system", Priority: PriorityUrgent},
			{Name: "alert_admin", Priority: PriorityUrgent},
			{Name: "forensic_capture", Priority: PriorityHigh},
		}
	case "high":
		return []ruleAction{
			{Name: "alert_admin", Priority: PriorityHigh},
			{Name: "scan_system", Priority: PriorityHigh},
		}
	case "medium":
		return []ruleAction{
			{Name: "alert_admin", Priority: PriorityMedium},
			{Name: "scan_system", Priority: PriorityMedium},
		}
	case "low":
		return []ruleAction{
			{Name: "scan_system", Priority: PriorityLow},
		}
	default:
		return nil
	}
}

// toleranceThresholds holds the risk-score cutoffs for one risk-tolerance
// posture.
type toleranceThresholds struct {
	Critical float64
	High     float64
	Medium   float64
	Low      float64
}

// toleranceTable selects the threshold table for the configured posture.
// A low tolerance escalates earlier (lower cutoffs).
func toleranceTable(tolerance string) toleranceThresholds {
	switch tolerance {
	case "low":
		return toleranceThresholds{Critical: 60, High: 40, Medium: 25, Low: 10}
	case "high":
		return toleranceThresholds{Critical: 90, High: 75, Medium: 55, Low: 35}
	default: // medium
		return toleranceThresholds{Critical: 85, High: 70, Medium: 50, Low: 30}
	}
}

// riskActions returns the escalation set for a risk score under the given
// thresholds. Only the highest matching band contributes.
func riskActions(score float64, t toleranceThresholds) ([]ruleAction, string) {
	switch {
	case score >= t.Critical:
		return []ruleAction{
			{Name: "block_ip", Priority: PriorityUrgent},
			{Name: "backup_data", Priority: PriorityHigh},
		}, "critical"
	case score >= t.High:
		return []ruleAction{
			{Name: "update_firewall", Priority: PriorityHigh},
		}, "high"
	case score >= t.Medium:
		return []ruleAction{
			{Name: "alert_admin", Priority: PriorityMedium},
		}, "medium"
	case score >= t.Low:
		return []ruleAction{
			{Name: "scan_system", Priority: PriorityLow},
		}, "low"
	default:
		return nil, ""
	}
}
