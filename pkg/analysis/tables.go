// pkg/analysis/tables.go
package analysis

import "regexp"

// threatPattern is one named entry in the fixed pattern table. Indicators
// are matched as substrings against the lower-cased serialized payload.
type threatPattern struct {
	Name       string
	Severity   Severity
	Indicators []string
}

func defaultThreatPatterns() []threatPattern {
	return []threatPattern{
		{
			Name:     "sql_injection",
			Severity: SeverityHigh,
			Indicators: []string{
				"' or '1'='1",
				"union select",
				"drop table",
				"or 1=1",
				"; --",
			},
		},
		{
			Name:     "xss_attempt",
			Severity: SeverityMedium,
			Indicators: []string{
				"<script",
				"javascript:",
				"onerror=",
				"onload=",
				"document.cookie",
			},
		},
		{
			Name:     "command_injection",
			Severity: SeverityHigh,
			Indicators: []string{
				"; cat /etc/passwd",
				"&& whoami",
				"| nc ",
				"$(curl",
				"; rm -rf",
			},
		},
		{
			Name:     "path_traversal",
			Severity: SeverityMedium,
			Indicators: []string{
				"../../",
				"..\\..\\",
				"/etc/shadow",
				"%2e%2e%2f",
			},
		},
		{
			Name:     "malware_signature",
			Severity: SeverityCritical,
			Indicators: []string{
				"trojan",
				"ransomware",
				"keylogger",
				"botnet",
				"cryptominer",
			},
		},
	}
}

// signatureRule is one named regex in the fixed signature table, scanned
// against the lower-cased serialized payload.
type signatureRule struct {
	Name     string
	Severity Severity
	Pattern  *regexp.Regexp
}

func defaultSignatureRules() []signatureRule {
	return []signatureRule{
		{
			Name:     "command_execution",
			Severity: SeverityHigh,
			Pattern:  regexp.MustCompile(`(cmd\.exe|/bin/sh\b|/bin/bash\b)`),
		},
		{
			Name:     "encoded_powershell",
			Severity: SeverityCritical,
			Pattern:  regexp.MustCompile(`powershell.*(-enc|-encodedcommand|frombase64string)`),
		},
		{
			Name:     "base64_payload",
			Severity: SeverityMedium,
			Pattern:  regexp.MustCompile(`[a-z0-9+/]{60,}={0,2}`),
		},
		{
			Name:     "shell_execution",
			Severity: SeverityHigh,
			Pattern:  regexp.MustCompile(`(eval\(|exec\(|system\(|popen\()`),
		},
		{
			Name:     "file_manipulation",
			Severity: SeverityMedium,
			Pattern:  regexp.MustCompile(`(chmod \+x|mkfifo|/dev/tcp/|wget .* -o)`),
		},
	}
}

// suspiciousTLDs is the small denylist used by the heuristic layer.
var suspiciousTLDs = []string{".tk", ".top", ".xyz", ".pw", ".click"}
