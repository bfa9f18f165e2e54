package diag

import "regexp"

// Redactor strips credential-looking values from bundled text. Bundles
// get pasted into tickets and chat, so anything shaped like a secret is
// masked even if doze itself never put it there.
type Redactor struct {
	patterns []redactionPattern
}

type redactionPattern struct {
	regex       *regexp.Regexp
	replacement string
}

// NewRedactor builds a redactor with the common secret shapes.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []redactionPattern{
			// Environment exports (must come before the generic form)
			{
				regex:       regexp.MustCompile(`(?i)export\s+([A-Z_]*(?:KEY|TOKEN|SECRET|PASSWORD)[A-Z_]*)\s*=\s*["']?([^"'\s]+)["']?`),
				replacement: `export $1=[REDACTED]`,
			},
			// key = value / key: value assignments
			{
				regex:       regexp.MustCompile(`(?i)(^|[^A-Z_])(api[_-]?key|token|secret|password)\s*[:=]\s*["']?([^"'\s]+)["']?`),
				replacement: `$1$2: [REDACTED]`,
			},
			// YAML-style entries with arbitrary trailing content
			{
				regex:       regexp.MustCompile(`(?i)(api[_-]?key|token|secret|password):\s*(.+)`),
				replacement: `$1: [REDACTED]`,
			},
			// Bearer tokens in captured log lines
			{
				regex:       regexp.MustCompile(`(?i)Bearer\s+([A-Za-z0-9_\-\.]+)`),
				replacement: `Bearer [REDACTED]`,
			},
		},
	}
}

// Redact applies all patterns to the input text.
func (r *Redactor) Redact(input string) string {
	result := input
	for _, pattern := range r.patterns {
		result = pattern.regex.ReplaceAllString(result, pattern.replacement)
	}
	return result
}
