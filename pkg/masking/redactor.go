// Package masking scrubs likely credentials out of text that crosses a
// trust boundary this agent doesn't control: call_ops_endpoint results
// pulled from managed services, and the log line recording each written
// incident report. The report file and the emailed report are not
// redacted.
package masking

import "regexp"

// builtinPattern is a pre-compiled regex and its replacement.
type builtinPattern struct {
	regex       *regexp.Regexp
	replacement string
}

// builtinPatterns covers the credential shapes most likely to leak
// through a log line or status endpoint response: key=value pairs
// naming an api key, password, bearer/JWT token, or private/secret
// key, regardless of quoting style.
var builtinPatterns = []builtinPattern{
	{
		regexp.MustCompile(`(?i)(api[_-]?key|apikey)(["']?\s*[:=]\s*["']?)([A-Za-z0-9_\-]{20,})(["']?)`),
		`$1$2[REDACTED]$4`,
	},
	{
		regexp.MustCompile(`(?i)(password|pwd|pass)(["']?\s*[:=]\s*["']?)([^"'\s\n]{6,})(["']?)`),
		`$1$2[REDACTED]$4`,
	},
	{
		regexp.MustCompile(`(?i)(token|bearer|jwt)(["']?\s*[:=]\s*["']?)([A-Za-z0-9_\-.]{20,})(["']?)`),
		`$1$2[REDACTED]$4`,
	},
	{
		regexp.MustCompile(`(?i)(private[_-]?key|secret[_-]?key)(["']?\s*[:=]\s*["']?)([A-Za-z0-9_\-.]{20,})(["']?)`),
		`$1$2[REDACTED]$4`,
	},
}

// Redact applies every built-in pattern to content and returns the
// scrubbed result. Content that matches nothing is returned unchanged
// (same underlying bytes are not guaranteed, but no allocation churn
// occurs beyond regexp's own).
func Redact(content string) string {
	masked := content
	for _, p := range builtinPatterns {
		masked = p.regex.ReplaceAllString(masked, p.replacement)
	}
	return masked
}
