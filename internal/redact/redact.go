// Package redact scrubs sensitive information from strings before they are
// logged. Error chains in this service routinely carry database connection
// strings, provider API credentials, SQL fragments and recipient email
// addresses; none of those belong in log output.
package redact

import "regexp"

// rule pairs a detection pattern with its replacement placeholder.
type rule struct {
	pattern     *regexp.Regexp
	placeholder string
}

// Rules are applied in order; earlier rules see the original text, later
// rules see prior replacements.
var rules = []rule{
	// Connection strings with inline credentials.
	{regexp.MustCompile(`(?i)(postgres|postgresql|mysql|redis|amqp)://[^@\s]+@`), "[REDACTED_DSN]"},

	// Explicit secrets: password=..., api_key: ..., token=... and friends.
	{regexp.MustCompile(`(?i)(password|passwd|secret|token|api[_-]?key|auth)(['"\s:=]+)\S{3,}`), "[REDACTED_CREDENTIAL]"},

	// Bearer JWTs, the three-part base64url form.
	{regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`), "[REDACTED_JWT]"},

	// Recipient addresses. Delivery errors embed them.
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "[REDACTED_EMAIL]"},

	// SQL fragments leaked from driver errors.
	{regexp.MustCompile(`(?i)(SELECT|INSERT|UPDATE|DELETE|CREATE|ALTER|DROP)[\s\w,*()]+(?:FROM|INTO|SET|TABLE)(?:[\s\w,*()='"]+)?`), "[REDACTED_SQL]"},

	// Filesystem paths.
	{regexp.MustCompile(`(/[\w.-]+){2,}`), "[REDACTED_PATH]"},
}

// String redacts sensitive information from the input string.
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllString(result, r.placeholder)
	}
	return result
}

// Error redacts sensitive information from an error's Error() output.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
