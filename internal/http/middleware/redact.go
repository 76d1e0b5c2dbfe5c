package middleware

import "regexp"

// UUIDs go first: the phone pattern would otherwise eat their digit runs.
var (
	redactUUID  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`)
	redactEmail = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	redactPhone = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
	redactKey   = regexp.MustCompile(`\bsk-[A-Za-z0-9_\-]{8,}`)
)

// Redact masks ids, email addresses, phone numbers and provider API keys.
func Redact(s string) string {
	if s == "" {
		return s
	}
	s = redactKey.ReplaceAllString(s, "[REDACTED:key]")
	s = redactUUID.ReplaceAllString(s, "[REDACTED:id]")
	s = redactEmail.ReplaceAllString(s, "[REDACTED:email]")
	return redactPhone.ReplaceAllString(s, "[REDACTED:phone]")
}
