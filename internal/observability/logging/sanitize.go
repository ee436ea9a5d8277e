package logging

import "regexp"

var (
	// Authorization header values and bare bearer tokens
	bearerPattern = regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._~+/=-]+`)

	// Twitch IRC credentials ("PASS oauth:xxxx")
	oauthPattern = regexp.MustCompile(`oauth:[A-Za-z0-9]+`)

	// client_secret / access_token in query strings or JSON bodies
	secretFieldPattern = regexp.MustCompile(`("?(?:client_secret|access_token)"?\s*[:=]\s*"?)[^"&\s,}]+`)

	// Webhook tokens live in the URL path
	discordWebhookPattern = regexp.MustCompile(`(/api/webhooks/\d+/)[A-Za-z0-9_-]+`)
	slackWebhookPattern   = regexp.MustCompile(`(/services/[A-Z0-9]+/[A-Z0-9]+/)[A-Za-z0-9]+`)

	// Database password in DSN
	dbPasswordPattern = regexp.MustCompile(`://([^:/]+):([^@]+)@`)
)

// SanitizeError returns the error message with credentials masked.
// It is applied to every error that reaches a log line or a health endpoint.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error())
}

// SanitizeString masks credentials in an arbitrary string.
func SanitizeString(msg string) string {
	msg = bearerPattern.ReplaceAllString(msg, "${1}****")
	msg = oauthPattern.ReplaceAllString(msg, "oauth:****")
	msg = secretFieldPattern.ReplaceAllString(msg, "${1}****")
	msg = discordWebhookPattern.ReplaceAllString(msg, "${1}****")
	msg = slackWebhookPattern.ReplaceAllString(msg, "${1}****")
	msg = dbPasswordPattern.ReplaceAllString(msg, "://$1:****@")
	return msg
}
