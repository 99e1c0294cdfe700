package logging

import (
	"log/slog"
	"regexp"

	"github.com/m-mizutani/masq"
)

// secretFields are attribute and struct field names whose values are never
// logged. Config structs are logged on startup errors, so the store DSN and
// cache password are listed in both spellings.
var secretFields = []string{
	"password", "Password",
	"dsn", "DSN",
	"secret", "token", "authorization", "cookie",
	"api_key", "apiKey", "access_token", "accessToken",
}

var (
	jwtPattern    = regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`)
	schemePattern = regexp.MustCompile(`(?i)^(bearer|basic)\s+.+$`)

	// Connection URLs with inline credentials, e.g. postgres://app:pw@db/quotes.
	credentialURLPattern = regexp.MustCompile(`^(postgres|postgresql|redis|rediss|nats)://[^:/@]*:[^@]+@`)
)

// DefaultRedactOptions returns the masq options applied to every handler.
func DefaultRedactOptions() []masq.Option {
	opts := make([]masq.Option, 0, len(secretFields)+5)

	for _, name := range secretFields {
		opts = append(opts, masq.WithFieldName(name))
	}

	return append(opts,
		masq.WithFieldPrefix("secret"),
		masq.WithFieldPrefix("private"),
		masq.WithRegex(jwtPattern),
		masq.WithRegex(schemePattern),
		masq.WithRegex(credentialURLPattern),
	)
}

// NewReplaceAttr returns a slog ReplaceAttr that redacts secrets. Extra
// options are appended to DefaultRedactOptions.
func NewReplaceAttr(opts ...masq.Option) func(groups []string, a slog.Attr) slog.Attr {
	return masq.New(append(DefaultRedactOptions(), opts...)...)
}
