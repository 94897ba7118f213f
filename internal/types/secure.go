package types

import (
	"log/slog"
	"net/url"
)

const redacted = "[redacted]"

// SecretString holds a credential such as the database DSN. It prints,
// marshals and logs as a placeholder; Unmask returns the raw value.
type SecretString string

func (s SecretString) String() string { return redacted }

// GoString covers %#v, which bypasses String.
func (s SecretString) GoString() string { return redacted }

// MarshalJSON keeps the secret out of report and config dumps.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// LogValue implements slog.LogValuer.
func (s SecretString) LogValue() slog.Value { return slog.StringValue(redacted) }

// Unmask returns the raw value. Only pass it to the driver or client that
// needs it.
func (s SecretString) Unmask() string { return string(s) }

// Host returns the host of a URL-shaped secret without its user info, for
// logging which server a run is connected to. It is empty when the value is
// not a URL.
func (s SecretString) Host() string {
	u, err := url.Parse(string(s))
	if err != nil {
		return ""
	}
	return u.Host
}
