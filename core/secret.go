package core

import "log/slog"

const redacted = "[REDACTED]"

// Secret wraps a credential such as an api-key so that it cannot leak through
// fmt, encoding/json, text encoders or slog. Use Expose when the value is
// needed for a request header.
//
//	key := NewSecret(os.Getenv("AZURE_OPENAI_API_KEY"))
//	logger.Info("configured", "api_key", key) // api_key=[REDACTED]
type Secret struct {
	value string
}

// NewSecret creates a new Secret from a string value.
func NewSecret(value string) Secret {
	return Secret{value: value}
}

// String implements fmt.Stringer.
func (s Secret) String() string {
	return redacted
}

// GoString implements fmt.GoStringer for %#v.
func (s Secret) GoString() string {
	return "core.Secret{" + redacted + "}"
}

// LogValue implements slog.LogValuer.
func (s Secret) LogValue() slog.Value {
	return slog.StringValue(redacted)
}

// MarshalJSON implements json.Marshaler.
func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// MarshalText implements encoding.TextMarshaler, which also covers YAML.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

// Expose returns the actual secret value.
func (s Secret) Expose() string {
	return s.value
}

// IsEmpty returns true if the secret value is empty.
func (s Secret) IsEmpty() bool {
	return s.value == ""
}

// Last4 returns the last four characters for display, or the redaction
// marker when the value is shorter.
func (s Secret) Last4() string {
	if len(s.value) < 8 {
		return redacted
	}
	return "..." + s.value[len(s.value)-4:]
}
