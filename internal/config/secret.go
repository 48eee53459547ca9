// Package config holds value types shared by the service's YAML config.
package config

import "log/slog"

// Secret is a credential read from config or the environment. It never
// prints its value, so configs can be logged as a whole.
type Secret string

var _ slog.LogValuer = Secret("")

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "[redacted]"
}

func (s Secret) LogValue() slog.Value {
	return slog.StringValue(s.String())
}

// Value returns the credential itself.
func (s Secret) Value() string {
	return string(s)
}

func (s Secret) IsSet() bool {
	return s != ""
}
