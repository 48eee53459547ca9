package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// OverrideString sets *dst to the environment variable key when it is set
// and non-empty.
func OverrideString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func OverrideSecret(dst *Secret, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = Secret(v)
	}
}

// OverrideList sets *dst from a comma-separated environment variable.
func OverrideList(dst *[]string, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func OverrideDuration(dst *Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("couldn't parse %s: %w", key, err)
	}
	*dst = Duration(d)
	return nil
}
