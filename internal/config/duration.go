package config

import (
	"fmt"
	"strings"
	"time"
)

// Duration-valued fields are Go duration strings ("500ms", "90s", "1m30s").
// An empty field means "not set" and parses to zero; negatives are rejected
// because no timeout or interval in this config can meaningfully be
// negative.

// ParseDurationField parses one duration field. path names the field in
// error messages, e.g. "monitor.poll_interval".
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: %q is not a duration: %w", path, raw, err)
	case d < 0:
		return 0, fmt.Errorf("%s: negative duration %q", path, raw)
	}
	return d, nil
}

// ParseDurationOrDefault substitutes def when the field is unset.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}
