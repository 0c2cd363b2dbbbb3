package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const EnvPrefix = "LINTMUX_"

// Overrides are the LINTMUX_* environment values layered over the file settings.
type Overrides struct {
	Jobs            *int
	MaxArgLength    string
	Timeout         string
	ExpectedVersion string
}

// LoadOverrides reads LINTMUX_JOBS, LINTMUX_MAX_ARG_LENGTH, LINTMUX_TIMEOUT and
// LINTMUX_EXPECTED_VERSION.
func LoadOverrides(prefix string) (Overrides, bool, error) {
	var o Overrides
	has := false

	if v, ok := os.LookupEnv(prefix + "JOBS"); ok {
		has = true
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 {
			return Overrides{}, false, fmt.Errorf("environment variable %sJOBS is not a valid non-negative integer", prefix)
		}
		o.Jobs = &n
	}
	setString := func(key string, dst *string) {
		v, ok := os.LookupEnv(prefix + key)
		if !ok {
			return
		}
		has = true
		*dst = strings.TrimSpace(v)
	}
	setString("MAX_ARG_LENGTH", &o.MaxArgLength)
	setString("TIMEOUT", &o.Timeout)
	setString("EXPECTED_VERSION", &o.ExpectedVersion)

	if o.MaxArgLength != "" {
		if _, err := ParseSizeToBytes(o.MaxArgLength); err != nil {
			return Overrides{}, false, fmt.Errorf("environment variable %sMAX_ARG_LENGTH: %w", prefix, err)
		}
	}
	if o.Timeout != "" {
		if _, err := ParseDuration(o.Timeout); err != nil {
			return Overrides{}, false, fmt.Errorf("environment variable %sTIMEOUT: %w", prefix, err)
		}
	}
	return o, has, nil
}

// Apply layers o over cfg.Settings. ExpectedVersion is consumed by the caller.
func (o Overrides) Apply(cfg *Config) {
	if o.Jobs != nil {
		cfg.Settings.Jobs = *o.Jobs
	}
	if o.MaxArgLength != "" {
		cfg.Settings.MaxArgLength = o.MaxArgLength
	}
	if o.Timeout != "" {
		cfg.Settings.Timeout = o.Timeout
	}
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

// SplitCodes parses a comma separated list of tool codes as used by --take/--skip.
func SplitCodes(values []string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, v := range values {
		for _, c := range splitCSV(v) {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}
