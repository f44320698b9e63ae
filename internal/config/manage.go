package config

import (
	"fmt"
	"strconv"
)

// KeyInfo is one config key as shown by `collegeai config show`.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

const (
	secretSet   = "(set)"
	secretUnset = "(not set)"
)

// ShowAll lists every key with its effective value. Secrets are reported
// only as set or not set.
func ShowAll(cfg Config) []KeyInfo {
	out := make([]KeyInfo, 0, len(specs))
	for _, s := range specs {
		v := fmt.Sprint(s.extract(cfg))
		if s.secret {
			v = secretUnset
			if s.extract(cfg) != "" {
				v = secretSet
			}
		}
		out = append(out, KeyInfo{Key: s.key, EnvVar: s.env, Value: v})
	}
	return out
}

// SetKey validates value for key and writes it to the platform backend.
func SetKey(key, value string) error {
	return setKeyWith(newPlatformBackend(), key, value)
}

func setKeyWith(b ConfigBackend, key, value string) error {
	s, ok := specByKey(key)
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}
	if s.secret {
		return fmt.Errorf("cannot set secret %q via config; use environment variable %s", key, s.env)
	}

	if _, err := parseValue(s.typ, value); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if s.typ == kInt {
		n, _ := strconv.Atoi(value)
		return b.SetInt(key, n)
	}
	return b.SetString(key, value)
}

func specByKey(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

// ValidKeys returns the keys `config set` accepts.
func ValidKeys() []string {
	var keys []string
	for _, s := range specs {
		if !s.secret {
			keys = append(keys, s.key)
		}
	}
	return keys
}
