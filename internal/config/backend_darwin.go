//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultsDomain = "com.collegeai.app"

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "Library", "Application Support", appName)
	}
	return appName + "-data"
}

// defaultsBackend keeps settings in the user's defaults database under
// defaultsDomain, so the values survive reinstalls of the binary.
type defaultsBackend struct {
	domain string
}

func newPlatformBackend() ConfigBackend {
	return defaultsBackend{domain: defaultsDomain}
}

func (b defaultsBackend) run(args ...string) (string, error) {
	out, err := exec.Command("defaults", args...).CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

func (b defaultsBackend) GetString(key string) (string, bool, error) {
	s, err := b.run("read", b.domain, key)
	if err == nil {
		return s, true, nil
	}
	// `defaults read` exits 1 for a missing key or domain.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return "", false, nil
	}
	return "", false, fmt.Errorf("defaults read %s: %w (%s)", key, err, s)
}

func (b defaultsBackend) GetInt(key string) (int, bool, error) {
	s, ok, err := b.GetString(key)
	if !ok || err != nil {
		return 0, ok, err
	}
	n, err := atoiKey(key, s)
	return n, true, err
}

func (b defaultsBackend) SetString(key, val string) error {
	if s, err := b.run("write", b.domain, key, "-string", val); err != nil {
		return fmt.Errorf("defaults write %s: %w (%s)", key, err, s)
	}
	return nil
}

func (b defaultsBackend) SetInt(key string, val int) error {
	if s, err := b.run("write", b.domain, key, "-int", strconv.Itoa(val)); err != nil {
		return fmt.Errorf("defaults write %s: %w (%s)", key, err, s)
	}
	return nil
}

func (b defaultsBackend) Delete(key string) error {
	_, err := b.run("delete", b.domain, key)
	return err
}
