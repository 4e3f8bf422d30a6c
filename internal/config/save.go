package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/gltg/bmp-api/internal/atomicfile"
)

// SaveTo writes cfg to path atomically. The database password is never
// persisted; supply it through DB_PASSWORD instead.
func SaveTo(path string, cfg *Config) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("config path is required")
	}
	if cfg == nil {
		cfg = Default()
	}
	out := *cfg
	out.Database.Password = ""

	var buf bytes.Buffer
	buf.WriteString("# bmp configuration\n# Environment variables (DB_*, API_*) override these values.\n\n")
	if err := toml.NewEncoder(&buf).Encode(out); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := atomicfile.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// CreateDefault writes the default configuration to path unless a file
// already exists there. It reports whether a file was written.
func CreateDefault(path string) (bool, error) {
	if fileExists(path) {
		return false, nil
	}
	if err := SaveTo(path, Default()); err != nil {
		return false, err
	}
	return true, nil
}
