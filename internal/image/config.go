// SPDX-License-Identifier: MPL-2.0

package image

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ErrUnsupportedConfigFormat is returned for build config files that are
// neither TOML nor JSON.
var ErrUnsupportedConfigFormat = errors.New("unsupported build config format")

// BuildConfig holds optional build settings read from a TOML or JSON file.
type BuildConfig struct {
	// Dockerfile is relative to the repository root.
	Dockerfile string            `toml:"dockerfile" json:"dockerfile"`
	BuildArgs  map[string]string `toml:"build_args" json:"build_args"`
	Labels     map[string]string `toml:"labels" json:"labels"`
	NoCache    bool              `toml:"no_cache" json:"no_cache"`
}

// LoadBuildConfig reads a build config file. The format is chosen by
// extension: .toml or .json. Unknown keys are rejected.
func LoadBuildConfig(path string) (BuildConfig, error) {
	var cfg BuildConfig

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading build config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("parsing build config %s: %w", path, err)
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("parsing build config %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("%w %q (use .toml or .json)", ErrUnsupportedConfigFormat, ext)
	}

	if filepath.IsAbs(cfg.Dockerfile) {
		return cfg, fmt.Errorf("build config %s: dockerfile must be relative to the repository", path)
	}
	return cfg, nil
}
