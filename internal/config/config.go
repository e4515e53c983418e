// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"appgen-cli/internal/cueutil"
	"appgen-cli/internal/issue"
)

const (
	// AppName is the application name.
	AppName = "appgen"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes the environment variables overriding configuration
	// keys: APPGEN_CONTAINER_ENGINE, APPGEN_PUSH_MAX_ATTEMPTS and so on.
	EnvPrefix = "APPGEN"
)

//go:embed config_schema.cue
var configSchema string

// configDirOverride replaces the platform config directory in tests.
var configDirOverride string

// SetConfigDirOverride makes Dir return dir until Reset is called.
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}

// Reset clears test overrides.
func Reset() {
	configDirOverride = ""
}

// Dir returns the appgen configuration directory: $XDG_CONFIG_HOME/appgen on
// Linux, ~/Library/Application Support/appgen on macOS, %AppData%\appgen on
// Windows.
func Dir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate the user config directory: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// DefaultPath returns the path of config.cue in Dir.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName+"."+ConfigFileExt), nil
}

// load reads defaults, the config file and APPGEN_* environment variables, in
// increasing precedence. It returns the path of the file read, empty when
// none was.
func load(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("container_engine", string(defaults.ContainerEngine))
	v.SetDefault("build.repo2docker_binary", defaults.Build.Repo2DockerBinary)
	v.SetDefault("push.max_attempts", defaults.Push.MaxAttempts)
	v.SetDefault("push.backoff", defaults.Push.Backoff)
	v.SetDefault("ecr.region", defaults.ECR.Region)
	v.SetDefault("cwl.notebook_dir", defaults.CWL.NotebookDir)
	v.SetDefault("cwl.stage_image", defaults.CWL.StageImage)
	v.SetDefault("catalog.api_url", defaults.Catalog.APIURL)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath := ""
	if opts.ConfigFilePath != "" {
		// An explicit file must exist.
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", loadError(opts.ConfigFilePath, fmt.Errorf("config file not found: %s", opts.ConfigFilePath),
				"Verify the path given to --appgen-config")
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		dir := opts.ConfigDirPath
		if dir == "" {
			var err error
			if dir, err = Dir(); err != nil {
				return nil, "", err
			}
		}
		if p := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt); fileExists(p) {
			resolvedPath = p
		}
	}

	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", loadError(resolvedPath, err, "Check the file against 'appgen config dump'")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", loadError(resolvedPath, fmt.Errorf("failed to parse config: %w", err),
			"Check the APPGEN_* environment variables")
	}
	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", loadError(resolvedPath, errs[0], "Check the APPGEN_* environment variables and the config file")
	}
	return &cfg, resolvedPath, nil
}

func loadError(resource string, err error, suggestion string) error {
	if resource == "" {
		resource = "environment"
	}
	return issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource(resource).
		WithSuggestion(suggestion).
		WithIssue(issue.ConfigLoadFailedId).
		Wrap(err).
		BuildError()
}

// loadCUEIntoViper validates the file against #Config and merges it into v.
// Fields are optional, so the document is decoded into a map rather than a
// struct and concreteness is not required.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	res, err := cueutil.ParseAndDecodeString[map[string]any](configSchema, data, "#Config",
		cueutil.WithFilename(path), cueutil.WithConcrete(false))
	if err != nil {
		return err
	}
	if err := v.MergeConfigMap(*res.Value); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// GenerateCUE renders cfg as a config.cue document.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// appgen configuration file\n\n")
	fmt.Fprintf(&sb, "container_engine: %q\n", cfg.ContainerEngine)

	sb.WriteString("\nbuild: {\n")
	fmt.Fprintf(&sb, "\trepo2docker_binary: %q\n", cfg.Build.Repo2DockerBinary)
	sb.WriteString("}\n")

	sb.WriteString("\npush: {\n")
	fmt.Fprintf(&sb, "\tmax_attempts: %d\n", cfg.Push.MaxAttempts)
	fmt.Fprintf(&sb, "\tbackoff:      %q\n", cfg.Push.Backoff.String())
	sb.WriteString("}\n")

	if cfg.ECR.Region != "" {
		sb.WriteString("\necr: {\n")
		fmt.Fprintf(&sb, "\tregion: %q\n", cfg.ECR.Region)
		sb.WriteString("}\n")
	}

	sb.WriteString("\ncwl: {\n")
	fmt.Fprintf(&sb, "\tnotebook_dir: %q\n", cfg.CWL.NotebookDir)
	fmt.Fprintf(&sb, "\tstage_image:  %q\n", cfg.CWL.StageImage)
	sb.WriteString("}\n")

	sb.WriteString("\ncatalog: {\n")
	fmt.Fprintf(&sb, "\tapi_url: %q\n", cfg.Catalog.APIURL)
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	sb.WriteString("}\n")

	return sb.String()
}

// Save writes cfg to the default config file, creating the directory.
func Save(cfg *Config) (string, error) {
	p, err := DefaultPath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(p, []byte(GenerateCUE(cfg)), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return p, nil
}
