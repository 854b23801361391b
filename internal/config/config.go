// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"

	"convoy-cli/internal/issue"
)

const (
	// AppName is the application name.
	AppName = "convoy"
	// ConfigFileName is the name of the config file, extension included.
	ConfigFileName = "convoy.toml"
	// GlobalSection is the reserved top-level table holding global settings.
	// No module may shadow it.
	GlobalSection = "convoy"
)

type (
	// Global holds the process-wide settings from the [convoy] table.
	Global struct {
		// ModulePaths lists extra directories scanned for module manifests.
		ModulePaths []string `mapstructure:"module_paths"`
		// Retries is the default whole-pipeline retry bound.
		Retries int `mapstructure:"retries"`
		// Output is a path all log output is mirrored to.
		Output string `mapstructure:"output"`
		// Verbose raises the default log level.
		Verbose bool `mapstructure:"verbose"`
		// Colors toggles styled terminal output.
		Colors bool `mapstructure:"colors"`
	}

	// File is a parsed configuration file: global settings plus the raw
	// per-module sections, keyed by module name.
	File struct {
		Global   Global
		Path     string
		sections map[string]map[string]any
	}

	// LoadOptions defines explicit configuration loading inputs.
	LoadOptions struct {
		// ConfigFilePath forces loading from a specific config file when set.
		ConfigFilePath string
		// ConfigDirPath overrides the config directory lookup when set.
		ConfigDirPath string
	}
)

// DefaultGlobal returns the built-in global settings.
func DefaultGlobal() Global {
	return Global{
		Retries: 0,
		Colors:  true,
	}
}

// ConfigDir returns the convoy configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	// Allow tests to override the config directory
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// Load reads the configuration file described by opts. A missing file is not
// an error: defaults apply and the returned File has no sections.
func Load(opts LoadOptions) (*File, error) {
	resolvedPath := ""

	// If a custom config file path is set via --config, use it exclusively.
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		cfgDir := opts.ConfigDirPath
		if cfgDir == "" {
			var err error
			cfgDir, err = ConfigDir()
			if err != nil {
				return nil, err
			}
		}

		tomlPath := filepath.Join(cfgDir, ConfigFileName)
		if fileExists(tomlPath) {
			resolvedPath = tomlPath
		} else if fileExists(ConfigFileName) {
			// Also check current directory
			resolvedPath = ConfigFileName
		}
	}

	file := &File{
		Global:   DefaultGlobal(),
		sections: make(map[string]map[string]any),
	}
	if resolvedPath == "" {
		// No config file found, use defaults (no error)
		return file, nil
	}

	if err := loadTOMLInto(file, resolvedPath); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("load configuration").
			WithResource(resolvedPath).
			WithSuggestion("Check that the file contains valid TOML syntax").
			WithSuggestion("Top-level keys must be tables: [convoy] or one [section] per module").
			Wrap(err).
			BuildError()
	}
	file.Path = resolvedPath

	return file, nil
}

// loadTOMLInto parses a TOML file with Viper and splits it into the global
// settings and the per-module sections.
func loadTOMLInto(file *File, path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	defaults := DefaultGlobal()
	v.SetDefault(GlobalSection+".retries", defaults.Retries)
	v.SetDefault(GlobalSection+".colors", defaults.Colors)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := v.UnmarshalKey(GlobalSection, &file.Global); err != nil {
		return fmt.Errorf("failed to parse [%s] section: %w", GlobalSection, err)
	}

	for key, value := range v.AllSettings() {
		if key == GlobalSection {
			continue
		}
		section, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("top-level key %q must be a table (module section)", key)
		}
		file.sections[key] = section
	}

	return nil
}

// Section returns the config file section for the named module, or nil when
// the file declares none.
func (f *File) Section(module string) map[string]any {
	if f == nil {
		return nil
	}
	return f.sections[module]
}

// SectionNames returns the names of all module sections present in the file.
func (f *File) SectionNames() []string {
	names := make([]string, 0, len(f.sections))
	for name := range f.sections {
		names = append(names, name)
	}
	return names
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}
