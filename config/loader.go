package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/FBakkensen/azure-status-web/logging"
)

// Flag names shared with main
const (
	FlagConfig   = "config"
	FlagAddress  = "addr"
	FlagLogLevel = "log-level"
)

// FlagParser abstracts command line flag parsing for testability
type FlagParser interface {
	Parse(args []string) (*ParsedFlags, error)
}

// ParsedFlags holds flags that were actually given; unset flags stay nil
type ParsedFlags struct {
	ConfigFile *string
	Address    *string
	LogLevel   *string
}

// PFlagParser implements FlagParser with spf13/pflag. Flags it does not own
// (command specific ones) are ignored.
type PFlagParser struct{}

// Parse implements FlagParser
func (PFlagParser) Parse(args []string) (*ParsedFlags, error) {
	fs := pflag.NewFlagSet("config", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}

	configFile := fs.String(FlagConfig, "", "Configuration file path (JSON or YAML)")
	address := fs.String(FlagAddress, "", "HTTP listen address")
	logLevel := fs.String(FlagLogLevel, "", "Log level (DEBUG, INFO, WARN, ERROR)")

	if err := fs.Parse(args); err != nil && !errors.Is(err, pflag.ErrHelp) {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}

	flags := &ParsedFlags{}
	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case FlagConfig:
			flags.ConfigFile = configFile
		case FlagAddress:
			flags.Address = address
		case FlagLogLevel:
			flags.LogLevel = logLevel
		}
	})
	return flags, nil
}

// ConfigLoader handles configuration loading with injected dependencies
type ConfigLoader struct {
	fs          FileSystem
	flagParser  FlagParser
	searchPaths []string
	// environ replaces the process environment when non-nil
	environ map[string]string
}

// NewConfigLoader creates a ConfigLoader for production use
func NewConfigLoader() *ConfigLoader {
	osFS := &OsFileSystem{}
	return &ConfigLoader{
		fs:          osFS,
		flagParser:  PFlagParser{},
		searchPaths: getDefaultSearchPaths(osFS),
	}
}

// NewTestConfigLoader creates a ConfigLoader over fs with a fixed environment
func NewTestConfigLoader(fs FileSystem, searchPaths []string, environ map[string]string) *ConfigLoader {
	if searchPaths == nil {
		searchPaths = getDefaultSearchPaths(fs)
	}
	if environ == nil {
		environ = map[string]string{}
	}
	return &ConfigLoader{
		fs:          fs,
		flagParser:  PFlagParser{},
		searchPaths: searchPaths,
		environ:     environ,
	}
}

// SearchPaths returns the config file candidates in lookup order
func (cl *ConfigLoader) SearchPaths() []string {
	return append([]string(nil), cl.searchPaths...)
}

// LoadWithArgs builds the configuration. Precedence for settings is
// defaults < file < env < flags. Credentials resolve env > file, then the
// keyring for the secret when Azure.UseKeyring is set. An env var that is set
// but blank counts as unset.
func (cl *ConfigLoader) LoadWithArgs(args []string) (Config, error) {
	cfg := NewConfig()

	flags, err := cl.flagParser.Parse(args)
	if err != nil {
		return cfg, err
	}

	if err := cl.loadFromFile(&cfg, flags.ConfigFile); err != nil {
		return cfg, err
	}
	fileAzure := cfg.Azure

	environ := cl.environment()
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return cfg, fmt.Errorf("failed to read environment: %w", err)
	}

	cfg.Sources = CredentialSources{
		TenantID:     sourceOf(environ["AZURE_TENANT_ID"], fileAzure.TenantID),
		ClientID:     sourceOf(environ["AZURE_CLIENT_ID"], fileAzure.ClientID),
		ClientSecret: sourceOf(environ["AZURE_CLIENT_SECRET"], fileAzure.ClientSecret),
	}

	cl.applyFlags(&cfg, flags)
	cl.loadSecretFromKeyring(&cfg)
	trimCredentials(&cfg)

	logging.Debug("Configuration loaded",
		"file", cfg.File,
		"tenantSource", cfg.Sources.TenantID,
		"clientSource", cfg.Sources.ClientID,
		"secretSource", cfg.Sources.ClientSecret,
	)

	return cfg, cfg.Validate()
}

// loadFromFile merges the explicit or discovered config file into cfg. An
// explicit path that cannot be read is an error; a missing default file is not.
func (cl *ConfigLoader) loadFromFile(cfg *Config, configFile *string) error {
	path := ""
	if configFile != nil && strings.TrimSpace(*configFile) != "" {
		path = strings.TrimSpace(*configFile)
	} else {
		path = cl.findConfigFile()
	}
	if path == "" {
		return nil
	}

	data, err := cl.fs.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := decodeConfigFile(path, data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	cfg.File = path
	return nil
}

// decodeConfigFile picks the format by extension; anything that is not
// .yaml or .yml is read as JSON. JSON keys match case-insensitively.
func decodeConfigFile(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

// findConfigFile returns the first search path that exists
func (cl *ConfigLoader) findConfigFile() string {
	for _, path := range cl.searchPaths {
		if _, err := cl.fs.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func (cl *ConfigLoader) applyFlags(cfg *Config, flags *ParsedFlags) {
	if flags.Address != nil && strings.TrimSpace(*flags.Address) != "" {
		cfg.Server.Address = strings.TrimSpace(*flags.Address)
	}
	if flags.LogLevel != nil && strings.TrimSpace(*flags.LogLevel) != "" {
		cfg.Logging.Level = strings.TrimSpace(*flags.LogLevel)
	}
}

// loadSecretFromKeyring fills a missing client secret from the OS keyring.
// Keyring problems are logged and otherwise ignored.
func (cl *ConfigLoader) loadSecretFromKeyring(cfg *Config) {
	if strings.TrimSpace(cfg.Azure.ClientSecret) != "" || !cfg.Azure.UseKeyring {
		return
	}
	secret, err := LoadClientSecret()
	if err != nil {
		logging.Warn("Could not read client secret from keyring", "error", err.Error())
		return
	}
	if secret == "" {
		return
	}
	cfg.Azure.ClientSecret = secret
	cfg.Sources.ClientSecret = SourceKeyring
}

func (cl *ConfigLoader) environment() map[string]string {
	if cl.environ != nil {
		return cl.environ
	}
	return toMap(os.Environ())
}

func sourceOf(envValue, fileValue string) string {
	switch {
	case strings.TrimSpace(envValue) != "":
		return SourceEnv
	case strings.TrimSpace(fileValue) != "":
		return SourceFile
	default:
		return SourceNone
	}
}

func trimCredentials(cfg *Config) {
	cfg.Azure.TenantID = strings.TrimSpace(cfg.Azure.TenantID)
	cfg.Azure.ClientID = strings.TrimSpace(cfg.Azure.ClientID)
	cfg.Azure.ClientSecret = strings.TrimSpace(cfg.Azure.ClientSecret)
}

// toMap converts "KEY=VALUE" pairs to a map
func toMap(environ []string) map[string]string {
	r := make(map[string]string, len(environ))
	for _, e := range environ {
		if k, v, ok := strings.Cut(e, "="); ok {
			r[k] = v
		}
	}
	return r
}

// getDefaultSearchPaths returns config file candidates, working directory first
func getDefaultSearchPaths(fs FileSystem) []string {
	var paths []string
	names := []string{"appsettings.json", "appsettings.yaml", "appsettings.yml"}

	if cwd, err := fs.Getwd(); err == nil {
		for _, n := range names {
			paths = append(paths, filepath.Join(cwd, n))
		}
	}
	if configDir, err := fs.UserConfigDir(); err == nil {
		dir := filepath.Join(configDir, "azure-status-web")
		for _, n := range names {
			paths = append(paths, filepath.Join(dir, n))
		}
	}
	if home, err := fs.UserHomeDir(); err == nil {
		dir := filepath.Join(home, ".azure-status-web")
		for _, n := range names {
			paths = append(paths, filepath.Join(dir, n))
		}
	}
	return paths
}
