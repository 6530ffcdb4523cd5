package config

// Application configuration

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Defaults
const (
	DefaultAddress            = ":8080"
	DefaultManagementEndpoint = "https://management.azure.com/"
	DefaultTokenBackend       = "azidentity"
	DefaultLogLevel           = "INFO"
	DefaultArmRawMaxBytes     = 64 * 1024
)

// Credential sources, in priority order
const (
	SourceEnv     = "env"
	SourceFile    = "file"
	SourceKeyring = "keyring"
	SourceNone    = ""
)

// AzureConfig is the "Azure" section. Credential fields are read from the
// environment first, then the config file. With UseKeyring set, a secret
// missing from both is read from the OS keyring.
type AzureConfig struct {
	TenantID           string `json:"TenantId" yaml:"TenantId" env:"AZURE_TENANT_ID"`
	ClientID           string `json:"ClientId" yaml:"ClientId" env:"AZURE_CLIENT_ID"`
	ClientSecret       string `json:"ClientSecret" yaml:"ClientSecret" env:"AZURE_CLIENT_SECRET"`
	TokenBackend       string `json:"TokenBackend" yaml:"TokenBackend" env:"AZURE_TOKEN_BACKEND"`
	AuthorityHost      string `json:"AuthorityHost" yaml:"AuthorityHost" env:"AZURE_AUTHORITY_HOST"`
	TokenEndpoint      string `json:"TokenEndpoint" yaml:"TokenEndpoint" env:"AZURE_TOKEN_ENDPOINT"`
	ManagementEndpoint string `json:"ManagementEndpoint" yaml:"ManagementEndpoint" env:"AZURE_MANAGEMENT_ENDPOINT"`
	UseKeyring         bool   `json:"UseKeyring" yaml:"UseKeyring" env:"AZSTATUS_USE_KEYRING"`
}

// ServerConfig is the "Server" section
type ServerConfig struct {
	Address string `json:"Address" yaml:"Address" env:"AZSTATUS_ADDR"`
}

// LoggingConfig is the "Logging" section
type LoggingConfig struct {
	Level string `json:"Level" yaml:"Level" env:"AZSTATUS_LOG_LEVEL"`
}

// DebugConfig is the "Debug" section. Raw capture writes management API
// exchanges to a YAML file with secrets redacted.
type DebugConfig struct {
	ArmRawEnable   bool   `json:"ArmRawEnable" yaml:"ArmRawEnable" env:"AZSTATUS_ARM_RAW_ENABLE"`
	ArmRawFile     string `json:"ArmRawFile" yaml:"ArmRawFile" env:"AZSTATUS_ARM_RAW_FILE"`
	ArmRawMaxBytes int    `json:"ArmRawMaxBytes" yaml:"ArmRawMaxBytes" env:"AZSTATUS_ARM_RAW_MAX_BYTES"`
}

// CredentialSources records where each credential value came from
type CredentialSources struct {
	TenantID     string
	ClientID     string
	ClientSecret string
}

// Config holds application settings
type Config struct {
	Azure   AzureConfig   `json:"Azure" yaml:"Azure"`
	Server  ServerConfig  `json:"Server" yaml:"Server"`
	Logging LoggingConfig `json:"Logging" yaml:"Logging"`
	Debug   DebugConfig   `json:"Debug" yaml:"Debug"`

	// Sources is filled by the loader and never serialized
	Sources CredentialSources `json:"-" yaml:"-"`
	// File is the config file that was read, if any
	File string `json:"-" yaml:"-"`
}

// NewConfig returns a Config with defaults applied
func NewConfig() Config {
	return Config{
		Azure: AzureConfig{
			TokenBackend:       DefaultTokenBackend,
			ManagementEndpoint: DefaultManagementEndpoint,
		},
		Server:  ServerConfig{Address: DefaultAddress},
		Logging: LoggingConfig{Level: DefaultLogLevel},
		Debug:   DebugConfig{ArmRawMaxBytes: DefaultArmRawMaxBytes},
	}
}

// HasCredentials reports whether all three credential values are present
func (c Config) HasCredentials() bool {
	return strings.TrimSpace(c.Azure.TenantID) != "" &&
		strings.TrimSpace(c.Azure.ClientID) != "" &&
		strings.TrimSpace(c.Azure.ClientSecret) != ""
}

// Validate checks settings that would otherwise fail late. Missing
// credentials are not an error: the app runs unauthenticated.
func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Server.Address) == "" {
		problems = append(problems, "Server:Address cannot be empty")
	}
	switch strings.ToLower(strings.TrimSpace(c.Azure.TokenBackend)) {
	case "", "azidentity", "oauth2":
	default:
		problems = append(problems, fmt.Sprintf("Azure:TokenBackend must be azidentity or oauth2, got %q", c.Azure.TokenBackend))
	}
	for name, raw := range map[string]string{
		"Azure:ManagementEndpoint": c.Azure.ManagementEndpoint,
		"Azure:AuthorityHost":      c.Azure.AuthorityHost,
		"Azure:TokenEndpoint":      c.Azure.TokenEndpoint,
	} {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			problems = append(problems, fmt.Sprintf("%s must be an absolute URL, got %q", name, raw))
		}
	}
	if c.Debug.ArmRawMaxBytes < 0 {
		problems = append(problems, "Debug:ArmRawMaxBytes cannot be negative")
	}
	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
}

// ListAllSettings returns every setting as display strings, secret masked
func (c Config) ListAllSettings() map[string]string {
	return map[string]string{
		"Azure:TenantId":           orNotSet(c.Azure.TenantID),
		"Azure:ClientId":           orNotSet(c.Azure.ClientID),
		"Azure:ClientSecret":       MaskSecret(c.Azure.ClientSecret),
		"Azure:TokenBackend":       orNotSet(c.Azure.TokenBackend),
		"Azure:AuthorityHost":      orNotSet(c.Azure.AuthorityHost),
		"Azure:TokenEndpoint":      orNotSet(c.Azure.TokenEndpoint),
		"Azure:ManagementEndpoint": orNotSet(c.Azure.ManagementEndpoint),
		"Azure:UseKeyring":         fmt.Sprintf("%t", c.Azure.UseKeyring),
		"Server:Address":           orNotSet(c.Server.Address),
		"Logging:Level":            orNotSet(c.Logging.Level),
		"Debug:ArmRawEnable":       fmt.Sprintf("%t", c.Debug.ArmRawEnable),
		"Debug:ArmRawFile":         orNotSet(c.Debug.ArmRawFile),
		"Debug:ArmRawMaxBytes":     fmt.Sprintf("%d", c.Debug.ArmRawMaxBytes),
	}
}

// MaskSecret keeps the first and last four characters of long values
func MaskSecret(v string) string {
	switch {
	case v == "":
		return "(not set)"
	case len(v) > 8:
		return v[:4] + "..." + v[len(v)-4:]
	default:
		return "***"
	}
}

func orNotSet(v string) string {
	if strings.TrimSpace(v) == "" {
		return "(not set)"
	}
	return v
}
