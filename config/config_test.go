package config

import (
	"strings"
	"testing"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	if cfg.Server.Address != ":8080" {
		t.Errorf("Expected default address :8080, got %q", cfg.Server.Address)
	}
	if cfg.Azure.ManagementEndpoint != "https://management.azure.com/" {
		t.Errorf("Unexpected default management endpoint %q", cfg.Azure.ManagementEndpoint)
	}
	if cfg.Azure.TokenBackend != "azidentity" {
		t.Errorf("Expected azidentity backend, got %q", cfg.Azure.TokenBackend)
	}
	if cfg.Azure.UseKeyring {
		t.Error("Expected keyring lookup to be off by default")
	}
	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected INFO log level, got %q", cfg.Logging.Level)
	}
	if cfg.HasCredentials() {
		t.Error("Defaults must not carry credentials")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Defaults should validate, got %v", err)
	}
}

func TestHasCredentials(t *testing.T) {
	cfg := NewConfig()
	cfg.Azure.TenantID = "t1"
	cfg.Azure.ClientID = "c1"
	if cfg.HasCredentials() {
		t.Error("Expected false without a secret")
	}
	cfg.Azure.ClientSecret = "s1"
	if !cfg.HasCredentials() {
		t.Error("Expected true with all three values")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty address", func(c *Config) { c.Server.Address = " " }, "Server:Address"},
		{"unknown backend", func(c *Config) { c.Azure.TokenBackend = "saml" }, "Azure:TokenBackend"},
		{"oauth2 backend", func(c *Config) { c.Azure.TokenBackend = "OAuth2" }, ""},
		{"relative endpoint", func(c *Config) { c.Azure.ManagementEndpoint = "/arm" }, "Azure:ManagementEndpoint"},
		{"bad token endpoint", func(c *Config) { c.Azure.TokenEndpoint = "login" }, "Azure:TokenEndpoint"},
		{"custom authority", func(c *Config) { c.Azure.AuthorityHost = "https://login.microsoftonline.us/" }, ""},
		{"negative raw size", func(c *Config) { c.Debug.ArmRawMaxBytes = -1 }, "Debug:ArmRawMaxBytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestListAllSettings_MasksSecret(t *testing.T) {
	cfg := NewConfig()
	cfg.Azure.TenantID = "t1"
	cfg.Azure.ClientSecret = "abcd1234efgh5678"

	s := cfg.ListAllSettings()
	if s["Azure:ClientSecret"] != "abcd...5678" {
		t.Errorf("Expected masked secret, got %q", s["Azure:ClientSecret"])
	}
	if s["Azure:TenantId"] != "t1" {
		t.Errorf("Expected tenant t1, got %q", s["Azure:TenantId"])
	}
	if s["Azure:ClientId"] != "(not set)" {
		t.Errorf("Expected (not set), got %q", s["Azure:ClientId"])
	}
	for k, v := range s {
		if strings.Contains(v, "1234efgh") {
			t.Errorf("Secret leaked through %s", k)
		}
	}
}

func TestMaskSecret(t *testing.T) {
	cases := map[string]string{
		"":                 "(not set)",
		"short":            "***",
		"exactly8":         "***",
		"0123456789abcdef": "0123...cdef",
	}
	for in, want := range cases {
		if got := MaskSecret(in); got != want {
			t.Errorf("MaskSecret(%q) = %q, want %q", in, got, want)
		}
	}
}
