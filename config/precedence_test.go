package config

import (
	"testing"
)

func TestPrecedence_EnvBeatsFileForCredentials(t *testing.T) {
	cl, fs := newLoader(t, map[string]string{
		"AZURE_TENANT_ID":     "env-tenant",
		"AZURE_CLIENT_SECRET": "env-secret",
	})
	fs.AddFile("/work/appsettings.json", []byte(jsonSettings))

	cfg, err := cl.LoadWithArgs(nil)
	if err != nil {
		t.Fatalf("LoadWithArgs failed: %v", err)
	}
	if cfg.Azure.TenantID != "env-tenant" {
		t.Errorf("Expected env tenant, got %q", cfg.Azure.TenantID)
	}
	if cfg.Azure.ClientID != "file-client" {
		t.Errorf("Expected file client id to fill the gap, got %q", cfg.Azure.ClientID)
	}
	if cfg.Azure.ClientSecret != "env-secret" {
		t.Errorf("Expected env secret, got %q", cfg.Azure.ClientSecret)
	}
	want := CredentialSources{TenantID: SourceEnv, ClientID: SourceFile, ClientSecret: SourceEnv}
	if cfg.Sources != want {
		t.Errorf("Expected sources %+v, got %+v", want, cfg.Sources)
	}
}

func TestPrecedence_EmptyEnvDoesNotOverrideFile(t *testing.T) {
	cl, fs := newLoader(t, map[string]string{"AZURE_TENANT_ID": ""})
	fs.AddFile("/work/appsettings.json", []byte(jsonSettings))

	cfg, err := cl.LoadWithArgs(nil)
	if err != nil {
		t.Fatalf("LoadWithArgs failed: %v", err)
	}
	if cfg.Azure.TenantID != "file-tenant" || cfg.Sources.TenantID != SourceFile {
		t.Errorf("Expected file tenant, got %q from %q", cfg.Azure.TenantID, cfg.Sources.TenantID)
	}
}

func TestPrecedence_KeyringFillsMissingSecret(t *testing.T) {
	cl, fs := newLoader(t, map[string]string{"AZSTATUS_USE_KEYRING": "true"})
	fs.AddFile("/work/appsettings.yaml", []byte(yamlSettings))
	if err := SaveClientSecret("ring-secret"); err != nil {
		t.Fatalf("SaveClientSecret failed: %v", err)
	}

	cfg, err := cl.LoadWithArgs(nil)
	if err != nil {
		t.Fatalf("LoadWithArgs failed: %v", err)
	}
	if cfg.Azure.ClientSecret != "ring-secret" || cfg.Sources.ClientSecret != SourceKeyring {
		t.Errorf("Expected keyring secret, got %q from %q", cfg.Azure.ClientSecret, cfg.Sources.ClientSecret)
	}
	if !cfg.HasCredentials() {
		t.Error("Expected complete credentials")
	}
}

func TestPrecedence_KeyringNeverOverridesFileOrEnv(t *testing.T) {
	t.Run("file", func(t *testing.T) {
		cl, fs := newLoader(t, map[string]string{"AZSTATUS_USE_KEYRING": "true"})
		fs.AddFile("/work/appsettings.json", []byte(jsonSettings))
		_ = SaveClientSecret("ring-secret")
		cfg, err := cl.LoadWithArgs(nil)
		if err != nil {
			t.Fatalf("LoadWithArgs failed: %v", err)
		}
		if cfg.Azure.ClientSecret != "file-secret" {
			t.Errorf("Expected file secret, got %q", cfg.Azure.ClientSecret)
		}
	})

	t.Run("env", func(t *testing.T) {
		cl, _ := newLoader(t, map[string]string{"AZURE_CLIENT_SECRET": "env-secret", "AZSTATUS_USE_KEYRING": "true"})
		_ = SaveClientSecret("ring-secret")
		cfg, err := cl.LoadWithArgs(nil)
		if err != nil {
			t.Fatalf("LoadWithArgs failed: %v", err)
		}
		if cfg.Azure.ClientSecret != "env-secret" {
			t.Errorf("Expected env secret, got %q", cfg.Azure.ClientSecret)
		}
	})
}

func TestPrecedence_KeyringIsOffByDefault(t *testing.T) {
	cl, _ := newLoader(t, map[string]string{"AZURE_TENANT_ID": "t1", "AZURE_CLIENT_ID": "c1"})
	if err := SaveClientSecret("ring-secret"); err != nil {
		t.Fatalf("SaveClientSecret failed: %v", err)
	}

	cfg, err := cl.LoadWithArgs(nil)
	if err != nil {
		t.Fatalf("LoadWithArgs failed: %v", err)
	}
	if cfg.Azure.UseKeyring {
		t.Error("Expected keyring lookup to be off")
	}
	if cfg.Azure.ClientSecret != "" || cfg.Sources.ClientSecret != SourceNone {
		t.Errorf("Expected keyring to be skipped, got %q from %q", cfg.Azure.ClientSecret, cfg.Sources.ClientSecret)
	}
	if cfg.HasCredentials() {
		t.Error("A missing secret must leave the credentials incomplete")
	}
}

func TestPrecedence_KeyringOptInFromFile(t *testing.T) {
	cl, fs := newLoader(t, map[string]string{"AZURE_TENANT_ID": "t1", "AZURE_CLIENT_ID": "c1"})
	fs.AddFile("/work/appsettings.json", []byte(`{"Azure": {"UseKeyring": true}}`))
	if err := SaveClientSecret("ring-secret"); err != nil {
		t.Fatalf("SaveClientSecret failed: %v", err)
	}

	cfg, err := cl.LoadWithArgs(nil)
	if err != nil {
		t.Fatalf("LoadWithArgs failed: %v", err)
	}
	if cfg.Azure.ClientSecret != "ring-secret" || !cfg.HasCredentials() {
		t.Errorf("Expected keyring secret after opt-in, got %q", cfg.Azure.ClientSecret)
	}
}

func TestPrecedence_KeyringOptInCanBeOverriddenByEnv(t *testing.T) {
	cl, fs := newLoader(t, map[string]string{"AZSTATUS_USE_KEYRING": "false"})
	fs.AddFile("/work/appsettings.json", []byte(`{"Azure": {"UseKeyring": true}}`))
	if err := SaveClientSecret("ring-secret"); err != nil {
		t.Fatalf("SaveClientSecret failed: %v", err)
	}

	cfg, err := cl.LoadWithArgs(nil)
	if err != nil {
		t.Fatalf("LoadWithArgs failed: %v", err)
	}
	if cfg.Azure.ClientSecret != "" {
		t.Errorf("Expected keyring to be skipped, got %q", cfg.Azure.ClientSecret)
	}
}

func TestPrecedence_FlagsBeatEnvAndFile(t *testing.T) {
	cl, fs := newLoader(t, map[string]string{
		"AZSTATUS_ADDR":      ":7000",
		"AZSTATUS_LOG_LEVEL": "WARN",
	})
	fs.AddFile("/work/appsettings.json", []byte(jsonSettings))

	cfg, err := cl.LoadWithArgs(nil)
	if err != nil {
		t.Fatalf("LoadWithArgs failed: %v", err)
	}
	if cfg.Server.Address != ":7000" || cfg.Logging.Level != "WARN" {
		t.Errorf("Expected env to beat file, got %q %q", cfg.Server.Address, cfg.Logging.Level)
	}

	cfg, err = cl.LoadWithArgs([]string{"--addr", ":6000", "--log-level=ERROR"})
	if err != nil {
		t.Fatalf("LoadWithArgs failed: %v", err)
	}
	if cfg.Server.Address != ":6000" || cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected flags to win, got %q %q", cfg.Server.Address, cfg.Logging.Level)
	}
}

func TestPrecedence_EnvOverridesDebugAndEndpoints(t *testing.T) {
	cl, _ := newLoader(t, map[string]string{
		"AZURE_MANAGEMENT_ENDPOINT":  "https://management.usgovcloudapi.net/",
		"AZURE_AUTHORITY_HOST":       "https://login.microsoftonline.us/",
		"AZSTATUS_ARM_RAW_ENABLE":    "true",
		"AZSTATUS_ARM_RAW_MAX_BYTES": "2048",
	})

	cfg, err := cl.LoadWithArgs(nil)
	if err != nil {
		t.Fatalf("LoadWithArgs failed: %v", err)
	}
	if cfg.Azure.ManagementEndpoint != "https://management.usgovcloudapi.net/" {
		t.Errorf("Unexpected endpoint %q", cfg.Azure.ManagementEndpoint)
	}
	if cfg.Azure.AuthorityHost != "https://login.microsoftonline.us/" {
		t.Errorf("Unexpected authority %q", cfg.Azure.AuthorityHost)
	}
	if !cfg.Debug.ArmRawEnable || cfg.Debug.ArmRawMaxBytes != 2048 {
		t.Errorf("Unexpected debug config %+v", cfg.Debug)
	}
}

func TestPrecedence_CredentialsAreTrimmed(t *testing.T) {
	cl, _ := newLoader(t, map[string]string{
		"AZURE_TENANT_ID":     "  t1 ",
		"AZURE_CLIENT_ID":     "c1\n",
		"AZURE_CLIENT_SECRET": "\ts1",
	})
	cfg, err := cl.LoadWithArgs(nil)
	if err != nil {
		t.Fatalf("LoadWithArgs failed: %v", err)
	}
	if cfg.Azure.TenantID != "t1" || cfg.Azure.ClientID != "c1" || cfg.Azure.ClientSecret != "s1" {
		t.Errorf("Expected trimmed credentials, got %+v", cfg.Azure)
	}
}
