package config

import (
	"testing"
)

func TestKeyringEntryInfo_Namespaced(t *testing.T) {
	service, key := KeyringEntryInfo()
	if service != "azure-status-web-tests" {
		t.Errorf("Expected namespaced service, got %q", service)
	}
	if key != "client-secret" {
		t.Errorf("Unexpected key %q", key)
	}
}

func TestKeyringEntryInfo_ServiceOverride(t *testing.T) {
	t.Setenv("AZSTATUS_KEYRING_SERVICE", "custom-service")
	if service, _ := KeyringEntryInfo(); service != "custom-service" {
		t.Errorf("Expected override, got %q", service)
	}
}

func TestClientSecret_RoundTrip(t *testing.T) {
	t.Cleanup(func() { _ = DeleteClientSecret() })

	got, err := LoadClientSecret()
	if err != nil || got != "" {
		t.Fatalf("Expected empty secret before save, got %q (%v)", got, err)
	}
	if err := SaveClientSecret("  s3cr3t  "); err != nil {
		t.Fatalf("SaveClientSecret failed: %v", err)
	}
	got, err = LoadClientSecret()
	if err != nil {
		t.Fatalf("LoadClientSecret failed: %v", err)
	}
	if got != "s3cr3t" {
		t.Errorf("Expected trimmed secret, got %q", got)
	}
	if err := DeleteClientSecret(); err != nil {
		t.Fatalf("DeleteClientSecret failed: %v", err)
	}
	if err := DeleteClientSecret(); err != nil {
		t.Errorf("Deleting twice should not fail, got %v", err)
	}
}

func TestSaveClientSecret_RejectsEmpty(t *testing.T) {
	if err := SaveClientSecret("   "); err == nil {
		t.Fatal("Expected error for empty secret")
	}
}
