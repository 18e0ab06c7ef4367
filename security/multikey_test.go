package security

import (
	"context"
	"testing"
)

func TestMultiKeyVault_DecryptsWithRetiredKey(t *testing.T) {
	oldVault, err := NewTokenVaultFromString("retired-key")
	if err != nil {
		t.Fatalf("old vault: %v", err)
	}
	blob, err := oldVault.Encrypt(context.Background(), []byte("legacy-token"))
	if err != nil {
		t.Fatalf("encrypt with retired key: %v", err)
	}

	var events []VaultDiagnostic
	multi, err := NewMultiKeyVault(
		[]string{"active-key", "retired-key"},
		WithVaultDiagnostics(func(event VaultDiagnostic) { events = append(events, event) }),
	)
	if err != nil {
		t.Fatalf("new multi-key vault: %v", err)
	}

	plaintext, err := multi.Decrypt(context.Background(), blob)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if string(plaintext) != "legacy-token" {
		t.Fatalf("expected legacy plaintext, got %q", plaintext)
	}

	sawRetiredSuccess := false
	for _, event := range events {
		if event.Outcome == "retired_key_succeeded" {
			sawRetiredSuccess = true
			if event.Blob == "" {
				t.Fatalf("expected blob fingerprint in diagnostic")
			}
		}
	}
	if !sawRetiredSuccess {
		t.Fatalf("expected retired key success diagnostic, got %v", events)
	}
}

func TestMultiKeyVault_EncryptUsesActiveKey(t *testing.T) {
	multi, err := NewMultiKeyVault([]string{"active-key", "retired-key"})
	if err != nil {
		t.Fatalf("new multi-key vault: %v", err)
	}
	blob, err := multi.Encrypt(context.Background(), []byte("fresh-token"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	active, _ := NewTokenVaultFromString("active-key")
	plaintext, err := active.Decrypt(context.Background(), blob)
	if err != nil {
		t.Fatalf("expected active key to decrypt, got %v", err)
	}
	if string(plaintext) != "fresh-token" {
		t.Fatalf("expected round trip via active key, got %q", plaintext)
	}
}

func TestMultiKeyVault_AllKeysFail(t *testing.T) {
	stranger, _ := NewTokenVaultFromString("unknown-key")
	blob, _ := stranger.Encrypt(context.Background(), []byte("secret"))

	multi, err := NewMultiKeyVault([]string{"active-key", "retired-key"})
	if err != nil {
		t.Fatalf("new multi-key vault: %v", err)
	}
	if _, err := multi.Decrypt(context.Background(), blob); err == nil {
		t.Fatalf("expected failure when no key matches")
	}
}

func TestMultiKeyVault_RequiresKeys(t *testing.T) {
	if _, err := NewMultiKeyVault(nil); err == nil {
		t.Fatalf("expected error for empty key list")
	}
	if _, err := NewMultiKeyVault([]string{"  ", ""}); err == nil {
		t.Fatalf("expected error for blank keys")
	}
}

func TestMultiKeyVault_MetadataReportsActiveKey(t *testing.T) {
	multi, err := NewMultiKeyVault([]string{"active-key", "retired-key"})
	if err != nil {
		t.Fatalf("new multi-key vault: %v", err)
	}
	keyID, version := multi.Metadata()
	if keyID != "app-key-1" || version != 1 {
		t.Fatalf("expected active key metadata, got %s v%d", keyID, version)
	}
}
