package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ohjayaxel/syncengine/core"
)

type VaultDiagnostic struct {
	OccurredAt time.Time
	Operation  string
	Outcome    string
	KeyID      string
	Blob       string
	Error      string
}

type VaultDiagnosticHook func(event VaultDiagnostic)

type MultiKeyOption func(*MultiKeyVault)

// MultiKeyVault decrypts against an ordered key ring: the active key first,
// then retired keys that still cover older rows. Encrypt always uses the
// active key. Exists because key rotation mismatch is the most common
// operational failure mode behind "re-authenticate" errors.
type MultiKeyVault struct {
	vaults         []*TokenVault
	diagnosticHook VaultDiagnosticHook
	now            func() time.Time
}

func WithVaultDiagnostics(hook VaultDiagnosticHook) MultiKeyOption {
	return func(v *MultiKeyVault) {
		if v == nil {
			return
		}
		v.diagnosticHook = hook
	}
}

func WithVaultClock(now func() time.Time) MultiKeyOption {
	return func(v *MultiKeyVault) {
		if v == nil || now == nil {
			return
		}
		v.now = now
	}
}

func NewMultiKeyVault(keys []string, opts ...MultiKeyOption) (*MultiKeyVault, error) {
	trimmed := make([]string, 0, len(keys))
	for _, key := range keys {
		if value := strings.TrimSpace(key); value != "" {
			trimmed = append(trimmed, value)
		}
	}
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("security: at least one encryption key is required")
	}

	vaults := make([]*TokenVault, 0, len(trimmed))
	for i, key := range trimmed {
		vault, err := NewTokenVaultFromString(key,
			WithKeyID(fmt.Sprintf("app-key-%d", i+1)),
			WithVersion(i+1),
		)
		if err != nil {
			return nil, err
		}
		vaults = append(vaults, vault)
	}

	multi := &MultiKeyVault{
		vaults: vaults,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(multi)
	}
	return multi, nil
}

func (v *MultiKeyVault) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	if v == nil || len(v.vaults) == 0 {
		return nil, fmt.Errorf("security: multi-key vault is not configured")
	}
	blob, err := v.vaults[0].Encrypt(ctx, plaintext)
	if err != nil {
		v.emit("encrypt", "active_key_failed", v.vaults[0].KeyID(), nil, err)
		return nil, err
	}
	return blob, nil
}

func (v *MultiKeyVault) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if v == nil || len(v.vaults) == 0 {
		return nil, fmt.Errorf("security: multi-key vault is not configured")
	}
	var lastErr error
	for _, vault := range v.vaults {
		plaintext, err := vault.Decrypt(ctx, ciphertext)
		if err == nil {
			if vault != v.vaults[0] {
				v.emit("decrypt", "retired_key_succeeded", vault.KeyID(), ciphertext, nil)
			}
			return plaintext, nil
		}
		lastErr = err
		v.emit("decrypt", "key_failed", vault.KeyID(), ciphertext, err)
	}
	return nil, lastErr
}

func (v *MultiKeyVault) Metadata() (string, int) {
	if v == nil || len(v.vaults) == 0 {
		return "", 0
	}
	return v.vaults[0].Metadata()
}

func (v *MultiKeyVault) emit(operation string, outcome string, keyID string, blob []byte, err error) {
	if v == nil || v.diagnosticHook == nil {
		return
	}
	now := v.now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	fingerprint := ""
	if len(blob) > 0 {
		fingerprint = Fingerprint(blob)
	}
	v.diagnosticHook(VaultDiagnostic{
		OccurredAt: now().UTC(),
		Operation:  operation,
		Outcome:    outcome,
		KeyID:      keyID,
		Blob:       fingerprint,
		Error:      msg,
	})
}

var _ core.SecretProvider = (*MultiKeyVault)(nil)
