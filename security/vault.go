package security

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ohjayaxel/syncengine/core"
)

const (
	wireNonceSize = 12
	wireTagSize   = 16
)

type Option func(*TokenVault)

// TokenVault decrypts provider token blobs with AES-256-GCM. The wire layout
// is nonce(12) || tag(16) || body; Open wants nonce and body||tag, so the
// blob is reassembled before decryption. Legacy rows arrive hex, base64, or
// JSON-Buffer encoded and are normalized first.
type TokenVault struct {
	key     []byte
	keyID   string
	version int
}

func WithKeyID(id string) Option {
	return func(vault *TokenVault) {
		trimmed := strings.TrimSpace(id)
		if trimmed != "" {
			vault.keyID = trimmed
		}
	}
}

func WithVersion(version int) Option {
	return func(vault *TokenVault) {
		if version > 0 {
			vault.version = version
		}
	}
}

func NewTokenVault(keyMaterial []byte, opts ...Option) (*TokenVault, error) {
	key := bytes.TrimSpace(keyMaterial)
	if len(key) == 0 {
		return nil, fmt.Errorf("security: key material is required")
	}
	vault := &TokenVault{
		key:     normalizeKey(key),
		keyID:   "app-key",
		version: 1,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(vault)
	}
	return vault, nil
}

func NewTokenVaultFromString(key string, opts ...Option) (*TokenVault, error) {
	return NewTokenVault([]byte(key), opts...)
}

func (v *TokenVault) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("security: token vault is nil")
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("security: plaintext is required")
	}
	gcm, err := v.cipher()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, wireNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("security: nonce generation failed: %w", err)
	}

	// Seal returns body||tag; the wire format carries the tag up front.
	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	body := sealed[:len(sealed)-wireTagSize]
	tag := sealed[len(sealed)-wireTagSize:]

	blob := make([]byte, 0, wireNonceSize+wireTagSize+len(body))
	blob = append(blob, nonce...)
	blob = append(blob, tag...)
	blob = append(blob, body...)
	return blob, nil
}

func (v *TokenVault) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("security: token vault is nil")
	}
	blob, err := NormalizeWire(ciphertext)
	if err != nil {
		return nil, decryptionFailed(ciphertext, err)
	}
	if len(blob) <= wireNonceSize+wireTagSize {
		return nil, decryptionFailed(ciphertext, fmt.Errorf("security: blob too short: %d bytes", len(blob)))
	}

	gcm, err := v.cipher()
	if err != nil {
		return nil, err
	}

	nonce := blob[:wireNonceSize]
	tag := blob[wireNonceSize : wireNonceSize+wireTagSize]
	body := blob[wireNonceSize+wireTagSize:]

	sealed := make([]byte, 0, len(body)+wireTagSize)
	sealed = append(sealed, body...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, decryptionFailed(ciphertext, err)
	}
	return plaintext, nil
}

func (v *TokenVault) cipher() (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, fmt.Errorf("security: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, wireNonceSize)
	if err != nil {
		return nil, fmt.Errorf("security: create gcm: %w", err)
	}
	return gcm, nil
}

func (v *TokenVault) KeyID() string {
	if v == nil {
		return ""
	}
	return v.keyID
}

func (v *TokenVault) Version() int {
	if v == nil {
		return 0
	}
	return v.version
}

func (v *TokenVault) Metadata() (string, int) {
	return v.KeyID(), v.Version()
}

// decryptionFailed maps every decryption failure to the actionable reconnect
// error. Only the blob fingerprint is included; never key or token material.
func decryptionFailed(ciphertext []byte, cause error) error {
	return core.ReauthError(fmt.Sprintf(
		"token decryption failed (blob %s), re-authenticate this connection: %v",
		Fingerprint(ciphertext), cause,
	))
}

// Fingerprint derives a short public correlation value from a blob. Safe to
// log: it reveals nothing about the key or the plaintext.
func Fingerprint(blob []byte) string {
	if len(blob) == 0 {
		return "empty"
	}
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:4])
}

// jsonBuffer matches the serialized Node Buffer shape {"type":"Buffer",
// "data":[...]} that older rows carry.
type jsonBuffer struct {
	Type string `json:"type"`
	Data []int  `json:"data"`
}

// NormalizeWire collapses the accepted legacy encodings to raw blob bytes:
// JSON Buffer wrappers, hex, base64, and raw bytes.
func NormalizeWire(blob []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(blob)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("security: ciphertext is required")
	}

	if trimmed[0] == '{' {
		var wrapper jsonBuffer
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, fmt.Errorf("security: decode json wrapper: %w", err)
		}
		if len(wrapper.Data) == 0 {
			return nil, fmt.Errorf("security: json wrapper has no data")
		}
		out := make([]byte, len(wrapper.Data))
		for i, value := range wrapper.Data {
			if value < 0 || value > 255 {
				return nil, fmt.Errorf("security: json wrapper byte out of range: %d", value)
			}
			out[i] = byte(value)
		}
		return out, nil
	}

	if isHexString(trimmed) {
		decoded, err := hex.DecodeString(string(trimmed))
		if err == nil {
			return decoded, nil
		}
	}

	if decoded, err := base64.StdEncoding.DecodeString(string(trimmed)); err == nil && len(decoded) > wireNonceSize+wireTagSize {
		return decoded, nil
	}
	if decoded, err := base64.RawStdEncoding.DecodeString(string(trimmed)); err == nil && len(decoded) > wireNonceSize+wireTagSize {
		return decoded, nil
	}

	return trimmed, nil
}

func isHexString(value []byte) bool {
	if len(value)%2 != 0 || len(value) < 2*(wireNonceSize+wireTagSize) {
		return false
	}
	for _, c := range value {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

func normalizeKey(value []byte) []byte {
	if len(value) == 16 || len(value) == 24 || len(value) == 32 {
		key := make([]byte, len(value))
		copy(key, value)
		return key
	}
	sum := sha256.Sum256(value)
	key := make([]byte, len(sum))
	copy(key, sum[:])
	return key
}

var _ core.SecretProvider = (*TokenVault)(nil)
