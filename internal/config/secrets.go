// Package config loads a JSON/YAML/TOML config file, layers CLI
// overrides on top, and validates the result. It also owns the encrypted
// credentials file: embedding-provider API keys never sit in the plain
// config file, they live in a sealed sidecar the CLI decrypts at startup
// with a master passphrase.
package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
)

// Sealed blob layout: magic(4) || version(1) || keyID(8) || nonce(12) || ciphertext.
// keyID is a hash of the sealing key, so opening with the wrong master
// passphrase reports "wrong key" instead of a bare AEAD failure.
const (
	boxMagic   = "EGSB"
	boxVersion = 0x01
	nonceLen   = 12
	keyIDLen   = 8
)

var (
	// ErrWrongKey means the blob was sealed with a different master key.
	ErrWrongKey = errors.New("sealed with a different master key")

	// ErrMalformedBlob means the blob is truncated or not a sealed secret.
	ErrMalformedBlob = errors.New("malformed secret blob")

	// ErrBlobVersion means the blob uses a format this build cannot read.
	ErrBlobVersion = errors.New("unsupported secret blob version")

	// ErrTampered means the ciphertext failed authentication.
	ErrTampered = errors.New("secret blob failed authentication")
)

// DeriveKey stretches the operator-supplied master passphrase into the
// 32-byte AES key. The fixed prefix domain-separates it from any other
// sha256 use of the same passphrase.
func DeriveKey(passphrase string) []byte {
	sum := sha256.Sum256([]byte("entropyguard.secretbox.v1:" + passphrase))
	return sum[:]
}

// SecretBox seals and opens small secrets with AES-256-GCM.
type SecretBox struct {
	aead  cipher.AEAD
	keyID [keyIDLen]byte
}

// NewSecretBox builds a SecretBox from a 32-byte key (see DeriveKey).
func NewSecretBox(key []byte) (*SecretBox, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("secret box key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secret box: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secret box: %w", err)
	}
	box := &SecretBox{aead: aead}
	binary.BigEndian.PutUint64(box.keyID[:], xxhash.Sum64(key))
	return box, nil
}

// Seal encrypts value (JSON-marshaled) into a self-describing blob.
func (b *SecretBox) Seal(value any) ([]byte, error) {
	plaintext, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("seal: marshal: %w", err)
	}
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("seal: nonce: %w", err)
	}

	blob := make([]byte, 0, len(boxMagic)+1+keyIDLen+nonceLen+len(plaintext)+b.aead.Overhead())
	blob = append(blob, boxMagic...)
	blob = append(blob, boxVersion)
	blob = append(blob, b.keyID[:]...)
	blob = append(blob, nonce...)
	return b.aead.Seal(blob, nonce, plaintext, blob[:len(blob)-nonceLen]), nil
}

// Open authenticates and decrypts a blob produced by Seal, unmarshaling
// the plaintext into value (a pointer).
func (b *SecretBox) Open(blob []byte, value any) error {
	header := len(boxMagic) + 1 + keyIDLen
	if len(blob) < header+nonceLen+b.aead.Overhead() {
		return ErrMalformedBlob
	}
	if string(blob[:len(boxMagic)]) != boxMagic {
		return ErrMalformedBlob
	}
	if blob[len(boxMagic)] != boxVersion {
		return fmt.Errorf("%w: version %d", ErrBlobVersion, blob[len(boxMagic)])
	}
	if !bytesEqual(blob[len(boxMagic)+1:header], b.keyID[:]) {
		return ErrWrongKey
	}

	nonce := blob[header : header+nonceLen]
	plaintext, err := b.aead.Open(nil, nonce, blob[header+nonceLen:], blob[:header])
	if err != nil {
		return ErrTampered
	}
	if err := json.Unmarshal(plaintext, value); err != nil {
		return fmt.Errorf("open: unmarshal: %w", err)
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := range a {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}

// Credentials is what the encrypted sidecar file holds: everything the
// pipeline needs to talk to external services, kept out of the plain
// config file and out of shell history.
type Credentials struct {
	EmbeddingAPIKey  string `json:"embedding_api_key"`
	EmbeddingBaseURL string `json:"embedding_base_url,omitempty"`
	TelemetrySecret  string `json:"telemetry_secret,omitempty"`
}

// SaveCredentials seals creds with key and writes them base64-encoded to
// path with owner-only permissions.
func SaveCredentials(path string, key []byte, creds Credentials) error {
	box, err := NewSecretBox(key)
	if err != nil {
		return err
	}
	blob, err := box.Seal(creds)
	if err != nil {
		return err
	}
	encoded := base64.StdEncoding.EncodeToString(blob)
	if err := os.WriteFile(path, []byte(encoded+"\n"), 0o600); err != nil {
		return fmt.Errorf("write credentials file: %w", err)
	}
	return nil
}

// LoadCredentials reads and opens a credentials file written by
// SaveCredentials.
func LoadCredentials(path string, key []byte) (Credentials, error) {
	box, err := NewSecretBox(key)
	if err != nil {
		return Credentials{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("read credentials file: %w", err)
	}
	blob, err := base64.StdEncoding.DecodeString(string(trimSpaceBytes(data)))
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: not base64", ErrMalformedBlob)
	}
	var creds Credentials
	if err := box.Open(blob, &creds); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

func trimSpaceBytes(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && (b[start] == ' ' || b[start] == '\n' || b[start] == '\r' || b[start] == '\t') {
		start++
	}
	for end > start && (b[end-1] == ' ' || b[end-1] == '\n' || b[end-1] == '\r' || b[end-1] == '\t') {
		end--
	}
	return b[start:end]
}
