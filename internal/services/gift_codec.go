package services

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"gift-backend/internal/errs"
	"gift-backend/internal/models"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"
)

// TokenPrefix versions the claim token format
const TokenPrefix = "gift1."

// GiftCodec turns a GiftRecord into an opaque claim token and back.
// Tokens are authenticated and encrypted; encoding is deterministic.
type GiftCodec struct {
	aeadKey  []byte
	nonceKey []byte
}

// NewGiftCodec derives the encryption and nonce keys from one secret
func NewGiftCodec(secret string) (*GiftCodec, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("codec secret must be at least 16 characters")
	}
	aeadKey := sha256.Sum256([]byte("gift-codec/aead/" + secret))
	nonceKey := sha256.Sum256([]byte("gift-codec/nonce/" + secret))
	return &GiftCodec{aeadKey: aeadKey[:], nonceKey: nonceKey[:]}, nil
}

// Encode never mutates the record.
func (c *GiftCodec) Encode(record *models.GiftRecord) (string, error) {
	if record == nil || record.CommitmentHash == "" {
		return "", fmt.Errorf("%w: record has no commitment hash", errs.ErrInvalidRequest)
	}
	if !record.Status.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", errs.ErrInvalidRequest, record.Status)
	}

	plaintext, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to marshal gift record: %w", err)
	}

	aead, err := chacha20poly1305.NewX(c.aeadKey)
	if err != nil {
		return "", fmt.Errorf("failed to init cipher: %w", err)
	}

	nonceHash, err := blake2b.New(chacha20poly1305.NonceSizeX, c.nonceKey)
	if err != nil {
		return "", fmt.Errorf("failed to init nonce hash: %w", err)
	}
	nonceHash.Write(plaintext)
	nonce := nonceHash.Sum(nil)

	sealed := aead.Seal(nonce, nonce, plaintext, []byte(TokenPrefix))
	return TokenPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decode fails with errs.ErrCorruptToken on any malformed, truncated or tampered token.
func (c *GiftCodec) Decode(token string) (*models.GiftRecord, error) {
	payload, ok := strings.CutPrefix(strings.TrimSpace(token), TokenPrefix)
	if !ok {
		return nil, corrupt("unknown token format")
	}

	sealed, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return nil, corrupt("token is not valid base64url")
	}

	aead, err := chacha20poly1305.NewX(c.aeadKey)
	if err != nil {
		return nil, fmt.Errorf("failed to init cipher: %w", err)
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, corrupt("token is truncated")
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(TokenPrefix))
	if err != nil {
		return nil, corrupt("token failed authentication")
	}

	var record models.GiftRecord
	if err := json.Unmarshal(plaintext, &record); err != nil {
		return nil, corrupt("token payload is not a gift record")
	}
	if record.CommitmentHash == "" || !record.Status.Valid() {
		return nil, corrupt("token payload is incomplete")
	}
	return &record, nil
}

func corrupt(reason string) error {
	return fmt.Errorf("%w: %s", errs.ErrCorruptToken, reason)
}
