// Package crypto implements the gateway's sealed parameter-block format:
// AES-256-CBC with a fixed key and IV provisioned by the gateway, PKCS#7
// padding, hex transport encoding.
//
// The fixed IV (no per-message randomness) is a protocol constraint imposed
// by the gateway; re-randomizing it would break interoperability. Nothing
// outside this package should depend on the cipher mode details.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	// ErrNotHex means the ciphertext could not be hex-decoded.
	ErrNotHex = errors.New("ciphertext is not valid hex")
	// ErrBlockAlignment means the decoded ciphertext length is not a
	// multiple of the cipher block size.
	ErrBlockAlignment = errors.New("ciphertext is not block aligned")
	// ErrPadding means padding validation failed after decryption.
	ErrPadding = errors.New("invalid padding")
)

// EnvelopeError wraps a seal/open failure. Partially decrypted bytes are
// never returned alongside one.
type EnvelopeError struct {
	Op  string
	Err error
}

func (e *EnvelopeError) Error() string {
	return fmt.Sprintf("envelope %s: %v", e.Op, e.Err)
}

func (e *EnvelopeError) Unwrap() error { return e.Err }

// EnvelopeService seals and opens gateway payloads.
type EnvelopeService interface {
	Seal(plaintext []byte) (string, error)
	Open(sealed string) ([]byte, error)
}

// AESEnvelope is the AES-256-CBC implementation of EnvelopeService.
type AESEnvelope struct {
	block cipher.Block
	iv    []byte
}

// NewAESEnvelope builds an envelope from the merchant's fixed 32-byte key and
// 16-byte IV.
func NewAESEnvelope(key, iv []byte) (*AESEnvelope, error) {
	if len(key) != 32 {
		return nil, errors.New("envelope key must be 32 bytes")
	}
	if len(iv) != aes.BlockSize {
		return nil, errors.New("envelope IV must be 16 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &AESEnvelope{block: block, iv: append([]byte(nil), iv...)}, nil
}

// Seal pads, encrypts and hex-encodes plaintext. Deterministic for identical
// plaintext: the IV is fixed by the protocol.
func (e *AESEnvelope) Seal(plaintext []byte) (string, error) {
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(e.block, e.iv).CryptBlocks(out, padded)
	return hex.EncodeToString(out), nil
}

// Open hex-decodes, decrypts and strips padding. Trailing NUL bytes left
// after padding removal are also stripped: the gateway's encoder sometimes
// appends them outside the padding scheme. This is a compatibility shim for
// an observed counterpart quirk, kept deliberately until the gateway confirms
// the behavior is gone.
func (e *AESEnvelope) Open(sealed string) ([]byte, error) {
	raw, err := hex.DecodeString(sealed)
	if err != nil {
		return nil, &EnvelopeError{Op: "open", Err: ErrNotHex}
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return nil, &EnvelopeError{Op: "open", Err: ErrBlockAlignment}
	}

	plain := make([]byte, len(raw))
	cipher.NewCBCDecrypter(e.block, e.iv).CryptBlocks(plain, raw)

	unpadded, err := pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		return nil, &EnvelopeError{Op: "open", Err: err}
	}
	return bytes.TrimRight(unpadded, "\x00"), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(append([]byte(nil), data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrPadding
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, ErrPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrPadding
		}
	}
	return data[:len(data)-n], nil
}
