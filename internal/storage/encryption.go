/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Value Encryption
================

When enabled, every value is sealed with AES-256-GCM before it is appended to
the log. Keys stay in plaintext so the index can be rebuilt without the
passphrase ever touching the scan path.

Sealed value layout:

	┌─────────────┬──────────────────────────┬───────────┐
	│ Nonce (12B) │ Ciphertext (len(value))  │ Tag (16B) │
	└─────────────┴──────────────────────────┴───────────┘

The record key is passed as GCM additional data, so a sealed value copied
under another key fails to open.

Keys come either directly (32 bytes) or from a passphrase through PBKDF2 with
SHA-256.
*/
package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/pbkdf2"

	lerrors "logdb/internal/errors"
)

// EncryptionConfig holds the configuration for value encryption.
type EncryptionConfig struct {
	// Enabled indicates whether encryption is enabled.
	Enabled bool

	// Key is the 32-byte AES-256 encryption key.
	// If empty and Passphrase is set, the key is derived from the passphrase.
	Key []byte

	// Passphrase is used to derive the encryption key if Key is not set.
	Passphrase string

	// Salt is used for key derivation from passphrase.
	// If empty, DefaultSalt is used.
	Salt []byte
}

// DefaultSalt is used when no salt is provided for key derivation.
var DefaultSalt = []byte("logdb-default-salt-v1")

// KeyDerivationIterations is the number of PBKDF2 iterations.
const KeyDerivationIterations = 100000

// SealOverhead is the number of bytes sealing adds to a value.
const SealOverhead = 12 + 16

// Encryptor seals and opens values.
type Encryptor struct {
	gcm cipher.AEAD
}

// NewEncryptor creates an Encryptor from config.
// It returns nil, nil when encryption is disabled.
func NewEncryptor(config EncryptionConfig) (*Encryptor, error) {
	if !config.Enabled {
		return nil, nil
	}

	key := config.Key
	if len(key) == 0 && config.Passphrase != "" {
		salt := config.Salt
		if len(salt) == 0 {
			salt = DefaultSalt
		}
		key = pbkdf2.Key([]byte(config.Passphrase), salt, KeyDerivationIterations, 32, sha256.New)
	}

	if len(key) != 32 {
		return nil, lerrors.InvalidValue("encryption key", "must be 32 bytes or derived from a passphrase")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, lerrors.InvalidValue("encryption key", err.Error())
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, lerrors.InvalidValue("encryption key", err.Error())
	}
	return &Encryptor{gcm: gcm}, nil
}

// Seal encrypts value bound to key. The nonce is prepended.
func (e *Encryptor) Seal(key, value []byte) ([]byte, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, lerrors.IOError("generate nonce", err)
	}
	return e.gcm.Seal(nonce, nonce, value, key), nil
}

// Open decrypts a value produced by Seal for the same key.
func (e *Encryptor) Open(key, sealed []byte) ([]byte, error) {
	ns := e.gcm.NonceSize()
	if len(sealed) < ns+e.gcm.Overhead() {
		return nil, lerrors.InvalidValue("value", "sealed value too short")
	}
	plain, err := e.gcm.Open(nil, sealed[:ns], sealed[ns:], key)
	if err != nil {
		return nil, lerrors.InvalidValue("value", "cannot decrypt").
			WithHint("Check the passphrase, or whether the store was written with encryption disabled")
	}
	return plain, nil
}
