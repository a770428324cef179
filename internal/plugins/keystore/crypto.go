// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package keystore

import (
	"crypto/rand"
	"encoding/hex"

	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

// masterKeyName holds the hex-encoded XChaCha20-Poly1305 key. The reserved
// prefix keeps it out of the key index.
const masterKeyName = reservedPrefix + "master-key"

// sealer encrypts values under the service's master key. The service name
// is bound as associated data.
type sealer struct {
	key     []byte
	service string
}

func loadSealer(store Store, service string) (*sealer, error) {
	raw, err := store.Retrieve(service, masterKeyName)
	switch {
	case err == nil:
		key, decErr := hex.DecodeString(raw)
		if decErr != nil || len(key) != chacha20poly1305.KeySize {
			return nil, cwerr.New(cwerr.CodeKeystoreCryptoFailure, "stored master key is malformed")
		}
		return &sealer{key: key, service: service}, nil
	case cwerr.IsNotFound(err):
		key := make([]byte, chacha20poly1305.KeySize)
		if _, err := rand.Read(key); err != nil {
			return nil, cwerr.Wrap(err, cwerr.CodeKeystoreCryptoFailure, "generating master key")
		}
		if err := store.Store(service, masterKeyName, hex.EncodeToString(key)); err != nil {
			return nil, err
		}
		return &sealer{key: key, service: service}, nil
	default:
		return nil, err
	}
}

func (s *sealer) seal(plain []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, cwerr.Wrap(err, cwerr.CodeKeystoreCryptoFailure, "creating cipher")
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, cwerr.Wrap(err, cwerr.CodeKeystoreCryptoFailure, "generating nonce")
	}
	return aead.Seal(nonce, nonce, plain, []byte(s.service)), nil
}

func (s *sealer) open(sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, cwerr.Wrap(err, cwerr.CodeKeystoreCryptoFailure, "creating cipher")
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, cwerr.New(cwerr.CodeKeystoreCipherInvalid, "ciphertext too short")
	}
	nonce, body := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, body, []byte(s.service))
	if err != nil {
		return nil, cwerr.Wrap(err, cwerr.CodeKeystoreCipherInvalid, "decrypting")
	}
	return plain, nil
}
