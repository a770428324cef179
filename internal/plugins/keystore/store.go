// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package keystore

import (
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"strings"

	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
	"github.com/zalando/go-keyring"
)

// keysIndexSuffix is appended to the service name to form the key under which
// the JSON index of stored key names is kept. go-keyring cannot enumerate
// keys on its own.
const keysIndexSuffix = "::keys-index"

// reservedPrefix marks internal entries that never appear in the index.
const reservedPrefix = "::"

// Store persists named secrets for a service.
type Store interface {
	Store(service, key, value string) error
	Retrieve(service, key string) (string, error)
	Delete(service, key string) error
	List(service string) ([]string, error)
}

// KeyringStore implements Store using the OS keyring via zalando/go-keyring.
// On macOS it uses Keychain, on Linux secret-service (D-Bus), and on Windows
// the Credential Manager.
type KeyringStore struct{}

func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func (s *KeyringStore) Store(service, key, value string) error {
	if err := checkNames("store", service, key); err != nil {
		return err
	}

	if err := keyring.Set(service, key, value); err != nil {
		return cwerr.Wrapf(err, cwerr.CodeKeystoreStoreFailure, "storing secret %s/%s", service, key)
	}
	if strings.HasPrefix(key, reservedPrefix) {
		return nil
	}
	return s.addToIndex(service, key)
}

func (s *KeyringStore) Retrieve(service, key string) (string, error) {
	if err := checkNames("retrieve", service, key); err != nil {
		return "", err
	}

	val, err := keyring.Get(service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", cwerr.Errorf(cwerr.CodeKeystoreNotFound, "secret %s/%s not found", service, key)
		}
		return "", cwerr.Wrapf(err, cwerr.CodeKeystoreStoreFailure, "retrieving secret %s/%s", service, key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(service, key string) error {
	if err := checkNames("delete", service, key); err != nil {
		return err
	}

	if err := keyring.Delete(service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return cwerr.Errorf(cwerr.CodeKeystoreNotFound, "secret %s/%s not found", service, key)
		}
		return cwerr.Wrapf(err, cwerr.CodeKeystoreDeleteFailure, "deleting secret %s/%s", service, key)
	}
	if strings.HasPrefix(key, reservedPrefix) {
		return nil
	}
	return s.removeFromIndex(service, key)
}

func (s *KeyringStore) List(service string) ([]string, error) {
	return s.loadIndex(service)
}

func checkNames(op, service, key string) error {
	if service == "" {
		return cwerr.New(cwerr.CodeKeystoreInvalidInput, "secret "+op+": service must not be empty")
	}
	if key == "" {
		return cwerr.New(cwerr.CodeKeystoreInvalidInput, "secret "+op+": key must not be empty")
	}
	return nil
}

func (s *KeyringStore) loadIndex(service string) ([]string, error) {
	raw, err := keyring.Get(service, service+keysIndexSuffix)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, cwerr.Wrapf(err, cwerr.CodeKeystoreListFailure, "loading key index for service %s", service)
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, cwerr.Wrapf(err, cwerr.CodeKeystoreListFailure, "decoding key index for service %s", service)
	}
	return keys, nil
}

func (s *KeyringStore) saveIndex(service string, keys []string) error {
	indexKey := service + keysIndexSuffix

	if len(keys) == 0 {
		if delErr := keyring.Delete(service, indexKey); delErr != nil {
			slog.Debug("failed to clean up empty key index", "service", service, "error", delErr)
		}
		return nil
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return cwerr.Wrapf(err, cwerr.CodeKeystoreListFailure, "encoding key index for service %s", service)
	}
	if err := keyring.Set(service, indexKey, string(data)); err != nil {
		return cwerr.Wrapf(err, cwerr.CodeKeystoreListFailure, "saving key index for service %s", service)
	}
	return nil
}

func (s *KeyringStore) addToIndex(service, key string) error {
	keys, err := s.loadIndex(service)
	if err != nil {
		return err
	}
	if slices.Contains(keys, key) {
		return nil
	}
	return s.saveIndex(service, append(keys, key))
}

func (s *KeyringStore) removeFromIndex(service, key string) error {
	keys, err := s.loadIndex(service)
	if err != nil {
		return err
	}
	return s.saveIndex(service, slices.DeleteFunc(keys, func(k string) bool { return k == key }))
}
