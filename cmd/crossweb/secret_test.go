// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package main

import (
	"testing"

	"github.com/crossweb-dev/crossweb/internal/plugins/keystore"
	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSecretStore is an in-memory keystore.Store keyed by service.
type mockSecretStore struct {
	data map[string]map[string]string
}

func newMockSecretStore(service string, keys ...string) *mockSecretStore {
	m := &mockSecretStore{data: map[string]map[string]string{service: {}}}
	for _, k := range keys {
		m.data[service][k] = "redacted"
	}
	return m
}

func (m *mockSecretStore) Store(service, key, value string) error {
	if m.data[service] == nil {
		m.data[service] = map[string]string{}
	}
	m.data[service][key] = value
	return nil
}

func (m *mockSecretStore) Retrieve(service, key string) (string, error) {
	v, ok := m.data[service][key]
	if !ok {
		return "", cwerr.Errorf(cwerr.CodeKeystoreNotFound, "not found")
	}
	return v, nil
}

func (m *mockSecretStore) Delete(service, key string) error {
	if _, ok := m.data[service][key]; !ok {
		return cwerr.Errorf(cwerr.CodeKeystoreNotFound, "not found")
	}
	delete(m.data[service], key)
	return nil
}

func (m *mockSecretStore) List(service string) ([]string, error) {
	keys := make([]string, 0, len(m.data[service]))
	for k := range m.data[service] {
		keys = append(keys, k)
	}
	return keys, nil
}

func useStore(t *testing.T, store keystore.Store) {
	t.Helper()
	old := secretStoreFactory
	secretStoreFactory = func() keystore.Store { return store }
	t.Cleanup(func() { secretStoreFactory = old })
}

func TestSecretList(t *testing.T) {
	tests := []struct {
		name string
		keys []string
		want string
	}{
		{name: "empty store", want: "No entries stored.\n"},
		{name: "single key", keys: []string{"wallet"}, want: "wallet\n"},
		{name: "sorted keys", keys: []string{"saved", "api-token", "wallet"}, want: "api-token\nsaved\nwallet\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useStore(t, newMockSecretStore(keystore.DefaultService, tt.keys...))

			out, err := execute(t, nil, "secret", "list")
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestSecretListOtherService(t *testing.T) {
	store := newMockSecretStore(keystore.DefaultService, "default-only")
	require.NoError(t, store.Store("notes-app", "note-key", "v"))
	useStore(t, store)

	out, err := execute(t, nil, "secret", "list", "--service", "notes-app")
	require.NoError(t, err)
	assert.Equal(t, "note-key\n", out)
}

func TestSecretDelete(t *testing.T) {
	store := newMockSecretStore(keystore.DefaultService, "wallet", "saved")
	useStore(t, store)

	out, err := execute(t, nil, "secret", "delete", "wallet")
	require.NoError(t, err)
	assert.Equal(t, "Deleted entry: wallet\n", out)

	_, err = store.Retrieve(keystore.DefaultService, "wallet")
	assert.True(t, cwerr.IsNotFound(err))
	_, err = store.Retrieve(keystore.DefaultService, "saved")
	assert.NoError(t, err)
}

func TestSecretDeleteNotFound(t *testing.T) {
	useStore(t, newMockSecretStore(keystore.DefaultService))

	_, err := execute(t, nil, "secret", "delete", "ghost")
	require.Error(t, err)
	assert.True(t, cwerr.HasCode(err, cwerr.CodeKeystoreNotFound))
	assert.Contains(t, err.Error(), `"ghost"`)
}

func TestSecretDeleteRequiresName(t *testing.T) {
	_, err := execute(t, nil, "secret", "delete")
	assert.Error(t, err)
}
