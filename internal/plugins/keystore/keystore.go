// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

// Package keystore is the built-in secure storage plugin. Values live in
// the OS keyring; encrypt and decrypt use a per-service master key that is
// itself kept in the keyring.
package keystore

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
	sdk "github.com/crossweb-dev/crossweb/pkg/plugin"
)

const (
	Name = "keystore"

	// DefaultService is the keyring service crossweb stores entries under.
	DefaultService = "crossweb"

	savedKey = "saved"
)

// Config is the plugin's configuration blob.
type Config struct {
	Service string `json:"service"`
}

type setRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Plugin struct {
	store  Store
	logger *slog.Logger

	mu      sync.Mutex
	service string
	sealer  *sealer
}

var (
	_ sdk.Initializer = (*Plugin)(nil)
	_ sdk.Invoker     = (*Plugin)(nil)
)

// New returns the plugin backed by the OS keyring.
func New() sdk.Plugin {
	return NewWithStore(NewKeyringStore())
}

func NewWithStore(store Store) *Plugin {
	return &Plugin{store: store, service: DefaultService, logger: slog.Default()}
}

func (p *Plugin) Name() string { return Name }
func (p *Plugin) Version() int { return 1 }

func (p *Plugin) Init(ctx sdk.Context) error {
	var cfg Config
	if len(ctx.Config) > 0 {
		if err := json.Unmarshal(ctx.Config, &cfg); err != nil {
			return cwerr.Wrap(err, cwerr.CodeConfigParseInvalidFormat, "parsing keystore plugin config")
		}
	}
	if ctx.Logger != nil {
		p.logger = ctx.Logger
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if cfg.Service != "" {
		p.service = cfg.Service
	}
	p.sealer = nil
	return nil
}

func (p *Plugin) Service() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.service
}

// cipher loads the master key on first use so that plugins which never
// encrypt do not touch the keyring at startup.
func (p *Plugin) cipher() (*sealer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sealer != nil {
		return p.sealer, nil
	}
	s, err := loadSealer(p.store, p.service)
	if err != nil {
		return nil, err
	}
	p.sealer = s
	return s, nil
}

func (p *Plugin) Invoke(_ context.Context, sub string, payload []byte, respond sdk.Responder) error {
	service := p.Service()
	arg := text(payload)

	switch sub {
	case "encrypt":
		p.encrypt(arg, respond)
	case "decrypt":
		p.decrypt(arg, respond)
	case "save":
		p.put(service, savedKey, arg, respond)
	case "set":
		var req setRequest
		if err := json.Unmarshal(payload, &req); err != nil || req.Key == "" {
			fail(respond, "invalid payload")
			return nil
		}
		p.put(service, req.Key, req.Value, respond)
	case "load":
		p.get(service, savedKey, respond)
	case "get":
		key, ok := keyArg(payload)
		if !ok {
			fail(respond, "invalid payload")
			return nil
		}
		if key == "" {
			key = savedKey
		}
		p.get(service, key, respond)
	case "delete":
		key, ok := keyArg(payload)
		if !ok || key == "" {
			fail(respond, "invalid payload")
			return nil
		}
		if err := p.store.Delete(service, key); err != nil {
			fail(respond, message(err))
			return nil
		}
		respond(`{"ok":true}`)
	case "list":
		keys, err := p.store.List(service)
		if err != nil {
			fail(respond, message(err))
			return nil
		}
		if keys == nil {
			keys = []string{}
		}
		sdk.Reply(respond, map[string]any{"ok": true, "keys": keys})
	default:
		fail(respond, "Unknown command")
	}
	return nil
}

func (p *Plugin) encrypt(arg string, respond sdk.Responder) {
	if len(arg)%2 != 0 {
		fail(respond, "invalid hex length")
		return
	}
	plain, err := hex.DecodeString(arg)
	if err != nil {
		fail(respond, "invalid hex")
		return
	}
	s, err := p.cipher()
	if err != nil {
		p.logger.Warn("keystore master key unavailable", "error", err)
		fail(respond, "Encryption failed")
		return
	}
	sealed, err := s.seal(plain)
	if err != nil {
		fail(respond, "Encryption failed")
		return
	}
	sdk.Reply(respond, map[string]any{"ok": true, "encrypted": base64.StdEncoding.EncodeToString(sealed)})
}

func (p *Plugin) decrypt(arg string, respond sdk.Responder) {
	sealed, err := base64.StdEncoding.DecodeString(arg)
	if err != nil {
		fail(respond, "invalid base64")
		return
	}
	s, err := p.cipher()
	if err != nil {
		p.logger.Warn("keystore master key unavailable", "error", err)
		fail(respond, "Decryption failed")
		return
	}
	plain, err := s.open(sealed)
	if err != nil {
		fail(respond, "Decryption failed")
		return
	}
	sdk.Reply(respond, map[string]any{"ok": true, "privateKey": hex.EncodeToString(plain)})
}

func (p *Plugin) put(service, key, value string, respond sdk.Responder) {
	if err := p.store.Store(service, key, value); err != nil {
		p.logger.Warn("keystore store failed", "key", key, "error", err)
		fail(respond, message(err))
		return
	}
	respond(`{"ok":true}`)
}

func (p *Plugin) get(service, key string, respond sdk.Responder) {
	v, err := p.store.Retrieve(service, key)
	if err != nil {
		fail(respond, message(err))
		return
	}
	sdk.Reply(respond, map[string]any{"ok": true, "encrypted": v})
}

// text reads a payload that is either raw text or a JSON string.
func text(payload []byte) string {
	s := strings.TrimSpace(string(payload))
	if strings.HasPrefix(s, `"`) {
		var unquoted string
		if json.Unmarshal(payload, &unquoted) == nil {
			return unquoted
		}
	}
	return s
}

// keyArg reads an entry name given bare, JSON-quoted or as {"key": ...}.
func keyArg(payload []byte) (string, bool) {
	s := strings.TrimSpace(string(payload))
	if !strings.HasPrefix(s, "{") {
		return text(payload), true
	}
	var req struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal([]byte(s), &req); err != nil || req.Key == "" {
		return "", false
	}
	return req.Key, true
}

func message(err error) string {
	switch {
	case cwerr.IsNotFound(err):
		return "no saved value"
	case cwerr.IsInvalidInput(err):
		return "invalid payload"
	default:
		return "keystore unavailable"
	}
}

func fail(respond sdk.Responder, msg string) {
	if respond == nil {
		return
	}
	data, _ := json.Marshal(struct {
		OK  bool   `json:"ok"`
		Msg string `json:"msg"`
	}{Msg: msg})
	respond(string(data))
}
