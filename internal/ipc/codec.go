// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

// Package ipc implements the webview message bridge: the wire codec, the
// bounded inbound queue, and the native to web script injection.
//
// A frame is three fields joined by the ASCII record separator (0x1E):
//
//	id SEP command SEP base64(payload)
package ipc

import (
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"strings"

	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
)

// Separator delimits the frame fields.
const Separator = '\x1e'

const (
	DefaultMaxIDLen      = 64
	DefaultMaxCommandLen = 256
	DefaultMaxPayloadLen = 4096
)

//go:embed bridge.js
var bridgeJS string

// Limits bounds the frame fields. Bounds are inclusive; a zero field takes
// its default.
type Limits struct {
	MaxIDLen      int
	MaxCommandLen int
	MaxPayloadLen int
}

// DefaultLimits returns the stock field bounds.
func DefaultLimits() Limits {
	return Limits{
		MaxIDLen:      DefaultMaxIDLen,
		MaxCommandLen: DefaultMaxCommandLen,
		MaxPayloadLen: DefaultMaxPayloadLen,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxIDLen <= 0 {
		l.MaxIDLen = d.MaxIDLen
	}
	if l.MaxCommandLen <= 0 {
		l.MaxCommandLen = d.MaxCommandLen
	}
	if l.MaxPayloadLen <= 0 {
		l.MaxPayloadLen = d.MaxPayloadLen
	}
	return l
}

// MaxFrameLen is the length of the longest frame these bounds admit, with
// the payload at its padded base64 size.
func (l Limits) MaxFrameLen() int {
	l = l.withDefaults()
	return l.MaxIDLen + l.MaxCommandLen + 2 + base64.StdEncoding.EncodedLen(l.MaxPayloadLen)
}

// Message is one decoded request from the web content.
type Message struct {
	ID      string
	Command string
	Payload []byte
}

// Codec encodes and decodes frames within fixed limits.
type Codec struct {
	limits Limits
}

// NewCodec returns a Codec enforcing limits.
func NewCodec(limits Limits) *Codec {
	return &Codec{limits: limits.withDefaults()}
}

// Limits returns the effective bounds.
func (c *Codec) Limits() Limits {
	return c.limits
}

// Encode builds the wire frame for a message.
func (c *Codec) Encode(id, command string, payload []byte) (string, error) {
	if err := c.checkField("id", id, c.limits.MaxIDLen); err != nil {
		return "", err
	}
	if err := c.checkField("command", command, c.limits.MaxCommandLen); err != nil {
		return "", err
	}
	if len(payload) > c.limits.MaxPayloadLen {
		return "", cwerr.New(cwerr.CodeIPCEncodeInvalid, "payload exceeds limit",
			cwerr.Field("size", len(payload)), cwerr.Field("limit", c.limits.MaxPayloadLen))
	}

	var b strings.Builder
	b.Grow(len(id) + len(command) + 2 + base64.StdEncoding.EncodedLen(len(payload)))
	b.WriteString(id)
	b.WriteByte(Separator)
	b.WriteString(command)
	b.WriteByte(Separator)
	b.WriteString(base64.StdEncoding.EncodeToString(payload))
	return b.String(), nil
}

func (c *Codec) checkField(name, value string, limit int) error {
	switch {
	case value == "":
		return cwerr.New(cwerr.CodeIPCEncodeInvalid, name+" must not be empty")
	case len(value) > limit:
		return cwerr.New(cwerr.CodeIPCEncodeInvalid, name+" exceeds limit",
			cwerr.Field("size", len(value)), cwerr.Field("limit", limit))
	case strings.IndexByte(value, Separator) >= 0:
		return cwerr.New(cwerr.CodeIPCEncodeInvalid, name+" contains separator")
	}
	return nil
}

// Decode parses a frame. On failure the returned Message carries the ID when
// the id field was itself valid, so the caller can address an error reply.
func (c *Codec) Decode(frame string) (Message, error) {
	var msg Message

	i := strings.IndexByte(frame, Separator)
	if i < 0 {
		return msg, cwerr.New(cwerr.CodeIPCFrameInvalid, "frame has no separator")
	}
	id, rest := frame[:i], frame[i+1:]
	if id == "" {
		return msg, cwerr.New(cwerr.CodeIPCFrameInvalid, "frame id is empty")
	}
	if len(id) > c.limits.MaxIDLen {
		return msg, cwerr.New(cwerr.CodeIPCFrameInvalid, "frame id exceeds limit",
			cwerr.Field("size", len(id)), cwerr.Field("limit", c.limits.MaxIDLen))
	}
	msg.ID = id

	j := strings.IndexByte(rest, Separator)
	if j < 0 {
		return msg, cwerr.New(cwerr.CodeIPCFrameInvalid, "frame has no payload field", cwerr.FieldRequestID(id))
	}
	command, encoded := rest[:j], rest[j+1:]
	if command == "" {
		return msg, cwerr.New(cwerr.CodeIPCFrameInvalid, "frame command is empty", cwerr.FieldRequestID(id))
	}
	if len(command) > c.limits.MaxCommandLen {
		return msg, cwerr.New(cwerr.CodeIPCFrameInvalid, "frame command exceeds limit",
			cwerr.FieldRequestID(id), cwerr.Field("size", len(command)), cwerr.Field("limit", c.limits.MaxCommandLen))
	}

	payload, err := c.decodePayload(encoded)
	if err != nil {
		return msg, cwerr.With(err, cwerr.FieldRequestID(id), cwerr.FieldCommand(command))
	}

	msg.Command = command
	msg.Payload = payload
	return msg, nil
}

// decodePayload accepts standard base64 with or without padding.
func (c *Codec) decodePayload(encoded string) ([]byte, error) {
	enc := base64.RawStdEncoding
	if strings.HasSuffix(encoded, "=") {
		enc = base64.StdEncoding
	}

	if enc.DecodedLen(len(encoded)) > c.limits.MaxPayloadLen+2 {
		return nil, cwerr.New(cwerr.CodeIPCPayloadInvalid, "payload exceeds limit",
			cwerr.Field("limit", c.limits.MaxPayloadLen))
	}

	out := make([]byte, enc.DecodedLen(len(encoded)))
	n, err := enc.Decode(out, []byte(encoded))
	if err != nil {
		return nil, cwerr.Wrap(err, cwerr.CodeIPCPayloadInvalid, "payload is not valid base64")
	}
	if n > c.limits.MaxPayloadLen {
		return nil, cwerr.New(cwerr.CodeIPCPayloadInvalid, "payload exceeds limit",
			cwerr.Field("size", n), cwerr.Field("limit", c.limits.MaxPayloadLen))
	}
	return out[:n], nil
}

// ResponseScript renders the fragment that delivers response to the web
// side's onResponse callback. An empty response arrives as null.
func ResponseScript(id string, response []byte) string {
	return callbackScript("onResponse", "onMessage", id, response)
}

// EventScript renders the fragment that delivers an event to onEvent.
func EventScript(event string, data []byte) string {
	return callbackScript("onEvent", "", event, data)
}

// BridgeScript returns the JavaScript that installs window.__native__.
func BridgeScript() string {
	return bridgeJS
}

func callbackScript(fn, fallback, key string, data []byte) string {
	quoted, _ := json.Marshal(key)

	var b strings.Builder
	b.WriteString("(function(){var n=window.__native__;if(!n){return;}")
	b.WriteString("var f=n.")
	b.WriteString(fn)
	if fallback != "" {
		b.WriteString("||n.")
		b.WriteString(fallback)
	}
	b.WriteString(";if(typeof f!=='function'){return;}var v=null;")
	if len(data) > 0 {
		b.WriteString(`var t=new TextDecoder().decode(Uint8Array.from(atob("`)
		b.WriteString(base64.StdEncoding.EncodeToString(data))
		b.WriteString(`"),function(c){return c.charCodeAt(0);}));try{v=JSON.parse(t);}catch(e){v=t;}`)
	}
	b.WriteString("f.call(n,")
	b.Write(quoted)
	b.WriteString(",v);})();")
	return b.String()
}
