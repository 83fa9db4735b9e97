package tgui

import (
	"encoding/base64"
	"strings"
)

// Data formats inline callback data as "scope:action:payload".
func Data(scope, action, payload string) string {
	scope = strings.TrimSpace(scope)
	action = strings.TrimSpace(action)
	if payload == "" {
		return scope + ":" + action
	}
	return scope + ":" + action + ":" + payload
}

// Pack Base64URL-encodes an opaque payload (no padding), suitable for the
// payload part of "scope:action:payload".
func Pack(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

// Unpack decodes a payload produced by Pack.
func Unpack(payload string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
