// Package id generates compact random identifiers for persisted records.
package id

import (
	"crypto/rand"
	"encoding/base32"
	"strings"
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a 26-character lowercase base32 identifier derived from 16
// random bytes carrying UUIDv4 version and variant bits.
func NewID() string {
	var raw [16]byte
	rand.Read(raw[:])
	raw[6] = (raw[6] & 0x0F) | 0x40
	raw[8] = (raw[8] & 0x3F) | 0x80
	return strings.ToLower(encoding.EncodeToString(raw[:]))
}
