package model

import (
	"bytes"
	"errors"
)

// PIN is a transaction PIN read from a JSON string straight into bytes, so the
// handler can clear it once the request is served.
type PIN []byte

// UnmarshalJSON copies the string contents into a fresh slice. Escape sequences
// are refused since a PIN is plain digits.
func (p *PIN) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*p = nil
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("pin must be a JSON string")
	}
	raw := data[1 : len(data)-1]
	if bytes.IndexByte(raw, '\\') >= 0 {
		return errors.New("pin must not contain escape sequences")
	}
	*p = append(PIN(nil), raw...)
	return nil
}

// Clear zeroes the PIN in place.
func (p PIN) Clear() {
	clear(p)
}
