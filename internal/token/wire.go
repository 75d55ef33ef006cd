package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/pickup/internal/canonical"
)

// Wire field names. The encoded record carries exactly these four keys.
const (
	fieldOrderID     = "orderId"
	fieldUserID      = "userId"
	fieldCafeteriaID = "cafeteriaId"
	fieldSecureHash  = "secureHash"
)

// ErrIncomplete is returned by Encode for a payload with an empty field.
var ErrIncomplete = errors.New("token: payload has empty fields")

// DecodeError describes why a scanned record could not be parsed.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token: decode: %s: %v", e.Reason, e.Err)
	}
	return "token: decode: " + e.Reason
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err is or wraps a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// Encode renders p as a compact canonical JSON object suitable for a QR code.
func Encode(p Payload) (string, error) {
	if !p.Complete() {
		return "", ErrIncomplete
	}
	b, err := canonical.Marshal(map[string]string{
		fieldOrderID:     p.OrderID,
		fieldUserID:      p.UserID,
		fieldCafeteriaID: p.CafeteriaID,
		fieldSecureHash:  p.SecureHash,
	})
	if err != nil {
		return "", fmt.Errorf("token: encode: %w", err)
	}
	return string(b), nil
}

// Decode parses a scanned record. Key order is irrelevant, but the record must
// contain exactly the four token fields, each a non-empty string, once.
func Decode(raw string) (Payload, error) {
	dec := json.NewDecoder(strings.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return Payload{}, &DecodeError{Reason: "invalid json", Err: err}
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return Payload{}, &DecodeError{Reason: "expected object"}
	}

	fields := make(map[string]string, 4)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return Payload{}, &DecodeError{Reason: "invalid json", Err: err}
		}
		key, _ := keyTok.(string)
		switch key {
		case fieldOrderID, fieldUserID, fieldCafeteriaID, fieldSecureHash:
		default:
			return Payload{}, &DecodeError{Reason: fmt.Sprintf("unknown field %q", key)}
		}
		if _, dup := fields[key]; dup {
			return Payload{}, &DecodeError{Reason: fmt.Sprintf("duplicate field %q", key)}
		}

		valTok, err := dec.Token()
		if err != nil {
			return Payload{}, &DecodeError{Reason: "invalid json", Err: err}
		}
		val, ok := valTok.(string)
		if !ok {
			return Payload{}, &DecodeError{Reason: fmt.Sprintf("field %q is not a string", key)}
		}
		if val == "" {
			return Payload{}, &DecodeError{Reason: fmt.Sprintf("field %q is empty", key)}
		}
		fields[key] = val
	}

	if _, err := dec.Token(); err != nil {
		return Payload{}, &DecodeError{Reason: "invalid json", Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return Payload{}, &DecodeError{Reason: "trailing data"}
	}
	if len(fields) != 4 {
		return Payload{}, &DecodeError{Reason: "missing fields"}
	}

	return Payload{
		OrderID:     fields[fieldOrderID],
		UserID:      fields[fieldUserID],
		CafeteriaID: fields[fieldCafeteriaID],
		SecureHash:  fields[fieldSecureHash],
	}, nil
}
