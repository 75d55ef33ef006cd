package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/text/unicode/norm"
)

// Domain prefix for the MAC input. The version suffix allows a future
// algorithm change without ambiguity between old and new tokens.
const domainToken = "pickup/token/v1"

// keyInfo labels the HKDF expansion so the provisioned secret can be shared
// with other purposes without reusing the same MAC key.
const keyInfo = "pickup token mac key v1"

// HashLen is the length of an encoded SecureHash (hex SHA-256).
const HashLen = sha256.Size * 2

// ErrMissingSecret is returned by NewService when no secret is provisioned.
// It is a startup failure; a Service is never built without a key.
var ErrMissingSecret = errors.New("token: secret is required")

// Payload is the record printed into a pickup code.
type Payload struct {
	OrderID     string `json:"orderId"`
	UserID      string `json:"userId"`
	CafeteriaID string `json:"cafeteriaId"`
	SecureHash  string `json:"secureHash"`
}

// Complete reports whether every field is non-empty.
func (p Payload) Complete() bool {
	return p.OrderID != "" && p.UserID != "" && p.CafeteriaID != "" && p.SecureHash != ""
}

// Service generates and verifies pickup tokens. It holds only the derived key
// and is safe for concurrent use.
type Service struct {
	key []byte
}

// NewService derives the MAC key from secret. An empty or blank secret is a
// configuration fault and returns ErrMissingSecret.
func NewService(secret []byte) (*Service, error) {
	if len(strings.TrimSpace(string(secret))) == 0 {
		return nil, ErrMissingSecret
	}

	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("token: derive key: %w", err)
	}
	return &Service{key: key}, nil
}

// MustNewService is like NewService but panics on error.
// Use only in tests or when the secret is known to be present.
func MustNewService(secret []byte) *Service {
	s, err := NewService(secret)
	if err != nil {
		panic(err)
	}
	return s
}

// Generate binds a token to the order identity and its creation time.
// The same inputs always yield the same payload.
func (s *Service) Generate(orderID, userID, locationID string, createdAt time.Time) Payload {
	return Payload{
		OrderID:     orderID,
		UserID:      userID,
		CafeteriaID: locationID,
		SecureHash:  hex.EncodeToString(s.sum(orderID, userID, locationID, createdAt)),
	}
}

// Verify recomputes the hash for the claimed fields and compares it in
// constant time. Incomplete payloads and malformed hashes fail.
func (s *Service) Verify(p Payload, createdAt time.Time) bool {
	if !p.Complete() || len(p.SecureHash) != HashLen {
		return false
	}
	got, err := hex.DecodeString(p.SecureHash)
	if err != nil {
		return false
	}
	want := s.sum(p.OrderID, p.UserID, p.CafeteriaID, createdAt)
	return hmac.Equal(want, got)
}

// sum computes HMAC-SHA256(key, domain || 0x00 || fields).
// Each field is NFC normalized and length prefixed so that no two distinct
// field tuples share an encoding.
func (s *Service) sum(orderID, userID, locationID string, createdAt time.Time) []byte {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(domainToken))
	mac.Write([]byte{0x00})
	writeField(mac, orderID)
	writeField(mac, userID)
	writeField(mac, locationID)
	writeField(mac, strconv.FormatInt(createdAt.UnixMilli(), 10))
	return mac.Sum(nil)
}

func writeField(h hash.Hash, v string) {
	b := norm.NFC.Bytes([]byte(v))
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(b)))
	h.Write(n[:])
	h.Write(b)
}
