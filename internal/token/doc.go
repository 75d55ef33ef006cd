// Package token issues and verifies tamper-evident pickup tokens.
//
// A token binds an order ID, the ordering user and the cafeteria to the
// order's creation time with HMAC-SHA256. The MAC key is expanded from the
// provisioned secret with HKDF, and the MAC input is domain separated and
// length prefixed (see Service.sum). Nothing is stored: verification
// recomputes the hash from the claimed fields.
//
// The wire record is canonical JSON with exactly four string fields:
//
//	{"cafeteriaId":"c-1","orderId":"o-1","secureHash":"<64 hex>","userId":"u-1"}
//
// The creation time is not carried on the wire. Scanner recovers it from the
// order snapshot, so a token cannot be replayed against a different order.
package token
