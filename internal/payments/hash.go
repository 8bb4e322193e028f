package payments

import (
	"crypto"
	_ "crypto/sha512" // registers crypto.SHA512
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// reservedSlots is the block of empty values the gateway keeps between the
// customer fields and the salt (udf1..udf5 plus five unnamed slots).
const reservedSlots = 10

// Digest returns the lowercase hex SHA-512 of the pipe-joined parts.
func Digest(parts ...string) (string, error) {
	if !crypto.SHA512.Available() {
		return "", ErrCryptoUnavailable
	}
	h := crypto.SHA512.New()
	h.Write([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// requestHashParts lays out the fields of an outgoing request:
// key|txnid|amount|productinfo|firstname|email|<reserved>|salt
func requestHashParts(key, salt string, p PaymentRequest) []string {
	parts := make([]string, 0, 7+reservedSlots)
	parts = append(parts, key, p.TxnID, p.Amount, p.ProductInfo, p.FirstName, p.Email)
	parts = append(parts, make([]string, reservedSlots)...)
	return append(parts, salt)
}

// responseHashParts mirrors requestHashParts for the callback:
// salt|status|<reserved>|email|firstname|productinfo|amount|txnid|key
func responseHashParts(key, salt string, cb Callback, o Original) []string {
	parts := make([]string, 0, 8+reservedSlots)
	parts = append(parts, salt, cb.Status)
	parts = append(parts, make([]string, reservedSlots)...)
	return append(parts, o.Email, o.FirstName, o.ProductInfo, cb.Amount, cb.TxnID, key)
}

// hashEqual compares two hex digests in constant time, ignoring case.
func hashEqual(want, got string) bool {
	w := []byte(strings.ToLower(strings.TrimSpace(want)))
	g := []byte(strings.ToLower(strings.TrimSpace(got)))
	return subtle.ConstantTimeCompare(w, g) == 1
}
