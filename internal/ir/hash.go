package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainPayload separates payload digests from any other hashed content.
const DomainPayload = "sagastore/payload/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// PayloadDigest returns a stable content hash of a payload. Payloads that
// differ only in key order or Unicode normalization share a digest.
func PayloadDigest(payload IRObject) (string, error) {
	data, err := MarshalCanonical(payload)
	if err != nil {
		return "", fmt.Errorf("payload digest: %w", err)
	}
	return hashWithDomain(DomainPayload, data), nil
}
