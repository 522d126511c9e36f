package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

const (
	SignatureHeader = "X-Hub-Signature-256"
	EventHeader     = "X-GitHub-Event"
	DeliveryHeader  = "X-GitHub-Delivery"

	signaturePrefix = "sha256="
)

var (
	ErrNoSecret           = errors.New("webhook secret is not configured")
	ErrMissingSignature   = errors.New("signature header is missing")
	ErrMalformedSignature = errors.New("signature header is malformed")
	ErrSignatureMismatch  = errors.New("signature does not match payload")
)

// CheckSignature returns nil when header carries the HMAC-SHA256 of the raw
// request body under secret, and otherwise the reason it does not. payload
// must be the bytes exactly as received. An empty secret rejects everything.
func CheckSignature(payload []byte, header, secret string) error {
	if secret == "" {
		return ErrNoSecret
	}
	if header == "" {
		return ErrMissingSignature
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return ErrMalformedSignature
	}

	got, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return ErrMalformedSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	want := mac.Sum(nil)

	if len(got) != len(want) {
		return ErrMalformedSignature
	}
	if !hmac.Equal(got, want) {
		return ErrSignatureMismatch
	}
	return nil
}

func VerifySignature(payload []byte, header, secret string) bool {
	return CheckSignature(payload, header, secret) == nil
}

// Sign returns the header value GitHub would send for payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
