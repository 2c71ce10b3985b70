// Package audit signs webhook trace entries so stored delivery records can be
// checked for tampering.
package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Record holds the fields of a delivery attempt covered by the signature.
type Record struct {
	CloudEventID   string
	SubscriptionID int64
	Consumer       string
	Endpoint       string
	StatusCode     int
	Success        bool
	Created        time.Time
}

// canonical joins the fields with a separator that cannot occur in a URL or URN.
func (r Record) canonical() string {
	return strings.Join([]string{
		r.CloudEventID,
		strconv.FormatInt(r.SubscriptionID, 10),
		r.Consumer,
		r.Endpoint,
		strconv.Itoa(r.StatusCode),
		strconv.FormatBool(r.Success),
		r.Created.UTC().Format(time.RFC3339Nano),
	}, "\n")
}

// Signer computes HMAC-SHA256 signatures over trace records.
type Signer struct {
	secretKey []byte
}

// NewSigner creates a signer. An empty key yields a nil signer, which signs nothing.
func NewSigner(secretKey string) *Signer {
	if secretKey == "" {
		return nil
	}
	return &Signer{secretKey: []byte(secretKey)}
}

// Sign returns the hex encoded signature of r, or "" for a nil signer.
func (s *Signer) Sign(r Record) string {
	if s == nil {
		return ""
	}
	h := hmac.New(sha256.New, s.secretKey)
	h.Write([]byte(r.canonical()))
	return hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether signature matches r.
func (s *Signer) Verify(r Record, signature string) bool {
	if s == nil {
		return false
	}
	return hmac.Equal([]byte(s.Sign(r)), []byte(signature))
}
