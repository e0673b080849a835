// Package app implements the authenticity-check API: quota accounting,
// abuse prevention, billing and the classification boundary.
package app

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
)

// fingerprintLen is the number of hex characters kept from each digest.
const fingerprintLen = 16

// Fingerprint groups anonymous traffic without storing anything reversible.
type Fingerprint struct {
	IPHash string
	UAHash string
}

// ClientFingerprint derives the salted IP and user-agent hashes for a request.
// It always produces a value; requests with no usable address hash the
// loopback placeholder.
func ClientFingerprint(r *http.Request, ipSalt, uaSalt string) Fingerprint {
	ua := r.Header.Get("User-Agent")
	if ua == "" {
		ua = "unknown"
	}
	return Fingerprint{
		IPHash: hashWithSalt(clientIP(r), ipSalt),
		UAHash: hashWithSalt(ua, uaSalt),
	}
}

func hashWithSalt(value, salt string) string {
	sum := sha256.Sum256([]byte(value + salt))
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}

// clientIP picks the first candidate in priority order: the first
// X-Forwarded-For entry, then X-Real-IP, then the socket address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if first != "" {
			return first
		}
	}
	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
		return real
	}
	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
			return host
		}
		return r.RemoteAddr
	}
	return "127.0.0.1"
}
