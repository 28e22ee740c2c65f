// Package webhook delivers signed order notifications to an external
// endpoint.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrReplayWindowExceeded is returned when the timestamp is outside the replay window.
	ErrReplayWindowExceeded = errors.New("timestamp outside replay window")
	// ErrInvalidSignature is returned when signature verification fails.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrMalformedHeader is returned when the signature header cannot be parsed.
	ErrMalformedHeader = errors.New("malformed signature header")
)

// DefaultReplayWindow is how far a signed timestamp may drift from now.
const DefaultReplayWindow = 5 * time.Minute

// Sign returns the hex HMAC-SHA256 of "{timestamp}.{payload}".
func Sign(secret string, timestamp int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeader formats the signature header value: "t={ts},v1={sig}".
func SignatureHeader(secret string, timestamp int64, payload []byte) string {
	return "t=" + strconv.FormatInt(timestamp, 10) + ",v1=" + Sign(secret, timestamp, payload)
}

// Verify checks a signature header against payload with replay protection.
func Verify(secret, header string, payload []byte, window time.Duration, now time.Time) error {
	var ts, sig string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return ErrMalformedHeader
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sig = v
		}
	}
	if ts == "" || sig == "" {
		return ErrMalformedHeader
	}

	timestamp, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrMalformedHeader
	}
	if d := now.Unix() - timestamp; d > int64(window.Seconds()) || -d > int64(window.Seconds()) {
		return ErrReplayWindowExceeded
	}

	expected := Sign(secret, timestamp, payload)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return ErrInvalidSignature
	}
	return nil
}
