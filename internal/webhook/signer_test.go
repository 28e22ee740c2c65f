package webhook

import (
	"errors"
	"strconv"
	"testing"
	"time"
)

func TestSign(t *testing.T) {
	tests := []struct {
		name      string
		secret    string
		timestamp int64
		payload   []byte
	}{
		{"basic signature", "whsec_test123", 1736600000, []byte(`{"type":"order.placed","id":"123"}`)},
		{"empty payload", "secret", 1000000000, []byte(`{}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := Sign(tt.secret, tt.timestamp, tt.payload)

			// hex-encoded SHA-256
			if len(sig) != 64 {
				t.Errorf("signature length = %d, want 64", len(sig))
			}
			if sig != Sign(tt.secret, tt.timestamp, tt.payload) {
				t.Error("signature is not deterministic")
			}
			if sig == Sign(tt.secret, tt.timestamp+1, tt.payload) {
				t.Error("different timestamp should produce different signature")
			}
			if sig == Sign(tt.secret+"x", tt.timestamp, tt.payload) {
				t.Error("different secret should produce different signature")
			}
		})
	}
}

func TestVerify(t *testing.T) {
	secret := "test_secret"
	now := time.Unix(1736600000, 0)
	payload := []byte(`{"test":"data"}`)
	ts := now.Unix()

	tests := []struct {
		name    string
		header  string
		payload []byte
		wantErr error
	}{
		{"valid signature", SignatureHeader(secret, ts, payload), payload, nil},
		{"tampered payload", SignatureHeader(secret, ts, payload), []byte(`{"test":"other"}`), ErrInvalidSignature},
		{"wrong secret", SignatureHeader("other", ts, payload), payload, ErrInvalidSignature},
		{"invalid signature", "t=" + strconv.FormatInt(ts, 10) + ",v1=invalid", payload, ErrInvalidSignature},
		{"expired timestamp", SignatureHeader(secret, ts-600, payload), payload, ErrReplayWindowExceeded},
		{"future timestamp beyond window", SignatureHeader(secret, ts+600, payload), payload, ErrReplayWindowExceeded},
		{"missing signature", "t=" + strconv.FormatInt(ts, 10), payload, ErrMalformedHeader},
		{"garbage", "nonsense", payload, ErrMalformedHeader},
		{"bad timestamp", "t=abc,v1=00", payload, ErrMalformedHeader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Verify(secret, tt.header, tt.payload, DefaultReplayWindow, now)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Verify() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
