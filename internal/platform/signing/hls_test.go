package signing

import (
	"net/url"
	"testing"
	"time"
)

const testStreamURL = "https://cdn.example.com/stream/ep1/index.m3u8"

func newSigner() *Signer { return New("test-signing-secret-32-bytes-ok!") }

func TestSignVerify(t *testing.T) {
	s := newSigner()
	signed := s.Sign(testStreamURL, "user-1", time.Now().Add(time.Hour))
	if !s.Verify(testStreamURL, "user-1", signed.Exp, signed.Sig) {
		t.Fatal("valid signature should verify")
	}
}

func TestVerify_Expired(t *testing.T) {
	s := newSigner()
	signed := s.Sign(testStreamURL, "user-1", time.Now().Add(-time.Hour))
	if s.Verify(testStreamURL, "user-1", signed.Exp, signed.Sig) {
		t.Fatal("expired signature should not verify")
	}
}

func TestVerify_Tampered(t *testing.T) {
	s := newSigner()
	signed := s.Sign(testStreamURL, "user-1", time.Now().Add(time.Hour))

	if s.Verify("https://cdn.example.com/stream/ep2/index.m3u8", "user-1", signed.Exp, signed.Sig) {
		t.Fatal("changed URL should not verify")
	}
	if s.Verify(testStreamURL, "user-2", signed.Exp, signed.Sig) {
		t.Fatal("changed viewer should not verify")
	}
	if s.Verify(testStreamURL, "user-1", signed.Exp+60, signed.Sig) {
		t.Fatal("changed expiry should not verify")
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	signed := newSigner().Sign(testStreamURL, "user-1", time.Now().Add(time.Hour))
	other := New("different-secret-32-bytes-padded!!")
	if other.Verify(testStreamURL, "user-1", signed.Exp, signed.Sig) {
		t.Fatal("signature from another secret should not verify")
	}
}

func TestBuildAndExtractRoundtrip(t *testing.T) {
	s := newSigner()
	signed := s.Sign(testStreamURL, "user-42", time.Now().Add(time.Hour))

	relayURL, err := BuildSignedURL("https://watch.example.com/hls", signed)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	u, err := url.Parse(relayURL)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	rawURL, uid, exp, sig, err := ExtractSigned(u.Query())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if rawURL != testStreamURL || uid != "user-42" || exp != signed.Exp {
		t.Fatalf("roundtrip mismatch: url=%q uid=%q exp=%d", rawURL, uid, exp)
	}
	if !s.Verify(rawURL, uid, exp, sig) {
		t.Fatal("extracted signature should verify")
	}
}

func TestExtractSigned_MissingParams(t *testing.T) {
	tests := []struct {
		name   string
		values url.Values
	}{
		{"missing url", url.Values{"uid": {"u"}, "exp": {"1"}, "sig": {"s"}}},
		{"missing uid", url.Values{"url": {"u"}, "exp": {"1"}, "sig": {"s"}}},
		{"missing exp", url.Values{"url": {"u"}, "uid": {"u"}, "sig": {"s"}}},
		{"missing sig", url.Values{"url": {"u"}, "uid": {"u"}, "exp": {"1"}}},
		{"garbage exp", url.Values{"url": {"u"}, "uid": {"u"}, "exp": {"soon"}, "sig": {"s"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, _, _, err := ExtractSigned(tt.values); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
