package auth

import (
	"strings"
	"testing"
	"time"
)

func TestSignAndVerifyHS256(t *testing.T) {
	secret := []byte("test-secret")
	claims := Claims{
		Sub:    "user-1",
		HostID: "host-1",
		Role:   "host",
		Iat:    time.Now().Unix(),
		Exp:    time.Now().Add(time.Hour).Unix(),
	}

	token, err := SignHS256(claims, secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	got, err := VerifyHS256(token, secret)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.HostID != "host-1" || got.Role != "host" {
		t.Fatalf("unexpected claims: %+v", got)
	}
}

func TestVerifyHS256_WrongSecret(t *testing.T) {
	token, err := SignHS256(Claims{Sub: "user-1", Exp: time.Now().Add(time.Hour).Unix()}, []byte("right"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := VerifyHS256(token, []byte("wrong")); err == nil {
		t.Fatal("expected verification failure")
	}
}

func TestVerifyHS256_Expired(t *testing.T) {
	token, err := SignHS256(Claims{Sub: "user-1", Exp: time.Now().Add(-time.Minute).Unix()}, []byte("s"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := VerifyHS256(token, []byte("s")); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestVerifyHS256_Malformed(t *testing.T) {
	for _, token := range []string{"", "a.b", "a.b.c.d", "!!.!!.!!"} {
		if _, err := VerifyHS256(token, []byte("s")); err == nil {
			t.Fatalf("expected failure for %q", token)
		}
	}
}

func TestBearerToken(t *testing.T) {
	if tok, ok := BearerToken("Bearer abc.def.ghi"); !ok || tok != "abc.def.ghi" {
		t.Fatalf("unexpected: %q %v", tok, ok)
	}
	if _, ok := BearerToken("Basic abc"); ok {
		t.Fatal("expected Basic to be rejected")
	}
	if _, ok := BearerToken(""); ok {
		t.Fatal("expected empty header to be rejected")
	}
	if tok, ok := BearerToken("bearer xyz"); !ok || !strings.EqualFold(tok, "xyz") {
		t.Fatalf("case-insensitive scheme should be accepted, got %q %v", tok, ok)
	}
}
