package signing

import "testing"

func TestSignVerifyRoundTrip(t *testing.T) {
	secret := []byte("s3cr3t")
	body := []byte(`{"action":"opened"}`)

	sig := Sign(secret, body)
	if !Verify(secret, body, sig) {
		t.Fatalf("expected signature %q to verify", sig)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	body := []byte(`{"action":"opened"}`)
	sig := Sign([]byte("right"), body)
	if Verify([]byte("wrong"), body, sig) {
		t.Fatal("expected verification with wrong secret to fail")
	}
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	secret := []byte("s3cr3t")
	sig := Sign(secret, []byte(`{"action":"opened"}`))
	if Verify(secret, []byte(`{"action":"closed"}`), sig) {
		t.Fatal("expected verification of tampered body to fail")
	}
}

func TestVerifyRejectsMalformedHeader(t *testing.T) {
	secret := []byte("s3cr3t")
	body := []byte(`{"action":"opened"}`)
	if Verify(secret, body, "") {
		t.Fatal("expected empty header to fail verification")
	}
	if Verify(secret, body, "not-even-hex") {
		t.Fatal("expected malformed header to fail verification")
	}
}
