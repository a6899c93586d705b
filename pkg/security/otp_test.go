package security_test

import (
	"testing"

	"github.com/angelmondragon/marketledger-backend/pkg/config"
	"github.com/angelmondragon/marketledger-backend/pkg/security"
)

var testSecurity = config.SecurityConfig{
	ArgonMemoryKB:    8192,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

func TestGenerateOTP(t *testing.T) {
	otp, err := security.GenerateOTP(6)
	if err != nil {
		t.Fatalf("GenerateOTP returned error: %v", err)
	}
	if len(otp) != 6 {
		t.Fatalf("expected 6 digits, got %q", otp)
	}
	for _, r := range otp {
		if r < '0' || r > '9' {
			t.Fatalf("otp contains non-digit %q", otp)
		}
	}

	if _, err := security.GenerateOTP(2); err == nil {
		t.Fatal("expected error for too-short otp")
	}
}

func TestHashAndVerifyOTP(t *testing.T) {
	hash, err := security.HashOTP("042917", testSecurity)
	if err != nil {
		t.Fatalf("HashOTP returned error: %v", err)
	}

	ok, err := security.VerifyOTP("042917", hash)
	if err != nil {
		t.Fatalf("VerifyOTP returned error: %v", err)
	}
	if !ok {
		t.Fatal("VerifyOTP failed for the correct code")
	}

	ok, err = security.VerifyOTP("042918", hash)
	if err != nil {
		t.Fatalf("VerifyOTP returned error: %v", err)
	}
	if ok {
		t.Fatal("VerifyOTP accepted the wrong code")
	}
}

func TestVerifyOTPBadHash(t *testing.T) {
	if _, err := security.VerifyOTP("123456", "not-a-hash"); err == nil {
		t.Fatal("expected error for malformed hash")
	}
}
