package flows

import (
	"errors"
	"strings"
	"testing"
)

func TestBackupCodeAlphabetExcludesAmbiguousCharacters(t *testing.T) {
	for _, c := range "01IO" {
		if strings.ContainsRune(BackupCodeAlphabet, c) {
			t.Fatalf("alphabet must not contain %q", c)
		}
	}
	if len(BackupCodeAlphabet) != 32 {
		t.Fatalf("expected 32 symbols, got %d", len(BackupCodeAlphabet))
	}
}

func TestGenerateBackupCodesFormatAndHashes(t *testing.T) {
	codes, hashes, err := GenerateBackupCodes("u1", 10, 8, nil)
	if err != nil {
		t.Fatalf("GenerateBackupCodes: %v", err)
	}
	if len(codes) != 10 || len(hashes) != 10 {
		t.Fatalf("expected 10 codes and hashes, got %d/%d", len(codes), len(hashes))
	}

	seen := map[string]bool{}
	for i, code := range codes {
		if len(code) != 9 || code[4] != '-' {
			t.Fatalf("code %q is not XXXX-XXXX", code)
		}
		canonical := CanonicalizeBackupCode(code)
		for _, c := range canonical {
			if !strings.ContainsRune(BackupCodeAlphabet, c) {
				t.Fatalf("code %q has symbol outside alphabet", code)
			}
		}
		if seen[canonical] {
			t.Fatalf("duplicate code %q", code)
		}
		seen[canonical] = true
		if hashes[i] != BackupCodeHash("u1", canonical) {
			t.Fatalf("hash %d does not match its code", i)
		}
		if strings.Contains(hashes[i], canonical) {
			t.Fatal("hash must not embed the plaintext code")
		}
	}
}

func TestCanonicalizeBackupCodeAcceptsTypedVariants(t *testing.T) {
	for _, in := range []string{"ABCD-EFGH", "abcd-efgh", " ABCDEFGH ", "abcd efgh"} {
		if got := CanonicalizeBackupCode(in); got != "ABCDEFGH" {
			t.Fatalf("canonicalize(%q) = %q", in, got)
		}
	}
}

func TestBackupCodeHashIsUserScoped(t *testing.T) {
	a := BackupCodeHash("u1", "ABCDEFGH")
	b := BackupCodeHash("u2", "ABCDEFGH")
	if a == b {
		t.Fatal("equal codes of different users must hash differently")
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha-256, got %d chars", len(a))
	}
	// The separator keeps ("u1","2ABC...") distinct from ("u12","ABC...").
	if BackupCodeHash("u1", "2ABCDEFG") == BackupCodeHash("u12", "ABCDEFG") {
		t.Fatal("user id and code must be separated")
	}
}

func TestGenerateBackupCodesStopsOnStuckRandomSource(t *testing.T) {
	constant := func(int) (int, error) { return 0, nil }
	if _, _, err := GenerateBackupCodes("u1", 10, 8, constant); !errors.Is(err, errBackupCodeEntropy) {
		t.Fatalf("expected errBackupCodeEntropy, got %v", err)
	}
}

func TestGenerateBackupCodesPropagatesRandomError(t *testing.T) {
	boom := errors.New("entropy unavailable")
	failing := func(int) (int, error) { return 0, boom }
	if _, _, err := GenerateBackupCodes("u1", 10, 8, failing); !errors.Is(err, boom) {
		t.Fatalf("expected random error, got %v", err)
	}
}
