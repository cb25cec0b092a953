package flows

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
)

// BackupCodeAlphabet omits 0/O and 1/I so codes survive being read aloud.
const BackupCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

var errBackupCodeEntropy = errors.New("backup code generator keeps repeating codes")

// NewBackupCode draws length characters from BackupCodeAlphabet.
func NewBackupCode(length int, randomIndex func(int) (int, error)) (string, error) {
	if randomIndex == nil {
		randomIndex = cryptoRandomIndex
	}
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := randomIndex(len(BackupCodeAlphabet))
		if err != nil {
			return "", err
		}
		b.WriteByte(BackupCodeAlphabet[n])
	}
	return b.String(), nil
}

// FormatBackupCode splits a code in two halves for display: ABCD-EFGH.
func FormatBackupCode(code string) string {
	n := len(code)
	if n < 8 {
		return code
	}
	mid := n / 2
	return code[:mid] + "-" + code[mid:]
}

// CanonicalizeBackupCode uppercases and strips separators so users may type
// codes with or without the dash.
func CanonicalizeBackupCode(code string) string {
	s := strings.ToUpper(strings.TrimSpace(code))
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	return s
}

// BackupCodeHash is the stored form of a canonical code: hex SHA-256 over
// userID, a zero byte, and the code. Binding the user id keeps equal codes
// of different users from sharing a hash.
func BackupCodeHash(userID, canonicalCode string) string {
	data := make([]byte, 0, len(userID)+1+len(canonicalCode))
	data = append(data, userID...)
	data = append(data, 0)
	data = append(data, canonicalCode...)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// GenerateBackupCodes returns count display codes and their hashes in the
// same order.
func GenerateBackupCodes(userID string, count, length int, randomIndex func(int) (int, error)) ([]string, []string, error) {
	codes := make([]string, 0, count)
	hashes := make([]string, 0, count)
	seen := make(map[string]struct{}, count)
	for attempts := 0; len(codes) < count; attempts++ {
		if attempts >= count*8 {
			return nil, nil, errBackupCodeEntropy
		}
		raw, err := NewBackupCode(length, randomIndex)
		if err != nil {
			return nil, nil, err
		}
		if _, dup := seen[raw]; dup {
			continue
		}
		seen[raw] = struct{}{}
		codes = append(codes, FormatBackupCode(raw))
		hashes = append(hashes, BackupCodeHash(userID, raw))
	}
	return codes, hashes, nil
}

func cryptoRandomIndex(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}
