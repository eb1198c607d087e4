package locks

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

// Access codes are the scannable identifier physically affixed to a lock.
var reAccessCode = regexp.MustCompile(`^[A-Za-z0-9_-]{4,16}$`)

// Generated codes avoid characters easy to misread on a worn label (0/O, 1/I/l).
const codeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

const generatedCodeLength = 6

// ValidAccessCode reports whether code matches the access code format.
func ValidAccessCode(code string) bool {
	return reAccessCode.MatchString(code)
}

// generateAccessCode returns a short random code for a new lock. Collision
// with existing codes is checked by the caller.
func generateAccessCode() (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	b := make([]byte, generatedCodeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = codeAlphabet[n.Int64()]
	}
	return string(b), nil
}
