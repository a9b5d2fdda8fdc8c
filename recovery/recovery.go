// Package recovery generates and parses the emergency recovery code: a
// second, system-generated high-entropy secret offered as an alternate
// unlock path next to the master password.
package recovery

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/keyfort/keyfort/krypto"
)

const (
	// CodeBytes is the entropy of a recovery code in raw bytes.
	CodeBytes = 32
	// codeHexLen is the rendered length: 64 uppercase hex characters.
	codeHexLen = CodeBytes * 2
	groupSize  = 4
)

// GenerateCode returns a fresh recovery code: 32 random bytes rendered as
// uppercase hexadecimal, grouped into 4-character blocks separated by
// hyphens (16 groups, e.g. "A1B2-C3D4-...").
func GenerateCode() (string, error) {
	raw, err := krypto.RandomBytes(CodeBytes)
	if err != nil {
		return "", fmt.Errorf("generate recovery code: %w", err)
	}
	defer krypto.Wipe(raw)

	hexStr := strings.ToUpper(hex.EncodeToString(raw))

	var b strings.Builder
	b.Grow(codeHexLen + codeHexLen/groupSize - 1)
	for i := 0; i < codeHexLen; i += groupSize {
		if i > 0 {
			b.WriteByte('-')
		}
		b.WriteString(hexStr[i : i+groupSize])
	}
	return b.String(), nil
}

// ParseCode normalizes a transcribed recovery code: hyphens and all
// whitespace are stripped and the result upper-cased. It accepts only
// exactly 64 hexadecimal characters; anything else (too short, too long,
// non-hex) reports ok=false. The returned form is what must be fed to key
// derivation, never the raw input.
func ParseCode(input string) (string, bool) {
	var b strings.Builder
	b.Grow(codeHexLen)
	for _, r := range input {
		switch {
		case r == '-' || r == ' ' || r == '\t' || r == '\n' || r == '\r':
			continue
		default:
			b.WriteRune(r)
		}
	}

	code := strings.ToUpper(b.String())
	if len(code) != codeHexLen {
		return "", false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if (c < '0' || c > '9') && (c < 'A' || c > 'F') {
			return "", false
		}
	}
	return code, true
}
