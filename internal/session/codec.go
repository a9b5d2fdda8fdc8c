package session

import (
	"encoding/base64"
	"fmt"

	"github.com/keyfort/keyfort/krypto"
)

func encodeSalt(salt []byte) string {
	return base64.StdEncoding.EncodeToString(salt)
}

func decodeSalt(encoded string) ([]byte, error) {
	salt, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	if len(salt) != krypto.SaltLength {
		return nil, fmt.Errorf("salt must be %d bytes", krypto.SaltLength)
	}
	return salt, nil
}
