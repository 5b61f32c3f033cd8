package asset

import (
	"encoding/hex"
	"encoding/json"

	"github.com/zeebo/blake3"
)

// Fingerprint returns the hex BLAKE3-256 digest of the payload's JSON encoding.
func Fingerprint(payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
