package zugferd

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"fmt"

	"github.com/ucarion/c14n"
)

// Fingerprint returns the hex SHA-256 of the canonicalized (C14N) document.
// Hashing the canonical form instead of the raw bytes makes the fingerprint
// immune to serialization noise: whitespace, attribute order and namespace
// prefix choices all normalize away.
func (b *Builder) Fingerprint(xmlBytes []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(xmlBytes))
	dec.Entity = map[string]string{}
	canonical, err := c14n.Canonicalize(dec)
	if err != nil {
		return "", fmt.Errorf("canonicalize document: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
