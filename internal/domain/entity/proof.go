package entity

import "time"

// DegradedProofWarning is the explicit marker carried by fallback tokens so
// a degraded proof can never be mistaken for a genuine one downstream.
const DegradedProofWarning = "mock timestamp - not for production use"

// ProofToken records the outcome of the timestamp/proof step. Genuine tokens
// carry the authority's RFC3161 TimeStampToken (DER); degraded tokens carry
// only the locally computed digests plus the not-for-production warning.
type ProofToken struct {
	TSAURL        string    `json:"tsa_url"`
	HashAlgorithm string    `json:"hash_algorithm"`
	DocumentHash  string    `json:"document_hash"` // digest of the bytes submitted to the authority
	FinalHash     string    `json:"final_hash"`    // digest after token embedding (== DocumentHash when degraded)
	Timestamp     time.Time `json:"timestamp"`     // when the attempt was made, UTC
	Token         []byte    `json:"token,omitempty"`
	Degraded      bool      `json:"degraded"`
	Warning       string    `json:"warning,omitempty"`
}

// Genuine reports whether the token is backed by an authority signature.
func (t *ProofToken) Genuine() bool {
	return t != nil && !t.Degraded && len(t.Token) > 0
}
