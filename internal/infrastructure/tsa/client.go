// Package tsa implements an RFC 3161 time-stamping client over plain HTTP.
//
// The proof step must never block issuance: when the authority is down,
// misconfigured or rejects the request, the client degrades to a local token
// that records the document digest and carries an explicit not-for-production
// warning instead of returning an error.
package tsa

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	appbilling "github.com/okiehn/rechnung-api/internal/application/billing"
	"github.com/okiehn/rechnung-api/internal/domain/entity"
	"github.com/okiehn/rechnung-api/pkg/config"
	"github.com/okiehn/rechnung-api/pkg/logger"
)

const (
	contentTypeQuery = "application/timestamp-query"
	contentTypeReply = "application/timestamp-reply"

	// PKIStatus values that carry a usable token (RFC 3161 §2.4.2).
	statusGranted         = 0
	statusGrantedWithMods = 1
)

// SHA-256 OID (2.16.840.1.101.3.4.2.1).
var oidSHA256 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}

// ── RFC 3161 DER structures ───────────────────────────────────────────────────

type messageImprint struct {
	HashAlgorithm pkix.AlgorithmIdentifier
	HashedMessage []byte
}

type timeStampReq struct {
	Version        int
	MessageImprint messageImprint
	Nonce          *big.Int `asn1:"optional"`
	CertReq        bool     `asn1:"optional"`
}

type pkiStatusInfo struct {
	Status       int
	StatusString asn1.RawValue `asn1:"optional"`
	FailInfo     asn1.RawValue `asn1:"optional"`
}

type timeStampResp struct {
	Status         pkiStatusInfo
	TimeStampToken asn1.RawValue `asn1:"optional"`
}

// ── Client ────────────────────────────────────────────────────────────────────

var _ appbilling.Timestamper = (*Client)(nil)

// Client talks to one configured time-stamping authority.
type Client struct {
	cfg        config.TSAConfig
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient builds the client. An empty TSA URL means every proof is
// degraded, which is the intended development mode.
func NewClient(cfg config.TSAConfig, log *logger.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// ObtainProof requests a timestamp for doc. It returns a genuine token when
// the authority grants one and a degraded token in every other case; the
// error return is reserved for programming mistakes (nil doc).
func (c *Client) ObtainProof(ctx context.Context, doc []byte, at time.Time) (*entity.ProofToken, error) {
	if len(doc) == 0 {
		return nil, fmt.Errorf("tsa: empty document")
	}

	digest := sha256.Sum256(doc)
	docHash := hex.EncodeToString(digest[:])

	if c.cfg.URL == "" {
		c.log.Warn().Msg("no TSA configured, issuing degraded proof token")
		return c.degraded(docHash, at), nil
	}

	token, err := c.request(ctx, digest[:])
	if err != nil {
		c.log.Warn().Err(err).Str("tsa_url", c.cfg.URL).Msg("TSA request failed, degrading proof")
		return c.degraded(docHash, at), nil
	}

	return &entity.ProofToken{
		TSAURL:        c.cfg.URL,
		HashAlgorithm: "SHA256",
		DocumentHash:  docHash,
		FinalHash:     docHash, // recomputed by the caller after token embedding
		Timestamp:     at.UTC(),
		Token:         token,
		Degraded:      false,
	}, nil
}

// request performs one timestamp query round-trip and returns the raw
// TimeStampToken DER.
func (c *Client) request(ctx context.Context, digest []byte) ([]byte, error) {
	nonce, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 64))
	if err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	reqDER, err := asn1.Marshal(timeStampReq{
		Version: 1,
		MessageImprint: messageImprint{
			HashAlgorithm: pkix.AlgorithmIdentifier{
				Algorithm:  oidSHA256,
				Parameters: asn1.NullRawValue,
			},
			HashedMessage: digest,
		},
		Nonce:   nonce,
		CertReq: true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(reqDER))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentTypeQuery)
	httpReq.Header.Set("Accept", contentTypeReply)
	if c.cfg.Username != "" {
		httpReq.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post to TSA: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("TSA returned HTTP %d", httpResp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp timeStampResp
	if _, err := asn1.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.Status.Status != statusGranted && resp.Status.Status != statusGrantedWithMods {
		return nil, fmt.Errorf("TSA rejected request with status %d", resp.Status.Status)
	}
	if len(resp.TimeStampToken.FullBytes) == 0 {
		return nil, fmt.Errorf("TSA granted but returned no token")
	}
	return resp.TimeStampToken.FullBytes, nil
}

func (c *Client) degraded(docHash string, at time.Time) *entity.ProofToken {
	return &entity.ProofToken{
		TSAURL:        c.cfg.URL,
		HashAlgorithm: "SHA256",
		DocumentHash:  docHash,
		FinalHash:     docHash,
		Timestamp:     at.UTC(),
		Degraded:      true,
		Warning:       entity.DegradedProofWarning,
	}
}
