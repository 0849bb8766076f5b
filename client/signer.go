package client

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"gateflow/api"
)

// Credential is a Gate API v4 key pair.
type Credential struct {
	Key    string
	Secret string
}

func (c Credential) String() string {
	return "Credential{Key:" + c.Key + ", Secret:<redacted>}"
}

func (c Credential) validate() error {
	if strings.TrimSpace(c.Key) == "" {
		return &ConfigurationError{Field: "api key", Reason: "is required for private endpoints"}
	}
	if strings.TrimSpace(c.Secret) == "" {
		return &ConfigurationError{Field: "api secret", Reason: "is required for private endpoints"}
	}
	return nil
}

// SignMaterial is what a signature covers. Path includes the /api/v4 prefix
// and Query is the encoded query string exactly as sent.
type SignMaterial struct {
	Method api.Method
	Path   string
	Query  string
	Body   []byte
}

// SignatureData is attached to a private call as request headers.
type SignatureData struct {
	Key       string
	Timestamp string
	Signature string
}

func (s SignatureData) Headers() map[string]string {
	return map[string]string{
		"KEY":       s.Key,
		"Timestamp": s.Timestamp,
		"SIGN":      s.Signature,
	}
}

// Signer produces the authentication headers of a private call. The
// timestamp is chosen by the signer, never by the caller. Implementations
// must be safe for concurrent use.
type Signer interface {
	Sign(m SignMaterial) (SignatureData, error)
}

// HMACSigner implements Gate's APIv4 signature:
//
//	hex(HMAC-SHA512(secret, METHOD\nPATH\nQUERY\nhex(SHA512(BODY))\nTIMESTAMP))
type HMACSigner struct {
	cred Credential
	now  func() time.Time
}

func NewHMACSigner(cred Credential) (*HMACSigner, error) {
	if err := cred.validate(); err != nil {
		return nil, err
	}
	return &HMACSigner{cred: cred, now: time.Now}, nil
}

// WithClock returns a copy of the signer reading time from now.
func (s *HMACSigner) WithClock(now func() time.Time) *HMACSigner {
	return &HMACSigner{cred: s.cred, now: now}
}

func (s *HMACSigner) Sign(m SignMaterial) (SignatureData, error) {
	if err := s.cred.validate(); err != nil {
		return SignatureData{}, err
	}
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	ts := strconv.FormatInt(now().Unix(), 10)
	return SignatureData{
		Key:       s.cred.Key,
		Timestamp: ts,
		Signature: Signature(s.cred.Secret, m, ts),
	}, nil
}

// Signature computes the hex encoded signature of m at timestamp ts.
func Signature(secret string, m SignMaterial, ts string) string {
	bodyHash := sha512.Sum512(m.Body)
	payload := strings.Join([]string{
		string(m.Method),
		m.Path,
		m.Query,
		hex.EncodeToString(bodyHash[:]),
		ts,
	}, "\n")

	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
