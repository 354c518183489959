package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/sfsm565826960/PostmanLite/internal/errdef"
	"github.com/sfsm565826960/PostmanLite/internal/reqspec"
)

// Every signed exchange carries the same constant auth type. It is sent as
// a header but does not participate in the signing string.
const authType = "1"

// DefaultCredentialKey is the cookie-equivalent name looked up when the
// auth config does not pick one.
const DefaultCredentialKey = "auth_value"

// CredentialSource is a synchronous name -> value lookup. Missing names
// resolve to the empty string, never an error.
type CredentialSource interface {
	Get(name string) string
}

// HeaderSet is one freshly computed set of signed headers. Timestamp and
// nonce are time-bound, so a set must never be cached across sends.
type HeaderSet struct {
	AppID     string
	Timestamp string
	Nonce     string
	AuthType  string
	AuthValue string
	Signature string
}

// Pairs returns the six headers in wire order.
func (h HeaderSet) Pairs() [][2]string {
	return [][2]string{
		{"x-appid", h.AppID},
		{"x-request-ts", h.Timestamp},
		{"x-nonce", h.Nonce},
		{"x-auth-type", h.AuthType},
		{"x-auth-value", h.AuthValue},
		{"x-sign", h.Signature},
	}
}

type Signer struct {
	creds CredentialSource
	now   func() time.Time
}

func NewSigner(creds CredentialSource) *Signer {
	return &Signer{creds: creds, now: time.Now}
}

// Compute builds a fresh header set for one send. It fails only when the
// key material is missing; the caller logs that and sends without auth
// headers rather than failing the request.
func (s *Signer) Compute(cfg reqspec.AuthConfig) (HeaderSet, error) {
	if cfg.AppID == "" || cfg.SecretKey == "" {
		return HeaderSet{}, errdef.New(errdef.CodeAuth, "auth app id and secret key are required")
	}

	credKey := cfg.CredentialKey
	if credKey == "" {
		credKey = DefaultCredentialKey
	}
	authValue := ""
	if s.creds != nil {
		authValue = s.creds.Get(credKey)
	}

	timestamp := strconv.FormatInt(s.now().UnixMilli(), 10)
	return computeAt(cfg.AppID, cfg.SecretKey, authValue, timestamp), nil
}

// computeAt is the deterministic core: same inputs, same signature.
func computeAt(appID, secretKey, authValue, timestamp string) HeaderSet {
	nonce := timestamp
	if len(nonce) > 6 {
		nonce = nonce[len(nonce)-6:]
	}

	// Signing string is the bare concatenation appId+nonce+timestamp+authValue;
	// the auth type is deliberately excluded.
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(appID + nonce + timestamp + authValue))
	signature := hex.EncodeToString(mac.Sum(nil))

	return HeaderSet{
		AppID:     appID,
		Timestamp: timestamp,
		Nonce:     nonce,
		AuthType:  authType,
		AuthValue: authValue,
		Signature: signature,
	}
}
