// internal/common/auth/assertion.go
package auth

import (
	"context"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"software.sslmate.com/src/go-pkcs12"

	apperrors "docgen-workers/internal/common/errors"
	httpclient "docgen-workers/internal/common/http"
)

const (
	clientAssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"
	// GraphScope requests every application permission granted to the client.
	GraphScope        = "https://graph.microsoft.com/.default"
	assertionLifetime = time.Hour
)

// AssertionConfig describes a certificate credential registered for a client.
type AssertionConfig struct {
	TokenURL       string
	ClientID       string
	BundlePath     string // PKCS#12 (.pfx) file holding the key and certificate
	BundlePassword string
	Scope          string
}

// AssertionExchanger implements the OAuth2 client credentials grant with a
// signed JWT client assertion.
type AssertionExchanger struct {
	cfg    AssertionConfig
	client httpclient.Doer
	clock  Clock
}

// TokenResponse is the token endpoint's success body.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func NewAssertionExchanger(cfg AssertionConfig, client httpclient.Doer, clock Clock) *AssertionExchanger {
	if cfg.Scope == "" {
		cfg.Scope = GraphScope
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &AssertionExchanger{cfg: cfg, client: client, clock: clock}
}

// Exchange signs a fresh assertion and posts it to the token endpoint. The
// bundle is read on every call, so a rotated certificate takes effect at the
// next refresh.
func (e *AssertionExchanger) Exchange(ctx context.Context) (*Token, error) {
	key, cert, err := LoadBundle(e.cfg.BundlePath, e.cfg.BundlePassword)
	if err != nil {
		return nil, err
	}
	thumbprint := Thumbprint(cert)

	assertion, err := e.signAssertion(key, thumbprint)
	if err != nil {
		return nil, apperrors.NewAuthFailureError("failed to sign client assertion", err)
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", e.cfg.ClientID)
	form.Set("client_assertion_type", clientAssertionType)
	form.Set("client_assertion", assertion)
	form.Set("scope", e.cfg.Scope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, apperrors.NewAuthFailureError("failed to create token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, apperrors.NewAuthFailureError("failed to execute token request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewAuthRejectedError(resp.StatusCode, httpclient.ReadBody(resp))
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, apperrors.NewAuthFailureError("failed to decode token response", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, apperrors.NewAuthFailureError("token response carried no access_token", nil)
	}

	return &Token{AccessToken: tokenResp.AccessToken, ExpiresIn: tokenResp.ExpiresIn}, nil
}

func (e *AssertionExchanger) signAssertion(key *rsa.PrivateKey, thumbprint string) (string, error) {
	now := e.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"aud": e.cfg.TokenURL,
		"iss": e.cfg.ClientID,
		"sub": e.cfg.ClientID,
		"jti": uuid.NewString(),
		"nbf": now.Unix(),
		"exp": now.Add(assertionLifetime).Unix(),
	})
	token.Header["x5t"] = thumbprint
	return token.SignedString(key)
}

// LoadBundle reads an RSA key and its certificate from a PKCS#12 file.
func LoadBundle(path, password string) (*rsa.PrivateKey, *x509.Certificate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, apperrors.NewAuthFailureError(fmt.Sprintf("failed to read credential bundle %s", path), err)
	}

	priv, cert, _, err := pkcs12.DecodeChain(raw, password)
	if err != nil {
		return nil, nil, apperrors.NewAuthFailureError("failed to decode credential bundle", err)
	}

	key, ok := priv.(*rsa.PrivateKey)
	if !ok {
		return nil, nil, apperrors.NewAuthFailureError(fmt.Sprintf("credential bundle holds a %T key, RS256 needs RSA", priv), nil)
	}
	return key, cert, nil
}

// Thumbprint is the x5t header value: base64 of the SHA-1 of the certificate DER.
func Thumbprint(cert *x509.Certificate) string {
	sum := sha1.Sum(cert.Raw)
	return base64.StdEncoding.EncodeToString(sum[:])
}
