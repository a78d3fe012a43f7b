package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"software.sslmate.com/src/go-pkcs12"

	apperrors "docgen-workers/internal/common/errors"
	httpclient "docgen-workers/internal/common/http"
	"docgen-workers/internal/common/logger"
)

const testBundlePassword = "s3cret"

func createTestBundle(t *testing.T) (path string, key *rsa.PrivateKey, cert *x509.Certificate) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "docgen-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err = x509.ParseCertificate(der)
	require.NoError(t, err)

	pfx, err := pkcs12.Modern.Encode(key, cert, nil, testBundlePassword)
	require.NoError(t, err)

	path = filepath.Join(t.TempDir(), "client.pfx")
	require.NoError(t, os.WriteFile(path, pfx, 0o600))
	return path, key, cert
}

type staticClock time.Time

func (c staticClock) Now() time.Time { return time.Time(c) }

func TestAssertionExchanger_Exchange(t *testing.T) {
	bundle, key, cert := createTestBundle(t)
	now := time.Now().Truncate(time.Second)

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "client-123", r.PostForm.Get("client_id"))
		assert.Equal(t, clientAssertionType, r.PostForm.Get("client_assertion_type"))
		assert.Equal(t, GraphScope, r.PostForm.Get("scope"))

		parsed, err := jwt.Parse(r.PostForm.Get("client_assertion"), func(tok *jwt.Token) (interface{}, error) {
			return &key.PublicKey, nil
		}, jwt.WithValidMethods([]string{"RS256"}), jwt.WithTimeFunc(func() time.Time { return now }))
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		assert.Equal(t, Thumbprint(cert), parsed.Header["x5t"])
		claims := parsed.Claims.(jwt.MapClaims)
		assert.Equal(t, server.URL+"/tenant/oauth2/v2.0/token", claims["aud"])
		assert.Equal(t, "client-123", claims["iss"])
		assert.Equal(t, "client-123", claims["sub"])
		assert.NotEmpty(t, claims["jti"])
		assert.EqualValues(t, now.Unix(), claims["nbf"])
		assert.EqualValues(t, now.Add(time.Hour).Unix(), claims["exp"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"graph-token","expires_in":1800,"token_type":"Bearer"}`))
	}))
	defer server.Close()

	ex := NewAssertionExchanger(AssertionConfig{
		TokenURL:       server.URL + "/tenant/oauth2/v2.0/token",
		ClientID:       "client-123",
		BundlePath:     bundle,
		BundlePassword: testBundlePassword,
	}, httpclient.Wrap(server.Client()), staticClock(now))

	tok, err := ex.Exchange(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "graph-token", tok.AccessToken)
	assert.Equal(t, 1800, tok.ExpiresIn)
}

func TestAssertionExchanger_PicksUpRotatedBundle(t *testing.T) {
	bundle, _, oldCert := createTestBundle(t)
	rotated, _, newCert := createTestBundle(t)

	var thumbprints []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		parsed, _, err := jwt.NewParser().ParseUnverified(r.PostForm.Get("client_assertion"), jwt.MapClaims{})
		if assert.NoError(t, err) {
			thumbprints = append(thumbprints, parsed.Header["x5t"].(string))
		}
		_, _ = w.Write([]byte(`{"access_token":"graph-token","expires_in":3600}`))
	}))
	defer server.Close()

	ex := NewAssertionExchanger(AssertionConfig{
		TokenURL:       server.URL + "/token",
		ClientID:       "client-123",
		BundlePath:     bundle,
		BundlePassword: testBundlePassword,
	}, httpclient.Wrap(server.Client()), nil)

	_, err := ex.Exchange(context.Background())
	require.NoError(t, err)

	raw, err := os.ReadFile(rotated)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(bundle, raw, 0o600))

	_, err = ex.Exchange(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{Thumbprint(oldCert), Thumbprint(newCert)}, thumbprints)
}

func TestAssertionExchanger_Rejected(t *testing.T) {
	bundle, _, _ := createTestBundle(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer server.Close()

	ex := NewAssertionExchanger(AssertionConfig{
		TokenURL:       server.URL,
		ClientID:       "client-123",
		BundlePath:     bundle,
		BundlePassword: testBundlePassword,
	}, server.Client(), nil)

	_, err := ex.Exchange(context.Background())
	require.Error(t, err)

	stdErr, ok := apperrors.AsStandard(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeAuthFailure, stdErr.Code)
	assert.Equal(t, 401, stdErr.Metadata["status"])
	assert.Equal(t, `{"error":"invalid_client"}`, stdErr.Metadata["body"])
}

func TestAssertionExchanger_BadBundle(t *testing.T) {
	bundle, _, _ := createTestBundle(t)

	tests := []struct {
		name     string
		path     string
		password string
	}{
		{name: "missing file", path: filepath.Join(t.TempDir(), "nope.pfx"), password: testBundlePassword},
		{name: "wrong password", path: bundle, password: "wrong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := NewAssertionExchanger(AssertionConfig{
				TokenURL:       "http://127.0.0.1:0/token",
				ClientID:       "client-123",
				BundlePath:     tt.path,
				BundlePassword: tt.password,
			}, http.DefaultClient, nil)

			_, err := ex.Exchange(context.Background())
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.ErrCodeAuthFailure))
		})
	}
}

func TestSessionWithAssertionExchanger_DefaultsExpiry(t *testing.T) {
	bundle, _, _ := createTestBundle(t)
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"access_token":"graph-token"}`))
	}))
	defer server.Close()

	clock := &fakeClock{now: time.Now()}
	ex := NewAssertionExchanger(AssertionConfig{
		TokenURL:       server.URL,
		ClientID:       "client-123",
		BundlePath:     bundle,
		BundlePassword: testBundlePassword,
	}, server.Client(), clock)
	session := NewSession(ex, logger.NewTestLogger(t), WithClock(clock))

	for i := 0; i < 3; i++ {
		tok, err := session.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "graph-token", tok)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, clock.Now().Add(time.Hour), session.Expiry())
}
