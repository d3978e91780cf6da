package servicetoken

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// signServiceToken mints a token the way a calling service would; the
// production code never signs.
func signServiceToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.RegisteredClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func deliveryClaims(audience string) jwt.RegisteredClaims {
	now := time.Now().UTC()
	return jwt.RegisteredClaims{
		Issuer:    "delivery-service",
		Subject:   "delivery-service",
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		ID:        "jti-1",
	}
}

func newTestVerifier(t *testing.T, publicPath, audience string) *Verifier {
	t.Helper()
	v, err := NewVerifierWithOptions(VerifierOptions{
		PublicKeyPath:  publicPath,
		DefaultKeyID:   "internal-active",
		Audience:       audience,
		AllowedIssuers: []string{"delivery-service"},
		Leeway:         time.Second,
	})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	return v
}

func TestVerifyAcceptsPeerToken(t *testing.T) {
	key, publicPath := writeRSAPublicKeyFile(t)
	verifier := newTestVerifier(t, publicPath, "catalog")
	signed := signServiceToken(t, key, "internal-active", deliveryClaims("catalog"))
	claims, err := verifier.Verify(signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Issuer != "delivery-service" {
		t.Fatalf("unexpected issuer: %s", claims.Issuer)
	}
}

func TestVerifyRejectsWrongAudience(t *testing.T) {
	key, publicPath := writeRSAPublicKeyFile(t)
	verifier := newTestVerifier(t, publicPath, "notifications")
	signed := signServiceToken(t, key, "internal-active", deliveryClaims("catalog"))
	if _, err := verifier.Verify(signed); err == nil {
		t.Fatalf("expected audience mismatch")
	}
}

func TestVerifyRejectsUnknownIssuer(t *testing.T) {
	key, publicPath := writeRSAPublicKeyFile(t)
	verifier := newTestVerifier(t, publicPath, "catalog")
	claims := deliveryClaims("catalog")
	claims.Issuer = "rogue-service"
	signed := signServiceToken(t, key, "internal-active", claims)
	if _, err := verifier.Verify(signed); err == nil {
		t.Fatalf("expected issuer rejection")
	}
}

func TestVerifyRejectsUnknownKid(t *testing.T) {
	key, publicPath := writeRSAPublicKeyFile(t)
	verifier := newTestVerifier(t, publicPath, "catalog")
	signed := signServiceToken(t, key, "retired-key", deliveryClaims("catalog"))
	if _, err := verifier.Verify(signed); err == nil {
		t.Fatalf("expected unknown kid to fail")
	}
}

func TestVerifyRequiresKidHeader(t *testing.T) {
	key, publicPath := writeRSAPublicKeyFile(t)
	verifier := newTestVerifier(t, publicPath, "catalog")
	signed := signServiceToken(t, key, "", deliveryClaims("catalog"))
	if _, err := verifier.Verify(signed); err == nil {
		t.Fatalf("expected missing kid token to fail")
	}
}

func TestVerifyRejectsFutureIssuedAt(t *testing.T) {
	key, publicPath := writeRSAPublicKeyFile(t)
	verifier := newTestVerifier(t, publicPath, "catalog")
	claims := deliveryClaims("catalog")
	claims.IssuedAt = jwt.NewNumericDate(time.Now().Add(2 * time.Minute))
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(5 * time.Minute))
	signed := signServiceToken(t, key, "internal-active", claims)
	if _, err := verifier.Verify(signed); err == nil {
		t.Fatalf("expected future iat token to fail")
	}
}

func TestVerifyRequiresJTI(t *testing.T) {
	key, publicPath := writeRSAPublicKeyFile(t)
	verifier := newTestVerifier(t, publicPath, "catalog")
	claims := deliveryClaims("catalog")
	claims.ID = ""
	signed := signServiceToken(t, key, "internal-active", claims)
	if _, err := verifier.Verify(signed); err == nil {
		t.Fatalf("expected missing jti to fail")
	}
}

func TestVerifierRequiresPublicKey(t *testing.T) {
	_, err := NewVerifierWithOptions(VerifierOptions{
		Audience:       "catalog",
		AllowedIssuers: []string{"delivery-service"},
	})
	if err == nil {
		t.Fatalf("expected missing key material to fail")
	}
}

func TestParseVerifyPublicKeys(t *testing.T) {
	parsed, err := ParseVerifyPublicKeys("k1=/a.pem,k2=/b.pem")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(parsed) != 2 {
		t.Fatalf("unexpected parsed size: %d", len(parsed))
	}
	if _, err := ParseVerifyPublicKeys("broken-entry"); err == nil {
		t.Fatalf("expected malformed entry to fail")
	}
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer abc")
	token, ok := BearerToken(req)
	if !ok || token != "abc" {
		t.Fatalf("expected bearer token")
	}
	req.Header.Set("Authorization", "Basic abc")
	if _, ok := BearerToken(req); ok {
		t.Fatalf("non-bearer scheme must be rejected")
	}
}

func writeRSAPublicKeyFile(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	publicPath := filepath.Join(t.TempDir(), "internal-public.pem")
	publicDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public: %v", err)
	}
	publicPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicDER})
	if err := os.WriteFile(publicPath, publicPEM, 0o644); err != nil {
		t.Fatalf("write public: %v", err)
	}
	return key, publicPath
}
