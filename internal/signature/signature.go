// Package signature verifies RSA signatures over request data, as used by
// sites that present a site key.
package signature

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"log/slog"
	"strings"
)

// CanonicalString builds the signed data for a site key: the request URI,
// host and user agent joined by NUL bytes.
func CanonicalString(uri, host, userAgent string) string {
	return strings.Join([]string{uri, host, userAgent}, "\x00")
}

// Verifier checks site key signatures
type Verifier struct {
	logger *slog.Logger
}

// New creates a verifier
func New() *Verifier {
	return &Verifier{logger: slog.Default()}
}

// WithLogger sets the logger
func (v *Verifier) WithLogger(logger *slog.Logger) *Verifier {
	v.logger = logger
	return v
}

// VerifySignature checks an RSASSA-PKCS1-v1_5 SHA-1 signature. key is a
// base64 DER SubjectPublicKeyInfo, signature is base64. Any malformed input
// or mismatch yields false.
func (v *Verifier) VerifySignature(key, signature, data string) bool {
	der, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		v.logger.Debug("invalid site key encoding", slog.Any("error", err))
		return false
	}

	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		v.logger.Debug("invalid site key", slog.Any("error", err))
		return false
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return false
	}

	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}

	digest := sha1.Sum([]byte(data))
	return rsa.VerifyPKCS1v15(pub, crypto.SHA1, digest[:], sig) == nil
}
