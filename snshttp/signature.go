package snshttp

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec // SignatureVersion 1 is SHA1withRSA
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// maxCertSize bounds the signing certificate download.
const maxCertSize = 64 << 10

// ErrInvalidSignature is returned when a message is unsigned or its
// signature does not match the SNS signing certificate.
var ErrInvalidSignature = errors.New("invalid SNS message signature")

// certCache holds parsed signing certificates by URL. SNS rotates its
// certificate rarely, so entries are kept until they expire.
type certCache struct {
	mu    sync.Mutex
	certs map[string]*x509.Certificate
}

func newCertCache() *certCache {
	return &certCache{certs: make(map[string]*x509.Certificate)}
}

func (c *certCache) get(certURL string, now time.Time) (*x509.Certificate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cert, ok := c.certs[certURL]
	if !ok || now.After(cert.NotAfter) {
		delete(c.certs, certURL)
		return nil, false
	}

	return cert, true
}

func (c *certCache) put(certURL string, cert *x509.Certificate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.certs[certURL] = cert
}

// verifySignature checks msg against the certificate at SigningCertURL.
// Signature problems wrap ErrInvalidSignature. Failing to download the
// certificate returns a plain error so that SNS retries the delivery.
func (s *Server) verifySignature(ctx context.Context, msg *Message) error {
	if msg.Signature == "" {
		return fmt.Errorf("%w: message is not signed", ErrInvalidSignature)
	}

	var hash crypto.Hash

	switch msg.SignatureVersion {
	case "1":
		hash = crypto.SHA1
	case "2":
		hash = crypto.SHA256
	default:
		return fmt.Errorf("%w: unsupported signature version %q", ErrInvalidSignature, msg.SignatureVersion)
	}

	if err := validateCertURL(msg.SigningCertURL); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	signed, err := canonicalString(msg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	signature, err := base64.StdEncoding.DecodeString(msg.Signature)
	if err != nil {
		return fmt.Errorf("%w: signature is not base64: %w", ErrInvalidSignature, err)
	}

	cert, err := s.signingCert(ctx, msg.SigningCertURL)
	if err != nil {
		return err
	}

	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("%w: signing certificate key is %T, expected RSA", ErrInvalidSignature, cert.PublicKey)
	}

	var digest []byte

	if hash == crypto.SHA1 {
		sum := sha1.Sum([]byte(signed)) //nolint:gosec // SignatureVersion 1
		digest = sum[:]
	} else {
		sum := sha256.Sum256([]byte(signed))
		digest = sum[:]
	}

	if err := rsa.VerifyPKCS1v15(pub, hash, digest, signature); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	return nil
}

func (s *Server) signingCert(ctx context.Context, certURL string) (*x509.Certificate, error) {
	now := time.Now()

	if cert, ok := s.certs.get(certURL, now); ok {
		return cert, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.confirmTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, certURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build signing certificate request: %w", err)
	}

	resp, err := s.opts.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download signing certificate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("signing certificate download returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCertSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read signing certificate: %w", err)
	}

	block, _ := pem.Decode(body)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("%w: signing certificate is not a PEM certificate", ErrInvalidSignature)
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse signing certificate: %w", ErrInvalidSignature, err)
	}

	if now.Before(cert.NotBefore) || now.After(cert.NotAfter) {
		return nil, fmt.Errorf("%w: signing certificate is not valid at %s", ErrInvalidSignature, now.Format(time.RFC3339))
	}

	s.certs.put(certURL, cert)

	return cert, nil
}

func validateCertURL(raw string) error {
	if raw == "" {
		return errors.New("SigningCertURL is empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid SigningCertURL: %w", err)
	}

	if u.Scheme != "https" {
		return fmt.Errorf("SigningCertURL must use https, got %q", u.Scheme)
	}

	if !snsHostRegex.MatchString(u.Hostname()) {
		return fmt.Errorf("SigningCertURL host %q is not an SNS endpoint", u.Hostname())
	}

	if !strings.HasSuffix(u.Path, ".pem") {
		return errors.New("SigningCertURL does not point to a .pem file")
	}

	return nil
}

// canonicalString builds the string SNS signs: selected fields as
// "Name\nvalue\n" pairs in byte order of the name.
func canonicalString(msg *Message) (string, error) {
	var fields [][2]string

	switch msg.Type {
	case TypeNotification:
		fields = append(fields, [2]string{"Message", msg.Message}, [2]string{"MessageId", msg.MessageID})

		if msg.Subject != "" {
			fields = append(fields, [2]string{"Subject", msg.Subject})
		}

		fields = append(fields,
			[2]string{"Timestamp", msg.Timestamp},
			[2]string{"TopicArn", msg.TopicArn},
			[2]string{"Type", msg.Type},
		)

	case TypeSubscriptionConfirmation, TypeUnsubscribeConfirmation:
		fields = [][2]string{
			{"Message", msg.Message},
			{"MessageId", msg.MessageID},
			{"SubscribeURL", msg.SubscribeURL},
			{"Timestamp", msg.Timestamp},
			{"Token", msg.Token},
			{"TopicArn", msg.TopicArn},
			{"Type", msg.Type},
		}

	default:
		return "", fmt.Errorf("cannot sign message type %q", msg.Type)
	}

	var b strings.Builder

	for _, f := range fields {
		b.WriteString(f[0])
		b.WriteByte('\n')
		b.WriteString(f[1])
		b.WriteByte('\n')
	}

	return b.String(), nil
}
