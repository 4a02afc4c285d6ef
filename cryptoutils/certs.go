package cryptoutils

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// DefaultRSABits is the modulus size used for every generated key.
const DefaultRSABits = 2048

// PivotalSubject is the distinguished name of the self-signed superuser
// certificate.
var PivotalSubject = pkix.Name{
	Country:            []string{"US"},
	Organization:       []string{"Opscode"},
	OrganizationalUnit: []string{"Certificate Service"},
	CommonName:         "opscode.com",
}

// PivotalEmail is carried in the subject as an emailAddress attribute.
const PivotalEmail = "opscode@opscode.com"

// oidEmailAddress is the PKCS #9 emailAddress attribute.
var oidEmailAddress = []int{1, 2, 840, 113549, 1, 9, 1}

// CertificateOptions controls self-signed certificate generation.
type CertificateOptions struct {
	Bits     int
	Subject  pkix.Name
	Email    string
	Validity time.Duration
}

// DefaultCertificateOptions returns the pivotal identity parameters: a 2048 bit
// key and a ten year validity.
func DefaultCertificateOptions() CertificateOptions {
	return CertificateOptions{
		Bits:     DefaultRSABits,
		Subject:  PivotalSubject,
		Email:    PivotalEmail,
		Validity: 10 * 365 * 24 * time.Hour,
	}
}

// GenerateRSAKeypair creates a new RSA key and returns its public half as a
// PKIX "PUBLIC KEY" block and its private half as a PKCS#1 "RSA PRIVATE KEY"
// block.
func GenerateRSAKeypair(bits int) (PublicKeyPEM, PrivateKeyPEM, error) {
	if bits == 0 {
		bits = DefaultRSABits
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}

	pubkeyBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return nil, nil, err
	}

	publicKeyPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubkeyBytes})
	privateKeyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})

	return PublicKeyPEM(publicKeyPEM), PrivateKeyPEM(privateKeyPEM), nil
}

// GenerateSelfSignedCertificate creates an RSA key and a self-signed X.509
// certificate for it. Both are returned PEM encoded and always originate from
// the same generation event.
func GenerateSelfSignedCertificate(opts CertificateOptions) (TLSCert, PrivateKeyPEM, error) {
	if opts.Bits == 0 {
		opts.Bits = DefaultRSABits
	}
	if opts.Validity == 0 {
		opts.Validity = DefaultCertificateOptions().Validity
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, opts.Bits)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}

	cert, err := selfSign(privateKey, opts)
	if err != nil {
		return nil, nil, err
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})

	return cert, PrivateKeyPEM(keyPEM), nil
}

func selfSign(privateKey *rsa.PrivateKey, opts CertificateOptions) (TLSCert, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	subject := opts.Subject
	subject.ExtraNames = nil
	if opts.Email != "" {
		subject.ExtraNames = []pkix.AttributeTypeAndValue{{
			Type:  oidEmailAddress,
			Value: opts.Email,
		}}
	}

	notBefore := time.Now().Add(-time.Minute).UTC()
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               subject,
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(opts.Validity),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		SignatureAlgorithm:    x509.SHA256WithRSA,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}

	return TLSCert(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})), nil
}

// PublicKeyFromPrivate returns the PKIX PEM public half of a private key.
func PublicKeyFromPrivate(keyPEM []byte) (PublicKeyPEM, error) {
	pub, err := PrivateKeyPEM(keyPEM).GetPublicKey()
	if err != nil {
		return nil, err
	}

	pubkeyBytes, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, err
	}
	return PublicKeyPEM(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubkeyBytes})), nil
}

// VerifyCertificate validates that a certificate matches a given private key and has the expected common name.
// It performs the following checks:
//   - The certificate can be parsed correctly
//   - The common name matches the expected value
//   - The public key in the certificate corresponds to the provided private key
func VerifyCertificate(keyPEM, certPEM []byte, expectedCN string) error {
	privateKey, err := PrivateKeyPEM(keyPEM).GetPrivateKey()
	if err != nil {
		return fmt.Errorf("failed to parse private key: %w", err)
	}

	cert, err := TLSCert(certPEM).GetX509Cert()
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}

	if cert.Subject.CommonName != expectedCN {
		return fmt.Errorf("CommonName is %s, expected %s", cert.Subject.CommonName, expectedCN)
	}

	signer, ok := privateKey.(crypto.Signer)
	if !ok {
		return errors.New("unsupported key type")
	}

	return KeysMatch(cert.PublicKey, signer.Public())
}

// KeysMatch reports an error unless both public keys are the same RSA or ECDSA key.
func KeysMatch(a, b crypto.PublicKey) error {
	switch aKey := a.(type) {
	case *rsa.PublicKey:
		bKey, ok := b.(*rsa.PublicKey)
		if !ok {
			return errors.New("private key type doesn't match certificate")
		}
		if !aKey.Equal(bKey) {
			return errors.New("private key doesn't match certificate")
		}
		return nil
	case *ecdsa.PublicKey:
		bKey, ok := b.(*ecdsa.PublicKey)
		if !ok {
			return errors.New("private key type doesn't match certificate")
		}
		if !aKey.Equal(bKey) {
			return errors.New("private key doesn't match certificate")
		}
		return nil
	default:
		return errors.New("unsupported key type")
	}
}
