package cryptoutils

import (
	"fmt"

	"golang.org/x/crypto/ssh"
)

// Fingerprint returns the OpenSSH style SHA256 fingerprint of a PEM public key,
// e.g. "SHA256:nThbg6kXUpJWGl7E1IGOCspRomTxdCARLviKw6E5SY8".
func Fingerprint(pub PublicKeyPEM) (string, error) {
	key, err := pub.GetPublicKey()
	if err != nil {
		return "", err
	}
	return fingerprintKey(key)
}

// PrivateKeyFingerprint fingerprints the public half of a private key.
func PrivateKeyFingerprint(priv PrivateKeyPEM) (string, error) {
	key, err := priv.GetPublicKey()
	if err != nil {
		return "", err
	}
	return fingerprintKey(key)
}

// CertificateFingerprint fingerprints the public key of a certificate, so a
// certificate and its private key produce the same value.
func CertificateFingerprint(cert TLSCert) (string, error) {
	x509Cert, err := cert.GetX509Cert()
	if err != nil {
		return "", err
	}
	return fingerprintKey(x509Cert.PublicKey)
}

func fingerprintKey(key interface{}) (string, error) {
	sshKey, err := ssh.NewPublicKey(key)
	if err != nil {
		return "", fmt.Errorf("unsupported public key for fingerprint: %w", err)
	}
	return ssh.FingerprintSHA256(sshKey), nil
}
