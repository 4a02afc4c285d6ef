// Package cryptoutils generates and inspects the key material written during
// credential bootstrap.
//
// # Key Functions
//
// GenerateRSAKeypair - RSA key with a PKIX public half and a PKCS#1 private half
//
// GenerateSelfSignedCertificate - RSA key plus a self-signed CA certificate
// produced from the same generation event (the pivotal superuser identity)
//
// VerifyCertificate - checks that a certificate and a private key belong
// together and carry the expected common name
//
// Fingerprint - OpenSSH style SHA256 fingerprint of a public key, used for
// logging and the status API so key material itself never leaves the host
//
// # PEM Types
//
// TLSCert, PublicKeyPEM and PrivateKeyPEM wrap PEM bytes and validate their
// structure on construction.
package cryptoutils
