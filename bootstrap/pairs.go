package bootstrap

import (
	"github.com/ruteri/private-chef-provisioner/cryptoutils"
	"github.com/ruteri/private-chef-provisioner/interfaces"
	"github.com/ruteri/private-chef-provisioner/layout"
)

// Generator produces the two halves of a credential pair.
type Generator interface {
	// Generate creates fresh material. Both halves come from one generation event.
	Generate() (public, private []byte, err error)
}

// Pair is one credential pair and the file whose presence marks it as done.
type Pair struct {
	Name      string
	Public    interfaces.FileSpec
	Private   interfaces.FileSpec
	Marker    string
	Generator Generator
}

// markerHalf returns the half that doubles as the marker and its partner.
func (p Pair) markerHalf() (marker, partner interfaces.FileSpec) {
	if p.Marker == p.Private.Path {
		return p.Private, p.Public
	}
	return p.Public, p.Private
}

// RSAKeypairGenerator creates bare RSA keypairs.
type RSAKeypairGenerator struct {
	Bits int
}

func (g RSAKeypairGenerator) Generate() ([]byte, []byte, error) {
	pub, priv, err := cryptoutils.GenerateRSAKeypair(g.Bits)
	return pub, priv, err
}

// CertificateGenerator creates a self-signed certificate and its key.
type CertificateGenerator struct {
	Options cryptoutils.CertificateOptions
}

func (g CertificateGenerator) Generate() ([]byte, []byte, error) {
	cert, key, err := cryptoutils.GenerateSelfSignedCertificate(g.Options)
	return cert, key, err
}

// DefaultPairs returns the three credential pairs of a server in bootstrap
// order: web UI keypair, worker keypair and the pivotal certificate. Private
// halves belong to user; the web UI and worker pairs are marked by their
// public key, the pivotal pair by its private key.
func DefaultPairs(user string, bits int) []Pair {
	certOpts := cryptoutils.DefaultCertificateOptions()
	if bits != 0 {
		certOpts.Bits = bits
	}

	return []Pair{
		{
			Name:      "webui",
			Public:    interfaces.FileSpec{Path: layout.WebUIPublicKey, Owner: layout.RootUser, Group: layout.RootGroup, Mode: 0644},
			Private:   interfaces.FileSpec{Path: layout.WebUIPrivateKey, Owner: user, Group: layout.RootGroup, Mode: 0600},
			Marker:    layout.WebUIPublicKey,
			Generator: RSAKeypairGenerator{Bits: bits},
		},
		{
			Name:      "worker",
			Public:    interfaces.FileSpec{Path: layout.WorkerPublicKey, Owner: layout.RootUser, Group: layout.RootGroup, Mode: 0644},
			Private:   interfaces.FileSpec{Path: layout.WorkerPrivateKey, Owner: user, Group: layout.RootGroup, Mode: 0600},
			Marker:    layout.WorkerPublicKey,
			Generator: RSAKeypairGenerator{Bits: bits},
		},
		{
			Name:      "pivotal",
			Public:    interfaces.FileSpec{Path: layout.PivotalCert, Owner: layout.RootUser, Group: layout.RootGroup, Mode: 0644},
			Private:   interfaces.FileSpec{Path: layout.PivotalKey, Owner: user, Group: layout.RootGroup, Mode: 0600},
			Marker:    layout.PivotalKey,
			Generator: CertificateGenerator{Options: certOpts},
		},
	}
}
