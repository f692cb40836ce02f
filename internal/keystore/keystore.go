// Package keystore reads private key material referenced by the bundle's
// private key records. PKCS#12 files and PEM bundles are supported.
package keystore

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/alevsk/gwbundle/internal/bundle"
	"github.com/spf13/afero"
	"software.sslmate.com/src/go-pkcs12"
)

// Error types for keystore operations
var (
	ErrNoKeyFile        = fmt.Errorf("no keystore file")
	ErrUnsupportedStore = fmt.Errorf("unsupported keystore format")
	ErrNoCertificate    = fmt.Errorf("no certificate found")
)

// KeyError names the private key whose keystore could not be used
type KeyError struct {
	Alias string
	Err   error
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("private key %q: %v", e.Alias, e.Err)
}

func (e *KeyError) Unwrap() error {
	return e.Err
}

// KeyStore is the decoded content of a keystore file
type KeyStore struct {
	Key crypto.PrivateKey
	// Chain starts with the key's own certificate
	Chain []*x509.Certificate
}

// Algorithm returns the gateway name of the key algorithm
func (k *KeyStore) Algorithm() string {
	switch k.Key.(type) {
	case *rsa.PrivateKey:
		return "RSA"
	case *ecdsa.PrivateKey:
		return "EC"
	case ed25519.PrivateKey:
		return "Ed25519"
	default:
		return ""
	}
}

// Helper loads keystores from a filesystem rooted at Dir
type Helper struct {
	fs  afero.Fs
	dir string
}

// NewHelper returns a Helper reading keystore files relative to dir
func NewHelper(fs afero.Fs, dir string) *Helper {
	return &Helper{fs: fs, dir: dir}
}

// LoadKeyStore decodes the keystore file referenced by pk
func (h *Helper) LoadKeyStore(pk *bundle.PrivateKey) (*KeyStore, error) {
	if pk.File == "" {
		return nil, &KeyError{Alias: pk.Alias, Err: ErrNoKeyFile}
	}
	name := pk.File
	if !filepath.IsAbs(name) {
		name = filepath.Join(h.dir, name)
	}
	data, err := afero.ReadFile(h.fs, name)
	if err != nil {
		return nil, &KeyError{Alias: pk.Alias, Err: fmt.Errorf("reading %s: %w", pk.File, err)}
	}

	var ks *KeyStore
	switch strings.ToLower(path.Ext(pk.File)) {
	case ".p12", ".pfx":
		ks, err = decodePKCS12(data, pk.KeyPassword)
	case ".pem", ".crt", ".key":
		ks, err = decodePEM(data)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedStore, pk.File)
	}
	if err != nil {
		return nil, &KeyError{Alias: pk.Alias, Err: err}
	}
	return ks, nil
}

// LoadCertificatesForPrivateKey returns the certificate chain of the key,
// leaf first
func (h *Helper) LoadCertificatesForPrivateKey(pk *bundle.PrivateKey, ks *KeyStore) ([]*x509.Certificate, error) {
	if ks == nil || len(ks.Chain) == 0 {
		return nil, &KeyError{Alias: pk.Alias, Err: ErrNoCertificate}
	}
	return ks.Chain, nil
}

func decodePKCS12(data []byte, password string) (*KeyStore, error) {
	key, cert, caCerts, err := pkcs12.DecodeChain(data, password)
	if err != nil {
		return nil, fmt.Errorf("decoding pkcs12: %w", err)
	}
	chain := append([]*x509.Certificate{cert}, caCerts...)
	return &KeyStore{Key: key, Chain: chain}, nil
}

func decodePEM(data []byte) (*KeyStore, error) {
	ks := &KeyStore{}
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		switch block.Type {
		case "CERTIFICATE":
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("parsing certificate: %w", err)
			}
			ks.Chain = append(ks.Chain, cert)
		case "PRIVATE KEY":
			key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("parsing private key: %w", err)
			}
			ks.Key = key
		case "RSA PRIVATE KEY":
			key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("parsing private key: %w", err)
			}
			ks.Key = key
		case "EC PRIVATE KEY":
			key, err := x509.ParseECPrivateKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("parsing private key: %w", err)
			}
			ks.Key = key
		}
	}
	if ks.Key == nil && len(ks.Chain) == 0 {
		return nil, fmt.Errorf("%w: no PEM blocks", ErrUnsupportedStore)
	}
	return ks, nil
}
