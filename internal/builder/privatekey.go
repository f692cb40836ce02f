package builder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alevsk/gwbundle/internal/bundle"
	"github.com/alevsk/gwbundle/internal/entity"
	"github.com/alevsk/gwbundle/internal/keystore"
	"github.com/beevik/etree"
)

// PlaceholderCertificate is a self signed certificate written into the chain
// of private keys that come without key material. The gateway needs a chain
// to parse the entity; the certificate is never used as a credential.
const PlaceholderCertificate = "MIIBfTCCASegAwIBAgIJAPH69zKKw4ixMA0GCSqGSIb3DQEBBQUAMA8xDTALBgNVBAMTBHRlc3QwHhcNMTgxMDEzMDMyODI1WhcNMzgxMDA4MDMyODI1WjAPMQ0wCwYDVQQDEwR0ZXN0MFwwDQYJKoZIhvcNAQEBBQADSwAwSAJBAIS+Vr8zPOBmSclkUtW/z0UXaMjhg7dix6IUZs+UoSiw/2GXfU2vc3renVAbn3AZaJEqnxgrcX4nldqt0WBIP4sCAwEAAaNmMGQwDgYDVR0PAQH/BAQDAgXgMBIGA1UdJQEB/wQIMAYGBFUdJQAwHQYDVR0OBBYEFN/aeDDEAB6MTxZhMhf/eJKnmaE5MB8GA1UdIwQYMBaAFN/aeDDEAB6MTxZhMhf/eJKnmaE5MA0GCSqGSIb3DQEBBQUAA0EAdolvh7bMX5ZMkM/yntJlBdzS8ukM/ULh8I11wKd6dDltyMuk9rOP0iEk1nsSFuFL0uQ4kIe12KyDwr8ns7VKvQ=="

var placeholderCertData = certData{Serial: "0", Encoded: PlaceholderCertificate}

// DefaultKeyAlgorithm is used when neither the record nor the keystore name
// an algorithm
const DefaultKeyAlgorithm = "RSA"

// ErrNoKeystoreHelper is returned when key material has to be read but the
// builder has no KeystoreHelper
var ErrNoKeystoreHelper = fmt.Errorf("no keystore helper configured")

// PrivateKeyBuilder emits private key entries. Keys are never created by a
// bundle: deployment bundles only assert their presence and environment
// bundles describe them with their certificate chain.
type PrivateKeyBuilder struct {
	opts *Options
}

// Order implements Builder
func (p *PrivateKeyBuilder) Order() int { return 800 }

// Build implements Builder
func (p *PrivateKeyBuilder) Build(b *bundle.Bundle, t BundleType) ([]*entity.Entity, error) {
	var out []*entity.Entity
	switch t {
	case Deployment:
		for _, alias := range sortedKeys(b.PrivateKeys) {
			pk := b.PrivateKeys[alias]
			pk.Alias = alias
			out = append(out, entity.MappingOnly(entity.TypePrivateKey, alias, pk.KeyID()).
				WithAction(entity.NewOrExisting).
				SetMappingProperty(entity.FailOnNew, true))
		}
	case Environment:
		for _, alias := range sortedKeys(b.PrivateKeys) {
			e, err := p.buildEntity(b, alias, b.PrivateKeys[alias])
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
	default:
		return nil, t.Validate()
	}
	return out, nil
}

func (p *PrivateKeyBuilder) buildEntity(b *bundle.Bundle, alias string, pk *bundle.PrivateKey) (*entity.Entity, error) {
	pk.Alias = alias
	if pk.File == "" {
		pk.File = b.PrivateKeyFiles[alias]
	}
	id := pk.KeyID()

	el := entity.NewElement("PrivateKey")
	el.CreateAttr("id", id)
	el.CreateAttr("keystoreId", pk.Keystore.KeystoreID())
	el.CreateAttr("alias", alias)

	chain := entity.AddElement(el, "CertificateChain")
	algorithm := pk.Algorithm
	if pk.File == "" {
		addCertificateData(chain, placeholderCertData)
	} else {
		ks, err := p.loadChain(pk, chain)
		if err != nil {
			return nil, err
		}
		if algorithm == "" {
			algorithm = ks.Algorithm()
		}
	}
	if algorithm == "" {
		algorithm = DefaultKeyAlgorithm
	}
	entity.AddProperty(entity.AddProperties(el), "keyAlgorithm", algorithm)

	return entity.New(entity.TypePrivateKey, alias, id, el).
		WithNameMapping().
		WithAction(entity.NewOrExisting).
		SetMappingProperty(entity.FailOnNew, true), nil
}

// loadChain reads the key's keystore and appends one CertificateData element
// per certificate, in chain order
func (p *PrivateKeyBuilder) loadChain(pk *bundle.PrivateKey, chain *etree.Element) (*keystore.KeyStore, error) {
	if p.opts.Keystore == nil {
		return nil, &keystore.KeyError{Alias: pk.Alias, Err: ErrNoKeystoreHelper}
	}
	if strings.TrimSpace(pk.KeyPassword) == "" {
		p.opts.Logger.Warn().Str("alias", pk.Alias).Msg("private key password not provided, attempting with blank password")
		pk.KeyPassword = ""
	}
	ks, err := p.opts.Keystore.LoadKeyStore(pk)
	if err != nil {
		return nil, wrapKeyError(pk.Alias, err)
	}
	certs, err := p.opts.Keystore.LoadCertificatesForPrivateKey(pk, ks)
	if err != nil {
		return nil, wrapKeyError(pk.Alias, err)
	}
	for _, cert := range certs {
		addCertificateData(chain, certDataFromX509(cert))
	}
	return ks, nil
}

// wrapKeyError makes sure the error names the offending key
func wrapKeyError(alias string, err error) error {
	var keyErr *keystore.KeyError
	if errors.As(err, &keyErr) {
		return err
	}
	return &keystore.KeyError{Alias: alias, Err: err}
}
