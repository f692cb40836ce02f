package builder

import (
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"slices"

	"github.com/alevsk/gwbundle/internal/bundle"
	"github.com/alevsk/gwbundle/internal/entity"
)

// TrustedCertBuilder emits trusted certificates with their trust flags
type TrustedCertBuilder struct {
	opts *Options
}

// Order implements Builder
func (c *TrustedCertBuilder) Order() int { return 300 }

// Build implements Builder
func (c *TrustedCertBuilder) Build(b *bundle.Bundle, t BundleType) ([]*entity.Entity, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	var out []*entity.Entity
	for _, name := range sortedKeys(b.TrustedCerts) {
		tc := b.TrustedCerts[name]
		if tc.Encoded == "" {
			return nil, fmt.Errorf("%w: trusted cert %s", ErrMissingCert, name)
		}
		der, err := base64.StdEncoding.DecodeString(tc.Encoded)
		if err != nil {
			return nil, fmt.Errorf("trusted cert %s: decoding certificate: %w", name, err)
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("trusted cert %s: parsing certificate: %w", name, err)
		}

		id := assignID(&tc.ID, c.opts.Generator)
		el := entity.NewElement("TrustedCertificate")
		el.CreateAttr("id", id)
		entity.AddText(el, "Name", name)
		addCertificateData(el, certDataFromX509(cert))

		props := entity.AddProperties(el)
		for _, key := range bundle.TrustedCertProperties {
			entity.AddProperty(props, key, tc.Properties[key])
		}
		for _, key := range sortedKeys(tc.Properties) {
			if !slices.Contains(bundle.TrustedCertProperties, key) {
				entity.AddProperty(props, key, tc.Properties[key])
			}
		}
		out = append(out, entity.New(entity.TypeTrustedCert, name, id, el))
	}
	return out, nil
}
