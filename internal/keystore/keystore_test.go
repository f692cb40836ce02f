package keystore

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/alevsk/gwbundle/internal/bundle"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"software.sslmate.com/src/go-pkcs12"
)

type testChain struct {
	key  *ecdsa.PrivateKey
	leaf *x509.Certificate
	ca   *x509.Certificate
}

func newTestChain(t *testing.T) testChain {
	t.Helper()
	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	caTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test-ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTmpl, caTmpl, &caKey.PublicKey, caKey)
	require.NoError(t, err)
	ca, err := x509.ParseCertificate(caDER)
	require.NoError(t, err)

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	leafTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "gateway"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTmpl, ca, &key.PublicKey, caKey)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(leafDER)
	require.NoError(t, err)

	return testChain{key: key, leaf: leaf, ca: ca}
}

func TestHelper_PKCS12(t *testing.T) {
	chain := newTestChain(t)
	pfx, err := pkcs12.Modern.Encode(chain.key, chain.leaf, []*x509.Certificate{chain.ca}, "secret")
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/config/privateKeys/ssl.p12", pfx, 0o644))

	h := NewHelper(fs, "/src")
	pk := &bundle.PrivateKey{Alias: "ssl", File: "config/privateKeys/ssl.p12", KeyPassword: "secret"}

	ks, err := h.LoadKeyStore(pk)
	require.NoError(t, err)
	assert.Equal(t, "EC", ks.Algorithm())

	certs, err := h.LoadCertificatesForPrivateKey(pk, ks)
	require.NoError(t, err)
	require.Len(t, certs, 2)
	assert.Equal(t, "gateway", certs[0].Subject.CommonName)
	assert.Equal(t, "test-ca", certs[1].Subject.CommonName)
}

func TestHelper_PKCS12WrongPassword(t *testing.T) {
	chain := newTestChain(t)
	pfx, err := pkcs12.Modern.Encode(chain.key, chain.leaf, nil, "secret")
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/ssl.p12", pfx, 0o644))

	_, err = NewHelper(fs, "/src").LoadKeyStore(&bundle.PrivateKey{Alias: "ssl", File: "ssl.p12", KeyPassword: "wrong"})
	var keyErr *KeyError
	require.ErrorAs(t, err, &keyErr)
	assert.Equal(t, "ssl", keyErr.Alias)
}

func TestHelper_PEM(t *testing.T) {
	chain := newTestChain(t)
	keyDER, err := x509.MarshalPKCS8PrivateKey(chain.key)
	require.NoError(t, err)

	var data []byte
	data = append(data, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: chain.leaf.Raw})...)
	data = append(data, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: chain.ca.Raw})...)
	data = append(data, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})...)

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/signer.pem", data, 0o644))

	h := NewHelper(fs, "/src")
	pk := &bundle.PrivateKey{Alias: "signer", File: "signer.pem"}
	ks, err := h.LoadKeyStore(pk)
	require.NoError(t, err)

	certs, err := h.LoadCertificatesForPrivateKey(pk, ks)
	require.NoError(t, err)
	require.Len(t, certs, 2)
	assert.Equal(t, chain.leaf.Raw, certs[0].Raw)
}

func TestHelper_Errors(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/key.jks", []byte("x"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/src/empty.pem", []byte("not pem"), 0o644))
	h := NewHelper(fs, "/src")

	tests := []struct {
		name string
		file string
		want error
	}{
		{name: "no file reference", file: "", want: ErrNoKeyFile},
		{name: "unsupported extension", file: "key.jks", want: ErrUnsupportedStore},
		{name: "no pem blocks", file: "empty.pem", want: ErrUnsupportedStore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.LoadKeyStore(&bundle.PrivateKey{Alias: "k", File: tt.file})
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := h.LoadKeyStore(&bundle.PrivateKey{Alias: "k", File: "missing.p12"})
	assert.Error(t, err)

	_, err = h.LoadCertificatesForPrivateKey(&bundle.PrivateKey{Alias: "k"}, &KeyStore{})
	assert.ErrorIs(t, err, ErrNoCertificate)
}
