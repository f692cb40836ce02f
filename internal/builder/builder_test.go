package builder

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/alevsk/gwbundle/internal/bundle"
	"github.com/alevsk/gwbundle/internal/entity"
	"github.com/alevsk/gwbundle/internal/idgen"
	"github.com/alevsk/gwbundle/internal/keystore"
	"github.com/beevik/etree"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sequence struct{ n int }

func (s *sequence) Generate() string {
	s.n++
	return fmt.Sprintf("%032x", s.n)
}

func (s *sequence) GUID() string {
	s.n++
	return fmt.Sprintf("00000000-0000-4000-8000-%012x", s.n)
}

type fakeKeystore struct {
	chain     []*x509.Certificate
	err       error
	seenFile  string
	seenPass  string
	loadCalls int
}

func (f *fakeKeystore) LoadKeyStore(pk *bundle.PrivateKey) (*keystore.KeyStore, error) {
	f.loadCalls++
	f.seenFile = pk.File
	f.seenPass = pk.KeyPassword
	if f.err != nil {
		return nil, f.err
	}
	return &keystore.KeyStore{Chain: f.chain}, nil
}

func (f *fakeKeystore) LoadCertificatesForPrivateKey(pk *bundle.PrivateKey, ks *keystore.KeyStore) ([]*x509.Certificate, error) {
	return ks.Chain, nil
}

func newCert(t *testing.T, cn string, serial int64) *x509.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func testOptions(ks KeystoreHelper, logs *bytes.Buffer) *Options {
	l := zerolog.Nop()
	if logs != nil {
		l = zerolog.New(logs)
	}
	return &Options{Generator: &sequence{}, Keystore: ks, Logger: l}
}

func TestParseBundleType(t *testing.T) {
	tests := []struct {
		in      string
		want    BundleType
		wantErr bool
	}{
		{in: "deployment", want: Deployment},
		{in: "ENVIRONMENT", want: Environment},
		{in: "staging", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBundleType(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownBundleType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuilders_UnknownBundleType(t *testing.T) {
	reg := NewRegistry(testOptions(nil, nil))
	for typ, b := range reg {
		t.Run(string(typ), func(t *testing.T) {
			_, err := b.Build(bundle.New(), BundleType("BOGUS"))
			assert.ErrorIs(t, err, ErrUnknownBundleType)
		})
	}

	_, err := NewPipeline(nil, testOptions(nil, nil)).Build(bundle.New(), BundleType("BOGUS"))
	assert.ErrorIs(t, err, ErrUnknownBundleType)
}

func TestPipeline_Order(t *testing.T) {
	p := NewPipeline(nil, testOptions(nil, nil))
	assert.Equal(t, []entity.Type{
		entity.TypeFolder,
		entity.TypeListenPort,
		entity.TypeTrustedCert,
		entity.TypeClusterProperty,
		entity.TypePrivateKey,
		entity.TypePolicy,
		entity.TypeEncass,
		entity.TypeService,
	}, p.Ordered())
}

type stubBuilder struct {
	order int
	name  string
}

func (s stubBuilder) Order() int { return s.order }

func (s stubBuilder) Build(*bundle.Bundle, BundleType) ([]*entity.Entity, error) {
	return []*entity.Entity{entity.MappingOnly(entity.TypeClusterProperty, s.name, s.name)}, nil
}

func TestPipeline_TieBreakByTypeName(t *testing.T) {
	reg := Registry{
		entity.TypeService: stubBuilder{order: 1, name: "service"},
		entity.TypePolicy:  stubBuilder{order: 1, name: "policy"},
		entity.TypeFolder:  stubBuilder{order: 0, name: "folder"},
	}
	entities, err := NewPipeline(reg, testOptions(nil, nil)).Build(bundle.New(), Deployment)
	require.NoError(t, err)

	var names []string
	for _, e := range entities {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"folder", "policy", "service"}, names)
}

func TestClusterPropertyBuilder(t *testing.T) {
	b := bundle.New()
	b.StaticProperties["cluster.hostname"] = "gw.example.com"
	b.StaticProperties["io.timeout"] = "30"
	b.EnvironmentProperties["gateway.db.url"] = "jdbc:x"
	b.EnvironmentProperties["local.only"] = "ignored"

	builder := &ClusterPropertyBuilder{opts: testOptions(nil, nil)}

	t.Run("deployment", func(t *testing.T) {
		entities, err := builder.Build(b, Deployment)
		require.NoError(t, err)
		require.Len(t, entities, 3)

		assert.Equal(t, "cluster.hostname", entities[0].Name)
		assert.False(t, entities[0].IsMappingOnly())
		assert.True(t, entities[0].MappingProperties[entity.FailOnExisting])
		assert.Equal(t, "gw.example.com", entity.ChildText(entities[0].XML, "Value"))
		assert.Equal(t, "io.timeout", entities[1].Name)

		stub := entities[2]
		assert.True(t, stub.IsMappingOnly())
		assert.Equal(t, "ENV.db.url", stub.Name)
		assert.True(t, stub.NameMapping)
	})

	t.Run("environment", func(t *testing.T) {
		entities, err := builder.Build(b, Environment)
		require.NoError(t, err)
		require.Len(t, entities, 1)
		assert.Equal(t, "ENV.db.url", entities[0].Name)
		assert.False(t, entities[0].IsMappingOnly())
		assert.Equal(t, "jdbc:x", entity.ChildText(entities[0].XML, "Value"))
		assert.True(t, entities[0].MappingProperties[entity.FailOnExisting])
	})
}

func TestEnvPropertyName(t *testing.T) {
	got, ok := EnvPropertyName("gateway.a.b")
	assert.True(t, ok)
	assert.Equal(t, "ENV.a.b", got)

	_, ok = EnvPropertyName("gatewayx")
	assert.False(t, ok)
}

func TestPrivateKeyBuilder_Deployment(t *testing.T) {
	b := bundle.New()
	b.PrivateKeys["ssl"] = &bundle.PrivateKey{}
	b.PrivateKeys["signer"] = &bundle.PrivateKey{Keystore: bundle.KeystoreHSM}

	builder := &PrivateKeyBuilder{opts: testOptions(nil, nil)}
	first, err := builder.Build(b, Deployment)
	require.NoError(t, err)
	second, err := builder.Build(b, Deployment)
	require.NoError(t, err)

	require.Len(t, first, 2)
	for i, e := range first {
		assert.True(t, e.IsMappingOnly())
		assert.Equal(t, entity.NewOrExisting, e.MappingAction)
		assert.True(t, e.MappingProperties[entity.FailOnNew])
		assert.Equal(t, second[i].ID, e.ID, "private key ids are stable across builds")
	}
	assert.Equal(t, "00000000000000000000000000000003:signer", first[0].ID)
	assert.Equal(t, idgen.DefaultKeystoreID+":ssl", first[1].ID)
}

func TestPrivateKeyBuilder_Placeholder(t *testing.T) {
	b := bundle.New()
	b.PrivateKeys["ssl"] = &bundle.PrivateKey{}
	ks := &fakeKeystore{}

	entities, err := (&PrivateKeyBuilder{opts: testOptions(ks, nil)}).Build(b, Environment)
	require.NoError(t, err)
	require.Len(t, entities, 1)

	e := entities[0]
	assert.Equal(t, entity.NewOrExisting, e.MappingAction)
	assert.True(t, e.MappingProperties[entity.FailOnNew])
	assert.Equal(t, 0, ks.loadCalls)

	certs := e.XML.FindElements("./l7:CertificateChain/l7:CertificateData")
	require.Len(t, certs, 1)
	assert.Equal(t, PlaceholderCertificate, entity.ChildText(certs[0], "Encoded"))
	assert.Equal(t, "0", entity.ChildText(certs[0], "SerialNumber"))
	assert.Equal(t, "ssl", e.XML.SelectAttrValue("alias", ""))
	assert.Equal(t, idgen.DefaultKeystoreID, e.XML.SelectAttrValue("keystoreId", ""))
	assert.Equal(t, map[string]string{"keyAlgorithm": "RSA"}, entity.PropertyValues(e.XML.SelectElement("Properties")))
}

func TestPrivateKeyBuilder_Chain(t *testing.T) {
	chain := []*x509.Certificate{newCert(t, "leaf", 3), newCert(t, "intermediate", 2), newCert(t, "root", 1)}
	ks := &fakeKeystore{chain: chain}
	var logs bytes.Buffer

	b := bundle.New()
	b.PrivateKeys["ssl"] = &bundle.PrivateKey{Algorithm: "EC"}
	b.PrivateKeyFiles["ssl"] = "config/privateKeys/ssl.p12"

	entities, err := (&PrivateKeyBuilder{opts: testOptions(ks, &logs)}).Build(b, Environment)
	require.NoError(t, err)
	require.Len(t, entities, 1)

	assert.Equal(t, "config/privateKeys/ssl.p12", ks.seenFile, "file reference is filled before the keystore is read")
	assert.Equal(t, "config/privateKeys/ssl.p12", b.PrivateKeys["ssl"].File)
	assert.Equal(t, "", ks.seenPass)
	assert.Contains(t, logs.String(), "password not provided")

	certs := entities[0].XML.FindElements("./l7:CertificateChain/l7:CertificateData")
	require.Len(t, certs, len(chain))
	for i, c := range certs {
		assert.Equal(t, base64.StdEncoding.EncodeToString(chain[i].Raw), entity.ChildText(c, "Encoded"))
		assert.Equal(t, chain[i].Subject.String(), entity.ChildText(c, "SubjectName"))
	}
}

func TestPrivateKeyBuilder_KeystoreFailure(t *testing.T) {
	tests := []struct {
		name string
		opts *Options
	}{
		{name: "keystore error", opts: testOptions(&fakeKeystore{err: errors.New("bad mac")}, nil)},
		{name: "no helper", opts: testOptions(nil, nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := bundle.New()
			b.PrivateKeys["ssl"] = &bundle.PrivateKey{File: "ssl.p12", KeyPassword: "pw"}

			_, err := (&PrivateKeyBuilder{opts: tt.opts}).Build(b, Environment)
			var keyErr *keystore.KeyError
			require.ErrorAs(t, err, &keyErr)
			assert.Equal(t, "ssl", keyErr.Alias)
		})
	}
}

const includingPolicy = `<wsp:Policy xmlns:L7p="http://www.layer7tech.com/ws/policy" xmlns:wsp="http://schemas.xmlsoap.org/ws/2002/12/policy">
  <wsp:All wsp:Usage="Required">
    <L7p:Include>
      <L7p:PolicyGuid policyPath="lib/auth.xml"/>
    </L7p:Include>
    <L7p:Encapsulated policyPath="lib/auth.xml"/>
    <L7p:HardcodedResponse>
      <L7p:ResponseBody><![CDATA[<ok/>]]></L7p:ResponseBody>
    </L7p:HardcodedResponse>
  </wsp:All>
</wsp:Policy>`

const plainPolicy = `<wsp:Policy xmlns:L7p="http://www.layer7tech.com/ws/policy" xmlns:wsp="http://schemas.xmlsoap.org/ws/2002/12/policy"><wsp:All wsp:Usage="Required"/></wsp:Policy>`

func deploymentBundle(t *testing.T) *bundle.Bundle {
	t.Helper()
	b := bundle.New()
	require.NoError(t, b.AddPolicy(&bundle.Policy{Path: "lib/auth.xml", Name: "auth", Body: []byte(plainPolicy)}))
	require.NoError(t, b.AddPolicy(&bundle.Policy{Path: "api/billing/charge.xml", Name: "charge", Body: []byte(includingPolicy)}))
	b.Services["api/orders.xml"] = &bundle.Service{
		Path: "api/orders.xml", Name: "orders", URL: "/orders", HTTPMethods: []string{"GET"}, Body: []byte(plainPolicy),
	}
	b.Encasses["Auth"] = &bundle.Encass{
		Name: "Auth", PolicyPath: "lib/auth.xml",
		Arguments: []bundle.EncassArgument{{Name: "user", Type: "string"}},
		Results:   []bundle.EncassResult{{Name: "ok", Type: "boolean"}},
	}
	b.StaticProperties["cluster.hostname"] = "gw"
	b.PrivateKeys["ssl"] = &bundle.PrivateKey{}
	b.ListenPorts["https"] = &bundle.ListenPort{Protocol: "HTTPS", Port: 8443, EnabledFeatures: []string{"Published service message input"}}
	return b
}

func TestPipeline_BuildDeployment(t *testing.T) {
	b := deploymentBundle(t)
	doc, err := NewPipeline(nil, testOptions(nil, nil)).BuildDocument(b, Deployment)
	require.NoError(t, err)

	var types []entity.Type
	for _, e := range doc.Entities() {
		if len(types) == 0 || types[len(types)-1] != e.Type {
			types = append(types, e.Type)
		}
	}
	assert.Equal(t, []entity.Type{
		entity.TypeFolder,
		entity.TypeListenPort,
		entity.TypeClusterProperty,
		entity.TypePrivateKey,
		entity.TypePolicy,
		entity.TypeEncass,
		entity.TypeService,
	}, types)

	root := doc.Root()
	folders := root.FindElements("./l7:References/l7:Item/l7:Resource/l7:Folder")
	require.Len(t, folders, 4)
	assert.Equal(t, idgen.RootFolderID, folders[0].SelectAttrValue("id", ""))
	assert.Nil(t, folders[0].SelectAttr("folderId"))

	auth := b.Policies["lib/auth.xml"]
	charge := root.FindElement("./l7:References/l7:Item/l7:Resource/l7:Policy[@guid='" + b.Policies["api/billing/charge.xml"].GUID + "']")
	require.NotNil(t, charge)
	assert.Equal(t, b.Folders["api/billing"].ID, charge.SelectAttrValue("folderId", ""))

	body := etree.NewDocument()
	require.NoError(t, body.ReadFromString(charge.FindElement(".//l7:Resource").Text()))
	assert.Equal(t, auth.GUID, body.FindElement("//L7p:PolicyGuid").SelectAttrValue("stringValue", ""))
	assert.Equal(t, b.Encasses["Auth"].GUID, body.FindElement("//L7p:EncapsulatedAssertionConfigGuid").SelectAttrValue("stringValue", ""))
	assert.Equal(t, "PG9rLz4=", body.FindElement("//L7p:Base64ResponseBody").SelectAttrValue("stringValue", ""))

	encass := root.FindElement("//l7:EncapsulatedAssertion")
	require.NotNil(t, encass)
	assert.Equal(t, auth.ID, encass.FindElement("./l7:PolicyReference").SelectAttrValue("id", ""))
	assert.Equal(t, "user", entity.ChildText(encass.FindElement(".//l7:EncapsulatedAssertionArgument"), "ArgumentName"))

	svc := root.FindElement("//l7:Service/l7:ServiceDetail")
	require.NotNil(t, svc)
	assert.Equal(t, "/orders", entity.ChildText(svc.FindElement(".//l7:HttpMapping"), "UrlPattern"))
	assert.Equal(t, b.Folders["api"].ID, svc.SelectAttrValue("folderId", ""))

	stub := root.FindElement("./l7:Mappings/l7:Mapping[@type='SSG_KEY_ENTRY']")
	require.NotNil(t, stub)
	assert.Equal(t, "NewOrExisting", stub.SelectAttrValue("action", ""))
	assert.Nil(t, root.FindElement("//l7:PrivateKey"), "deployment bundles do not carry key bodies")
}

func TestPipeline_BuildIsIdempotentForKnownIdentities(t *testing.T) {
	b := deploymentBundle(t)
	p := NewPipeline(nil, testOptions(nil, nil))

	_, err := p.Build(b, Deployment)
	require.NoError(t, err)
	guid := b.Policies["lib/auth.xml"].GUID
	svcID := b.Services["api/orders.xml"].ID

	_, err = p.Build(b, Deployment)
	require.NoError(t, err)
	assert.Equal(t, guid, b.Policies["lib/auth.xml"].GUID)
	assert.Equal(t, svcID, b.Services["api/orders.xml"].ID)
}

func TestPipeline_BuildEnvironment(t *testing.T) {
	b := deploymentBundle(t)
	b.EnvironmentProperties["gateway.db.url"] = "jdbc:x"

	entities, err := NewPipeline(nil, testOptions(&fakeKeystore{}, nil)).Build(b, Environment)
	require.NoError(t, err)

	counts := map[entity.Type]int{}
	for _, e := range entities {
		counts[e.Type]++
	}
	assert.Equal(t, map[entity.Type]int{
		entity.TypeListenPort:      1,
		entity.TypeClusterProperty: 1,
		entity.TypePrivateKey:      1,
	}, counts)
}

func TestPolicyBuilder_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{name: "malformed xml", body: "<wsp:Policy", want: ErrInvalidPolicy},
		{
			name: "unknown include",
			body: `<wsp:Policy xmlns:wsp="w" xmlns:L7p="l"><L7p:Include><L7p:PolicyGuid policyPath="nope.xml"/></L7p:Include></wsp:Policy>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := bundle.New()
			require.NoError(t, b.AddPolicy(&bundle.Policy{Path: "p.xml", Name: "p", Body: []byte(tt.body)}))
			_, err := NewPipeline(nil, testOptions(nil, nil)).Build(b, Deployment)
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
			assert.Contains(t, err.Error(), "p.xml")
		})
	}
}

func TestEncassBuilder_MissingPolicy(t *testing.T) {
	b := bundle.New()
	b.Encasses["Auth"] = &bundle.Encass{Name: "Auth", PolicyPath: "lib/gone.xml"}
	_, err := NewPipeline(nil, testOptions(nil, nil)).Build(b, Deployment)
	assert.ErrorIs(t, err, ErrMissingPolicy)
}

func TestTrustedCertBuilder(t *testing.T) {
	cert := newCert(t, "partner", 7)
	b := bundle.New()
	b.TrustedCerts["partner"] = &bundle.TrustedCert{
		Encoded:    base64.StdEncoding.EncodeToString(cert.Raw),
		Properties: map[string]bool{"trustedForSsl": true, "customFlag": true},
	}
	b.TrustedCerts["broken"] = &bundle.TrustedCert{}

	builder := &TrustedCertBuilder{opts: testOptions(nil, nil)}
	_, err := builder.Build(b, Deployment)
	assert.ErrorIs(t, err, ErrMissingCert)

	delete(b.TrustedCerts, "broken")
	entities, err := builder.Build(b, Environment)
	require.NoError(t, err)
	require.Len(t, entities, 1)

	el := entities[0].XML
	assert.Equal(t, "7", entity.ChildText(el.SelectElement("CertificateData"), "SerialNumber"))
	props := entity.PropertyValues(el.SelectElement("Properties"))
	assert.Len(t, props, len(bundle.TrustedCertProperties)+1)
	assert.Equal(t, "true", props["trustedForSsl"])
	assert.Equal(t, "false", props["verifyHostname"])
	assert.Equal(t, "true", props["customFlag"])
}

func TestListenPortBuilder(t *testing.T) {
	off := false
	b := bundle.New()
	b.ListenPorts["admin"] = &bundle.ListenPort{Protocol: "HTTPS", Port: 9443, Enabled: &off, ID: "fixed"}

	entities, err := (&ListenPortBuilder{opts: testOptions(nil, nil)}).Build(b, Deployment)
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "fixed", entities[0].ID)
	assert.Equal(t, "false", entity.ChildText(entities[0].XML, "Enabled"))
	assert.Equal(t, "9443", entity.ChildText(entities[0].XML, "Port"))
}
