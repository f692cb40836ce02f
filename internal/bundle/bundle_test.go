package bundle

import (
	"fmt"
	"testing"

	"github.com/alevsk/gwbundle/internal/idgen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type sequence struct{ n int }

func (s *sequence) Generate() string {
	s.n++
	return fmt.Sprintf("%032d", s.n)
}

func (s *sequence) GUID() string {
	s.n++
	return fmt.Sprintf("guid-%d", s.n)
}

func TestBundle_BuildFolderTree(t *testing.T) {
	b := New()
	require.NoError(t, b.AddPolicy(&Policy{Path: "api/billing/charge.xml", Name: "charge"}))
	require.NoError(t, b.AddPolicy(&Policy{Path: "top.xml", Name: "top"}))
	b.Services["api/orders.xml"] = &Service{Path: "api/orders.xml", Name: "orders"}

	require.NoError(t, b.BuildFolderTree(&sequence{}))

	assert.Len(t, b.Folders, 3)
	assert.Equal(t, idgen.RootFolderID, b.Folders[""].ID)
	assert.Equal(t, b.Folders[""].ID, b.Folders["api"].ParentFolderID)
	assert.Equal(t, b.Folders["api"].ID, b.Folders["api/billing"].ParentFolderID)

	p, err := b.FolderTree.PathString(b.Folders["api/billing"])
	require.NoError(t, err)
	assert.Equal(t, "api/billing", p)

	f, err := b.FolderFor("api/billing/charge.xml")
	require.NoError(t, err)
	assert.Equal(t, "billing", f.Name)

	// a second pass keeps existing ids
	apiID := b.Folders["api"].ID
	require.NoError(t, b.BuildFolderTree(&sequence{n: 100}))
	assert.Equal(t, apiID, b.Folders["api"].ID)
}

func TestBundle_AddPolicyDuplicate(t *testing.T) {
	b := New()
	require.NoError(t, b.AddPolicy(&Policy{Path: "a.xml"}))
	assert.ErrorIs(t, b.AddPolicy(&Policy{Path: "a.xml"}), ErrDuplicateRecord)
}

func TestBundle_PolicyLookups(t *testing.T) {
	b := New()
	target := &Policy{Path: "lib/auth.xml", Name: "auth"}
	require.NoError(t, b.AddPolicy(target))
	b.Encasses["Auth"] = &Encass{Name: "Auth", PolicyPath: "lib/auth"}

	got, ok := b.PolicyByPath("/lib/auth")
	require.True(t, ok)
	assert.Same(t, target, got)

	e, ok := b.EncassForPolicy("lib/auth.xml")
	require.True(t, ok)
	assert.Equal(t, "Auth", e.Name)

	_, ok = b.EncassForPolicy("missing.xml")
	assert.False(t, ok)
}

func TestPrivateKey_KeyID(t *testing.T) {
	tests := []struct {
		name string
		key  PrivateKey
		want string
	}{
		{name: "default keystore", key: PrivateKey{Alias: "ssl"}, want: idgen.DefaultKeystoreID + ":ssl"},
		{name: "hardware keystore", key: PrivateKey{Alias: "ssl", Keystore: KeystoreHSM}, want: "00000000000000000000000000000003:ssl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.key.KeyID())
		})
	}
}

func TestKeystoreTypeForID(t *testing.T) {
	assert.Equal(t, KeystoreHSM, KeystoreTypeForID("00000000000000000000000000000003"))
	assert.Equal(t, KeystorePKCS12, KeystoreTypeForID(idgen.DefaultKeystoreID))
	assert.Equal(t, KeystorePKCS12, KeystoreTypeForID("unknown"))
	for _, k := range []KeystoreType{KeystoreGeneric, KeystorePKCS12, KeystoreHSM} {
		assert.Equal(t, k, KeystoreTypeForID(k.KeystoreID()))
	}
}

func TestTrustedCert_YAMLInlineProperties(t *testing.T) {
	in := `
verifyHostname: false
trustedForSsl: true
encoded: MIIB
`
	var cert TrustedCert
	require.NoError(t, yaml.Unmarshal([]byte(in), &cert))
	assert.Equal(t, "MIIB", cert.Encoded)
	assert.Equal(t, map[string]bool{"verifyHostname": false, "trustedForSsl": true}, cert.Properties)
}

func TestService_Defaults(t *testing.T) {
	s := &Service{}
	assert.True(t, s.IsEnabled())
	assert.Equal(t, DefaultHTTPMethods, s.Methods())

	off := false
	s = &Service{Enabled: &off, HTTPMethods: []string{"GET"}}
	assert.False(t, s.IsEnabled())
	assert.Equal(t, []string{"GET"}, s.Methods())
}
