package export

import (
	"strings"
	"testing"

	"github.com/alevsk/gwbundle/internal/entity"
	"github.com/alevsk/gwbundle/internal/export/exporttest"
	"github.com/alevsk/gwbundle/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(id string, t entity.Type) graph.Key {
	return graph.Key{ID: id, Type: t}
}

func TestParse(t *testing.T) {
	b, err := Parse(exporttest.Reader())
	require.NoError(t, err)

	assert.Equal(t, []TypeCount{
		{Type: entity.TypeFolder, Count: 5},
		{Type: entity.TypeListenPort, Count: 2},
		{Type: entity.TypeTrustedCert, Count: 1},
		{Type: entity.TypeClusterProperty, Count: 2},
		{Type: entity.TypePrivateKey, Count: 2},
		{Type: entity.TypePolicy, Count: 4},
		{Type: entity.TypeEncass, Count: 1},
		{Type: entity.TypeService, Count: 1},
	}, b.Counts())

	_, ok := b.Get(key(exporttest.JDBCConnectionID, "JDBC_CONNECTION"))
	assert.False(t, ok, "unsupported types are not stored")

	t.Run("policy", func(t *testing.T) {
		p, ok := b.ByGUID(entity.TypePolicy, exporttest.ChargeGUID)
		require.True(t, ok)
		assert.Equal(t, "charge", p.Name)
		assert.Equal(t, exporttest.ChargePolicyID, p.ID)
		assert.Equal(t, exporttest.BillingFolderID, p.FolderID)
		assert.Equal(t, exporttest.ChargeBody, p.Body)

		path, err := b.EntityPath(p)
		require.NoError(t, err)
		assert.Equal(t, "api/billing/charge.xml", path)
	})

	t.Run("service", func(t *testing.T) {
		s, ok := b.Get(key(exporttest.OrdersServiceID, entity.TypeService))
		require.True(t, ok)
		assert.Equal(t, "orders", s.Name)
		assert.True(t, s.Enabled)
		assert.Equal(t, "/orders", s.URLPattern)
		assert.Equal(t, []string{"GET", "POST"}, s.Methods)
		assert.Equal(t, exporttest.APIFolderID, s.FolderID)
	})

	t.Run("encass", func(t *testing.T) {
		e, ok := b.ByGUID(entity.TypeEncass, exporttest.AuditEncassGUID)
		require.True(t, ok)
		assert.Equal(t, "Audit", e.Name)
		assert.Equal(t, exporttest.AuditPolicyID, e.PolicyID)
		require.Len(t, e.Arguments, 1)
		assert.Equal(t, "message", e.Arguments[0].Name)
		assert.True(t, e.Arguments[0].RequireExplicit)
		require.Len(t, e.Results, 1)
		assert.Equal(t, "boolean", e.Results[0].Type)
	})

	t.Run("listen port", func(t *testing.T) {
		lp, ok := b.Get(key(exporttest.AdminPortID, entity.TypeListenPort))
		require.True(t, ok)
		assert.False(t, lp.Enabled)
		assert.Equal(t, 9443, lp.Port)

		lp, _ = b.Get(key(exporttest.HTTPSPortID, entity.TypeListenPort))
		assert.Equal(t, []string{"Published service message input"}, lp.Features)
	})

	t.Run("keys and certs", func(t *testing.T) {
		k, ok := b.Get(key(exporttest.SSLKeyID, entity.TypePrivateKey))
		require.True(t, ok)
		assert.Equal(t, "ssl", k.Alias)
		assert.Equal(t, "RSA", k.Algorithm)
		require.Len(t, k.Certs, 1)
		assert.Equal(t, exporttest.Certificate, k.Certs[0].Encoded)

		c, ok := b.Get(key(exporttest.PartnerCertID, entity.TypeTrustedCert))
		require.True(t, ok)
		assert.Equal(t, map[string]string{"trustedForSsl": "true", "verifyHostname": "false"}, c.Properties)
	})

	t.Run("cluster property", func(t *testing.T) {
		assert.Equal(t, []string{"cluster.hostname", "unused.prop"}, b.Names(entity.TypeClusterProperty))
	})
}

func TestParse_Edges(t *testing.T) {
	b, err := Parse(exporttest.Reader())
	require.NoError(t, err)

	orders := key(exporttest.OrdersServiceID, entity.TypeService)
	charge := key(exporttest.ChargePolicyID, entity.TypePolicy)
	jdbc := key(exporttest.JDBCConnectionID, "JDBC_CONNECTION")

	assert.Equal(t, []graph.Key{
		key(exporttest.HostnamePropertyID, entity.TypeClusterProperty),
		jdbc,
		charge,
	}, b.Graph.Dependencies(orders), "explicit edges first, then derived ones")
	assert.Equal(t, []graph.Key{key(exporttest.PartnerCertID, entity.TypeTrustedCert)}, b.Graph.Dependencies(jdbc))
	assert.Equal(t, []graph.Key{
		key(exporttest.AuthPolicyID, entity.TypePolicy),
		key(exporttest.AuditEncassID, entity.TypeEncass),
	}, b.Graph.Dependencies(charge))
	assert.Equal(t, []graph.Key{key(exporttest.AuditPolicyID, entity.TypePolicy)},
		b.Graph.Dependencies(key(exporttest.AuditEncassID, entity.TypeEncass)))

	reach := b.Graph.Reachable(orders)
	assert.Contains(t, reach, key(exporttest.SSLKeyID, entity.TypePrivateKey))
	assert.NotContains(t, reach, key(exporttest.UnusedPolicyID, entity.TypePolicy))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{name: "not xml", doc: "{}", want: ErrInvalidBundle},
		{name: "no bundle", doc: `<l7:Item xmlns:l7="x"/>`, want: ErrInvalidBundle},
		{
			name: "missing resource",
			doc:  `<l7:Bundle xmlns:l7="x"><l7:References><l7:Item><l7:Id>1</l7:Id><l7:Type>POLICY</l7:Type></l7:Item></l7:References></l7:Bundle>`,
			want: ErrInvalidBundle,
		},
		{
			name: "duplicate",
			doc: `<l7:Bundle xmlns:l7="x"><l7:References>` +
				`<l7:Item><l7:Id>1</l7:Id><l7:Type>CLUSTER_PROPERTY</l7:Type><l7:Resource><l7:ClusterProperty/></l7:Resource></l7:Item>` +
				`<l7:Item><l7:Id>1</l7:Id><l7:Type>CLUSTER_PROPERTY</l7:Type><l7:Resource><l7:ClusterProperty/></l7:Resource></l7:Item>` +
				`</l7:References></l7:Bundle>`,
			want: ErrDuplicateEntity,
		},
		{
			name: "malformed policy body",
			doc: `<l7:Bundle xmlns:l7="x"><l7:References><l7:Item><l7:Id>1</l7:Id><l7:Type>POLICY</l7:Type><l7:Resource>` +
				`<l7:Policy><l7:Resources><l7:ResourceSet><l7:Resource>&lt;wsp:Policy</l7:Resource></l7:ResourceSet></l7:Resources></l7:Policy>` +
				`</l7:Resource></l7:Item></l7:References></l7:Bundle>`,
			want: ErrMalformedPolicy,
		},
		{
			name: "bad port",
			doc: `<l7:Bundle xmlns:l7="x"><l7:References><l7:Item><l7:Id>1</l7:Id><l7:Type>SSG_CONNECTOR</l7:Type><l7:Resource>` +
				`<l7:ListenPort><l7:Port>http</l7:Port></l7:ListenPort></l7:Resource></l7:Item></l7:References></l7:Bundle>`,
			want: ErrInvalidBundle,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParse_WrappedBundle(t *testing.T) {
	doc := `<l7:Item xmlns:l7="http://ns.l7tech.com/2010/04/gateway-management"><l7:Resource>` +
		`<l7:Bundle><l7:References><l7:Item><l7:Name>p</l7:Name><l7:Id>1</l7:Id><l7:Type>CLUSTER_PROPERTY</l7:Type>` +
		`<l7:Resource><l7:ClusterProperty id="1"><l7:Name>p</l7:Name><l7:Value>v</l7:Value></l7:ClusterProperty></l7:Resource>` +
		`</l7:Item></l7:References></l7:Bundle></l7:Resource></l7:Item>`
	b, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	require.Equal(t, 1, b.Len())
	assert.Equal(t, "v", b.Entities()[0].Value)
}

func TestSubset(t *testing.T) {
	b, err := Parse(exporttest.Reader())
	require.NoError(t, err)

	keys := map[graph.Key]struct{}{
		key(exporttest.AuthPolicyID, entity.TypePolicy):   {},
		key(exporttest.ChargePolicyID, entity.TypePolicy): {},
	}
	sub := b.Subset(keys)
	assert.Equal(t, 2, sub.Len())
	assert.Equal(t, []string{"charge", "auth"}, []string{sub.Entities()[0].Name, sub.Entities()[1].Name}, "read order is kept")
	_, ok := sub.ByGUID(entity.TypePolicy, exporttest.AuthGUID)
	assert.True(t, ok)
	assert.Same(t, b.Graph, sub.Graph)
}

func TestBundle_Index(t *testing.T) {
	b, err := Parse(exporttest.Reader())
	require.NoError(t, err)

	p, ok := b.PolicyPath(exporttest.AuthGUID)
	require.True(t, ok)
	assert.Equal(t, "lib/auth.xml", p)

	_, ok = b.PolicyPath("unknown")
	assert.False(t, ok)

	ref, ok := b.Encass(exporttest.AuditEncassGUID)
	require.True(t, ok)
	assert.Equal(t, "Audit", ref.Name)
	assert.Equal(t, "lib/audit.xml", ref.PolicyPath)

	enc, ok := b.ByGUID(entity.TypeEncass, exporttest.AuditEncassGUID)
	require.True(t, ok)
	without := b.Subset(map[graph.Key]struct{}{enc.Key(): {}})
	ref, ok = without.Encass(exporttest.AuditEncassGUID)
	require.True(t, ok)
	assert.Empty(t, ref.PolicyPath)
}
