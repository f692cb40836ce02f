package formatter

import (
	"strings"
	"testing"

	"github.com/alevsk/gwbundle/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTables(t *testing.T) {
	tests := []struct {
		name   string
		opts   *Options
		data   func() types.Result
		titles []string
	}{
		{
			name:   "full result",
			opts:   DefaultOptions(),
			data:   newTestResult,
			titles: []string{"METADATA", "ENTITIES BY TYPE", "ENTITIES", "FILES", "WARNINGS"},
		},
		{
			name:   "counts only",
			opts:   &Options{},
			data:   func() types.Result { return types.Result{} },
			titles: []string{"ENTITIES BY TYPE"},
		},
		{
			name: "build without files",
			opts: DefaultOptions(),
			data: func() types.Result {
				r := types.Result{
					Operation:  types.OperationBuild,
					BundleType: "deployment",
					Entities:   []types.Entity{{Type: "POLICY", Name: "charge", ID: "p1", Action: "NewOrUpdate"}},
				}
				r.CountEntities()
				return r
			},
			titles: []string{"METADATA", "ENTITIES BY TYPE", "ENTITIES"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tables := buildTables(parse(tt.data(), tt.opts))
			require.Len(t, tables, len(tt.titles))
			for i, tw := range tables {
				assert.Contains(t, tw.Render(), tt.titles[i])
			}
		})
	}
}

func TestTable_Format(t *testing.T) {
	f, err := NewFormatter(TypeTable, nil)
	require.NoError(t, err)
	out, err := f.Format(newTestResult())
	require.NoError(t, err)

	for _, want := range []string{
		"METADATA", "explode", "bundle.xml",
		"ENTITIES BY TYPE", "TOTAL",
		"charge", "api/orders.xml",
		"policy/api/charge.xml",
		"could not find referenced policy include abc",
	} {
		assert.Contains(t, out, want)
	}
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestTable_FormatMappingOnly(t *testing.T) {
	r := types.Result{
		Operation: types.OperationBuild,
		Entities: []types.Entity{
			{Type: "SSG_KEY_ENTRY", Name: "signer", ID: "00000000000000000000000000000002:signer", Action: "NewOrExisting", MappingOnly: true},
		},
	}
	r.CountEntities()

	f, err := NewFormatter(TypeTable, nil)
	require.NoError(t, err)
	out, err := f.Format(r)
	require.NoError(t, err)
	assert.Contains(t, out, "NewOrExisting (mapping only)")
}

func TestMarkdown_Format(t *testing.T) {
	f, err := NewFormatter(TypeMarkdown, nil)
	require.NoError(t, err)
	out, err := f.Format(newTestResult())
	require.NoError(t, err)

	assert.Contains(t, out, "| TYPE | NAME | ID | PATH | ACTION |")
	assert.Contains(t, out, "| POLICY | charge | p1 | api/charge.xml |")
	assert.Contains(t, out, "| TOTAL | 3 |")
}
