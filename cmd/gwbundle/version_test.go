package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCmd(t *testing.T) {
	tests := []struct {
		output  string
		want    string
		wantErr bool
	}{
		{output: "plain", want: "dev (built: unknown commit: none)\n"},
		{output: "yaml", want: "version: dev\ncommit: none\ndate: unknown\n"},
		{output: "xml", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			var out bytes.Buffer
			versionCmd.SetOut(&out)
			t.Cleanup(func() {
				versionCmd.SetOut(nil)
				versionOutput = "plain"
			})
			versionOutput = tt.output

			err := versionCmd.RunE(versionCmd, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.String())
		})
	}

	t.Run("json", func(t *testing.T) {
		var out bytes.Buffer
		versionCmd.SetOut(&out)
		t.Cleanup(func() {
			versionCmd.SetOut(nil)
			versionOutput = "plain"
		})
		versionOutput = "json"

		require.NoError(t, versionCmd.RunE(versionCmd, nil))
		var info VersionInfo
		require.NoError(t, json.Unmarshal(out.Bytes(), &info))
		assert.Equal(t, VersionInfo{Version: "dev", Commit: "none", Date: "unknown"}, info)
	})
}
