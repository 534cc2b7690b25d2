package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"TABLE", FormatTable, false},
		{" json ", FormatJSON, false},
		{"yml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tc := range tests {
		got, err := ParseFormat(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

type roleRow struct {
	Name   string `json:"name" yaml:"name"`
	Rights int    `json:"rights" yaml:"rights"`
}

func TestPrinter_Print(t *testing.T) {
	row := roleRow{Name: "operator", Rights: 3}

	var buf bytes.Buffer
	require.NoError(t, NewPrinter(&buf, FormatJSON, false).Print(row))
	assert.JSONEq(t, `{"name":"operator","rights":3}`, buf.String())

	buf.Reset()
	require.NoError(t, NewPrinter(&buf, FormatYAML, false).Print(row))
	assert.Equal(t, "name: operator\nrights: 3\n", buf.String())

	// Table format without a renderer falls back to JSON.
	buf.Reset()
	require.NoError(t, NewPrinter(&buf, FormatTable, false).Print(row))
	assert.JSONEq(t, `{"name":"operator","rights":3}`, buf.String())
}

func TestPrinter_Table(t *testing.T) {
	data := NewTableData("USERNAME", "ROLE")
	data.AddRow("admin", "admin")
	data.AddRow("carol", "viewer")

	var buf bytes.Buffer
	require.NoError(t, NewPrinter(&buf, FormatTable, false).Print(data))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "USERNAME")
	assert.Contains(t, lines[2], "carol")
	assert.Contains(t, lines[2], "viewer")
}

func TestKeyValue(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, KeyValue(&buf, [][2]string{{"Primary method", "local"}, {"Fallback", "false"}}))

	out := buf.String()
	assert.Contains(t, out, "Primary method")
	assert.Contains(t, out, ":")
	assert.Contains(t, out, "local")
}

func TestPrinter_Status(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, FormatTable, false).Success("done")
	assert.Equal(t, "done\n", buf.String())

	buf.Reset()
	NewPrinter(&buf, FormatTable, true).Warning("careful")
	assert.Equal(t, "\033[33mcareful\033[0m\n", buf.String())
}
