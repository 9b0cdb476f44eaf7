package livestatus

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanplexian/livestatus/internal/config"
)

var renderRow = []interface{}{
	int64(3),
	1.5,
	"a;b",
	[]string{"x", "y"},
	[]int64{7, 8},
	map[string]string{"K2": "v2", "K1": "v1"},
	nil,
}

func render(format OutputFormat, seps Separators, header []string, rows ...[]interface{}) string {
	var buf bytes.Buffer
	r := newRenderer(format, &buf, seps, config.EncodingUTF8)
	if header != nil {
		r.Header(header)
	}
	for _, row := range rows {
		r.Row(row)
	}
	r.End()
	return buf.String()
}

func TestRenderers(t *testing.T) {
	tests := []struct {
		name   string
		format OutputFormat
		header []string
		rows   [][]interface{}
		want   string
	}{
		{
			name:   "broken csv",
			format: FormatBrokenCSV,
			header: []string{"a", "b"},
			rows:   [][]interface{}{renderRow},
			want:   "a;b\n3;1.5;a;b;x,y;7,8;K1|v1,K2|v2;\n",
		},
		{
			name:   "csv",
			format: FormatCSV,
			rows:   [][]interface{}{renderRow},
			want:   "3,1.5,a;b,\"x,y\",\"7,8\",\"K1|v1,K2|v2\",\r\n",
		},
		{
			name:   "json",
			format: FormatJSON,
			header: []string{"a"},
			rows:   [][]interface{}{renderRow, {int64(1)}},
			want:   "[[\"a\"],\n[3,1.5,\"a;b\",[\"x\",\"y\"],[7,8],{\"K1\":\"v1\",\"K2\":\"v2\"},null],\n[1]]\n",
		},
		{
			name:   "json without rows",
			format: FormatJSON,
			want:   "[]\n",
		},
		{
			name:   "wrapped json",
			format: FormatWrappedJSON,
			header: []string{"a"},
			rows:   [][]interface{}{{"x"}, {"y"}},
			want:   "{\"columns\":[\"a\"],\"data\":[[\"x\"],\n[\"y\"]],\"total_count\":2}\n",
		},
		{
			name:   "wrapped json without header",
			format: FormatWrappedJSON,
			rows:   [][]interface{}{{int64(1)}},
			want:   "{\"data\":[[1]],\"total_count\":1}\n",
		},
		{
			name:   "python",
			format: FormatPython,
			rows:   [][]interface{}{{"x", []string{"y"}, nil}},
			want:   "[[u\"x\",[u\"y\"],None]]\n",
		},
		{
			name:   "python3",
			format: FormatPython3,
			rows:   [][]interface{}{{"x", []byte("raw"), nil}},
			want:   "[[\"x\",b\"raw\",None]]\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, render(tt.format, DefaultSeparators, tt.header, tt.rows...))
		})
	}
}

func TestBrokenCSVCustomSeparators(t *testing.T) {
	seps := Separators{Dataset: '\x01', Field: '\x02', List: '\x03', HostService: '\x04'}
	got := render(FormatBrokenCSV, seps, nil, []interface{}{"h", []string{"a", "b"}, map[string]string{"k": "v"}})
	assert.Equal(t, "h\x02a\x03b\x02k\x04v\x01", got)
}

func TestParseOutputFormat(t *testing.T) {
	for name, want := range map[string]OutputFormat{
		"csv":          FormatBrokenCSV,
		"CSV":          FormatCSV,
		"json":         FormatJSON,
		"wrapped_json": FormatWrappedJSON,
		"python":       FormatPython,
		"python3":      FormatPython3,
	} {
		got, err := parseOutputFormat(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	_, err := parseOutputFormat("JSON")
	assert.Error(t, err)
}

func TestFormatDouble(t *testing.T) {
	assert.Equal(t, "1.25", formatDouble(1.25))
	assert.Equal(t, "3", formatDouble(3))
	assert.Equal(t, "0", formatDouble(math.NaN()))
	assert.Equal(t, "0", formatDouble(math.Inf(1)))
}

func TestDecodeString(t *testing.T) {
	latin1 := "caf\xe9"
	assert.Equal(t, "café", decodeString(latin1, config.EncodingLatin1))
	assert.Equal(t, "café", decodeString(latin1, config.EncodingMixed))
	assert.Equal(t, "café", decodeString("café", config.EncodingMixed))
	assert.Equal(t, "caf�", decodeString(latin1, config.EncodingUTF8))
}
