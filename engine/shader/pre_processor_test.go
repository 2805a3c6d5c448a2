package shader

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snippets() fstest.MapFS {
	return fstest.MapFS{
		"include/math.wgsl":   {Data: []byte("fn square(x: f32) -> f32 { return x * x; }")},
		"include/common.wgsl": {Data: []byte("//@oxy:include math\nconst PI: f32 = 3.14159;")},
		"include/loop_a.wgsl": {Data: []byte("//@oxy:include loop_b\nconst A: u32 = 1u;")},
		"include/loop_b.wgsl": {Data: []byte("//@oxy:include loop_a\nconst B: u32 = 2u;")},
	}
}

func TestPreProcessor_Include(t *testing.T) {
	pp := NewPreProcessor(snippets(), nil)

	out, err := pp.Process("//@oxy:include common\n//@oxy:include math\nfn main() {}")
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(out, "fn square"), "snippets are injected once")
	assert.Contains(t, out, "const PI")
	assert.Contains(t, out, "fn main() {}")
	assert.NotContains(t, out, "@oxy:")
}

func TestPreProcessor_MutualIncludesTerminate(t *testing.T) {
	out, err := NewPreProcessor(snippets(), nil).Process("//@oxy:include loop_a")
	require.NoError(t, err)
	assert.Contains(t, out, "const A")
	assert.Contains(t, out, "const B")
}

func TestPreProcessor_Defines(t *testing.T) {
	pp := NewPreProcessor(snippets(), map[string]string{"color_format": "rgba8unorm"})

	out, err := pp.Process("var img: texture_storage_2d<${color_format}, write>;")
	require.NoError(t, err)
	assert.Equal(t, "var img: texture_storage_2d<rgba8unorm, write>;", out)

	_, err = pp.Process("${color_format} ${missing} ${missing}")
	require.Error(t, err)
	assert.Equal(t, "undefined defines: missing", err.Error())
}

func TestPreProcessor_Errors(t *testing.T) {
	pp := NewPreProcessor(snippets(), nil)

	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"unknown include", "fn a() {}\n//@oxy:include nope", "line 2: unknown include"},
		{"missing argument", "//@oxy:include", "requires exactly one argument"},
		{"path include", "//@oxy:include ../secret", "invalid include name"},
		{"unknown annotation", "// @oxy:group 0 0", "unknown @oxy annotation type"},
		{"empty annotation", "//@oxy:", "empty @oxy annotation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pp.Process(tt.source)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseAnnotation_IgnoresOtherLines(t *testing.T) {
	for _, line := range []string{"", "fn main() {}", "// plain comment", "let x = 1; // @oxy:include math"} {
		a, err := parseAnnotation(line, 1)
		assert.NoError(t, err)
		assert.Nil(t, a)
	}
}
