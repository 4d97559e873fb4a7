package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/phortress/internal/config"
	"github.com/xkilldash9x/phortress/internal/php/ast"
)

func TestDefaultRegistry(t *testing.T) {
	r := Default()

	assert.True(t, r.IsInputVariable(&ast.Variable{Name: "$_GET"}))
	assert.True(t, r.IsInputVariable(&ast.Variable{Name: "$_SERVER"}))
	assert.False(t, r.IsInputVariable(&ast.Variable{Name: "$_get"}), "variable names are case-sensitive")
	assert.False(t, r.IsInputVariable(nil))

	assert.True(t, r.IsInputFunction("getenv"))
	assert.True(t, r.IsInputFunction(`\GetAllHeaders`))

	assert.True(t, r.IsSanitisingFunction("HTMLSpecialChars"))
	assert.False(t, r.IsSanitisingFunction("trim"))

	assert.True(t, r.IsSanitisingReverseFunction("htmlspecialchars_decode"))
	assert.Equal(t, "htmlspecialchars", r.AffectedSanitiser("htmlspecialchars_decode"))
	assert.Equal(t, "", r.AffectedSanitiser("trim"))
}

func TestProtects(t *testing.T) {
	r := Default()
	assert.True(t, r.Protects("htmlspecialchars", ClassXSS))
	assert.False(t, r.Protects("htmlspecialchars", ClassSQLInjection))
	assert.True(t, r.Protects("intval", ClassSQLInjection), "numeric conversion protects every class")
	assert.True(t, r.Protects("escapeshellarg", ClassCommand))
	assert.False(t, r.Protects("unknown", ClassXSS))
}

func TestSinks(t *testing.T) {
	r := Default()

	s, ok := r.Sink("mysqli_query")
	require.True(t, ok)
	assert.Equal(t, ClassSQLInjection, s.Class)
	assert.False(t, s.Sensitive(0), "the connection handle is not checked")
	assert.True(t, s.Sensitive(1))

	s, ok = r.Sink("ECHO")
	require.True(t, ok)
	assert.Equal(t, ClassXSS, s.Class)
	assert.True(t, s.Sensitive(3), "no argument list means every argument is checked")

	_, ok = r.Sink("strlen")
	assert.False(t, ok)
}

func TestExtend(t *testing.T) {
	base := Default()
	ext := base.Extend(Definitions{
		InputVariables: []string{"_ENV"},
		InputFunctions: []string{"Request_Input"},
		Sanitizers:     []SanitizerDefinition{{Name: "esc_html", Protects: []VulnerabilityClass{ClassXSS}}},
		Reversers:      []ReverserDefinition{{Name: "unesc_html", Undoes: "ESC_HTML"}},
		Sinks:          []SinkDefinition{{Name: "mysql_query", Class: ClassSQLInjection, Args: []int{0, 1}}},
	})

	assert.True(t, ext.IsInputVariable(&ast.Variable{Name: "$_ENV"}))
	assert.True(t, ext.IsInputFunction("request_input"))
	assert.True(t, ext.Protects("esc_html", ClassXSS))
	assert.Equal(t, "esc_html", ext.AffectedSanitiser("unesc_html"))
	s, _ := ext.Sink("mysql_query")
	assert.Equal(t, []int{0, 1}, s.Args)

	// The receiver is not modified.
	assert.False(t, base.IsInputVariable(&ast.Variable{Name: "$_ENV"}))
	assert.False(t, base.IsSanitisingFunction("esc_html"))
	assert.True(t, ext.IsSanitisingFunction("htmlspecialchars"))
}

func TestDefinitionsRoundTrip(t *testing.T) {
	defs := Default().Definitions()
	again := New(defs).Definitions()
	assert.Equal(t, defs, again)
	assert.Contains(t, defs.InputVariables, "$_COOKIE")
}

func TestNewFromConfig(t *testing.T) {
	r := NewFromConfig(config.AnalysisConfig{
		Sources: config.SourcesConfig{
			InputVariables: []string{"$_ENV"},
			Sanitizers: []config.SanitizerConfig{
				{Name: "esc_sql", Protects: []string{"sql_injection"}},
				{Name: "unesc_sql", Reverses: "esc_sql"},
			},
		},
		Sinks: []config.SinkConfig{{Name: "wpdb_query", Type: "sql_injection"}},
	})

	assert.True(t, r.IsInputVariable(&ast.Variable{Name: "$_ENV"}))
	assert.True(t, r.Protects("esc_sql", ClassSQLInjection))
	assert.False(t, r.IsSanitisingFunction("unesc_sql"), "a reverser is not a sanitizer")
	assert.Equal(t, "esc_sql", r.AffectedSanitiser("unesc_sql"))
	s, ok := r.Sink("wpdb_query")
	require.True(t, ok)
	assert.Equal(t, ClassSQLInjection, s.Class)
	assert.True(t, r.IsSanitisingFunction("htmlspecialchars"), "defaults are kept")
}
