package taint

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/phortress/internal/php/ast"
)

func TestSanitizerSetIsPersistent(t *testing.T) {
	base := NewSanitizerSet("htmlspecialchars")
	with := base.With("addslashes")
	without := with.Without("htmlspecialchars")

	assert.Equal(t, []string{"htmlspecialchars"}, base.Names())
	assert.Equal(t, []string{"addslashes", "htmlspecialchars"}, with.Names())
	assert.Equal(t, []string{"addslashes"}, without.Names())
	assert.Equal(t, []string{"addslashes", "htmlspecialchars"}, base.Union(without).Names())
	assert.False(t, base.Has("addslashes"))
}

func TestMergeJoinsCollidingKeys(t *testing.T) {
	p := &ast.Param{Name: "$p"}
	left := Dependencies{
		"$a": {Name: "$a", Taint: Unknown, Sanitizers: NewSanitizerSet("htmlspecialchars")},
		"$p": {Name: "$p", Taint: Unassigned, Sanitizers: SanitizerSet{}},
	}
	right := Dependencies{
		"$a": {Name: "$a", Taint: Tainted, Sanitizers: NewSanitizerSet("strip_tags")},
		"$p": {Name: "$p", Taint: Unassigned, Sanitizers: SanitizerSet{}, Param: p},
		"$b": {Name: "$b", Taint: Unassigned, Sanitizers: SanitizerSet{}},
	}

	merged := Merge(left, right)
	require.Equal(t, []string{"$a", "$b", "$p"}, merged.Names())
	assert.Equal(t, Tainted, merged["$a"].Taint)
	assert.Equal(t, []string{"htmlspecialchars", "strip_tags"}, merged["$a"].Sanitizers.Names())
	assert.Same(t, p, merged["$p"].Param)

	// Inputs are left untouched.
	assert.Equal(t, Unknown, left["$a"].Taint)
	assert.Equal(t, []string{"htmlspecialchars"}, left["$a"].Sanitizers.Names())
	assert.Nil(t, left["$p"].Param)
}

func TestSanitizerBookkeepingCopiesOnWrite(t *testing.T) {
	deps := Dependencies{
		"$a": {Name: "$a", Taint: Tainted, Sanitizers: SanitizerSet{}},
		"$b": {Name: "$b", Taint: Unknown, Sanitizers: NewSanitizerSet("addslashes")},
	}

	sanitized := deps.WithSanitizer("htmlspecialchars")
	assert.Equal(t, []string{"htmlspecialchars"}, sanitized["$a"].Sanitizers.Names())
	assert.Equal(t, []string{"addslashes", "htmlspecialchars"}, sanitized["$b"].Sanitizers.Names())
	assert.Empty(t, deps["$a"].Sanitizers)

	reversed := sanitized.WithoutSanitizer("htmlspecialchars")
	assert.Empty(t, reversed["$a"].Sanitizers)
	assert.Equal(t, []string{"addslashes"}, reversed["$b"].Sanitizers.Names())
	assert.Equal(t, []string{"htmlspecialchars"}, sanitized["$a"].Sanitizers.Names())
	assert.Equal(t, Tainted, reversed["$a"].Taint, "sanitizers never change the taint classification")
}

func TestSummarize(t *testing.T) {
	res := Dependencies{}.Summarize()
	assert.Equal(t, Unassigned, res.Taint)
	assert.Empty(t, res.Sanitizers)

	res = Dependencies{
		"$a": {Name: "$a", Taint: Tainted, Sanitizers: NewSanitizerSet("htmlspecialchars")},
		"$b": {Name: "$b", Taint: Unknown, Sanitizers: NewSanitizerSet("intval")},
	}.Summarize()
	assert.Equal(t, Tainted, res.Taint)
	if diff := cmp.Diff([]string{"htmlspecialchars", "intval"}, res.Sanitizers.Names()); diff != "" {
		t.Errorf("sanitizers mismatch (-want +got):\n%s", diff)
	}
}
