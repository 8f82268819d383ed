package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) Node {
	t.Helper()
	node, err := Parse(src, DefaultMaxComplexity)
	require.NoError(t, err)
	return node
}

// S1: case-insensitive equality selects exactly the matching resource.
func TestEvaluate_S1_CaseInsensitiveEquality(t *testing.T) {
	node := mustParse(t, `userName eq "alice"`)
	alice := map[string]interface{}{"id": "1", "userName": "Alice"}
	bob := map[string]interface{}{"id": "2", "userName": "bob"}
	assert.True(t, Evaluate(node, alice))
	assert.False(t, Evaluate(node, bob))
}

// S2: complex attribute sub-filter with selector-scoped value projection.
func TestEvaluate_S2_ComplexSubFilter(t *testing.T) {
	node := mustParse(t, `emails[type eq "work" and primary eq true].value co "@corp"`)
	user := map[string]interface{}{
		"emails": []interface{}{
			map[string]interface{}{"type": "work", "primary": true, "value": "a@corp.io"},
			map[string]interface{}{"type": "home", "primary": false, "value": "a@home.io"},
		},
	}
	assert.True(t, Evaluate(node, user))
}

func TestEvaluate_Presence(t *testing.T) {
	node := mustParse(t, `nickName pr`)
	assert.False(t, Evaluate(node, map[string]interface{}{}))
	assert.False(t, Evaluate(node, map[string]interface{}{"nickName": ""}))
	assert.False(t, Evaluate(node, map[string]interface{}{"nickName": nil}))
	assert.True(t, Evaluate(node, map[string]interface{}{"nickName": "Bob"}))
}

func TestEvaluate_Presence_EmptyArrayIsAbsent(t *testing.T) {
	node := mustParse(t, `emails pr`)
	assert.False(t, Evaluate(node, map[string]interface{}{"emails": []interface{}{}}))
	assert.True(t, Evaluate(node, map[string]interface{}{"emails": []interface{}{"x"}}))
}

func TestEvaluate_NullLiteral_MatchesAbsentAndNull(t *testing.T) {
	node := mustParse(t, `nickName eq null`)
	assert.True(t, Evaluate(node, map[string]interface{}{}))
	assert.True(t, Evaluate(node, map[string]interface{}{"nickName": nil}))
	assert.False(t, Evaluate(node, map[string]interface{}{"nickName": "Bob"}))
}

func TestEvaluate_MismatchedTypesNeverError(t *testing.T) {
	node := mustParse(t, `active eq "true"`)
	assert.False(t, Evaluate(node, map[string]interface{}{"active": true}))
}

func TestEvaluate_MultiValuedExistential_IncludingNe(t *testing.T) {
	eq := mustParse(t, `emails.value eq "a@corp.io"`)
	ne := mustParse(t, `emails.value ne "a@corp.io"`)
	user := map[string]interface{}{
		"emails": []interface{}{
			map[string]interface{}{"value": "a@corp.io"},
			map[string]interface{}{"value": "b@corp.io"},
		},
	}
	assert.True(t, Evaluate(eq, user))
	assert.True(t, Evaluate(ne, user)) // existential: at least one element differs
}

// explosiveNode evaluates itself forever if ever visited (Left and Right
// both point back to itself), so the test below proves non-evaluation by
// the absence of a stack overflow rather than by a side-effect flag.
func explosiveNode() Node {
	n := &AndNode{}
	n.Left = n
	n.Right = n
	return n
}

func TestEvaluate_ShortCircuit_And(t *testing.T) {
	left := &CompareNode{Path: AttrPath{Attr: "active"}, Op: OpEq, Value: Literal{Kind: LitBool, Bool: false}}
	node := &AndNode{Left: left, Right: explosiveNode()}
	assert.False(t, Evaluate(node, map[string]interface{}{"active": false}))
}

func TestEvaluate_ShortCircuit_Or(t *testing.T) {
	left := &CompareNode{Path: AttrPath{Attr: "active"}, Op: OpEq, Value: Literal{Kind: LitBool, Bool: true}}
	node := &OrNode{Left: left, Right: explosiveNode()}
	assert.True(t, Evaluate(node, map[string]interface{}{"active": true}))
}
