package filter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imulab/scim-proxy/internal/scimerr"
)

func TestParse_SimpleComparison(t *testing.T) {
	node, err := Parse(`userName eq "alice"`, DefaultMaxComplexity)
	require.NoError(t, err)
	cmp, ok := node.(*CompareNode)
	require.True(t, ok)
	assert.Equal(t, "userName", cmp.Path.Attr)
	assert.Equal(t, OpEq, cmp.Op)
	assert.Equal(t, "alice", cmp.Value.Str)
}

func TestParse_Precedence_AndBindsTighterThanOr(t *testing.T) {
	// a or b and c  ==  a or (b and c)
	node, err := Parse(`active eq true or name.givenName sw "A" and name.familyName sw "B"`, 10)
	require.NoError(t, err)
	or, ok := node.(*OrNode)
	require.True(t, ok)
	_, ok = or.Right.(*AndNode)
	assert.True(t, ok)
}

func TestParse_Parentheses(t *testing.T) {
	node, err := Parse(`(active eq true or active eq false) and userName pr`, 10)
	require.NoError(t, err)
	and, ok := node.(*AndNode)
	require.True(t, ok)
	_, ok = and.Left.(*OrNode)
	assert.True(t, ok)
}

func TestParse_Not(t *testing.T) {
	node, err := Parse(`not (active eq true)`, 10)
	require.NoError(t, err)
	_, ok := node.(*NotNode)
	assert.True(t, ok)
}

func TestParse_ComplexAttributeFilter(t *testing.T) {
	node, err := Parse(`emails[type eq "work" and primary eq true]`, 10)
	require.NoError(t, err)
	complex, ok := node.(*ComplexNode)
	require.True(t, ok)
	assert.Equal(t, "emails", complex.Path.Attr)
	assert.Nil(t, complex.Sub)
}

func TestParse_ComplexAttributeWithSubSelectorAsComparisonPath(t *testing.T) {
	// emails[type eq "work" and primary eq true].value co "@corp"
	node, err := Parse(`emails[type eq "work" and primary eq true].value co "@corp"`, 10)
	require.NoError(t, err)
	cmp, ok := node.(*CompareNode)
	require.True(t, ok)
	assert.Equal(t, "emails", cmp.Path.Attr)
	require.NotNil(t, cmp.Path.Selector)
	assert.Equal(t, []string{"value"}, cmp.Path.Sub)
	assert.Equal(t, OpCo, cmp.Op)
}

func TestParse_URNQualifiedPath(t *testing.T) {
	node, err := Parse(`urn:ietf:params:scim:schemas:core:2.0:User:userName eq "bob"`, 10)
	require.NoError(t, err)
	cmp, ok := node.(*CompareNode)
	require.True(t, ok)
	assert.Equal(t, "urn:ietf:params:scim:schemas:core:2.0:User", cmp.Path.URI)
	assert.Equal(t, "userName", cmp.Path.Attr)
}

func TestParse_InvalidFilter_TrailingGarbage(t *testing.T) {
	_, err := Parse(`active eq true )`, 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, scimerr.ErrInvalidFilter))
}

func TestParse_InvalidFilter_MissingOperator(t *testing.T) {
	_, err := Parse(`active`, 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, scimerr.ErrInvalidFilter))
}

func TestParse_FilterTooComplex(t *testing.T) {
	// active eq true and name.givenName sw "A" has complexity 3.
	_, err := Parse(`active eq true and name.givenName sw "A"`, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, scimerr.ErrTooMany))
}

func TestParse_NullLiteral(t *testing.T) {
	node, err := Parse(`nickName eq null`, 10)
	require.NoError(t, err)
	cmp, ok := node.(*CompareNode)
	require.True(t, ok)
	assert.Equal(t, LitNull, cmp.Value.Kind)
}
