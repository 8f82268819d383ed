package patch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ops(t *testing.T, jsonOps string) []Operation {
	t.Helper()
	var o []Operation
	require.NoError(t, json.Unmarshal([]byte(jsonOps), &o))
	return o
}

// S4: replace is idempotent.
func TestApply_S4_ReplaceIdempotence(t *testing.T) {
	resource := map[string]interface{}{"id": "x", "active": true}
	patch := ops(t, `[{"op":"replace","path":"active","value":false}]`)

	require.NoError(t, Apply(resource, patch, 50))
	assert.Equal(t, false, resource["active"])

	require.NoError(t, Apply(resource, patch, 50))
	assert.Equal(t, false, resource["active"])
	assert.Equal(t, "x", resource["id"])
}

// S5: add to a multi-valued attribute appends.
func TestApply_S5_AddAppendsToMultiValued(t *testing.T) {
	resource := map[string]interface{}{
		"id":      "g",
		"members": []interface{}{map[string]interface{}{"value": "u0"}},
	}
	patch := ops(t, `[{"op":"add","path":"members","value":[{"value":"u1"}]}]`)

	require.NoError(t, Apply(resource, patch, 50))

	members, ok := resource["members"].([]interface{})
	require.True(t, ok)
	require.Len(t, members, 2)
	assert.Equal(t, "u0", members[0].(map[string]interface{})["value"])
	assert.Equal(t, "u1", members[1].(map[string]interface{})["value"])
}

// Testable property 5: add followed by remove on the same path restores the
// original resource when the attribute did not pre-exist.
func TestApply_PatchInverse_AddThenRemove(t *testing.T) {
	original := map[string]interface{}{"id": "x"}
	resource := map[string]interface{}{"id": "x"}

	addOp := ops(t, `[{"op":"add","path":"nickName","value":"Bob"}]`)
	require.NoError(t, Apply(resource, addOp, 50))
	assert.Equal(t, "Bob", resource["nickName"])

	removeOp := ops(t, `[{"op":"remove","path":"nickName"}]`)
	require.NoError(t, Apply(resource, removeOp, 50))

	assert.Equal(t, original, resource)
}

func TestApply_AddWithSelector_NoTargetErrors(t *testing.T) {
	resource := map[string]interface{}{
		"id": "g",
		"emails": []interface{}{
			map[string]interface{}{"type": "home", "value": "a@home.io"},
		},
	}
	patch := ops(t, `[{"op":"add","path":"emails[type eq \"work\"].value","value":"a@corp.io"}]`)

	err := Apply(resource, patch, 50)
	require.Error(t, err)
}

func TestApply_ReplaceWithSelector_NoMatchIsNoop(t *testing.T) {
	resource := map[string]interface{}{
		"id": "u",
		"emails": []interface{}{
			map[string]interface{}{"type": "home", "value": "a@home.io"},
		},
	}
	patch := ops(t, `[{"op":"replace","path":"emails[type eq \"work\"].value","value":"a@corp.io"}]`)

	require.NoError(t, Apply(resource, patch, 50))
	emails := resource["emails"].([]interface{})
	require.Len(t, emails, 1)
	assert.Equal(t, "a@home.io", emails[0].(map[string]interface{})["value"])
}

func TestApply_RemoveWithSelector_DropsMatchedElement(t *testing.T) {
	resource := map[string]interface{}{
		"id": "u",
		"emails": []interface{}{
			map[string]interface{}{"type": "work", "value": "a@corp.io"},
			map[string]interface{}{"type": "home", "value": "a@home.io"},
		},
	}
	patch := ops(t, `[{"op":"remove","path":"emails[type eq \"work\"]"}]`)

	require.NoError(t, Apply(resource, patch, 50))
	emails := resource["emails"].([]interface{})
	require.Len(t, emails, 1)
	assert.Equal(t, "home", emails[0].(map[string]interface{})["type"])
}

func TestApply_RemoveLastElement_DeletesKey(t *testing.T) {
	resource := map[string]interface{}{
		"id": "u",
		"emails": []interface{}{
			map[string]interface{}{"type": "work", "value": "a@corp.io"},
		},
	}
	patch := ops(t, `[{"op":"remove","path":"emails[type eq \"work\"]"}]`)

	require.NoError(t, Apply(resource, patch, 50))
	_, exists := resource["emails"]
	assert.False(t, exists)
}

func TestApply_ImmutableAttributeRejected(t *testing.T) {
	resource := map[string]interface{}{"id": "x", "active": true}
	patch := ops(t, `[{"op":"replace","path":"id","value":"y"}]`)

	err := Apply(resource, patch, 50)
	require.Error(t, err)
}

func TestApply_RemoveWithoutPath_IsNoTargetError(t *testing.T) {
	resource := map[string]interface{}{"id": "x"}
	patch := ops(t, `[{"op":"remove"}]`)

	err := Apply(resource, patch, 50)
	require.Error(t, err)
}
