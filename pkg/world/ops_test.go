package world

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseWorld() World {
	return World{
		"project": "",
		"rules":   []any{},
		"goals":   []any{"ship it"},
		"identity": map[string]any{
			"user_name":     "",
			"agent_name":    "",
			"user_location": "",
		},
		"tz": "UTC",
	}
}

func TestApplyOpsSet(t *testing.T) {
	w, err := ApplyOps(baseWorld(), []Op{
		{Op: "set", Path: "/project", Value: "atlas"},
		{Op: "set", Path: "/identity/user_name", Value: "sam"},
		{Op: "set", Path: "/identity/user_location", Value: "Gobabis"},
	})
	require.NoError(t, err)
	assert.Equal(t, "atlas", w["project"])

	identity := w["identity"].(map[string]any)
	assert.Equal(t, "sam", identity["user_name"])
	assert.Equal(t, "Gobabis", identity["user_location"])
}

func TestApplyOpsSetIdempotent(t *testing.T) {
	ops := []Op{{Op: "set", Path: "/project", Value: "atlas"}}
	once, err := ApplyOps(baseWorld(), ops)
	require.NoError(t, err)
	twice, err := ApplyOps(once, ops)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestApplyOpsAddDeduplicates(t *testing.T) {
	w, err := ApplyOps(baseWorld(), []Op{
		{Op: "add", Path: "/rules", Value: "be kind"},
		{Op: "add", Path: "/rules", Value: "be kind"},
		{Op: "add", Path: "/rules", Value: "be brief"},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"be kind", "be brief"}, w["rules"])
}

func TestApplyOpsRemove(t *testing.T) {
	w, err := ApplyOps(baseWorld(), []Op{
		{Op: "remove", Path: "/goals", Value: "ship it"},
		{Op: "remove", Path: "/goals", Value: "ship it"}, // second remove is a no-op
	})
	require.NoError(t, err)
	assert.Equal(t, []any{}, w["goals"])
}

func TestApplyOpsDisallowedPath(t *testing.T) {
	for _, path := range []string{"/tz", "/updated_at", "/topics", "/identity/session_user_name", "/identity", ""} {
		before := baseWorld()
		_, err := ApplyOps(before, []Op{{Op: "set", Path: path, Value: "x"}})
		require.Error(t, err, "path %q", path)

		var opErr *OpError
		require.True(t, errors.As(err, &opErr), "path %q", path)
		assert.Equal(t, "WORLD_OP_INVALID", opErr.Code())

		// Input world untouched.
		assert.Equal(t, baseWorld(), before, "path %q", path)
	}
}

func TestApplyOpsWrongOpForPathKind(t *testing.T) {
	_, err := ApplyOps(baseWorld(), []Op{{Op: "add", Path: "/project", Value: "x"}})
	require.Error(t, err)

	_, err = ApplyOps(baseWorld(), []Op{{Op: "set", Path: "/rules", Value: "x"}})
	require.Error(t, err)

	_, err = ApplyOps(baseWorld(), []Op{{Op: "replace", Path: "/project", Value: "x"}})
	require.Error(t, err)
}

func TestApplyOpsScalarValueMustBeString(t *testing.T) {
	_, err := ApplyOps(baseWorld(), []Op{{Op: "set", Path: "/project", Value: 42}})
	require.Error(t, err)

	var opErr *OpError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "WORLD_OP_INVALID", opErr.Code())
}

func TestApplyOpsTypeMismatchOnList(t *testing.T) {
	w := baseWorld()
	w["rules"] = "not a list"
	_, err := ApplyOps(w, []Op{{Op: "add", Path: "/rules", Value: "x"}})
	require.Error(t, err)
}

func TestApplyOpsFailureLeavesInputUntouched(t *testing.T) {
	before := baseWorld()
	_, err := ApplyOps(before, []Op{
		{Op: "set", Path: "/project", Value: "atlas"}, // valid
		{Op: "set", Path: "/tz", Value: "UTC"},        // invalid, aborts the batch
	})
	require.Error(t, err)
	assert.Equal(t, "", before["project"])
}
