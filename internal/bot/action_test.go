package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/support-bot/pkg/util"
)

func TestParseActionBareOp(t *testing.T) {
	action, err := ParseAction("my_requests")
	require.NoError(t, err)
	assert.Equal(t, OpMyRequests, action.Op)
	assert.False(t, action.HasID)
}

func TestParseActionWithID(t *testing.T) {
	action, err := ParseAction("assign:42")
	require.NoError(t, err)
	assert.Equal(t, OpAssign, action.Op)
	assert.True(t, action.HasID)
	assert.EqualValues(t, 42, action.ID)
}

func TestParseActionMalformed(t *testing.T) {
	for _, token := range []string{"", "  ", ":", "assign:", ":7", "assign:abc", "done:7x"} {
		t.Run(token, func(t *testing.T) {
			_, err := ParseAction(token)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeBadAction))
		})
	}
}

func TestParseActionUnderscoreOpsKeepNoID(t *testing.T) {
	for _, token := range []string{"cat_it", "urgency_later", "downloads_profiles"} {
		action, err := ParseAction(token)
		require.NoError(t, err)
		assert.Equal(t, token, action.Op)
		assert.False(t, action.HasID)
	}
}
