package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsSet(t *testing.T) {
	t.Run("call value wins over default", func(t *testing.T) {
		set := NewOptionsSet(
			&Options{Temperature: Float64(0.2)},
			&Options{Temperature: Float64(0.9), MaxTokens: Int(100)},
		)

		temp, ok := set.Temperature()
		require.True(t, ok)
		assert.Equal(t, 0.2, temp)

		maxTokens, ok := set.MaxTokens()
		require.True(t, ok)
		assert.Equal(t, 100, maxTokens)
	})

	t.Run("unset everywhere reports absent", func(t *testing.T) {
		set := NewOptionsSet(nil, nil)
		_, ok := set.Temperature()
		assert.False(t, ok)
		_, ok = set.MaxTokens()
		assert.False(t, ok)
		_, ok = set.ReasoningEffort()
		assert.False(t, ok)
		assert.Nil(t, set.StopSequences())
		assert.False(t, set.CaptureRawBody())
	})

	t.Run("zero is a set value", func(t *testing.T) {
		set := NewOptionsSet(&Options{Temperature: Float64(0)}, &Options{Temperature: Float64(0.9)})
		temp, ok := set.Temperature()
		require.True(t, ok)
		assert.Equal(t, 0.0, temp)
	})

	t.Run("capture flag from either level", func(t *testing.T) {
		assert.True(t, NewOptionsSet(&Options{CaptureRawBody: true}, nil).CaptureRawBody())
		assert.True(t, NewOptionsSet(nil, &Options{CaptureRawBody: true}).CaptureRawBody())
	})
}

func TestParseReasoningEffort(t *testing.T) {
	effort, err := ParseReasoningEffort("low")
	require.NoError(t, err)
	assert.Equal(t, EffortLow, effort.Level)

	effort, err = ParseReasoningEffort("2048")
	require.NoError(t, err)
	assert.Equal(t, EffortBudget, effort.Level)
	assert.Equal(t, 2048, effort.Budget)

	_, err = ParseReasoningEffort("extreme")
	assert.Error(t, err)
}

func TestMessageCacheControl(t *testing.T) {
	msg := NewTextMessage(RoleUser, "hi")
	assert.False(t, msg.CacheControl())

	msg.Options = &MessageOptions{CacheControl: true}
	assert.True(t, msg.CacheControl())
}
