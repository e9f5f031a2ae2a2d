package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelIden(t *testing.T) {
	m := ModelIden{Kind: KindAnthropic, Name: "claude-sonnet-4-20250514"}
	assert.Equal(t, "anthropic:claude-sonnet-4-20250514", m.String())

	renamed := m.WithName("claude-other")
	assert.Equal(t, "claude-other", renamed.Name)
	assert.Equal(t, KindAnthropic, renamed.Kind)

	assert.Equal(t, m, m.WithName(""))
	assert.Equal(t, m, m.WithName(m.Name))
}

func TestResolveKey(t *testing.T) {
	model := ModelIden{Kind: KindAnthropic, Name: "m"}

	t.Run("literal key", func(t *testing.T) {
		key, err := AuthFromKey("sk-test").ResolveKey(model)
		require.NoError(t, err)
		assert.Equal(t, "sk-test", key)
	})

	t.Run("env lookup", func(t *testing.T) {
		t.Setenv("GATEWAY_TEST_KEY", "from-env")
		key, err := AuthFromEnv("GATEWAY_TEST_KEY").ResolveKey(model)
		require.NoError(t, err)
		assert.Equal(t, "from-env", key)
	})

	t.Run("whitespace-only env value is missing", func(t *testing.T) {
		t.Setenv("GATEWAY_TEST_KEY", "   ")
		_, err := AuthFromEnv("GATEWAY_TEST_KEY").ResolveKey(model)
		var authErr *AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, "GATEWAY_TEST_KEY", authErr.EnvName)
	})

	t.Run("empty auth", func(t *testing.T) {
		_, err := AuthData{}.ResolveKey(model)
		var authErr *AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Empty(t, authErr.EnvName)
	})
}
