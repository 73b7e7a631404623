package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDevErrorMessage(t *testing.T) {
	cause := errors.New("exec: \"./gradlew\": file does not exist")
	err := NewBuildError(CodeBuildStart, "cannot start build command", cause)

	assert.Equal(t, "[BUILD_START] cannot start build command: exec: \"./gradlew\": file does not exist", err.Error())
	assert.Equal(t, cause, err.Unwrap())
}

func TestDevErrorIs(t *testing.T) {
	wrapped := fmt.Errorf("listen on 8080-8099: %w", ErrNoAvailablePort)

	assert.True(t, errors.Is(wrapped, ErrNoAvailablePort))
	assert.True(t, errors.Is(NewNetworkError(CodeNoPort, "other message", nil), ErrNoAvailablePort))
	assert.False(t, errors.Is(NewNetworkError(CodeBind, "bind", nil), ErrNoAvailablePort))
}

func TestWithContext(t *testing.T) {
	err := NewWatcherError(CodeWatcherRead, "event queue failed", nil).
		WithContext("root", "/src")

	assert.Equal(t, "/src", err.Context["root"])
}

func TestIsFatal(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.True(t, IsFatal(errors.New("plain")))
	assert.True(t, IsFatal(NewWatcherError(CodeWatcherRead, "dead", nil)))
	assert.False(t, IsFatal(NewIOError("COPY", "copy failed", nil)))
	assert.True(t, IsRecoverable(fmt.Errorf("ctx: %w", NewIOError("COPY", "copy failed", nil))))
}

func TestEnhance(t *testing.T) {
	t.Run("port exhaustion", func(t *testing.T) {
		err := Enhance(fmt.Errorf("bind: %w", ErrNoAvailablePort), 8080, 20, "./gradlew")

		var enhanced *EnhancedError
		require.True(t, As(err, &enhanced))
		assert.Contains(t, err.Error(), "Ports 8080-8099")
		assert.Contains(t, err.Error(), "devloop serve --port 8100")
		assert.True(t, errors.Is(err, ErrNoAvailablePort))
	})

	t.Run("build start", func(t *testing.T) {
		cause := errors.New("fork/exec ./gradlew: permission denied")
		err := Enhance(NewBuildError(CodeBuildStart, "cannot start", cause), 8080, 20, "./gradlew")

		assert.Contains(t, err.Error(), "chmod +x ./gradlew")
	})

	t.Run("watcher", func(t *testing.T) {
		cause := errors.New("fsnotify: queue or buffer overflow")
		err := Enhance(NewWatcherError(CodeWatcherRead, "read", cause), 8080, 20, "")

		assert.Contains(t, err.Error(), "max_user_watches")
	})

	t.Run("unrelated errors pass through", func(t *testing.T) {
		plain := errors.New("plain")
		assert.Equal(t, plain, Enhance(plain, 8080, 20, ""))
		assert.Nil(t, Enhance(nil, 8080, 20, ""))
	})
}

func TestFormatSuggestions(t *testing.T) {
	assert.Equal(t, "title", FormatSuggestions("title", nil))

	out := FormatSuggestions("Broken", []ErrorSuggestion{
		{Title: "First", Description: "desc", Command: "cmd", Example: "ex"},
	})
	assert.Contains(t, out, "Suggestions:")
	assert.Contains(t, out, "1. First")
	assert.Contains(t, out, "Run: cmd")
	assert.Contains(t, out, "Example: ex")
}

func TestConfigurationError(t *testing.T) {
	suggestions := ConfigurationError("yaml: unmarshal errors", ".devloop.yml")
	require.Len(t, suggestions, 3)
	assert.Equal(t, "Fix YAML syntax", suggestions[2].Title)
}
