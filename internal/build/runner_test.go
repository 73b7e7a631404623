package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	deverrors "github.com/instant-compose/devloop/internal/errors"
)

func TestExecRunner(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh")
	}
	r := NewExecRunner()

	t.Run("merges output", func(t *testing.T) {
		out, err := r.Run(context.Background(), Command{
			Path: "/bin/sh",
			Args: []string{"-c", "echo out; echo err 1>&2"},
		})
		require.NoError(t, err)
		assert.Equal(t, 0, out.ExitCode)
		assert.Contains(t, string(out.Log), "out\n")
		assert.Contains(t, string(out.Log), "err\n")
	})

	t.Run("non-zero exit", func(t *testing.T) {
		out, err := r.Run(context.Background(), Command{
			Path: "/bin/sh",
			Args: []string{"-c", "echo broken; exit 3"},
		})
		require.NoError(t, err)
		assert.Equal(t, 3, out.ExitCode)
		assert.Equal(t, "broken\n", string(out.Log))
	})

	t.Run("env and dir", func(t *testing.T) {
		dir := t.TempDir()
		out, err := r.Run(context.Background(), Command{
			Path: "/bin/sh",
			Args: []string{"-c", "echo $TERM; pwd"},
			Dir:  dir,
			Env:  []string{"TERM=xterm-256color"},
		})
		require.NoError(t, err)
		assert.Contains(t, string(out.Log), "xterm-256color")

		resolved, err := filepath.EvalSymlinks(dir)
		require.NoError(t, err)
		assert.Contains(t, string(out.Log), resolved)
	})

	t.Run("missing command", func(t *testing.T) {
		_, err := r.Run(context.Background(), Command{Path: filepath.Join(t.TempDir(), "gradlew")})
		require.Error(t, err)

		var de *deverrors.DevError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, deverrors.CodeBuildStart, de.Code)
		assert.Equal(t, deverrors.ErrorTypeBuild, de.Type)
	})

	t.Run("not executable", func(t *testing.T) {
		script := filepath.Join(t.TempDir(), "gradlew")
		require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho hi\n"), 0o644))

		_, err := r.Run(context.Background(), Command{Path: script})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "permission denied")
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := r.Run(ctx, Command{Path: "/bin/sh", Args: []string{"-c", "exec sleep 5"}})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestCommandString(t *testing.T) {
	c := Command{Path: "./gradlew", Args: []string{"build", "--quiet"}}
	assert.Equal(t, "./gradlew build --quiet", c.String())
}
