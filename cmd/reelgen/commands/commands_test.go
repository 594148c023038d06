package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"reelgen/internal/domain"
)

// syntheticEnv points the CLI at the synthetic provider and a fresh output
// directory. Returns the output directory and an env file path that does not
// exist.
func syntheticEnv(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("APP_ENV", "test")
	t.Setenv("JOB_STORE", "file")
	t.Setenv("VIDEO_PROVIDER", "synthetic")
	t.Setenv("OUTPUT_DIR", dir)
	t.Setenv("SYNTHETIC_POLLS", "0")
	t.Setenv("SYNTHETIC_FAIL_TAG", "[fail]")
	return dir, filepath.Join(dir, "missing.env")
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	app := New()
	app.Writer = &out
	app.ErrWriter = &logs
	err := app.Run(context.Background(), append([]string{"reelgen"}, args...))
	return out.String(), err
}

func jobKeys(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "job_*.json"))
	require.NoError(t, err)
	keys := make([]string, 0, len(matches))
	for _, m := range matches {
		keys = append(keys, strings.TrimSuffix(filepath.Base(m), ".json"))
	}
	return keys
}

func TestCreateRefreshShowList(t *testing.T) {
	dir, envFile := syntheticEnv(t)

	out, err := runCLI(t, "create", "--env", envFile, "--prompt", "a lighthouse at dusk", "--seed", "42")
	require.NoError(t, err)
	require.Contains(t, out, "In Progress")
	require.Contains(t, out, "seed:    42")
	require.Contains(t, out, "arn:     arn:aws:bedrock:local:")

	keys := jobKeys(t, dir)
	require.Len(t, keys, 1)
	key := keys[0]
	require.Contains(t, out, key)

	out, err = runCLI(t, "refresh", "--env", envFile, "--key", key)
	require.NoError(t, err)
	require.Contains(t, out, key+": In Progress -> Completed")
	require.Contains(t, out, "done:")

	out, err = runCLI(t, "show", "--env", envFile, "--key", key)
	require.NoError(t, err)
	require.Contains(t, out, "Completed")
	require.Contains(t, out, "a lighthouse at dusk")

	out, err = runCLI(t, "list", "--env", envFile)
	require.NoError(t, err)
	require.Contains(t, out, key)

	out, err = runCLI(t, "refresh", "--env", envFile)
	require.NoError(t, err)
	require.Contains(t, out, "refreshed 0 job(s)")
}

func TestRefreshAllReconcilesFailures(t *testing.T) {
	dir, envFile := syntheticEnv(t)

	_, err := runCLI(t, "create", "--env", envFile, "--prompt", "a storm [fail]")
	require.NoError(t, err)

	out, err := runCLI(t, "refresh", "--env", envFile)
	require.NoError(t, err)
	require.Contains(t, out, "refreshed 1 job(s)")

	keys := jobKeys(t, dir)
	require.Len(t, keys, 1)
	out, err = runCLI(t, "show", "--env", envFile, "--key", keys[0])
	require.NoError(t, err)
	require.Contains(t, out, "Failed")
	require.Contains(t, out, "content policy violation")
}

func TestCreateRejectsInvalidParameters(t *testing.T) {
	dir, envFile := syntheticEnv(t)

	out, err := runCLI(t, "create", "--env", envFile, "--prompt", "x", "--duration", "31")
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
	require.NotContains(t, out, "job_")
	require.Empty(t, jobKeys(t, dir))
}

func TestShowUnknownKey(t *testing.T) {
	_, envFile := syntheticEnv(t)

	_, err := runCLI(t, "show", "--env", envFile, "--key", "job_19990101_000000")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOpenRuntimeReportsConfigErrors(t *testing.T) {
	_, envFile := syntheticEnv(t)
	t.Setenv("VIDEO_PROVIDER", "sora")

	_, err := runCLI(t, "list", "--env", envFile)
	require.ErrorContains(t, err, "load config")
}

func TestOpenRuntimeLoadsEnvFile(t *testing.T) {
	dir, _ := syntheticEnv(t)
	// godotenv never overrides a variable that is already set
	require.NoError(t, os.Unsetenv("VIDEO_PROVIDER"))
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("VIDEO_PROVIDER=synthetic\n"), 0o644))

	_, err := runCLI(t, "create", "--env", envFile, "--prompt", "a quiet harbour")
	require.NoError(t, err)
	require.Len(t, jobKeys(t, dir), 1)
}
