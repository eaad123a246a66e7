package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "missing.yaml")))
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestDrawMonthReportsContestsWithoutCandidates(t *testing.T) {
	out := runCLI(t, "draw")
	require.Contains(t, out, `"code": "NO_CANDIDATES"`)
}

func TestDrawRejectsBadMonth(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"draw", "--month", "October", "--config", filepath.Join(t.TempDir(), "missing.yaml")})
	require.ErrorContains(t, cmd.Execute(), "invalid --month")
}

func TestSweepWithNothingExpired(t *testing.T) {
	require.Contains(t, runCLI(t, "sweep"), "finalised 0 sessions")
}

func TestMigrateNeedsPostgres(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"migrate", "--config", filepath.Join(t.TempDir(), "missing.yaml")})
	require.ErrorContains(t, cmd.Execute(), "postgres url not configured")
}
