package process

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codemonument/sftpc/internal/transport"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func collect(t *testing.T, lines <-chan string) []string {
	t.Helper()
	var got []string
	timeout := time.After(5 * time.Second)
	for {
		select {
		case l, ok := <-lines:
			if !ok {
				return got
			}
			got = append(got, l)
		case <-timeout:
			t.Fatal("timed out reading lines")
		}
	}
}

func TestEchoChild(t *testing.T) {
	requireShell(t)

	// Echo stdin back on stdout and a marker on stderr, like sftp does.
	script := `echo "Connected to fake." >&2; while read -r line; do echo "sftp> $line"; done`
	tr := New("sh", []string{"-c", script}, WithDir(t.TempDir()))
	require.NoError(t, tr.Start(context.Background()))

	require.NoError(t, tr.WriteLine("pwd"))
	require.NoError(t, tr.WriteLine(""))
	require.NoError(t, tr.CloseInput())

	assert.Equal(t, []string{"Connected to fake.", "sftp> pwd", "sftp>"}, collect(t, tr.Lines()))
	assert.NoError(t, tr.Wait())
}

func TestUncleanExit(t *testing.T) {
	requireShell(t)

	tr := New("sh", []string{"-c", "echo bye; exit 3"})
	require.NoError(t, tr.Start(context.Background()))
	collect(t, tr.Lines())

	err := tr.Wait()
	require.Error(t, err)
	assert.True(t, errors.Is(err, transport.ErrUncleanExit))

	var exitErr *transport.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.Code)
}

func TestLongLineIsReportedByWait(t *testing.T) {
	requireShell(t)

	script := `echo start; head -c 1100000 /dev/zero | tr '\000' x; echo; echo after`
	tr := New("sh", []string{"-c", script})
	require.NoError(t, tr.Start(context.Background()))
	assert.Equal(t, []string{"start"}, collect(t, tr.Lines()))

	waited := make(chan error, 1)
	go func() { waited <- tr.Wait() }()

	select {
	case err := <-waited:
		require.ErrorIs(t, err, transport.ErrOutputLost)
		assert.False(t, errors.Is(err, transport.ErrUncleanExit), "child exited cleanly: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("child blocked on unread output")
	}
}

func TestKill(t *testing.T) {
	requireShell(t)

	tr := New("sh", []string{"-c", "sleep 30"})
	require.NoError(t, tr.Start(context.Background()))
	require.NoError(t, tr.Kill())

	assert.ErrorIs(t, tr.Wait(), transport.ErrUncleanExit)
}

func TestStartMissingBinary(t *testing.T) {
	tr := New("/nonexistent/sftp-binary", nil)
	assert.Error(t, tr.Start(context.Background()))
	assert.ErrorIs(t, tr.WriteLine("pwd"), transport.ErrTransportUnavailable)
}

func TestString(t *testing.T) {
	tr := New("sftp", []string{"-P", "2222", "u@h"}, WithDir("/tmp"), WithEnv("LANG", "C"))
	assert.Equal(t, "exec://sftp -P 2222 u@h (in /tmp)", tr.String())
	assert.Equal(t, []string{"LANG=C"}, tr.env)
}
