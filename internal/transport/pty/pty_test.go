package pty

import (
	"context"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPTYChild(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no PTY support")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	tr := New("sh", []string{"-c", `read -r line; echo "got:$line"`}, WithSize(24, 80))
	require.NoError(t, tr.Start(context.Background()))
	require.NoError(t, tr.WriteLine("hello"))

	var got []string
	timeout := time.After(5 * time.Second)
loop:
	for {
		select {
		case l, ok := <-tr.Lines():
			if !ok {
				break loop
			}
			got = append(got, l)
		case <-timeout:
			t.Fatal("timed out reading pty output")
		}
	}

	// The terminal echoes what was typed before the child answers.
	assert.Contains(t, got, "hello")
	assert.Contains(t, got, "got:hello")
	assert.NoError(t, tr.Wait())
}

func TestString(t *testing.T) {
	tr := New("sftp", []string{"u@h"})
	assert.Equal(t, "pty://sftp u@h", tr.String())
	assert.Equal(t, uint16(500), tr.cols)
}
