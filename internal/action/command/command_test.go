package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codemonument/sftpc/internal/action/actiontest"
)

func TestCommand(t *testing.T) {
	sess := actiontest.New("/")
	sess.Listing = []string{"drwxr-xr-x 2 u u 4096 upload"}

	res, err := (&Action{}).Run(context.Background(), sess, map[string]any{"cmd": "ls -l"})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, "ls -l", res.Data["cmd"])
	assert.Equal(t, "drwxr-xr-x 2 u u 4096 upload", res.Data["stdout"])
	assert.Equal(t, []string{"command ls -l"}, sess.Calls())
}

func TestCommandFailOn(t *testing.T) {
	sess := actiontest.New("/")
	sess.Listing = []string{"Couldn't create directory: Failure"}

	_, err := (&Action{}).Run(context.Background(), sess, map[string]any{
		"cmd":     "mkdir upload",
		"fail_on": "Couldn't",
	})
	require.Error(t, err)

	var cerr *CommandError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "mkdir upload", cerr.Cmd)
	assert.Contains(t, err.Error(), "Couldn't create directory")
}

func TestCommandRequiresCmd(t *testing.T) {
	_, err := (&Action{}).Run(context.Background(), actiontest.New("/"), map[string]any{})
	assert.Error(t, err)
}
