package copy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codemonument/sftpc/internal/action"
	"github.com/codemonument/sftpc/internal/action/actiontest"
)

const missing = `Can't ls: "/upload/app.conf" not found`

func TestRegistered(t *testing.T) {
	assert.NotNil(t, action.Get("copy"))
}

func TestCopyContent(t *testing.T) {
	sess := actiontest.New("/")
	sess.Output["ls -la /upload/app.conf"] = []string{missing}

	res, err := (&Action{}).Run(context.Background(), sess, map[string]any{
		"dest":    "/upload/app.conf",
		"content": "port: 8080\n",
		"mode":    "0640",
	})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, "file created", res.Message)
	assert.Equal(t, action.Checksum([]byte("port: 8080\n")), res.Data["checksum"])

	calls := sess.Calls()
	require.Len(t, calls, 3)
	assert.True(t, strings.HasPrefix(calls[1], "put "), "expected put, got %q", calls[1])
	assert.True(t, strings.HasSuffix(calls[1], "/app.conf /upload/app.conf"), "unexpected put %q", calls[1])
	assert.Equal(t, "command chmod 0640 /upload/app.conf", calls[2])
}

func TestCopyTempFileRemoved(t *testing.T) {
	sess := actiontest.New("/")
	sess.Output["ls -la /upload/app.conf"] = []string{missing}

	_, err := (&Action{}).Run(context.Background(), sess, map[string]any{
		"dest":    "/upload/app.conf",
		"content": "x",
	})
	require.NoError(t, err)

	local := strings.Fields(sess.Calls()[1])[1]
	_, err = os.Stat(local)
	assert.True(t, os.IsNotExist(err), "temp file %s should be removed", local)
}

func TestCopySrc(t *testing.T) {
	src := filepath.Join(t.TempDir(), "local.conf")
	require.NoError(t, os.WriteFile(src, []byte("from disk"), 0o644))

	sess := actiontest.New("/")
	sess.Output["ls -la /upload/app.conf"] = []string{missing}

	res, err := (&Action{}).Run(context.Background(), sess, map[string]any{"dest": "/upload/app.conf", "src": src})
	require.NoError(t, err)
	assert.Equal(t, action.Checksum([]byte("from disk")), res.Data["checksum"])
}

func TestCopyNoForce(t *testing.T) {
	sess := actiontest.New("/")
	sess.Output["ls -la /upload/app.conf"] = []string{"-rw-r--r--    1 1000 1000 12 Oct 15 10:00 /upload/app.conf"}

	res, err := (&Action{}).Run(context.Background(), sess, map[string]any{
		"dest":    "/upload/app.conf",
		"content": "x",
		"force":   false,
	})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Len(t, sess.Calls(), 1)
}

func TestCopyBackup(t *testing.T) {
	sess := actiontest.New("/")
	sess.Output["ls -la /upload/app.conf"] = []string{"-rw-r--r--    1 1000 1000 12 Oct 15 10:00 /upload/app.conf"}

	res, err := (&Action{}).Run(context.Background(), sess, map[string]any{
		"dest":    "/upload/app.conf",
		"content": "x",
		"backup":  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "file updated", res.Message)

	backup, ok := res.Data["backup"].(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(backup, "/upload/app.conf."))
	assert.Contains(t, sess.Calls(), "command rename /upload/app.conf "+backup)
}

func TestCopyCreateDirs(t *testing.T) {
	sess := actiontest.New("/")
	sess.Output["ls -la /srv"] = []string{"drwxr-xr-x    2 0 0 4096 Oct 15 10:00 ."}
	sess.Output["ls -la /srv/app"] = []string{`Can't ls: "/srv/app" not found`}
	sess.Output["ls -la /srv/app/conf"] = []string{`Can't ls: "/srv/app/conf" not found`}
	sess.Output["ls -la /srv/app/conf/app.conf"] = []string{`Can't ls: "/srv/app/conf/app.conf" not found`}

	_, err := (&Action{}).Run(context.Background(), sess, map[string]any{
		"dest":        "/srv/app/conf/app.conf",
		"content":     "x",
		"create_dirs": true,
	})
	require.NoError(t, err)

	calls := sess.Calls()
	assert.Contains(t, calls, "command mkdir /srv/app")
	assert.Contains(t, calls, "command mkdir /srv/app/conf")
	assert.NotContains(t, calls, "command mkdir /srv")
}

func TestCopyUploadRejected(t *testing.T) {
	sess := actiontest.New("/")
	sess.Output["ls -la /upload/app.conf"] = []string{missing}
	sess.Fail["put"] = errors.New("upload rejected")

	_, err := (&Action{}).Run(context.Background(), sess, map[string]any{"dest": "/upload/app.conf", "content": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upload file")
}

func TestCopyInvalidParams(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
		want   string
	}{
		{"missing dest", map[string]any{"content": "x"}, "required parameter 'dest'"},
		{"no source", map[string]any{"dest": "/x"}, "either 'src' or 'content'"},
		{"both sources", map[string]any{"dest": "/x", "src": "a", "content": "b"}, "mutually exclusive"},
		{"bad mode", map[string]any{"dest": "/x", "content": "b", "mode": "0999"}, "must be octal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&Action{}).Run(context.Background(), actiontest.New("/"), tt.params)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
