package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Line
	}{
		{
			name: "connected",
			line: "Connected to example.com.",
			want: Line{Tag: TagConnected},
		},
		{
			name: "upload progress",
			line: "Uploading dist/app.js to /var/www/app.js",
			want: Line{Tag: TagUploadProgress, LocalPath: "dist/app.js", RemotePath: "/var/www/app.js"},
		},
		{
			name: "download progress",
			line: "Fetching /var/log/app.log to app.log",
			want: Line{Tag: TagDownloadProgress, RemotePath: "/var/log/app.log", LocalPath: "app.log"},
		},
		{
			name: "pwd result trimmed",
			line: "Remote working directory: /home/x  ",
			want: Line{Tag: TagPwdResult, RemotePath: "/home/x"},
		},
		{
			name: "cd failure from shell",
			line: "-bash: cd: missing: No such file or directory",
			want: Line{Tag: TagCdFailureShell, RemotePath: "missing", Reason: "No such file or directory"},
		},
		{
			name: "cd failure path with colon",
			line: "-bash: cd: a:b: Permission denied",
			want: Line{Tag: TagCdFailureShell, RemotePath: "a:b", Reason: "Permission denied"},
		},
		{
			name: "stat failure",
			line: "stat remote: No such file or directory",
			want: Line{Tag: TagCdFailureStat, Reason: "No such file or directory"},
		},
		{
			name: "bare prompt",
			line: "sftp>",
			want: Line{Tag: TagPrompt},
		},
		{
			name: "prompt with echoed command",
			line: "sftp> put  a.txt /tmp/a.txt",
			want: Line{Tag: TagPrompt, Action: "put", Args: "a.txt /tmp/a.txt"},
		},
		{
			name: "unrecognized",
			line: "drwxr-xr-x    2 user  user  4096 Jan  1 00:00 docs",
			want: Line{Tag: TagUnrecognized},
		},
		{
			name: "pwd prefix not at start",
			line: "note: Remote working directory: /x",
			want: Line{Tag: TagUnrecognized},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.line)
			tt.want.Raw = tt.line
			assert.Equal(t, tt.want, got)

			// Deterministic: same input, same output.
			assert.Equal(t, got, Classify(tt.line))
		})
	}
}

func TestPromptCommand(t *testing.T) {
	assert.Equal(t, "cd /srv/www", Classify("sftp> cd /srv/www").Command())
	assert.Equal(t, "pwd", Classify("sftp> pwd").Command())
	assert.Equal(t, "", Classify("sftp>").Command())
}

func TestReconstructRoundTrip(t *testing.T) {
	lines := []string{
		"Remote working directory: /home/x",
		"Uploading a.txt to /upload/a.txt",
		"Fetching /remote/b.bin to b.bin",
	}

	for _, line := range lines {
		t.Run(line, func(t *testing.T) {
			first := Classify(line)
			rebuilt, ok := first.Reconstruct()
			assert.True(t, ok)
			assert.Equal(t, first.Tag, Classify(rebuilt).Tag)
			assert.Equal(t, line, rebuilt)
		})
	}

	_, ok := Classify("sftp>").Reconstruct()
	assert.False(t, ok)
}

func TestTagString(t *testing.T) {
	assert.Equal(t, "pwdResult", TagPwdResult.String())
	assert.Equal(t, "unrecognized", Tag(99).String())
}
