package action

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/codemonument/sftpc/pkg/session"
)

// ContentOptions controls how UploadContent places a file.
type ContentOptions struct {
	// Mode is applied with chmod after the upload, e.g. "0644".
	Mode string

	// Force overwrites an existing destination.
	Force bool

	// Backup renames an existing destination to dest.<timestamp>.bak first.
	Backup bool

	// CreateDirs creates missing parent directories one level at a time.
	CreateDirs bool
}

// UploadContent writes content to dest through a local temp file and put.
// The result data carries dest, checksum, and backup when one was made.
func UploadContent(ctx context.Context, sess Session, content []byte, dest string, opts ContentOptions) (*Result, error) {
	sum := Checksum(content)

	info, err := Stat(ctx, sess, dest)
	if err != nil {
		return nil, fmt.Errorf("failed to check destination: %w", err)
	}
	if info.IsDir {
		return nil, fmt.Errorf("destination %s is a directory", dest)
	}
	if info.Exists && !opts.Force {
		return Unchanged("destination exists and force=false"), nil
	}

	if opts.CreateDirs && !info.Exists {
		if err := createParentDirs(ctx, sess, dest); err != nil {
			return nil, err
		}
	}

	data := map[string]any{
		"dest":     dest,
		"checksum": sum,
	}

	if info.Exists && opts.Backup {
		backupPath := fmt.Sprintf("%s.%s.bak", dest, time.Now().Format("20060102150405"))
		if _, err := Exec(ctx, sess, session.JoinCommand("rename", dest, backupPath)); err != nil {
			return nil, fmt.Errorf("failed to create backup: %w", err)
		}
		data["backup"] = backupPath
	}

	dir, err := os.MkdirTemp("", "sftpc-upload-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	local := filepath.Join(dir, path.Base(dest))
	if err := os.WriteFile(local, content, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}

	f, err := sess.UploadFile(local, dest)
	if err != nil {
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}
	if _, err := f.Await(ctx); err != nil {
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}

	if opts.Mode != "" {
		if _, err := Exec(ctx, sess, session.JoinCommand("chmod", opts.Mode, dest)); err != nil {
			return nil, fmt.Errorf("failed to set mode: %w", err)
		}
	}

	msg := "file created"
	if info.Exists {
		msg = "file updated"
	}
	return ChangedWithData(msg, data), nil
}

// Checksum returns the hex SHA256 of data.
func Checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// createParentDirs creates each missing parent of dest, outermost first.
func createParentDirs(ctx context.Context, sess Session, dest string) error {
	parent := path.Dir(dest)
	if parent == "." || parent == "/" {
		return nil
	}

	var dirs []string
	for d := parent; d != "." && d != "/"; d = path.Dir(d) {
		dirs = append(dirs, d)
	}

	for i := len(dirs) - 1; i >= 0; i-- {
		info, err := Stat(ctx, sess, dirs[i])
		if err != nil {
			return fmt.Errorf("failed to check %s: %w", dirs[i], err)
		}
		if info.IsDir {
			continue
		}
		if info.Exists {
			return fmt.Errorf("%s exists but is not a directory", dirs[i])
		}
		if _, err := Exec(ctx, sess, session.JoinCommand("mkdir", dirs[i])); err != nil {
			return fmt.Errorf("failed to create parent directories: %w", err)
		}
	}
	return nil
}

// ParseMode checks an octal mode string such as "0644".
func ParseMode(mode string) error {
	if mode == "" {
		return nil
	}
	if strings.Trim(mode, "01234567") != "" || len(mode) > 4 {
		return fmt.Errorf("invalid mode '%s': must be octal", mode)
	}
	return nil
}
