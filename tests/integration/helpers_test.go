package integration

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/docker/docker/pkg/stdcopy"
	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"golang.org/x/crypto/ssh"
)

// execInContainer runs a command in the container and returns stdout
func execInContainer(ctx context.Context, container testcontainers.Container, cmd []string) (int, string, error) {
	exitCode, reader, err := container.Exec(ctx, cmd)
	if err != nil {
		return exitCode, "", err
	}

	// Demux the Docker stream (stdout/stderr are multiplexed)
	var stdout, stderr bytes.Buffer
	_, _ = stdcopy.StdCopy(&stdout, &stderr, reader)

	return exitCode, stdout.String(), nil
}

// assertFileContains checks that a file in the container holds the expected content
func assertFileContains(t *testing.T, ctx context.Context, container testcontainers.Container, path string, expected string) {
	t.Helper()
	exitCode, content, err := execInContainer(ctx, container, []string{"cat", path})
	require.NoError(t, err)
	require.Equal(t, 0, exitCode, "failed to read file %s", path)
	assert.Equal(t, expected, content, "file %s has unexpected content", path)
}

// assertRemoteFile checks a file through an independent sftp client
func assertRemoteFile(t *testing.T, client *sftp.Client, path string, expected string) {
	t.Helper()
	f, err := client.Open(path)
	require.NoError(t, err, "remote file %s should exist", path)
	defer f.Close()

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, expected, string(data), "remote file %s has unexpected content", path)
}

// clientKey is a throwaway key pair for the test server.
type clientKey struct {
	signer     ssh.Signer
	authorized []byte
	privateKey string
}

// generateKey writes a fresh ed25519 key in OpenSSH format to dir.
func generateKey(t *testing.T, dir string) *clientKey {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)

	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)

	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)

	keyPath := filepath.Join(dir, "id_ed25519")
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(block), 0o600))

	return &clientKey{
		signer:     signer,
		authorized: ssh.MarshalAuthorizedKey(sshPub),
		privateKey: keyPath,
	}
}

// writeSSHConfig writes an ssh_config that lets sftp reach the server as
// hostAlias without prompts.
func writeSSHConfig(t *testing.T, dir, host, port, user string, key *clientKey) string {
	t.Helper()

	cfg := fmt.Sprintf(`Host %s
  HostName %s
  Port %s
  User %s
  IdentityFile %s
  IdentitiesOnly yes
  BatchMode yes
  StrictHostKeyChecking no
  UserKnownHostsFile /dev/null
  LogLevel ERROR
`, hostAlias, host, port, user, key.privateKey)

	path := filepath.Join(dir, "ssh_config")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

// newSFTPClient connects an independent sftp client to verify transfers.
func newSFTPClient(t *testing.T, host, port, user string, key *clientKey) *sftp.Client {
	t.Helper()

	config := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(key.signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}

	conn, err := ssh.Dial("tcp", net.JoinHostPort(host, port), config)
	require.NoError(t, err, "failed to connect ssh")

	client, err := sftp.NewClient(conn)
	require.NoError(t, err, "failed to start sftp client")

	t.Cleanup(func() {
		_ = client.Close()
		_ = conn.Close()
	})
	return client
}
