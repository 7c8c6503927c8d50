package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/williamokano/cloudconfig/pkg/storage"
)

type Backend struct {
	name       string
	sshClient  *ssh.Client
	sftpClient *sftp.Client
	remotePath string
	retry      storage.RetryConfig
}

func init() {
	storage.RegisterBackend("ssh", func(ctx context.Context, cfg storage.Config) (storage.Backend, error) {
		return New(cfg)
	})
}

// New creates a new SFTP backend. The access key is the SSH user, the secret
// key its password and the bucket the remote directory.
func New(cfg storage.Config) (*Backend, error) {
	sshCfg, err := parseConfig(cfg)
	if err != nil {
		return nil, storage.WrapError(cfg.Name, "init", err)
	}

	clientConfig := &ssh.ClientConfig{
		User:            sshCfg.User,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // TODO: read known_hosts from the store options
		Timeout:         30 * time.Second,
	}

	if sshCfg.Password != "" {
		clientConfig.Auth = append(clientConfig.Auth, ssh.Password(sshCfg.Password))
	}

	if sshCfg.KeyPath != "" {
		key, err := os.ReadFile(sshCfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read SSH key: %w", err)
		}

		var signer ssh.Signer
		if sshCfg.KeyPassphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(sshCfg.KeyPassphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(key)
		}

		if err != nil {
			return nil, fmt.Errorf("failed to parse SSH key: %w", err)
		}

		clientConfig.Auth = append(clientConfig.Auth, ssh.PublicKeys(signer))
	}

	addr := fmt.Sprintf("%s:%d", sshCfg.Host, sshCfg.Port)
	sshClient, err := ssh.Dial("tcp", addr, clientConfig)
	if err != nil {
		return nil, storage.WrapError(cfg.Name, "connect", fmt.Errorf("%w: %w", storage.ErrConnFailed, err))
	}

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, storage.WrapError(cfg.Name, "sftp init", err)
	}

	return &Backend{
		name:       cfg.Name,
		sshClient:  sshClient,
		sftpClient: sftpClient,
		remotePath: sshCfg.RemotePath,
		retry:      cfg.Retry,
	}, nil
}

func (b *Backend) Name() string { return b.name }
func (b *Backend) Type() string { return "ssh" }

// Read downloads a file via SFTP. The sftp client is not context aware: a
// read that outlives ctx is abandoned and ends when the backend is closed.
func (b *Backend) Read(ctx context.Context, key string) ([]byte, error) {
	remotePath := path.Join(b.remotePath, strings.TrimPrefix(key, "/"))

	var body []byte

	err := storage.WithRetry(ctx, b.retry, func() error {
		data, err := readContext(ctx, func() ([]byte, error) {
			return b.readFile(remotePath)
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return storage.WrapContextError(b.name, "read "+key, err)
			}
			return storage.WrapError(b.name, "read "+key, err)
		}

		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}

	return body, nil
}

func (b *Backend) readFile(remotePath string) ([]byte, error) {
	file, err := b.sftpClient.Open(remotePath)
	if err != nil {
		return nil, classifyError(err)
	}
	defer file.Close()

	return readBody(file)
}

func readBody(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrConnFailed, err)
	}
	return data, nil
}

// readContext runs read in the background and stops waiting for it once
// ctx is done
func readContext(ctx context.Context, read func() ([]byte, error)) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type result struct {
		data []byte
		err  error
	}

	done := make(chan result, 1)
	go func() {
		data, err := read()
		done <- result{data: data, err: err}
	}()

	select {
	case res := <-done:
		return res.data, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close releases resources
func (b *Backend) Close() error {
	if b.sftpClient != nil {
		b.sftpClient.Close()
	}
	if b.sshClient != nil {
		b.sshClient.Close()
	}
	return nil
}

func parseConfig(cfg storage.Config) (*Config, error) {
	sshCfg := &Config{
		Port:       22,
		User:       cfg.AccessKey,
		Password:   cfg.SecretKey,
		RemotePath: cfg.Bucket,
	}

	if sshCfg.User == "" {
		return nil, fmt.Errorf("missing required option user: %w", storage.ErrInvalidConfig)
	}
	if sshCfg.RemotePath == "" {
		return nil, fmt.Errorf("missing required option remote_path: %w", storage.ErrInvalidConfig)
	}

	options := cfg.Options
	if v, ok := options["host"].(string); ok && v != "" {
		sshCfg.Host = v
	} else {
		return nil, fmt.Errorf("missing required option host: %w", storage.ErrInvalidConfig)
	}
	if v, ok := options["key_path"].(string); ok {
		sshCfg.KeyPath = v
	}
	if v, ok := options["key_passphrase"].(string); ok {
		sshCfg.KeyPassphrase = v
	}
	switch v := options["port"].(type) {
	case float64:
		sshCfg.Port = int(v)
	case int:
		sshCfg.Port = v
	}

	if sshCfg.Password == "" && sshCfg.KeyPath == "" {
		return nil, fmt.Errorf("either password or key_path is required: %w", storage.ErrInvalidConfig)
	}

	return sshCfg, nil
}

func classifyError(err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: %w", storage.ErrNotFound, err)
	case errors.Is(err, os.ErrPermission):
		return fmt.Errorf("%w: %w", storage.ErrPermissionDenied, err)
	}
	return err
}
