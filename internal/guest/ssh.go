package guest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"

	"doze/internal/config"
	"doze/internal/logging"
)

// SSHChannel reaches the guest over TCP with key authentication. Each
// Exec dials a fresh connection; the guest drops connections across
// hibernate cycles anyway, and a command per poll interval is cheap.
type SSHChannel struct {
	addr         string
	clientConfig *ssh.ClientConfig
	logger       *logging.Logger
}

// NewSSHChannel loads the private key and prepares the client config.
func NewSSHChannel(cfg config.GuestConfig, logger *logging.Logger) (*SSHChannel, error) {
	key, err := os.ReadFile(cfg.SSHKeyFile) // #nosec G304 -- key path comes from validated config
	if err != nil {
		return nil, fmt.Errorf("read ssh key: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("parse ssh key: %w", err)
	}

	return &SSHChannel{
		addr: net.JoinHostPort(cfg.SSHHost, strconv.Itoa(cfg.SSHPort)),
		clientConfig: &ssh.ClientConfig{
			User: cfg.SSHUser,
			Auth: []ssh.AuthMethod{ssh.PublicKeys(signer)},
			// The guest sits on a host-local bridge and is reinstalled
			// freely; pinning host keys would break every rebuild.
			HostKeyCallback: ssh.InsecureIgnoreHostKey(), // #nosec G106
			Timeout:         time.Duration(cfg.ExecTimeoutSeconds) * time.Second,
		},
		logger: logger,
	}, nil
}

func (c *SSHChannel) Name() string { return "ssh" }

// Ping dials and authenticates, proving the guest's sshd is up.
func (c *SSHChannel) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	client, err := ssh.Dial("tcp", c.addr, c.clientConfig)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.addr, err)
	}
	return client.Close()
}

// Exec runs the command in a fresh session. ctx cancellation tears the
// connection down, which unblocks the running command.
func (c *SSHChannel) Exec(ctx context.Context, command string) (ExecResult, error) {
	var result ExecResult

	client, err := ssh.Dial("tcp", c.addr, c.clientConfig)
	if err != nil {
		return result, fmt.Errorf("dial %s: %w", c.addr, err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return result, fmt.Errorf("new session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	select {
	case <-ctx.Done():
		_ = client.Close()
		<-done
		return result, fmt.Errorf("run %q: %w", command, ctx.Err())
	case err = <-done:
	}

	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitStatus()
			return result, nil
		}
		return result, fmt.Errorf("run %q: %w", command, err)
	}

	return result, nil
}
