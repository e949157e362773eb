package connector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/ssh"
)

// SSHConnector opens password-authenticated interactive shell sessions.
type SSHConnector struct{}

func (c *SSHConnector) Open(ctx context.Context, params Params) (Session, error) {
	conf := &ssh.ClientConfig{
		User:            params.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(params.Password)},
		Timeout:         params.ConnectTimeout,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // devices are pinned by inventory, not known_hosts
	}

	type dialResult struct {
		client *ssh.Client
		err    error
	}
	ch := make(chan dialResult, 1)
	go func() {
		client, err := ssh.Dial("tcp", params.addr(), conf)
		ch <- dialResult{client, err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, &ConnectError{Host: params.Host, Err: res.err}
		}
		return &sshSession{client: res.client, params: params}, nil
	case <-ctx.Done():
		go func() {
			if res := <-ch; res.client != nil {
				res.client.Close()
			}
		}()
		return nil, &ConnectError{Host: params.Host, Err: ctx.Err()}
	}
}

type sshSession struct {
	client *ssh.Client
	params Params
}

// Run opens an interactive shell channel, writes each command terminated by a
// line break, ends with an explicit exit, and captures all channel output
// until the channel closes. Any stderr data aborts the capture immediately.
func (s *sshSession) Run(ctx context.Context, commands []string) (string, error) {
	sess, err := s.client.NewSession()
	if err != nil {
		return "", &ExecError{Host: s.params.Host, Err: fmt.Errorf("open channel: %w", err)}
	}
	defer sess.Close()

	modes := ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := sess.RequestPty("vt100", 80, 200, modes); err != nil {
		return "", &ExecError{Host: s.params.Host, Err: fmt.Errorf("request pty: %w", err)}
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		return "", &ExecError{Host: s.params.Host, Err: err}
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		return "", &ExecError{Host: s.params.Host, Err: err}
	}
	stderr, err := sess.StderrPipe()
	if err != nil {
		return "", &ExecError{Host: s.params.Host, Err: err}
	}

	if err := sess.Shell(); err != nil {
		return "", &ExecError{Host: s.params.Host, Err: fmt.Errorf("start shell: %w", err)}
	}

	errCh := make(chan error, 2)

	// Any side-channel output is treated as a command failure right away,
	// without waiting for the capture to finish.
	go func() {
		buf := make([]byte, 4096)
		n, err := stderr.Read(buf)
		if n > 0 {
			errCh <- &ExecError{Host: s.params.Host, Err: errors.New(string(bytes.TrimSpace(buf[:n])))}
			return
		}
		if err != nil && err != io.EOF {
			errCh <- &ExecError{Host: s.params.Host, Err: err}
		}
	}()

	var captured bytes.Buffer
	done := make(chan struct{})
	go func() {
		io.Copy(&captured, stdout)
		sess.Wait()
		close(done)
	}()

	for _, cmd := range commands {
		if _, err := io.WriteString(stdin, cmd+"\n"); err != nil {
			return "", &ExecError{Host: s.params.Host, Err: fmt.Errorf("write command: %w", err)}
		}
	}
	if _, err := io.WriteString(stdin, "exit\n"); err != nil {
		return "", &ExecError{Host: s.params.Host, Err: fmt.Errorf("write exit: %w", err)}
	}
	stdin.Close()

	timer := time.NewTimer(s.params.CommandTimeout)
	defer timer.Stop()

	select {
	case <-done:
		return trimShellOutput(captured.String(), commands), nil
	case err := <-errCh:
		return "", err
	case <-timer.C:
		return "", &ExecError{Host: s.params.Host, Err: errors.New("command timeout")}
	case <-ctx.Done():
		return "", &ExecError{Host: s.params.Host, Err: ctx.Err()}
	}
}

func (s *sshSession) Close() error {
	return s.client.Close()
}
