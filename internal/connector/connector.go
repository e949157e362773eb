// Package connector opens authenticated interactive CLI sessions on network
// devices over SSH or Telnet and captures command output.
package connector

import (
	"context"
	"fmt"
	"time"

	"github.com/ymakhno/confbak/pkg/models"
)

// ConnectError is a failure to establish or authenticate a session: network
// unreachable, auth rejected, connect timeout. Terminal for the job.
type ConnectError struct {
	Host string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Host, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// ExecError is a failure after the session was established: command-channel
// error, side-channel error output, command timeout. Terminal for the job.
type ExecError struct {
	Host string
	Err  error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("execute on %s: %v", e.Host, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// Params describes one session. Timeouts are hard wall-clock bounds: one for
// connect plus authentication, one for the whole command batch. Exceeding
// either is terminal; the connector never retries.
type Params struct {
	Host           string
	Port           int
	Username       string
	Password       string
	ConnectTimeout time.Duration
	CommandTimeout time.Duration
}

func (p Params) addr() string {
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}

// Session is an open authenticated CLI session.
type Session interface {
	// Run writes the commands in order and returns the captured output.
	// Failures are *ExecError.
	Run(ctx context.Context, commands []string) (string, error)
	// Close is best-effort and must be safe to call after a Run failure.
	Close() error
}

// Connector opens sessions for one protocol.
type Connector interface {
	// Open dials and authenticates. Failures are *ConnectError.
	Open(ctx context.Context, params Params) (Session, error)
}

// ForProtocol returns the connector for a device's protocol.
func ForProtocol(p models.Protocol) (Connector, error) {
	switch p {
	case models.ProtocolSSH:
		return &SSHConnector{}, nil
	case models.ProtocolTelnet:
		return &TelnetConnector{}, nil
	default:
		return nil, fmt.Errorf("unknown protocol %q", string(p))
	}
}
