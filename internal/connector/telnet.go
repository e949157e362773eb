package connector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"regexp"
	"strings"
	"time"
)

// Prompt patterns for the login negotiation and the shell. The shell prompt
// is a trailing ">" or "#" preceded by at least 3 hostname characters; the
// page separator shows up when the device paginates despite the template's
// pagination-disable command.
var (
	loginPromptRe    = regexp.MustCompile(`(?i)(?:login|username|user name):\s*$`)
	passwordPromptRe = regexp.MustCompile(`(?i)password:\s*$`)
	shellPromptRe    = regexp.MustCompile(`[<a-zA-Z0-9._-]{3,}[>#]\s*$`)
	pageSeparatorRe  = regexp.MustCompile(`(?i)(?:---- More ----|--More--)\s*$`)
)

// Telnet option negotiation bytes. We refuse every option the device offers
// or demands; plain NVT is all a CLI dump needs.
const (
	telnetIAC  = 255
	telnetDONT = 254
	telnetDO   = 253
	telnetWONT = 252
	telnetWILL = 251
)

// negotiationState drives the interactive login. Keeping it as an explicit
// state machine keeps timeout and failure handling in one read loop instead
// of scattered callbacks.
type negotiationState int

const (
	stateAwaitingLogin negotiationState = iota
	stateAwaitingPassword
	stateAwaitingPrompt
	stateAuthenticated
)

// TelnetConnector negotiates interactive logins over plain TCP.
type TelnetConnector struct{}

func (c *TelnetConnector) Open(ctx context.Context, params Params) (Session, error) {
	dialer := &net.Dialer{Timeout: params.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", params.addr())
	if err != nil {
		return nil, &ConnectError{Host: params.Host, Err: err}
	}

	s := &telnetSession{conn: conn, params: params}
	if err := s.login(); err != nil {
		conn.Close()
		return nil, &ConnectError{Host: params.Host, Err: err}
	}
	return s, nil
}

type telnetSession struct {
	conn   net.Conn
	params Params
}

// login walks the negotiation state machine: wait for the login prompt, send
// the username, wait for the password prompt, send the password, then wait
// for the shell prompt. Seeing a login prompt again after sending credentials
// means the device rejected them.
func (s *telnetSession) login() error {
	deadline := time.Now().Add(s.params.ConnectTimeout)
	state := stateAwaitingLogin
	var buf strings.Builder

	for state != stateAuthenticated {
		chunk, err := s.read(deadline)
		if err != nil {
			return fmt.Errorf("login negotiation (state %d): %w", state, err)
		}
		buf.WriteString(chunk)
		text := buf.String()

		switch state {
		case stateAwaitingLogin:
			if loginPromptRe.MatchString(text) {
				if err := s.writeLine(s.params.Username); err != nil {
					return err
				}
				buf.Reset()
				state = stateAwaitingPassword
			}
		case stateAwaitingPassword:
			if passwordPromptRe.MatchString(text) {
				if err := s.writeLine(s.params.Password); err != nil {
					return err
				}
				buf.Reset()
				state = stateAwaitingPrompt
			}
		case stateAwaitingPrompt:
			if loginPromptRe.MatchString(text) || passwordPromptRe.MatchString(text) {
				return errors.New("authentication rejected")
			}
			if shellPromptRe.MatchString(strings.TrimRight(text, " ")) {
				state = stateAuthenticated
			}
		}
	}
	return nil
}

// Run executes each command against the shell prompt, waiting for the prompt
// to reappear before sending the next one. Pagination markers are answered
// with a space and stripped from the capture.
func (s *telnetSession) Run(ctx context.Context, commands []string) (string, error) {
	deadline := time.Now().Add(s.params.CommandTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	var output strings.Builder
	for _, cmd := range commands {
		if err := s.writeLine(cmd); err != nil {
			return "", &ExecError{Host: s.params.Host, Err: fmt.Errorf("write command %q: %w", cmd, err)}
		}

		captured, err := s.awaitPrompt(deadline)
		if err != nil {
			return "", &ExecError{Host: s.params.Host, Err: fmt.Errorf("command %q: %w", cmd, err)}
		}
		output.WriteString(trimCommandEcho(captured, cmd))
		output.WriteString("\n")
	}
	return output.String(), nil
}

// awaitPrompt reads until the shell prompt reappears, paging through any
// pagination markers. Returns everything captured before the prompt line.
func (s *telnetSession) awaitPrompt(deadline time.Time) (string, error) {
	var buf strings.Builder
	for {
		chunk, err := s.read(deadline)
		if err != nil {
			return "", err
		}
		buf.WriteString(chunk)
		text := buf.String()

		if pageSeparatorRe.MatchString(strings.TrimRight(text, " ")) {
			// Answer the pager and drop the marker from the capture.
			buf.Reset()
			buf.WriteString(pageSeparatorRe.ReplaceAllString(strings.TrimRight(text, " "), ""))
			if _, err := s.conn.Write([]byte(" ")); err != nil {
				return "", err
			}
			continue
		}
		if shellPromptRe.MatchString(strings.TrimRight(text, " ")) {
			// Drop the prompt line itself from the capture.
			if nl := lastNewline(strings.TrimRight(text, " \r\n")); nl >= 0 {
				return text[:nl], nil
			}
			return "", nil
		}
	}
}

func (s *telnetSession) Close() error {
	return s.conn.Close()
}

// read pulls the next chunk off the wire, answering and filtering telnet
// option negotiation bytes. An elapsed deadline surfaces as a timeout error.
func (s *telnetSession) read(deadline time.Time) (string, error) {
	if !time.Now().Before(deadline) {
		return "", errors.New("timeout")
	}
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return "", err
	}

	raw := make([]byte, 4096)
	n, err := s.conn.Read(raw)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return "", errors.New("timeout")
		}
		return "", err
	}

	var text []byte
	var reply []byte
	for i := 0; i < n; {
		if raw[i] != telnetIAC {
			text = append(text, raw[i])
			i++
			continue
		}
		if i+1 >= n {
			break
		}
		verb := raw[i+1]
		if verb != telnetDO && verb != telnetDONT && verb != telnetWILL && verb != telnetWONT {
			i += 2
			continue
		}
		if i+2 >= n {
			break
		}
		opt := raw[i+2]
		switch verb {
		case telnetDO:
			reply = append(reply, telnetIAC, telnetWONT, opt)
		case telnetWILL:
			reply = append(reply, telnetIAC, telnetDONT, opt)
		}
		i += 3
	}
	if len(reply) > 0 {
		if _, err := s.conn.Write(reply); err != nil {
			return "", err
		}
	}
	return string(text), nil
}

func (s *telnetSession) writeLine(line string) error {
	_, err := s.conn.Write([]byte(line + "\r\n"))
	return err
}

// trimCommandEcho drops the echoed command from the head of a capture.
func trimCommandEcho(captured, cmd string) string {
	trimmed := strings.TrimLeft(captured, "\r\n")
	if strings.HasPrefix(trimmed, cmd) {
		trimmed = strings.TrimPrefix(trimmed, cmd)
		trimmed = strings.TrimLeft(trimmed, "\r\n")
	}
	return strings.TrimRight(trimmed, " \r\n")
}
