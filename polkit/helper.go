package polkit

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/kastheco/mountie/agent"
	"github.com/kastheco/mountie/log"
)

// ErrAuthFailed is returned when the helper reports a failed conversation.
var ErrAuthFailed = errors.New("authentication failed")

var helperCandidates = []string{
	"/usr/lib/polkit-1/polkit-agent-helper-1",
	"/usr/libexec/polkit-agent-helper-1",
	"/usr/libexec/polkit-1/polkit-agent-helper-1",
	"/usr/lib/policykit-1/polkit-agent-helper-1",
}

// FindHelper returns the polkit helper binary. A non-empty configured path
// wins over the well-known locations.
func FindHelper(configured string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err != nil {
			return "", fmt.Errorf("polkit helper %s: %w", configured, err)
		}
		return configured, nil
	}
	for _, p := range helperCandidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", errors.New("polkit-agent-helper-1 not found; set polkit_helper in the config")
}

// Process is a running helper.
type Process struct {
	Stdin  io.WriteCloser
	Stdout io.Reader
	Wait   func() error
}

// Starter launches the helper for user.
type Starter func(ctx context.Context, user string) (*Process, error)

// ExecHelper runs the helper binary at path. The process is killed when ctx
// is cancelled.
func ExecHelper(path string) Starter {
	return func(ctx context.Context, user string) (*Process, error) {
		cmd := exec.CommandContext(ctx, path, user)
		cmd.Stderr = io.Discard
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, err
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start %s: %w", path, err)
		}
		return &Process{Stdin: stdin, Stdout: stdout, Wait: cmd.Wait}, nil
	}
}

// Authenticate runs one helper conversation for user, answering password
// prompts through l.
func Authenticate(ctx context.Context, start Starter, l agent.Listener, user, cookie string) error {
	proc, err := start(ctx, user)
	if err != nil {
		return err
	}
	convErr := converse(ctx, proc, l, user, cookie)
	_ = proc.Stdin.Close()
	waitErr := proc.Wait()
	if convErr != nil {
		return convErr
	}
	if waitErr != nil {
		return fmt.Errorf("polkit helper: %w", waitErr)
	}
	return nil
}

func converse(ctx context.Context, proc *Process, l agent.Listener, user, cookie string) error {
	if _, err := io.WriteString(proc.Stdin, cookie+"\n"); err != nil {
		return fmt.Errorf("send cookie to helper: %w", err)
	}

	var lastError string
	sc := bufio.NewScanner(proc.Stdout)
	for sc.Scan() {
		kind, text, _ := strings.Cut(sc.Text(), " ")
		switch kind {
		case "PAM_PROMPT_ECHO_OFF":
			log.DebugLog.Printf("helper prompt for %s: %q", user, text)
			pass, err := l.RequestPassword(ctx, user)
			if err != nil {
				return err
			}
			_, err = proc.Stdin.Write(pass.Bytes())
			pass.Wipe()
			if err == nil {
				_, err = io.WriteString(proc.Stdin, "\n")
			}
			if err != nil {
				return fmt.Errorf("send response to helper: %w", err)
			}
		case "PAM_PROMPT_ECHO_ON":
			if _, err := io.WriteString(proc.Stdin, user+"\n"); err != nil {
				return fmt.Errorf("send response to helper: %w", err)
			}
		case "PAM_ERROR_MSG":
			lastError = text
			log.WarningLog.Printf("polkit: %s", text)
		case "PAM_TEXT_INFO":
			log.InfoLog.Printf("polkit: %s", text)
		case "SUCCESS":
			return nil
		case "FAILURE":
			if lastError != "" {
				return fmt.Errorf("%w: %s", ErrAuthFailed, lastError)
			}
			return ErrAuthFailed
		default:
			log.DebugLog.Printf("unexpected helper output %q", kind)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read helper output: %w", err)
	}
	return errors.New("polkit helper exited without a result")
}
