package lifecycle

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Tunnel turns a local port into a URL other machines can reach.
type Tunnel interface {
	Open(ctx context.Context, port int) (string, error)
	Close() error
}

// LocalTunnel does no tunnelling and reports the loopback URL.
type LocalTunnel struct{}

func (LocalTunnel) Open(_ context.Context, port int) (string, error) {
	return fmt.Sprintf("http://localhost:%d", port), nil
}

func (LocalTunnel) Close() error { return nil }

var publicURL = regexp.MustCompile(`https://[^\s"'<>]+`)

// CommandTunnel runs an external tunnel client such as "tmole {port}" and
// takes the first https URL it prints. The client keeps running until Close.
type CommandTunnel struct {
	Command string
	Log     *zap.SugaredLogger

	mu     sync.Mutex
	cmd    *exec.Cmd
	cancel context.CancelFunc
	exited chan struct{}
}

func NewCommandTunnel(command string, log *zap.SugaredLogger) *CommandTunnel {
	return &CommandTunnel{Command: command, Log: log}
}

func (t *CommandTunnel) Open(ctx context.Context, port int) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cmd != nil {
		return "", errors.New("tunnel already open")
	}

	args := strings.Fields(strings.ReplaceAll(t.Command, "{port}", strconv.Itoa(port)))
	if len(args) == 0 {
		return "", errors.New("empty tunnel command")
	}

	// The client outlives ctx, which only bounds the wait for its URL.
	runCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(runCtx, args[0], args[1:]...)
	cmd.WaitDelay = 2 * time.Second
	out, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return "", err
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		cancel()
		return "", fmt.Errorf("start tunnel: %w", err)
	}

	found := make(chan string, 1)
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		scanner := bufio.NewScanner(out)
		sent := false
		for scanner.Scan() {
			line := scanner.Text()
			t.Log.Debugw("tunnel", "line", line)
			if m := publicURL.FindString(line); m != "" && !sent {
				found <- m
				sent = true
			}
		}
		_ = cmd.Wait()
	}()

	select {
	case url := <-found:
		t.cmd, t.cancel, t.exited = cmd, cancel, exited
		return url, nil
	case <-exited:
		cancel()
		return "", errors.New("tunnel exited without printing a url")
	case <-ctx.Done():
		cancel()
		<-exited
		return "", fmt.Errorf("waiting for tunnel url: %w", ctx.Err())
	}
}

func (t *CommandTunnel) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cmd == nil {
		return nil
	}
	t.cancel()
	<-t.exited
	t.cmd, t.cancel, t.exited = nil, nil, nil
	return nil
}
