package lifecycle

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// ErrInvalidParams is reported verbatim to the parent process.
var ErrInvalidParams = errors.New("Invalid params JSON")

const (
	CommandStart  = "start"
	CommandStop   = "stop"
	CommandStatus = "status"
)

// ParseParams decodes the optional JSON params argument. An empty argument
// yields empty params.
func ParseParams(arg string) (map[string]any, error) {
	params := map[string]any{}
	if strings.TrimSpace(arg) == "" {
		return params, nil
	}
	if err := json.Unmarshal([]byte(arg), &params); err != nil {
		return nil, ErrInvalidParams
	}
	return params, nil
}

// Dispatch runs one command. No command is an alias for start.
func (c *Controller) Dispatch(ctx context.Context, command string, params map[string]any) Status {
	switch command {
	case CommandStart, "":
		return c.Start(ctx, params)
	case CommandStop:
		return c.Stop(ctx, params)
	case CommandStatus:
		return c.Status()
	default:
		return errorStatus("Unknown command: %s", command)
	}
}

// ServeControl reads one command per line from r, in the form
// `<command> [json-params]`, and writes one JSON status line per command to
// w. It returns when r is exhausted or ctx is done.
func (c *Controller) ServeControl(ctx context.Context, r io.Reader, w io.Writer) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
	}()

	enc := json.NewEncoder(w)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			return err
		case line := <-lines:
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			command, arg, _ := strings.Cut(line, " ")
			params, err := ParseParams(arg)
			if err != nil {
				_ = enc.Encode(errorStatus("%s", err))
				continue
			}
			if err := enc.Encode(c.Dispatch(ctx, command, params)); err != nil {
				return err
			}
		}
	}
}
