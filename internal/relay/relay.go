// Package relay frames a lazy sequence of JSON chunks as Server-Sent Events.
//
// Once Stream commits the headers the status code is fixed, so a failure
// after that point is logged and the stream is closed without an error frame.
// Anything that can fail before the first byte has to be checked by the
// caller before calling Stream.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"sidecar-api/internal/shared"

	"go.uber.org/zap"
)

const framePrefix = "data: "

// Source is a finite, non-restartable chunk sequence. Read returns io.EOF
// after the last chunk.
type Source interface {
	Read(ctx context.Context) (json.RawMessage, error)
	Close() error
}

// Stream writes every chunk of src to w as one `data: <json>\n\n` frame, in
// order, and closes src when done. It returns the number of frames written.
//
// A nil error means src was exhausted. A *shared.StreamFault means src failed
// after headers were sent. A context error or write error means the client
// went away.
func Stream(ctx context.Context, w Responder, src Source, log *zap.SugaredLogger) (int, error) {
	defer func() {
		if err := src.Close(); err != nil {
			log.Warnw("Failed to close chunk source", "error", err)
		}
	}()

	w.SetHeader("Content-Type", "text/event-stream")
	w.SetHeader("Cache-Control", "no-cache")
	w.SetHeader("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := w.Flush(); err != nil {
		return 0, err
	}

	frames := 0
	var frame bytes.Buffer
	for {
		if err := ctx.Err(); err != nil {
			log.Infow("Client disconnected mid-stream", "frames", frames)
			return frames, err
		}

		chunk, err := src.Read(ctx)
		if errors.Is(err, io.EOF) {
			return frames, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				log.Infow("Client disconnected mid-stream", "frames", frames)
				return frames, ctx.Err()
			}
			fault := &shared.StreamFault{Frames: frames, Cause: err}
			log.Errorw("Error after streaming started", "error", fault.Error())
			return frames, fault
		}

		frame.Reset()
		frame.WriteString(framePrefix)
		if err := json.Compact(&frame, chunk); err != nil {
			fault := &shared.StreamFault{Frames: frames, Cause: fmt.Errorf("invalid chunk: %w", err)}
			log.Errorw("Error after streaming started", "error", fault.Error())
			return frames, fault
		}
		frame.WriteString("\n\n")

		if err := w.SendChunk(frame.Bytes()); err != nil {
			log.Infow("Failed writing frame, client likely gone", "frames", frames, "error", err)
			return frames, err
		}
		if err := w.Flush(); err != nil {
			return frames, err
		}
		frames++
	}
}
