package relay

import (
	"github.com/labstack/echo/v4"
)

// Responder is the open response channel a relay writes to.
type Responder interface {
	SetHeader(key, value string)
	WriteHeader(status int)
	SendChunk(data []byte) error
	Flush() error
}

type EchoResponder struct {
	c echo.Context
}

func NewEchoResponder(c echo.Context) Responder {
	return &EchoResponder{c: c}
}

func (r *EchoResponder) SetHeader(key, value string) {
	r.c.Response().Header().Set(key, value)
}

func (r *EchoResponder) WriteHeader(status int) {
	r.c.Response().WriteHeader(status)
}

func (r *EchoResponder) SendChunk(data []byte) error {
	_, err := r.c.Response().Write(data)
	return err
}

func (r *EchoResponder) Flush() error {
	r.c.Response().Flush()
	return nil
}
