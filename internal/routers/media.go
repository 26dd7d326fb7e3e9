package routers

import (
	"strconv"

	"sidecar-api/internal/ctx"
	"sidecar-api/internal/handlers/generate"
	"sidecar-api/internal/shared"

	"github.com/labstack/echo/v4"
)

type MediaRouter struct {
	mh *generate.MediaHandler
}

func (mr *MediaRouter) ImageRequest(cc echo.Context) error {
	c := ctx.From(cc)
	defer begin(c, shared.SERVICES.IMAGE)()

	body, err := readRequestBody(c)
	if err != nil {
		return badBody(c, err)
	}
	png, err := mr.mh.GenerateImage(c.Request().Context(), body)
	if err != nil {
		return writeError(c, err)
	}
	return c.Blob(200, "image/png", png)
}

func (mr *MediaRouter) SpeechRequest(cc echo.Context) error {
	c := ctx.From(cc)
	defer begin(c, shared.SERVICES.TTS)()

	body, err := readRequestBody(c)
	if err != nil {
		return badBody(c, err)
	}
	wav, err := mr.mh.SynthesizeSpeech(c.Request().Context(), body)
	if err != nil {
		return writeError(c, err)
	}
	return c.Blob(200, "audio/wav", wav)
}

func (mr *MediaRouter) VideoRequest(cc echo.Context) error {
	c := ctx.From(cc)
	defer begin(c, shared.SERVICES.VIDEO)()

	body, err := readRequestBody(c)
	if err != nil {
		return badBody(c, err)
	}
	out, err := mr.mh.GenerateVideo(c.Request().Context(), body)
	if err != nil {
		return writeError(c, err)
	}
	defer out.Close()
	c.LogValues.JobID = out.JobID

	if st, err := out.File.Stat(); err == nil {
		c.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(st.Size(), 10))
	}
	if err := c.Stream(200, "video/mp4", out.File); err != nil {
		c.LogValues.AddError(err)
	}
	return nil
}
