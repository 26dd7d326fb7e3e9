package adapter

import (
	"strconv"

	"sidecar-api/internal/shared"
)

// VideoDefaults are startup-configured fallbacks for video requests.
type VideoDefaults struct {
	CkptDir string
}

type VideoPayload struct {
	Prompt           string
	Size             string
	CkptDir          string
	SampleShift      *float64
	SampleGuideScale *float64
	OffloadModel     bool
	T5CPU            bool
}

func AdaptVideo(req Request, defaults VideoDefaults) (*VideoPayload, error) {
	p := &VideoPayload{
		Prompt:       shared.GetString(req, "prompt"),
		Size:         shared.GetString(req, "size"),
		CkptDir:      shared.GetString(req, "ckpt_dir"),
		OffloadModel: shared.Truthy(req["offload_model"]),
		T5CPU:        shared.Truthy(req["t5_cpu"]),
	}
	if p.CkptDir == "" {
		p.CkptDir = defaults.CkptDir
	}
	if p.Prompt == "" || p.Size == "" || p.CkptDir == "" {
		return nil, shared.NewValidationError(`Missing required fields: "prompt", "size", or "ckpt_dir"/default checkpoint directory`)
	}

	if v, ok, err := optionalNumber(req, "sample_shift"); err != nil {
		return nil, err
	} else if ok {
		p.SampleShift = &v
	}
	if v, ok, err := optionalNumber(req, "sample_guide_scale"); err != nil {
		return nil, err
	} else if ok {
		p.SampleGuideScale = &v
	}
	return p, nil
}

// Args builds the generator's argument vector. Boolean switches are only
// appended when enabled; their values are fixed.
func (p *VideoPayload) Args(script, task, output string) []string {
	args := []string{
		script,
		"--task", task,
		"--size", p.Size,
		"--ckpt_dir", p.CkptDir,
		"--prompt", p.Prompt,
		"--output", output,
	}
	if p.SampleShift != nil {
		args = append(args, "--sample_shift", formatNumber(*p.SampleShift))
	}
	if p.SampleGuideScale != nil {
		args = append(args, "--sample_guide_scale", formatNumber(*p.SampleGuideScale))
	}
	if p.OffloadModel {
		args = append(args, "--offload_model", "True")
	}
	if p.T5CPU {
		args = append(args, "--t5_cpu")
	}
	return args
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
