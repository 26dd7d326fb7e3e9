package adapter

import (
	"testing"

	"sidecar-api/internal/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdaptVideoRequiredFields(t *testing.T) {
	defaults := VideoDefaults{}
	for _, body := range []string{
		`{}`,
		`{"prompt":"cats boxing","size":"832*480"}`,
		`{"prompt":"cats boxing","ckpt_dir":"/models/wan"}`,
		`{"size":"832*480","ckpt_dir":"/models/wan"}`,
	} {
		_, err := AdaptVideo(mustDecode(t, body), defaults)
		var verr *shared.ValidationError
		assert.ErrorAs(t, err, &verr, "body %s", body)
	}
}

func TestAdaptVideoCheckpointFallback(t *testing.T) {
	defaults := VideoDefaults{CkptDir: "/opt/Wan2.1-T2V-1.3B"}

	p, err := AdaptVideo(mustDecode(t, `{"prompt":"cats","size":"832*480"}`), defaults)
	require.NoError(t, err)
	assert.Equal(t, "/opt/Wan2.1-T2V-1.3B", p.CkptDir)

	p, err = AdaptVideo(mustDecode(t, `{"prompt":"cats","size":"832*480","ckpt_dir":"./mine"}`), defaults)
	require.NoError(t, err)
	assert.Equal(t, "./mine", p.CkptDir)
}

func TestVideoArgsMinimal(t *testing.T) {
	p, err := AdaptVideo(mustDecode(t, `{"prompt":"Two cats boxing","size":"832*480","offload_model":false,"t5_cpu":0}`), VideoDefaults{CkptDir: "/ckpt"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"generate.py",
		"--task", "t2v-1.3B",
		"--size", "832*480",
		"--ckpt_dir", "/ckpt",
		"--prompt", "Two cats boxing",
		"--output", "/tmp/out.mp4",
	}, p.Args("generate.py", "t2v-1.3B", "/tmp/out.mp4"))
}

func TestVideoArgsAllOptions(t *testing.T) {
	p, err := AdaptVideo(mustDecode(t, `{
		"prompt":"Two cats boxing","size":"832*480","ckpt_dir":"/ckpt",
		"sample_shift":8,"sample_guide_scale":6.5,"offload_model":true,"t5_cpu":true
	}`), VideoDefaults{})
	require.NoError(t, err)
	args := p.Args("generate.py", "t2v-14B", "out.mp4")
	assert.Equal(t, []string{
		"generate.py",
		"--task", "t2v-14B",
		"--size", "832*480",
		"--ckpt_dir", "/ckpt",
		"--prompt", "Two cats boxing",
		"--output", "out.mp4",
		"--sample_shift", "8",
		"--sample_guide_scale", "6.5",
		"--offload_model", "True",
		"--t5_cpu",
	}, args)
}

func TestVideoZeroShiftIsStillDefined(t *testing.T) {
	p, err := AdaptVideo(mustDecode(t, `{"prompt":"x","size":"1*1","ckpt_dir":"c","sample_shift":0}`), VideoDefaults{})
	require.NoError(t, err)
	require.NotNil(t, p.SampleShift)
	assert.Contains(t, p.Args("g.py", "t", "o"), "--sample_shift")
}

func TestVideoBadNumber(t *testing.T) {
	_, err := AdaptVideo(mustDecode(t, `{"prompt":"x","size":"1*1","ckpt_dir":"c","sample_guide_scale":"high"}`), VideoDefaults{})
	var verr *shared.ValidationError
	assert.ErrorAs(t, err, &verr)
}
