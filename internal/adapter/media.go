package adapter

import "sidecar-api/internal/shared"

type ImagePayload struct {
	Prompt            string
	NumInferenceSteps int
	Width             int
	Height            int
}

func AdaptImage(req Request) (*ImagePayload, error) {
	prompt := shared.GetString(req, "prompt")
	if prompt == "" {
		return nil, shared.NewValidationError("Prompt is required.")
	}
	steps, err := positiveInt(req, "numInferenceSteps", shared.DefaultInferenceSteps)
	if err != nil {
		return nil, err
	}
	width, err := positiveInt(req, "width", shared.DefaultImageSize)
	if err != nil {
		return nil, err
	}
	height, err := positiveInt(req, "height", shared.DefaultImageSize)
	if err != nil {
		return nil, err
	}
	return &ImagePayload{Prompt: prompt, NumInferenceSteps: steps, Width: width, Height: height}, nil
}

type SpeechPayload struct {
	Text  string
	Voice string
}

func AdaptSpeech(req Request) (*SpeechPayload, error) {
	text := shared.GetString(req, "text")
	if text == "" {
		return nil, shared.NewValidationError("Text is required for TTS.")
	}
	voice := shared.GetString(req, "voice")
	if voice == "" {
		voice = shared.DefaultVoice
	}
	return &SpeechPayload{Text: text, Voice: voice}, nil
}
