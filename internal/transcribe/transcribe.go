// Package transcribe turns an audio reference into text. The production
// implementation calls a Whisper-compatible speech-to-text API.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/openai/openai-go"
)

// ErrAudioNotFound indicates the referenced audio does not resolve to a
// readable file.
var ErrAudioNotFound = errors.New("audio file not found")

// Transcriber is the transcription collaborator contract.
type Transcriber interface {
	// Resolve verifies that ref points at readable audio without
	// transcribing it. Returns ErrAudioNotFound when it does not.
	Resolve(ref string) error

	// Transcribe converts the referenced audio to text, returning the
	// transcript and the audio duration in seconds when known.
	Transcribe(ctx context.Context, ref string) (string, float64, error)
}

// Whisper transcribes local audio files through the OpenAI audio API.
type Whisper struct {
	client *openai.Client
	model  string
}

func NewWhisper(client *openai.Client, model string) *Whisper {
	return &Whisper{client: client, model: model}
}

func (w *Whisper) Resolve(ref string) error {
	info, err := os.Stat(ref)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrAudioNotFound, ref)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrAudioNotFound, ref)
	}
	return nil
}

func (w *Whisper) Transcribe(ctx context.Context, ref string) (string, float64, error) {
	if err := w.Resolve(ref); err != nil {
		return "", 0, err
	}

	f, err := os.Open(ref)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %s", ErrAudioNotFound, ref)
	}
	defer f.Close()

	slog.Info("Transcribing audio", "file", ref, "model", w.model)
	resp, err := w.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: openai.F(w.model),
		File:  openai.F[io.Reader](f),
	})
	if err != nil {
		return "", 0, fmt.Errorf("transcription failed: %w", err)
	}

	// The plain transcription response does not report duration.
	return resp.Text, 0, nil
}
