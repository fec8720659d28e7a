package transcript

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// The fallback tier shells out to yt-dlp for the audio track and to whisper
// for local speech-to-text. Everything happens inside a per-call temp
// directory that is removed unconditionally, including on transcription
// failure, so a crash mid-item never leaks audio files.

const (
	defaultYtdlpBinary   = "yt-dlp"
	defaultWhisperBinary = "whisper"
	defaultWhisperModel  = "base"
)

// SpeechToText downloads a video's audio track and transcribes it locally.
type SpeechToText struct {
	YtdlpBinary   string
	WhisperBinary string
	WhisperModel  string

	// WorkDir is where per-call temp directories are created. Empty means
	// the system temp directory.
	WorkDir string

	// runner executes external commands; tests replace it.
	runner func(ctx context.Context, name string, args ...string) error
}

// NewSpeechToText builds the fallback tier with default binaries.
func NewSpeechToText(model string) *SpeechToText {
	if model == "" {
		model = defaultWhisperModel
	}
	return &SpeechToText{
		YtdlpBinary:   defaultYtdlpBinary,
		WhisperBinary: defaultWhisperBinary,
		WhisperModel:  model,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *SpeechToText) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.runner = runner
}

// Transcribe downloads the audio track for videoURL and runs speech-to-text
// over it, returning the transcript text.
func (s *SpeechToText) Transcribe(ctx context.Context, videoURL string) (string, error) {
	dir, err := os.MkdirTemp(s.WorkDir, "growthwatch-audio-")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	audioPath := filepath.Join(dir, "audio.m4a")
	if err := s.run(ctx, s.YtdlpBinary,
		"-f", "bestaudio[ext=m4a]/bestaudio",
		"-o", audioPath,
		"--quiet", "--no-warnings",
		videoURL,
	); err != nil {
		return "", fmt.Errorf("download audio: %w", err)
	}

	if err := s.run(ctx, s.WhisperBinary,
		audioPath,
		"--model", s.WhisperModel,
		"--output_format", "txt",
		"--output_dir", dir,
	); err != nil {
		return "", fmt.Errorf("transcribe audio: %w", err)
	}

	textPath := filepath.Join(dir, "audio.txt")
	data, err := os.ReadFile(textPath)
	if err != nil {
		return "", fmt.Errorf("read transcript output: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("speech-to-text produced empty transcript")
	}
	return text, nil
}

func (s *SpeechToText) run(ctx context.Context, name string, args ...string) error {
	if s.runner != nil {
		return s.runner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
