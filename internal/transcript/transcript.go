/*
Package transcript turns a video URL into full transcript text using a
two-tier strategy: the captions service first, then audio download plus local
speech-to-text. Results are cached per video ID for the lifetime of a run.

The acquirer is driven by the single-threaded poll loop and is not safe for
concurrent use.
*/
package transcript

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// ErrInvalidVideoURL reports a URL from which no video ID could be parsed.
// It fails the item immediately, before either acquisition tier is attempted.
var ErrInvalidVideoURL = errors.New("invalid video URL")

// AcquisitionError reports that both acquisition tiers failed for a video.
type AcquisitionError struct {
	VideoID     string
	CaptionsErr error
	FallbackErr error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquire transcript for %s: captions: %v; fallback: %v",
		e.VideoID, e.CaptionsErr, e.FallbackErr)
}

func (e *AcquisitionError) Unwrap() error {
	return e.FallbackErr
}

var watchIDRe = regexp.MustCompile(`v=([A-Za-z0-9_-]+)`)
var shortIDRe = regexp.MustCompile(`be/([A-Za-z0-9_-]+)`)

// ParseVideoID extracts the video ID from a watch or short-link URL.
func ParseVideoID(videoURL string) (string, error) {
	if m := watchIDRe.FindStringSubmatch(videoURL); len(m) == 2 {
		return m[1], nil
	}
	if m := shortIDRe.FindStringSubmatch(videoURL); len(m) == 2 {
		return m[1], nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidVideoURL, videoURL)
}

// Transcriber is the fallback tier: local speech-to-text over a downloaded
// audio track.
type Transcriber interface {
	Transcribe(ctx context.Context, videoURL string) (string, error)
}

// Acquirer fetches transcripts with captions-then-speech-to-text fallback.
type Acquirer struct {
	captions *CaptionsClient
	fallback Transcriber
	cache    map[string]string
}

// NewAcquirer wires the two tiers together.
func NewAcquirer(captions *CaptionsClient, fallback Transcriber) *Acquirer {
	return &Acquirer{
		captions: captions,
		fallback: fallback,
		cache:    make(map[string]string),
	}
}

// Acquire returns the full transcript text for a video URL. The captions
// tier is tried once; on any failure the speech-to-text tier is tried once.
// Both tiers failing yields an *AcquisitionError.
func (a *Acquirer) Acquire(ctx context.Context, videoURL string) (string, error) {
	videoID, err := ParseVideoID(videoURL)
	if err != nil {
		return "", err
	}

	if text, ok := a.cache[videoID]; ok {
		return text, nil
	}

	text, captionsErr := a.captions.Fetch(ctx, videoID)
	if captionsErr == nil {
		a.cache[videoID] = text
		return text, nil
	}
	slog.Warn("captions unavailable, falling back to audio transcription",
		slog.String("video", videoID), slog.Any("error", captionsErr))

	text, fallbackErr := a.fallback.Transcribe(ctx, videoURL)
	if fallbackErr != nil {
		return "", &AcquisitionError{VideoID: videoID, CaptionsErr: captionsErr, FallbackErr: fallbackErr}
	}
	text = strings.TrimSpace(text)
	a.cache[videoID] = text
	return text, nil
}
