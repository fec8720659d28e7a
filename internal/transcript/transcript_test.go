package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"growthwatch/internal/retry"
)

func TestParseVideoID(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://www.youtube.com/watch?v=abc123&list=PLx", "abc123", false},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://example.com/nothing-here", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseVideoID(tt.url)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidVideoURL) {
				t.Errorf("ParseVideoID(%q) err = %v, want ErrInvalidVideoURL", tt.url, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseVideoID(%q) = (%q, %v), want %q", tt.url, got, err, tt.want)
		}
	}
}

func TestStripMarkup(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"a &amp; b", "a & b"},
		{"<font color=\"red\">styled</font> words", "styled words"},
		{"  spaced\n lines ", "spaced lines"},
	}
	for _, tt := range tests {
		if got := StripMarkup(tt.in); got != tt.want {
			t.Errorf("StripMarkup(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// fakeCaptionsServer serves the player endpoint via makePlayer (which
// receives the timedtext URL) and a canned timedtext track.
func fakeCaptionsServer(t *testing.T, makePlayer func(timedtextURL string) http.HandlerFunc) *CaptionsClient {
	t.Helper()
	var serverURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/player", func(w http.ResponseWriter, r *http.Request) {
		makePlayer(serverURL + "/timedtext")(w, r)
	})
	mux.HandleFunc("/timedtext", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<transcript><text start="0.0" dur="2.0">hello &amp; welcome</text><text start="2.0" dur="2.0">to the call</text></transcript>`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	serverURL = server.URL

	client := NewCaptionsClient([]string{"en"})
	client.PlayerURL = server.URL + "/player"
	client.HTTPClient = server.Client()
	client.Retry = retry.Config{MaxAttempts: 1}
	return client
}

func playerResponseWithTrack(baseURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req innertubeReq
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := map[string]any{
			"captions": map[string]any{
				"playerCaptionsTracklistRenderer": map[string]any{
					"captionTracks": []map[string]any{
						{"baseUrl": baseURL, "languageCode": "en", "kind": ""},
					},
				},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func failingPlayer(string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}
}

func TestCaptionsFetchJoinsFragments(t *testing.T) {
	client := fakeCaptionsServer(t, playerResponseWithTrack)

	text, err := client.Fetch(context.Background(), "abc123")
	if err != nil {
		t.Fatal(err)
	}
	if text != "hello & welcome to the call" {
		t.Errorf("Fetch = %q", text)
	}
}

func TestCaptionsFetchDisabled(t *testing.T) {
	client := fakeCaptionsServer(t, func(string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"playabilityStatus": {"status": "OK"}}`)
		}
	})
	if _, err := client.Fetch(context.Background(), "abc123"); err == nil {
		t.Fatal("expected error when captions are absent")
	}
}

func TestPickTrack(t *testing.T) {
	tracks := []captionTrack{
		{BaseURL: "asr-en", LanguageCode: "en", Kind: "asr"},
		{BaseURL: "manual-en", LanguageCode: "en", Kind: ""},
		{BaseURL: "manual-hi", LanguageCode: "hi", Kind: ""},
	}
	if got := pickTrack(tracks, []string{"en"}); got.BaseURL != "manual-en" {
		t.Errorf("pickTrack preferred %q, want manual-en", got.BaseURL)
	}
	if got := pickTrack(tracks, []string{"hi"}); got.BaseURL != "manual-hi" {
		t.Errorf("pickTrack preferred %q, want manual-hi", got.BaseURL)
	}
	asrOnly := []captionTrack{{BaseURL: "asr-en", LanguageCode: "en", Kind: "asr"}}
	if got := pickTrack(asrOnly, []string{"en"}); got.BaseURL != "asr-en" {
		t.Errorf("pickTrack = %q, want asr fallback", got.BaseURL)
	}
}

// stubTranscriber counts invocations of the fallback tier.
type stubTranscriber struct {
	calls int
	text  string
	err   error
}

func (s *stubTranscriber) Transcribe(context.Context, string) (string, error) {
	s.calls++
	return s.text, s.err
}

func TestAcquireFallsBackOnCaptionsFailure(t *testing.T) {
	captions := fakeCaptionsServer(t, failingPlayer)
	fallback := &stubTranscriber{text: "fallback transcript"}
	a := NewAcquirer(captions, fallback)

	text, err := a.Acquire(context.Background(), "https://youtu.be/abc123")
	if err != nil {
		t.Fatal(err)
	}
	if text != "fallback transcript" {
		t.Errorf("Acquire = %q", text)
	}
	if fallback.calls != 1 {
		t.Errorf("fallback invoked %d times, want exactly 1", fallback.calls)
	}
}

func TestAcquireBothTiersFail(t *testing.T) {
	captions := fakeCaptionsServer(t, failingPlayer)
	fallback := &stubTranscriber{err: errors.New("whisper exploded")}
	a := NewAcquirer(captions, fallback)

	_, err := a.Acquire(context.Background(), "https://youtu.be/abc123")
	var acqErr *AcquisitionError
	if !errors.As(err, &acqErr) {
		t.Fatalf("err = %T, want *AcquisitionError", err)
	}
	if acqErr.VideoID != "abc123" {
		t.Errorf("VideoID = %q", acqErr.VideoID)
	}
	if acqErr.CaptionsErr == nil || acqErr.FallbackErr == nil {
		t.Error("both tier errors must be carried")
	}
}

func TestAcquireInvalidURLFailsFast(t *testing.T) {
	fallback := &stubTranscriber{}
	a := NewAcquirer(NewCaptionsClient(nil), fallback)

	_, err := a.Acquire(context.Background(), "https://example.com/no-video")
	if !errors.Is(err, ErrInvalidVideoURL) {
		t.Errorf("err = %v, want ErrInvalidVideoURL", err)
	}
	if fallback.calls != 0 {
		t.Error("fallback must not run for an unparseable URL")
	}
}

func TestAcquireCachesPerVideo(t *testing.T) {
	hits := 0
	client := fakeCaptionsServer(t, func(timedtextURL string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			hits++
			playerResponseWithTrack(timedtextURL)(w, r)
		}
	})
	a := NewAcquirer(client, &stubTranscriber{})

	for i := 0; i < 3; i++ {
		if _, err := a.Acquire(context.Background(), "https://youtu.be/abc123"); err != nil {
			t.Fatal(err)
		}
	}
	if hits != 1 {
		t.Errorf("player endpoint hit %d times, want 1 (cached)", hits)
	}
}

func TestSpeechToTextHappyPath(t *testing.T) {
	workDir := t.TempDir()
	s := NewSpeechToText("base")
	s.WorkDir = workDir

	var commands [][]string
	s.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		commands = append(commands, append([]string{name}, args...))
		if name == "whisper" {
			// whisper writes <audio>.txt into --output_dir
			outDir := args[len(args)-1]
			return os.WriteFile(filepath.Join(outDir, "audio.txt"), []byte("the transcript\n"), 0o644)
		}
		return nil
	})

	text, err := s.Transcribe(context.Background(), "https://youtu.be/abc123")
	if err != nil {
		t.Fatal(err)
	}
	if text != "the transcript" {
		t.Errorf("Transcribe = %q", text)
	}
	if len(commands) != 2 || commands[0][0] != "yt-dlp" || commands[1][0] != "whisper" {
		t.Errorf("unexpected command sequence %v", commands)
	}
}

// The per-call temp directory is removed even when transcription fails, so a
// failing item never leaks downloaded audio.
func TestSpeechToTextCleansUpOnFailure(t *testing.T) {
	workDir := t.TempDir()
	s := NewSpeechToText("base")
	s.WorkDir = workDir

	s.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		if name == "whisper" {
			return errors.New("model not found")
		}
		return nil
	})

	if _, err := s.Transcribe(context.Background(), "https://youtu.be/abc123"); err == nil {
		t.Fatal("expected error")
	}

	entries, err := os.ReadDir(workDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("work dir not cleaned up: %v", entries)
	}
}

func TestSpeechToTextEmptyOutputIsError(t *testing.T) {
	s := NewSpeechToText("base")
	s.WorkDir = t.TempDir()
	s.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		if name == "whisper" {
			outDir := args[len(args)-1]
			return os.WriteFile(filepath.Join(outDir, "audio.txt"), []byte("   \n"), 0o644)
		}
		return nil
	})
	if _, err := s.Transcribe(context.Background(), "https://youtu.be/abc123"); err == nil {
		t.Error("expected error for empty transcript")
	}
}
