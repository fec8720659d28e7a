package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	xhtml "golang.org/x/net/html"

	"growthwatch/internal/retry"
)

// Captions fetching via the Innertube /player endpoint: resolve the caption
// track list for the video, pick the best track for the preferred languages,
// and download its timedtext XML.

const (
	innertubePlayerURL = "https://www.youtube.com/youtubei/v1/player"
	androidVersion     = "20.10.38"
	androidUA          = "com.google.android.youtube/" + androidVersion + " (Linux; U; Android 11) gzip"
)

type innertubeReq struct {
	VideoID        string       `json:"videoId"`
	Context        innertubeCtx `json:"context"`
	RacyCheckOk    bool         `json:"racyCheckOk"`
	ContentCheckOk bool         `json:"contentCheckOk"`
}

type innertubeCtx struct {
	Client innertubeClient `json:"client"`
}

type innertubeClient struct {
	ClientName        string `json:"clientName"`
	ClientVersion     string `json:"clientVersion"`
	AndroidSdkVersion int    `json:"androidSdkVersion,omitempty"`
	Hl                string `json:"hl,omitempty"`
	Gl                string `json:"gl,omitempty"`
}

type playerResp struct {
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" = auto-generated
}

type timedText struct {
	Lines []timedTextLine `xml:"text"`
}

type timedTextLine struct {
	Text string `xml:",chardata"`
}

// CaptionsClient is the primary transcript tier.
type CaptionsClient struct {
	// PlayerURL defaults to the public Innertube endpoint; tests point it at
	// a local server.
	PlayerURL  string
	HTTPClient *http.Client
	Languages  []string
	Retry      retry.Config
}

// NewCaptionsClient builds the primary tier with sane defaults.
func NewCaptionsClient(languages []string) *CaptionsClient {
	if len(languages) == 0 {
		languages = []string{"en"}
	}
	return &CaptionsClient{
		PlayerURL:  innertubePlayerURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Languages:  languages,
		Retry:      retry.DefaultConfig,
	}
}

// Fetch returns the caption text for a video, with fragments joined in order
// by single spaces. Any failure (captions disabled included) is returned to
// the caller, which falls through to the speech-to-text tier.
func (c *CaptionsClient) Fetch(ctx context.Context, videoID string) (string, error) {
	reqBody, err := json.Marshal(innertubeReq{
		VideoID: videoID,
		Context: innertubeCtx{
			Client: innertubeClient{
				ClientName:        "ANDROID",
				ClientVersion:     androidVersion,
				AndroidSdkVersion: 30,
				Hl:                "en",
				Gl:                "US",
			},
		},
		RacyCheckOk:    true,
		ContentCheckOk: true,
	})
	if err != nil {
		return "", err
	}

	body, err := retry.Do(ctx, c.Retry, func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.PlayerURL+"?prettyPrint=false", bytes.NewReader(reqBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", androidUA)
		req.Header.Set("X-Youtube-Client-Name", "3")
		req.Header.Set("X-Youtube-Client-Version", androidVersion)
		return c.do(req)
	})
	if err != nil {
		return "", fmt.Errorf("player request: %w", err)
	}

	var player playerResp
	if err := json.Unmarshal(body, &player); err != nil {
		return "", fmt.Errorf("decode player response: %w", err)
	}
	if player.Captions == nil {
		if player.PlayabilityStatus != nil && player.PlayabilityStatus.Reason != "" {
			return "", fmt.Errorf("captions unavailable: %s", player.PlayabilityStatus.Reason)
		}
		return "", errors.New("captions disabled")
	}
	tracks := player.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	if len(tracks) == 0 {
		return "", errors.New("no caption tracks")
	}

	track := pickTrack(tracks, c.Languages)
	return c.fetchTimedText(ctx, track.BaseURL)
}

// pickTrack prefers a manual track in a requested language, then an
// auto-generated one, then any English track, then the first track.
func pickTrack(tracks []captionTrack, langs []string) captionTrack {
	for _, lang := range langs {
		for _, t := range tracks {
			if t.LanguageCode == lang && t.Kind != "asr" {
				return t
			}
		}
	}
	for _, lang := range langs {
		for _, t := range tracks {
			if t.LanguageCode == lang {
				return t
			}
		}
	}
	for _, t := range tracks {
		if strings.HasPrefix(t.LanguageCode, "en") {
			return t
		}
	}
	return tracks[0]
}

func (c *CaptionsClient) fetchTimedText(ctx context.Context, baseURL string) (string, error) {
	body, err := retry.Do(ctx, c.Retry, func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", androidUA)
		return c.do(req)
	})
	if err != nil {
		return "", fmt.Errorf("fetch timedtext: %w", err)
	}

	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return "", fmt.Errorf("parse timedtext XML: %w", err)
	}

	var sb strings.Builder
	for _, line := range tt.Lines {
		text := StripMarkup(line.Text)
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(text)
	}
	if sb.Len() == 0 {
		return "", errors.New("empty caption track")
	}
	return sb.String(), nil
}

func (c *CaptionsClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, snippet)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 6*1024*1024))
}

// StripMarkup flattens caption fragments that carry inline markup or escaped
// entities down to plain text.
func StripMarkup(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	tokenizer := xhtml.NewTokenizer(strings.NewReader(s))
	var sb strings.Builder
	for {
		tt := tokenizer.Next()
		if tt == xhtml.ErrorToken {
			break
		}
		if tt == xhtml.TextToken {
			sb.Write(tokenizer.Text())
		}
	}
	return strings.TrimSpace(strings.Join(strings.Fields(sb.String()), " "))
}
