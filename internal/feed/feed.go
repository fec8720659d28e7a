/*
Package feed lists the most recent videos of a channel. The poll loop only
depends on the Lister seam; the production implementation reads the channel's
public syndication feed.
*/
package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"growthwatch/internal/retry"
	"growthwatch/internal/types"
)

// Lister yields the newest items of a channel, most recent first.
type Lister interface {
	LatestItems(ctx context.Context, channelID string, limit int) ([]types.Item, error)
}

const defaultFeedBaseURL = "https://www.youtube.com/feeds/videos.xml"

// RSSLister fetches a channel's Atom feed.
type RSSLister struct {
	BaseURL    string
	HTTPClient *http.Client
	Retry      retry.Config
}

// NewRSSLister builds a lister for the public feed endpoint.
func NewRSSLister() *RSSLister {
	return &RSSLister{
		BaseURL:    defaultFeedBaseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Retry:      retry.DefaultConfig,
	}
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	VideoID string   `xml:"videoId"`
	Title   string   `xml:"title"`
	Link    atomLink `xml:"link"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
}

// LatestItems returns up to limit items from the channel feed.
func (l *RSSLister) LatestItems(ctx context.Context, channelID string, limit int) ([]types.Item, error) {
	feedURL := l.BaseURL + "?channel_id=" + url.QueryEscape(channelID)

	body, err := retry.Do(ctx, l.Retry, func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := l.HTTPClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
		}
		return io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024))
	})
	if err != nil {
		return nil, fmt.Errorf("fetch feed for channel %s: %w", channelID, err)
	}

	var parsed atomFeed
	if err := xml.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse feed for channel %s: %w", channelID, err)
	}

	items := make([]types.Item, 0, limit)
	for _, entry := range parsed.Entries {
		if len(items) >= limit {
			break
		}
		itemURL := entry.Link.Href
		if itemURL == "" && entry.VideoID != "" {
			itemURL = "https://www.youtube.com/watch?v=" + entry.VideoID
		}
		if itemURL == "" {
			continue
		}
		items = append(items, types.Item{
			VideoID:   entry.VideoID,
			URL:       itemURL,
			Title:     entry.Title,
			ChannelID: channelID,
		})
	}
	return items, nil
}
