package types

// Item is one entry from a channel feed: the unit of work for the poll loop.
type Item struct {
	VideoID   string
	URL       string
	Title     string
	ChannelID string
}

// ExtractedRecord is the model's structured output for one company mentioned
// in a transcript.
type ExtractedRecord struct {
	CompanyName    string          `json:"company_name"`
	Speaker        string          `json:"speaker"`
	Note           string          `json:"note"`
	GrowthMentions []GrowthMention `json:"growth_mentions"`
}

// GrowthMention is a structured claim of a percentage change in a named
// financial metric.
type GrowthMention struct {
	Metric           string   `json:"metric"`
	GrowthValue      float64  `json:"growth_value"`
	Context          string   `json:"context"`
	TimestampSeconds *float64 `json:"timestamp_seconds"`
	Type             string   `json:"type"`
	Reliability      string   `json:"reliability"`
}
