// Package youtube is a small client for the YouTube Data API search endpoint,
// used to find learning resources for missing skills.
package youtube

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	apiURL    = "https://www.googleapis.com/youtube/v3"
	userAgent = "spigell/skill-gap"
	watchURL  = "https://www.youtube.com/watch?v="
	// Max value for search per page.
	maxPerPage = 50

	defaultRetries    = 2
	defaultRetryDelay = time.Second
	maxRetryDelay     = 10 * time.Second
)

type Client struct {
	apiKey     string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
	Retries    int
	RetryDelay time.Duration
}

func New(logger *zap.Logger, apiKey string) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		apiKey: strings.TrimSpace(apiKey),
		APIURL: apiURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:     logger,
		UserAgent:  userAgent,
		Retries:    defaultRetries,
		RetryDelay: defaultRetryDelay,
	}
}

// Video is a search result of kind youtube#video.
type Video struct {
	ID struct {
		Kind    string `json:"kind,omitempty"`
		VideoID string `json:"videoId,omitempty"`
	} `json:"id,omitempty"`
	Snippet struct {
		Title        string `json:"title,omitempty"`
		Description  string `json:"description,omitempty"`
		ChannelID    string `json:"channelId,omitempty"`
		ChannelTitle string `json:"channelTitle,omitempty"`
		PublishedAt  string `json:"publishedAt,omitempty"`
	} `json:"snippet,omitempty"`
}

func (v *Video) URL() string {
	if v.ID.VideoID == "" {
		return ""
	}
	return watchURL + v.ID.VideoID
}
