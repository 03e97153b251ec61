package youtube

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/spigell/skill-gap/internal/utils"
)

const contentEncoding = "gzip"

type itemResponse struct {
	Items         []item `json:"items"`
	NextPageToken string `json:"nextPageToken"`
	PageInfo      struct {
		TotalResults   int `json:"totalResults"`
		ResultsPerPage int `json:"resultsPerPage"`
	} `json:"pageInfo"`
}

type item any

type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// StatusError is returned for non-200 responses.
type StatusError struct {
	Code    int
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("bad status: %s: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("bad status: %s", e.Status)
}

func (e *StatusError) temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

// getItems makes GET requests and collects items from pages until limit
// items are gathered or there are no more pages.
func (c *Client) getItems(ctx context.Context, endpoint string, q url.Values, limit int) ([]item, error) {
	var items []item

	for {
		response, err := c.getPage(ctx, endpoint, q)
		if err != nil {
			return nil, err
		}
		items = append(items, response.Items...)

		if response.NextPageToken == "" || len(items) >= limit {
			break
		}

		c.logger.Debug("additional request needed", zap.Int("items", len(items)), zap.Int("limit", limit))
		q.Set("pageToken", response.NextPageToken)
	}

	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// getPage retries temporary failures with an exponential backoff.
func (c *Client) getPage(ctx context.Context, endpoint string, q url.Values) (*itemResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= c.Retries; attempt++ {
		if attempt > 0 {
			if err := utils.WaitFor(ctx, utils.Backoff(attempt, c.RetryDelay, maxRetryDelay)); err != nil {
				return nil, err
			}
		}

		var response itemResponse
		err := c.getJSON(ctx, endpoint, q, &response)
		if err == nil {
			return &response, nil
		}
		lastErr = err

		var statusErr *StatusError
		if !errors.As(err, &statusErr) || !statusErr.temporary() {
			return nil, err
		}
		c.logger.Warn("youtube request failed, retrying", zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return nil, lastErr
}

func (c *Client) getJSON(ctx context.Context, endpoint string, q url.Values, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	c.setHeaders(req)
	query := url.Values{}
	for k, v := range q {
		query[k] = v
	}
	query.Set("key", c.apiKey)
	req.URL.RawQuery = query.Encode()

	resp, err := c.request(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := &StatusError{Code: resp.StatusCode, Status: resp.Status}
		var apiErr apiErrorResponse
		if json.Unmarshal(data, &apiErr) == nil {
			statusErr.Message = apiErr.Error.Message
		}
		return statusErr
	}

	if target == nil {
		return nil
	}
	return json.Unmarshal(data, target)
}

func (c *Client) request(req *http.Request) (*http.Response, error) {
	// the api key travels in the query string; keep it out of the logs.
	redacted := *req.URL
	q := redacted.Query()
	q.Del("key")
	redacted.RawQuery = q.Encode()
	c.logger.Debug("make request", zap.String("url", redacted.String()))

	return c.HTTPClient.Do(req)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept-Encoding", contentEncoding)
	req.Header.Set("Accept", "application/json")
}
