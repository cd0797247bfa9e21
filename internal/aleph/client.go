package aleph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"prozorro/internal"
	"prozorro/internal/config"
)

// Client talks to an Aleph instance: collection lookup by foreign id and
// chunked bulk entity writes.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
}

type collectionPayload struct {
	ID        json.Number `json:"id"`
	ForeignID string      `json:"foreign_id"`
	Label     string      `json:"label"`
}

type collectionListPayload struct {
	Results []collectionPayload `json:"results"`
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.AlephTimeoutMs) * time.Millisecond},
	}
}

// ResolveCollection finds the collection with the given foreign id,
// creating it when it does not exist yet.
func (c *Client) ResolveCollection(ctx context.Context, foreignID string) (internal.Collection, error) {
	if strings.TrimSpace(foreignID) == "" {
		return internal.Collection{}, errors.New("missing ALEPH_FOREIGN_ID")
	}

	params := url.Values{}
	params.Set("filter:foreign_id", foreignID)
	params.Set("limit", "1")
	body, err := c.doJSON(ctx, http.MethodGet, "api/2/collections?"+params.Encode(), nil)
	if err != nil {
		return internal.Collection{}, err
	}

	var list collectionListPayload
	if err := json.Unmarshal(body, &list); err != nil {
		return internal.Collection{}, err
	}
	if len(list.Results) > 0 {
		return toCollection(list.Results[0]), nil
	}

	create, _ := json.Marshal(map[string]string{
		"foreign_id": foreignID,
		"label":      foreignID,
		"category":   "procurement",
	})
	body, err = c.doJSON(ctx, http.MethodPost, "api/2/collections", create)
	if err != nil {
		return internal.Collection{}, err
	}
	var created collectionPayload
	if err := json.Unmarshal(body, &created); err != nil {
		return internal.Collection{}, err
	}
	return toCollection(created), nil
}

// WriteEntities consumes the stream once, in order, submitting fixed-size
// chunks to the collection's bulk endpoint. Returns the number of entities
// written; a stream error aborts the upload and propagates.
func (c *Client) WriteEntities(ctx context.Context, collectionID string, stream *internal.EntityStream, chunkSize int) (int, error) {
	if chunkSize <= 0 {
		chunkSize = 1000
	}

	written := 0
	chunk := make([]*internal.Entity, 0, chunkSize)
	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		blob, err := json.Marshal(chunk)
		if err != nil {
			return err
		}
		if _, err := c.doJSON(ctx, http.MethodPost, "api/2/collections/"+collectionID+"/_bulk", blob); err != nil {
			return err
		}
		written += len(chunk)
		chunk = chunk[:0]
		return nil
	}

	for stream.Next() {
		chunk = append(chunk, stream.Entity())
		if len(chunk) >= chunkSize {
			if err := flush(); err != nil {
				return written, err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return written, err
	}
	if err := flush(); err != nil {
		return written, err
	}
	return written, nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	if strings.TrimSpace(c.cfg.AlephBaseURL) == "" {
		return nil, errors.New("missing ALEPH_URL")
	}
	if strings.TrimSpace(c.cfg.AlephAPIKey) == "" {
		return nil, errors.New("missing ALEPH_API_KEY")
	}

	baseURL := strings.TrimRight(c.cfg.AlephBaseURL, "/") + "/"
	u, err := url.Parse(baseURL + endpoint)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "ApiKey "+c.cfg.AlephAPIKey)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < 5 {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				time.Sleep(backoff)
				lastErr = fmt.Errorf("aleph status %d", resp.StatusCode)
				continue
			}
			return nil, fmt.Errorf("aleph api error: status=%d body=%s", resp.StatusCode, string(respBody))
		}

		return respBody, nil
	}

	if lastErr == nil {
		lastErr = errors.New("aleph request failed")
	}
	return nil, lastErr
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func toCollection(p collectionPayload) internal.Collection {
	return internal.Collection{
		ID:        p.ID.String(),
		ForeignID: p.ForeignID,
		Label:     p.Label,
	}
}
