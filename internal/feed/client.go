package feed

import (
	"context"
	"encoding/json"
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

// Client walks the public ProZorro tender feed. The feed lists (id,
// dateModified) stubs in dateModified order behind an opaque offset token;
// each stub's full record comes from a separate detail request.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
}

type feedRef struct {
	ID           string `json:"id"`
	DateModified string `json:"dateModified"`
}

type feedPage struct {
	Data     []feedRef `json:"data"`
	NextPage *struct {
		Offset any `json:"offset"`
	} `json:"next_page"`
}

type detailEnvelope struct {
	Data map[string]any `json:"data"`
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.ProzorroTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.ProzorroRateLimitRPS),
	}
}

// Tenders returns a lazy stream of complete tender records whose
// dateModified falls in the half-open range [from, to). An empty "to"
// leaves the upper bound open; the stream then ends when the feed catches
// up with the present.
func (c *Client) Tenders(ctx context.Context, from, to string) *TenderStream {
	return &TenderStream{
		ctx:    ctx,
		client: c,
		offset: from,
		to:     to,
	}
}

// TenderStream is a one-shot pull source of raw tenders. Next fetches feed
// pages and detail records on demand.
type TenderStream struct {
	ctx    context.Context
	client *Client
	offset string
	to     string
	queue  []feedRef
	done   bool
}

func (s *TenderStream) Next() (internal.Raw, bool, error) {
	for {
		if len(s.queue) > 0 {
			ref := s.queue[0]
			s.queue = s.queue[1:]
			tender, err := s.client.tenderDetail(s.ctx, ref.ID)
			if err != nil {
				return nil, false, err
			}
			return tender, true, nil
		}
		if s.done {
			return nil, false, nil
		}
		if err := s.fetchPage(); err != nil {
			return nil, false, err
		}
	}
}

func (s *TenderStream) fetchPage() error {
	params := map[string]string{}
	if s.offset != "" {
		params["offset"] = s.offset
	}
	if s.client.cfg.ProzorroPageLimit > 0 {
		params["limit"] = fmt.Sprintf("%d", s.client.cfg.ProzorroPageLimit)
	}

	body, err := s.client.fetchJSON(s.ctx, "tenders", params)
	if err != nil {
		return err
	}

	var page feedPage
	if err := json.Unmarshal(body, &page); err != nil {
		return err
	}

	if len(page.Data) == 0 {
		s.done = true
		return nil
	}

	for _, ref := range page.Data {
		if s.to != "" && ref.DateModified >= s.to {
			s.done = true
			return nil
		}
		s.queue = append(s.queue, ref)
	}

	next := ""
	if page.NextPage != nil {
		next = toOffsetString(page.NextPage.Offset)
	}
	if next == "" || next == s.offset {
		s.done = true
		return nil
	}
	s.offset = next
	return nil
}

func (c *Client) tenderDetail(ctx context.Context, id string) (internal.Raw, error) {
	body, err := c.fetchJSON(ctx, "tenders/"+id, nil)
	if err != nil {
		return nil, err
	}
	var envelope detailEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}
	if envelope.Data == nil {
		return nil, fmt.Errorf("empty tender detail for id=%s", id)
	}
	return internal.Raw(envelope.Data), nil
}

func (c *Client) fetchJSON(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	baseURL := strings.TrimRight(c.cfg.ProzorroAPIBaseURL, "/") + "/"
	u, err := url.Parse(baseURL + endpoint)
	if err != nil {
		return nil, err
	}

	q := u.Query()
	for k, v := range params {
		if strings.TrimSpace(v) != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()

	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		c.limiter.WaitTurn()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < 5 {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				time.Sleep(backoff)
				lastErr = fmt.Errorf("prozorro status %d", resp.StatusCode)
				continue
			}
			return nil, fmt.Errorf("prozorro api error: status=%d body=%s", resp.StatusCode, string(body))
		}

		return body, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("prozorro request failed")
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

func toOffsetString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%f", t)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}
