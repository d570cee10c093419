package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"titlecache/internal/services"
)

// MaxBatchSize is the most ids one batchGet call accepts.
const MaxBatchSize = 5

// RemoteTitle is one title from a batchGet response. Raw holds the document
// exactly as the service returned it.
type RemoteTitle struct {
	ID   string
	Type string
	Raw  json.RawMessage
}

// TitlesClient reads title metadata from the remote service.
type TitlesClient struct {
	baseURL string
	client  *Client
}

// NewTitlesClient builds a batchGet client rooted at baseURL.
func NewTitlesClient(baseURL string, client *Client) (*TitlesClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "fetcher", "titles client", "base url is empty", nil)
	}
	if client == nil {
		return nil, services.Wrap(services.ErrConfiguration, "fetcher", "titles client", "http client is nil", nil)
	}
	return &TitlesClient{baseURL: baseURL, client: client}, nil
}

// BatchGetURL returns the request URL for ids.
func (c *TitlesClient) BatchGetURL(ids []string) string {
	params := url.Values{}
	for _, id := range ids {
		params.Add("titleIds", id)
	}
	return c.baseURL + "/titles:batchGet?" + params.Encode()
}

// BatchGet fetches up to MaxBatchSize titles. Ids the service does not know
// are simply absent from the result. A response without a titles array is
// reported as services.ErrMalformed.
func (c *TitlesClient) BatchGet(ctx context.Context, ids []string) ([]RemoteTitle, error) {
	if len(ids) == 0 || len(ids) > MaxBatchSize {
		return nil, services.Wrap(services.ErrValidation, "fetcher", "batchGet",
			fmt.Sprintf("batch size %d outside 1..%d", len(ids), MaxBatchSize), nil)
	}
	endpoint := c.BatchGetURL(ids)

	var envelope map[string]json.RawMessage
	if err := c.client.FetchJSON(ctx, endpoint, &envelope); err != nil {
		return nil, err
	}
	raw, ok := envelope["titles"]
	if !ok {
		return nil, services.Wrap(services.ErrMalformed, "fetcher", "batchGet", "response has no titles key", nil)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, services.Wrap(services.ErrMalformed, "fetcher", "batchGet", "titles is not an array", err)
	}

	out := make([]RemoteTitle, 0, len(items))
	for _, item := range items {
		var head struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		}
		if err := json.Unmarshal(item, &head); err != nil {
			return nil, services.Wrap(services.ErrMalformed, "fetcher", "batchGet", "title entry is not an object", err)
		}
		out = append(out, RemoteTitle{ID: strings.TrimSpace(head.ID), Type: head.Type, Raw: item})
	}
	return out, nil
}
