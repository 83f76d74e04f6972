// Package raster fetches per-asset band statistics from a titiler-style
// raster API.
package raster

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/tidwall/gjson"

	"github.com/penwyp/go-eo-explorer/internal/core/model"
	"github.com/penwyp/go-eo-explorer/internal/data/httpclient"
)

type Client struct {
	http     httpclient.Client
	endpoint string
}

func NewClient(client httpclient.Client, endpoint string) *Client {
	return &Client{http: client, endpoint: strings.TrimRight(endpoint, "/")}
}

// StatisticsURL is the statistics request for one asset.
func (c *Client) StatisticsURL(assetURL string) string {
	return c.endpoint + "/cog/statistics?" + url.Values{"url": {assetURL}}.Encode()
}

// Statistics returns the statistics of the first band of assetURL.
func (c *Client) Statistics(ctx context.Context, assetURL string) (*model.Statistics, error) {
	if assetURL == "" {
		return nil, fmt.Errorf("%w: empty asset url", model.ErrMalformedResponse)
	}

	data, err := c.http.Get(ctx, c.StatisticsURL(assetURL))
	if err != nil {
		return nil, err
	}

	// Bands are keyed by name ("b1", ...); the response keeps band order.
	var band gjson.Result
	gjson.ParseBytes(data).ForEach(func(_, v gjson.Result) bool {
		if v.IsObject() {
			band = v
			return false
		}
		return true
	})
	if !band.Exists() {
		return nil, fmt.Errorf("%w: statistics for %s have no bands", model.ErrMalformedResponse, assetURL)
	}

	var stats model.Statistics
	if err := sonic.UnmarshalString(band.Raw, &stats); err != nil {
		return nil, fmt.Errorf("%w: statistics for %s: %w", model.ErrMalformedResponse, assetURL, err)
	}
	return &stats, nil
}
