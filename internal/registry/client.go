// Package registry fetches package metadata from the PyPI JSON API.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pkgpulse/pkgpulse/internal/models"
)

// errMalformed marks a response that arrived but could not be parsed.
// Parse failures degrade immediately rather than consuming retry attempts:
// the registry already answered, and asking again returns the same bytes.
var errMalformed = errors.New("malformed registry response")

// Client resolves package names against the registry with bounded retry.
// Lookup never returns an error; on exhaustion it degrades to all-absent
// metadata so that event recording can proceed.
type Client struct {
	baseURL string
	http    *http.Client
	log     *logrus.Logger

	attempts int
	pause    time.Duration
}

// NewClient builds a client for the registry at baseURL (e.g.
// "https://pypi.org"). Each attempt has a 10s timeout; transport failures
// are retried twice with a 1s pause between attempts.
func NewClient(baseURL string, log *logrus.Logger) *Client {
	return &Client{
		baseURL:  baseURL,
		http:     &http.Client{Timeout: 10 * time.Second},
		log:      log,
		attempts: 3,
		pause:    time.Second,
	}
}

// registryResponse is the subset of the registry's JSON document this
// service consumes. The schema is an external contract owned by the
// registry; fields may be null.
type registryResponse struct {
	Info struct {
		Version  *string `json:"version"`
		Author   *string `json:"author"`
		Summary  *string `json:"summary"`
		HomePage *string `json:"home_page"`
		License  *string `json:"license"`
	} `json:"info"`
	Releases map[string]json.RawMessage `json:"releases"`
}

// Lookup resolves name to its metadata snapshot. Transport-level failures
// (connection errors, non-200 statuses) are retried up to the attempt
// budget; a malformed body is not. Either way the caller gets all-absent
// metadata instead of an error once the lookup is given up on.
func (c *Client) Lookup(ctx context.Context, name string) models.Metadata {
	var lastErr error

	for attempt := 1; attempt <= c.attempts; attempt++ {
		md, err := c.lookupOnce(ctx, name)
		if err == nil {
			return md
		}
		lastErr = err

		if errors.Is(err, errMalformed) {
			break
		}
		if attempt == c.attempts {
			break
		}

		select {
		case <-ctx.Done():
			c.log.WithFields(logrus.Fields{
				"package": name,
				"error":   ctx.Err(),
			}).Error("registry metadata fetch canceled")
			return models.Metadata{}
		case <-time.After(c.pause):
		}
	}

	c.log.WithFields(logrus.Fields{
		"package": name,
		"error":   lastErr,
	}).Error("registry metadata fetch failed")
	return models.Metadata{}
}

func (c *Client) lookupOnce(ctx context.Context, name string) (models.Metadata, error) {
	u := fmt.Sprintf("%s/pypi/%s/json", c.baseURL, url.PathEscape(name))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return models.Metadata{}, fmt.Errorf("build registry request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return models.Metadata{}, fmt.Errorf("registry request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Metadata{}, fmt.Errorf("registry returned status %d", resp.StatusCode)
	}

	var body registryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.Metadata{}, fmt.Errorf("%w: %v", errMalformed, err)
	}

	return models.Metadata{
		Version:      body.Info.Version,
		Author:       body.Info.Author,
		Description:  body.Info.Summary,
		HomePage:     body.Info.HomePage,
		License:      body.Info.License,
		ReleaseCount: len(body.Releases),
	}, nil
}
