package confluence

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"Minerva/internal/source"
	"Minerva/pkg/httpclient"
)

// pageExpand pulls everything a content record needs in one request.
const pageExpand = "body.storage,version,space,history,metadata.labels"

// client is a thin wrapper over the Confluence Cloud REST API.
type client struct {
	http     *httpclient.Client
	baseURL  string
	username string
	apiToken string
	bearer   string
}

func newClient(baseURL, username, apiToken, bearer string, hc *httpclient.Client) *client {
	return &client{
		http:     hc,
		baseURL:  baseURL,
		username: username,
		apiToken: apiToken,
		bearer:   bearer,
	}
}

// page is the REST representation of a Confluence content item.
type page struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Status string `json:"status"`
	Title  string `json:"title"`
	Space  struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	} `json:"space"`
	Body struct {
		Storage struct {
			Value string `json:"value"`
		} `json:"storage"`
	} `json:"body"`
	Version struct {
		Number int       `json:"number"`
		When   time.Time `json:"when"`
		By     struct {
			DisplayName string `json:"displayName"`
		} `json:"by"`
	} `json:"version"`
	History struct {
		CreatedDate time.Time `json:"createdDate"`
		CreatedBy   struct {
			DisplayName string `json:"displayName"`
		} `json:"createdBy"`
	} `json:"history"`
	Metadata struct {
		Labels struct {
			Results []struct {
				Name string `json:"name"`
			} `json:"results"`
		} `json:"labels"`
	} `json:"metadata"`
	Links map[string]string `json:"_links"`
}

// pageList is a paginated list response.
type pageList struct {
	Results []page `json:"results"`
	Start   int    `json:"start"`
	Limit   int    `json:"limit"`
	Size    int    `json:"size"`
}

// currentUser validates the configured credentials.
func (c *client) currentUser(ctx context.Context) error {
	return c.get(ctx, "/rest/api/user/current", nil, &struct{}{})
}

// pageByID fetches a single page with its body and metadata.
func (c *client) pageByID(ctx context.Context, id string) (*page, error) {
	query := url.Values{"expand": {pageExpand}}
	var p page
	if err := c.get(ctx, "/rest/api/content/"+id, query, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// pagesInSpace lists pages of a space, one pagination window at a time.
func (c *client) pagesInSpace(ctx context.Context, spaceKey string, start, limit int) (*pageList, error) {
	query := url.Values{
		"spaceKey": {spaceKey},
		"type":     {"page"},
		"expand":   {pageExpand},
		"start":    {strconv.Itoa(start)},
		"limit":    {strconv.Itoa(limit)},
	}
	var list pageList
	if err := c.get(ctx, "/rest/api/content", query, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// search runs a CQL query, one pagination window at a time.
func (c *client) search(ctx context.Context, cql string, start, limit int) (*pageList, error) {
	query := url.Values{
		"cql":    {cql},
		"expand": {pageExpand},
		"start":  {strconv.Itoa(start)},
		"limit":  {strconv.Itoa(limit)},
	}
	var list pageList
	if err := c.get(ctx, "/rest/api/content/search", query, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// get performs an authenticated GET and maps failures onto the source
// error taxonomy.
func (c *client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	} else {
		auth := base64.StdEncoding.EncodeToString([]byte(c.username + ":" + c.apiToken))
		req.Header.Set("Authorization", "Basic "+auth)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", source.ErrConnectivity, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: confluence returned %d", source.ErrAuthentication, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", source.ErrNotFound, path)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: confluence returned 429", source.ErrRateLimited)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: confluence returned %d", source.ErrConnectivity, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", source.ErrConnectivity, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", source.ErrExtraction, err)
	}
	return nil
}
