// Package httpsettings loads invoice settings from a JSON HTTP endpoint.
package httpsettings

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-invoice/invoice"
)

// DefaultPath is the settings endpoint path appended to a bare base URL.
const DefaultPath = "/api/settings"

// Source fetches settings with GET and decodes a JSON array of
// {"key","value"} pairs.
type Source struct {
	URL     string
	Client  *http.Client
	Headers map[string]string
}

// New creates a Source for url. A URL without a path gets DefaultPath.
func New(url string, client *http.Client) *Source {
	return &Source{URL: endpoint(url), Client: client}
}

// Load fetches the settings collection.
func (s *Source) Load(ctx context.Context) (invoice.Settings, error) {
	if s == nil {
		return nil, invoice.NewError(invoice.KindInternal, "settings source is nil", nil)
	}
	if strings.TrimSpace(s.URL) == "" {
		return nil, invoice.NewError(invoice.KindValidation, "settings URL is required", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, invoice.NewError(invoice.KindInternal, "settings request failed", err)
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range s.Headers {
		if strings.TrimSpace(key) == "" {
			continue
		}
		req.Header.Set(key, value)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, invoice.NewError(invoice.KindFromError(ctxErr), "settings request canceled", err)
		}
		return nil, invoice.NewError(invoice.KindSettingsFetch, "settings request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, invoice.NewError(invoice.KindSettingsFetch, fmt.Sprintf("settings response status %d", resp.StatusCode), nil)
	}

	var settings invoice.Settings
	if err := json.NewDecoder(resp.Body).Decode(&settings); err != nil {
		return nil, invoice.NewError(invoice.KindSettingsFetch, "settings response invalid", err)
	}
	return settings, nil
}

func endpoint(url string) string {
	url = strings.TrimSpace(url)
	if url == "" {
		return ""
	}
	rest := url
	if _, after, ok := strings.Cut(url, "://"); ok {
		rest = after
	}
	if !strings.Contains(rest, "/") {
		return url + DefaultPath
	}
	return url
}
