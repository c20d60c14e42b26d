package tableland

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TableName returns the universal name of a table: prefix_chainID_tableID.
func TableName(prefix string, chainID uint64, tableID *big.Int) string {
	return fmt.Sprintf("%s_%d_%s", prefix, chainID, tableID)
}

// QueryURL returns the gateway URL running statement. baseURI is the API
// root, e.g. http://localhost:8080/api/v1/.
func QueryURL(baseURI string, statement string) string {
	if !strings.HasSuffix(baseURI, "/") {
		baseURI += "/"
	}
	return baseURI + "query?statement=" + escapeComponent(statement)
}

// escapeComponent percent-encodes s like a URI component: spaces become %20
// and the marks !'()*~ stay as they are.
func escapeComponent(s string) string {
	escaped := strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
	return componentMarks.Replace(escaped)
}

var componentMarks = strings.NewReplacer("%21", "!", "%27", "'", "%28", "(", "%29", ")", "%2A", "*", "%7E", "~")

// Gateway runs read queries against a Tableland validator.
type Gateway struct {
	baseURI string
	client  *http.Client
}

func NewGateway(baseURI string) *Gateway {
	return &Gateway{
		baseURI: baseURI,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Query runs statement and returns the rows as objects.
func (g *Gateway) Query(ctx context.Context, statement string) ([]map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, QueryURL(g.baseURI, statement), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query gateway: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("gateway returned %s: %s", resp.Status, apiErr.Message)
		}
		return nil, fmt.Errorf("gateway returned %s", resp.Status)
	}
	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return rows, nil
}
