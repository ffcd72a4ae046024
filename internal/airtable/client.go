// Package airtable is a small client for the Airtable REST API, limited to the record
// operations the catalog needs: list a table, fetch one record, create one record.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultBaseURL is the public Airtable API root.
	DefaultBaseURL = "https://api.airtable.com/v0"

	pageSize = 100
	maxPages = 500
)

// Record is one Airtable row. Fields is a loosely typed bag: values may be scalars,
// arrays of ids, or arrays of link objects depending on the field and the API options.
type Record struct {
	ID          string         `json:"id"`
	CreatedTime string         `json:"createdTime,omitempty"`
	Fields      map[string]any `json:"fields"`
}

type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset,omitempty"`
}

type createRequest struct {
	Fields   map[string]any `json:"fields"`
	Typecast bool           `json:"typecast"`
}

// Client talks to one Airtable base.
type Client struct {
	baseURL    string
	baseID     string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a Client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL, baseID, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		baseID:     baseID,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ListRecords returns every record of table, following pagination offsets.
func (c *Client) ListRecords(ctx context.Context, table string) ([]Record, error) {
	var (
		records []Record
		offset  string
	)
	for page := 0; page < maxPages; page++ {
		query := url.Values{}
		query.Set("pageSize", fmt.Sprint(pageSize))
		if offset != "" {
			query.Set("offset", offset)
		}

		var resp listResponse
		if err := c.do(ctx, "list", table, http.MethodGet, c.tableURL(table)+"?"+query.Encode(), nil, &resp); err != nil {
			return nil, err
		}
		records = append(records, resp.Records...)

		if resp.Offset == "" {
			return records, nil
		}
		offset = resp.Offset
	}
	log.WithFields(log.Fields{"table": table, "records": len(records)}).Warn("airtable: page limit reached, listing truncated")
	return records, nil
}

// GetRecord fetches one record by id. A missing record yields an error matching ErrRecordNotFound.
func (c *Client) GetRecord(ctx context.Context, table, id string) (*Record, error) {
	if strings.TrimSpace(id) == "" {
		return nil, &DataSourceError{Op: "get", Table: table, StatusCode: http.StatusNotFound, Message: "empty record id", Err: ErrRecordNotFound}
	}
	var rec Record
	if err := c.do(ctx, "get", table, http.MethodGet, c.tableURL(table)+"/"+url.PathEscape(id), nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateRecord inserts a row and returns it as stored. Typecast is enabled so linked
// record ids and numbers are coerced by Airtable.
func (c *Client) CreateRecord(ctx context.Context, table string, fields map[string]any) (*Record, error) {
	body, err := json.Marshal(createRequest{Fields: fields, Typecast: true})
	if err != nil {
		return nil, errors.Wrap(err, "airtable: encode create request")
	}
	var rec Record
	if err := c.do(ctx, "create", table, http.MethodPost, c.tableURL(table), body, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) tableURL(table string) string {
	return c.baseURL + "/" + url.PathEscape(c.baseID) + "/" + url.PathEscape(table)
}

func (c *Client) do(ctx context.Context, op, table, method, target string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return &DataSourceError{Op: op, Table: table, Message: "build request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return &DataSourceError{Op: op, Table: table, Message: "request failed", Err: err}
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(res.Body)
	if err != nil {
		return &DataSourceError{Op: op, Table: table, StatusCode: res.StatusCode, Message: "read body", Err: err}
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return newStatusError(op, table, res.StatusCode, payload)
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return &DataSourceError{Op: op, Table: table, StatusCode: res.StatusCode, Message: "malformed payload", Err: err}
	}
	return nil
}
