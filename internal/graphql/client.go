// Package graphql talks to the Tableau Metadata API. It issues the two
// fixed lineage queries the tool needs over an already-authenticated
// session; it is not a general GraphQL client.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/tabspectre/internal/apierr"
)

const workbookLineageQuery = `
query GetWorkbookLineage($luid: String!) {
    workbooks(filter: {luid: $luid}) {
        luid
        name
        upstreamDatasources {
            luid
            name
            upstreamTables {
                luid
                name
                schema
                database {
                    name
                }
            }
        }
        sheets {
            luid
            name
        }
    }
}`

const datasourceLineageQuery = `
query GetDatasourceLineage($luid: String!) {
    publishedDatasources(filter: {luid: $luid}) {
        luid
        name
        upstreamTables {
            luid
            name
            schema
            database {
                name
                connectionType
            }
            columns {
                luid
                name
            }
        }
        downstreamWorkbooks {
            luid
            name
        }
    }
}`

// Client issues GraphQL queries against the metadata endpoint using the
// REST session token.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// NewClient creates a metadata client for a server and session token.
func NewClient(serverURL, token string, timeout time.Duration) *Client {
	return &Client{
		endpoint:   strings.TrimRight(serverURL, "/") + "/api/metadata/graphql",
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type response struct {
	Data   map[string]any `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Query executes one GraphQL query and returns the data object. Errors in
// the response body are surfaced as API errors.
func (c *Client) Query(ctx context.Context, query string, variables map[string]any) (map[string]any, error) {
	if variables == nil {
		variables = map[string]any{}
	}
	payload, err := json.Marshal(request{Query: query, Variables: variables})
	if err != nil {
		return nil, apierr.Wrap(apierr.KindAPI, err, "failed to encode GraphQL request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, apierr.Wrap(apierr.KindAPI, err, "failed to build GraphQL request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tableau-Auth", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindConnection, err, "GraphQL query failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindAPI, err, "failed to read GraphQL response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apierr.New(apierr.KindAPI, "GraphQL query failed: unexpected status %d", resp.StatusCode)
	}

	var parsed response
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, apierr.Wrap(apierr.KindAPI, err, "failed to decode GraphQL response")
	}
	if len(parsed.Errors) > 0 {
		messages := make([]string, 0, len(parsed.Errors))
		for _, e := range parsed.Errors {
			messages = append(messages, e.Message)
		}
		return nil, apierr.New(apierr.KindAPI, "GraphQL query failed: %s", strings.Join(messages, "; "))
	}

	return parsed.Data, nil
}

// WorkbookLineage returns the upstream/downstream lineage of one workbook.
func (c *Client) WorkbookLineage(ctx context.Context, luid string) (map[string]any, error) {
	data, err := c.Query(ctx, workbookLineageQuery, map[string]any{"luid": luid})
	if err != nil {
		return nil, fmt.Errorf("workbook %s: %w", luid, err)
	}
	return data, nil
}

// DatasourceLineage returns the upstream/downstream lineage of one
// published data source.
func (c *Client) DatasourceLineage(ctx context.Context, luid string) (map[string]any, error) {
	data, err := c.Query(ctx, datasourceLineageQuery, map[string]any{"luid": luid})
	if err != nil {
		return nil, fmt.Errorf("datasource %s: %w", luid, err)
	}
	return data, nil
}
