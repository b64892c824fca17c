package tableau

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/tabspectre/internal/apierr"
	"github.com/ppiankov/tabspectre/pkg/config"
)

const testSiteLUID = "site-luid-1"

// newTestServer wires a fake REST API. handlers maps "METHOD path" (path
// without the /api/{version} prefix) to a handler.
func newTestServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/api/"), "/", 2)
		if len(parts) != 2 {
			http.NotFound(w, r)
			return
		}
		key := r.Method + " " + parts[1]
		if h, ok := handlers[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			h(w, r)
			return
		}
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func signInHandler(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprintf(w, `{"credentials": {"token": "tok-123", "site": {"id": %q, "contentUrl": "eng"}, "user": {"id": "user-1"}}}`, testSiteLUID)
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.PageSize = 2
	cfg.RetryDelay = time.Millisecond
	cfg.RateLimit = 1000
	return cfg
}

func connectedClient(t *testing.T, handlers map[string]http.HandlerFunc) *Client {
	t.Helper()
	handlers["POST auth/signin"] = signInHandler
	handlers["POST auth/signout"] = func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
	srv := newTestServer(t, handlers)

	creds := Credentials{
		ServerURL:  srv.URL,
		Method:     AuthPAT,
		TokenName:  "ci",
		TokenValue: "secret",
	}
	client := NewClient(creds, testConfig())
	require.NoError(t, client.Connect(context.Background()))
	t.Cleanup(func() { _ = client.Close(context.Background()) })
	return client
}

func TestConnectStoresSession(t *testing.T) {
	client := connectedClient(t, map[string]http.HandlerFunc{})
	session := client.Session()
	require.NotNil(t, session)
	assert.Equal(t, "tok-123", session.Token)
	assert.Equal(t, testSiteLUID, session.SiteLUID)
	assert.Equal(t, "eng", session.SiteContentURL)
}

func TestConnectAuthFailure(t *testing.T) {
	srv := newTestServer(t, map[string]http.HandlerFunc{
		"POST auth/signin": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error": {"summary": "Login error", "detail": "Invalid credentials", "code": "401001"}}`)
		},
	})

	client := NewClient(Credentials{
		ServerURL: srv.URL, Method: AuthPAT, TokenName: "ci", TokenValue: "bad",
	}, testConfig())

	err := client.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, apierr.IsKind(err, apierr.KindConnection))
	assert.Contains(t, err.Error(), "Invalid credentials")
}

func TestListWorkbooksWalksPages(t *testing.T) {
	page := func(n int) string {
		switch n {
		case 1:
			return `{"pagination": {"pageNumber": "1", "pageSize": "2", "totalAvailable": "3"},
				"workbooks": {"workbook": [
					{"id": "wb-1", "name": "Sales", "size": "1024", "project": {"id": "p1", "name": "Analytics"}, "owner": {"id": "u1", "name": "alice"}},
					{"id": "wb-2", "name": "Churn", "size": "2048", "project": {"id": "p1", "name": "Analytics"}, "owner": {"id": "u2", "name": "bob"}}
				]}}`
		default:
			return `{"pagination": {"pageNumber": "2", "pageSize": "2", "totalAvailable": "3"},
				"workbooks": {"workbook": [
					{"id": "wb-3", "name": "Ops", "size": "512", "tags": {"tag": [{"label": "prod"}]}, "project": {"id": "p2", "name": "Platform"}, "owner": {"id": "u1", "name": "alice"}}
				]}}`
		}
	}

	var pagesServed []string
	client := connectedClient(t, map[string]http.HandlerFunc{
		"GET sites/" + testSiteLUID + "/workbooks": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "tok-123", r.Header.Get("X-Tableau-Auth"))
			pageNum := r.URL.Query().Get("pageNumber")
			pagesServed = append(pagesServed, pageNum)
			if pageNum == "1" {
				fmt.Fprint(w, page(1))
			} else {
				fmt.Fprint(w, page(2))
			}
		},
	})

	workbooks, err := client.ListWorkbooks(context.Background())
	require.NoError(t, err)
	require.Len(t, workbooks, 3)
	assert.Equal(t, []string{"1", "2"}, pagesServed)
	assert.Equal(t, "Sales", workbooks[0].Name)
	assert.Equal(t, int64(1024), workbooks[0].Size)
	assert.Equal(t, "Analytics", workbooks[0].Project.Name)
	assert.Equal(t, []string{"prod"}, workbooks[2].TagLabels())
}

func TestListRetriesTransientFailure(t *testing.T) {
	attempts := 0
	client := connectedClient(t, map[string]http.HandlerFunc{
		"GET sites/" + testSiteLUID + "/projects": func(w http.ResponseWriter, _ *http.Request) {
			attempts++
			if attempts < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			fmt.Fprint(w, `{"pagination": {"pageNumber": "1", "pageSize": "2", "totalAvailable": "1"},
				"projects": {"project": [{"id": "p1", "name": "Analytics"}]}}`)
		},
	})

	projects, err := client.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, 3, attempts)
}

func TestListFailsAfterAllAttempts(t *testing.T) {
	attempts := 0
	client := connectedClient(t, map[string]http.HandlerFunc{
		"GET sites/" + testSiteLUID + "/flows": func(w http.ResponseWriter, _ *http.Request) {
			attempts++
			w.WriteHeader(http.StatusForbidden)
		},
	})

	_, err := client.ListFlows(context.Background())
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.True(t, apierr.IsKind(err, apierr.KindAPI))
}

func TestSearchMergesContentTypes(t *testing.T) {
	emptyPage := func(envelope, item string) string {
		return fmt.Sprintf(`{"pagination": {"pageNumber": "1", "pageSize": "2", "totalAvailable": "0"},
			%q: {%q: []}}`, envelope, item)
	}
	var filters []string
	client := connectedClient(t, map[string]http.HandlerFunc{
		"GET sites/" + testSiteLUID + "/workbooks": func(w http.ResponseWriter, r *http.Request) {
			filters = append(filters, r.URL.Query().Get("filter"))
			fmt.Fprint(w, `{"pagination": {"pageNumber": "1", "pageSize": "2", "totalAvailable": "1"},
				"workbooks": {"workbook": [{"id": "wb-1", "name": "Sales Overview"}]}}`)
		},
		"GET sites/" + testSiteLUID + "/datasources": func(w http.ResponseWriter, r *http.Request) {
			filters = append(filters, r.URL.Query().Get("filter"))
			fmt.Fprint(w, emptyPage("datasources", "datasource"))
		},
		"GET sites/" + testSiteLUID + "/projects": func(w http.ResponseWriter, r *http.Request) {
			filters = append(filters, r.URL.Query().Get("filter"))
			fmt.Fprint(w, emptyPage("projects", "project"))
		},
		"GET sites/" + testSiteLUID + "/flows": func(w http.ResponseWriter, r *http.Request) {
			filters = append(filters, r.URL.Query().Get("filter"))
			fmt.Fprint(w, emptyPage("flows", "flow"))
		},
	})

	results, err := client.Search(context.Background(), "Sales", "all")
	require.NoError(t, err)
	assert.Equal(t, 1, results.Total())
	require.Len(t, filters, 4)
	for _, f := range filters {
		assert.Equal(t, "name:has:Sales", f)
	}
}

func TestSearchSingleType(t *testing.T) {
	client := connectedClient(t, map[string]http.HandlerFunc{
		"GET sites/" + testSiteLUID + "/datasources": func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"pagination": {"pageNumber": "1", "pageSize": "2", "totalAvailable": "1"},
				"datasources": {"datasource": [{"id": "ds-1", "name": "Warehouse"}]}}`)
		},
	})

	results, err := client.Search(context.Background(), "Ware", "datasources")
	require.NoError(t, err)
	assert.Len(t, results.Datasources, 1)
	assert.Empty(t, results.Workbooks)
}

func TestCallsRequireSession(t *testing.T) {
	client := NewClient(Credentials{ServerURL: "https://tab.example.com"}, testConfig())
	_, err := client.ListWorkbooks(context.Background())
	require.Error(t, err)
	assert.True(t, apierr.IsKind(err, apierr.KindConnection))
}

func TestCloseIsIdempotent(t *testing.T) {
	client := connectedClient(t, map[string]http.HandlerFunc{})
	require.NoError(t, client.Close(context.Background()))
	require.NoError(t, client.Close(context.Background()))
}

func TestWorkbookEnrichment(t *testing.T) {
	client := connectedClient(t, map[string]http.HandlerFunc{
		"GET sites/" + testSiteLUID + "/workbooks/wb-1/views": func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"views": {"view": [{"id": "v-1", "name": "Dashboard", "contentUrl": "Sales/Dashboard"}]}}`)
		},
		"GET sites/" + testSiteLUID + "/workbooks/wb-1/connections": func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"connections": {"connection": [{"id": "c-1", "type": "postgres", "serverAddress": "db.internal", "embedPassword": "true"}]}}`)
		},
	})

	views, err := client.WorkbookViews(context.Background(), "wb-1")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Dashboard", views[0].Name)

	conns, err := client.WorkbookConnections(context.Background(), "wb-1")
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, "postgres", conns[0].Type)
	assert.True(t, conns[0].EmbedPassword)
}

func TestServerInfo(t *testing.T) {
	client := connectedClient(t, map[string]http.HandlerFunc{
		"GET serverinfo": func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"serverInfo": {"productVersion": {"value": "2024.2.3", "build": "20242.24.0807"}, "restApiVersion": "3.24"}}`)
		},
	})

	info, err := client.ServerInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024.2.3", info.ProductVersion.Value)
	assert.Equal(t, "3.24", info.RESTAPIVersion)
}
