package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/tabspectre/internal/apierr"
)

func TestWorkbookLineage(t *testing.T) {
	var gotAuth string
	var gotVariables map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/metadata/graphql", r.URL.Path)
		gotAuth = r.Header.Get("X-Tableau-Auth")

		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotVariables = req.Variables
		assert.Contains(t, req.Query, "upstreamDatasources")

		fmt.Fprint(w, `{"data": {"workbooks": [{"luid": "wb-1", "name": "Sales", "upstreamDatasources": []}]}}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok-123", 10*time.Second)
	data, err := client.WorkbookLineage(context.Background(), "wb-1")
	require.NoError(t, err)

	assert.Equal(t, "tok-123", gotAuth)
	assert.Equal(t, map[string]any{"luid": "wb-1"}, gotVariables)
	workbooks, ok := data["workbooks"].([]any)
	require.True(t, ok)
	require.Len(t, workbooks, 1)
}

func TestQuerySurfacesGraphQLErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data": null, "errors": [{"message": "permission denied"}, {"message": "field unknown"}]}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok", time.Second)
	_, err := client.DatasourceLineage(context.Background(), "ds-1")
	require.Error(t, err)
	assert.True(t, apierr.IsKind(err, apierr.KindAPI))
	assert.Contains(t, err.Error(), "permission denied")
	assert.Contains(t, err.Error(), "field unknown")
}

func TestQueryNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok", time.Second)
	_, err := client.Query(context.Background(), "query {}", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
