package tableau

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/ppiankov/tabspectre/internal/apierr"
	"github.com/ppiankov/tabspectre/pkg/config"
)

// Client wraps the paginated list endpoints behind a uniform retry loop and
// a request rate limiter. All calls require a live session from Connect.
type Client struct {
	creds   Credentials
	rest    *restClient
	auth    *Authenticator
	retry   retryConfig
	limiter *RateLimiter
	session *Session

	pageSize int
}

// NewClient creates a REST client for the given credentials.
func NewClient(creds Credentials, cfg *config.Config) *Client {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	rest := newRESTClient(creds.ServerURL, cfg.HTTPTimeout)

	retry := defaultRetry()
	retry.attempts = cfg.RetryAttempts
	retry.initialDelay = cfg.RetryDelay

	return &Client{
		creds:    creds,
		rest:     rest,
		auth:     newAuthenticator(creds, rest),
		retry:    retry,
		limiter:  NewRateLimiter(cfg.RateLimit),
		pageSize: cfg.PageSize,
	}
}

// Connect signs in and keeps the session for subsequent calls.
func (c *Client) Connect(ctx context.Context) error {
	session, err := c.auth.SignIn(ctx)
	if err != nil {
		return apierr.Wrap(apierr.KindConnection, err, "failed to connect to Tableau Server %s", c.creds.ServerURL)
	}
	c.session = session
	slog.Debug("connected to Tableau Server",
		slog.String("server", c.creds.ServerURL),
		slog.String("site", session.SiteContentURL))
	return nil
}

// Close signs out. Safe to call when not connected.
func (c *Client) Close(ctx context.Context) error {
	if c.session == nil {
		return nil
	}
	err := c.auth.SignOut(ctx, c.session)
	c.session = nil
	return err
}

// Session returns the live session, or nil when not connected.
func (c *Client) Session() *Session {
	return c.session
}

func (c *Client) requireSession() error {
	if c.session == nil {
		return apierr.New(apierr.KindConnection, "not connected to server")
	}
	return nil
}

// get issues one authenticated GET with rate limiting and the retry loop.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.retry.do(ctx, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		full := path
		if len(query) > 0 {
			full = path + "?" + query.Encode()
		}
		return c.rest.do(ctx, "GET", full, c.session.Token, nil, out)
	})
}

// forEachPage walks a paginated endpoint. fetch loads one page and reports
// how many items it held and the server's totalAvailable count.
func (c *Client) forEachPage(ctx context.Context, fetch func(page int) (int, int, error)) error {
	seen := 0
	for page := 1; ; page++ {
		count, total, err := fetch(page)
		if err != nil {
			return err
		}
		seen += count
		if count == 0 || seen >= total {
			return nil
		}
	}
}

func (c *Client) sitePath(resource string) string {
	return fmt.Sprintf("sites/%s/%s", c.session.SiteLUID, resource)
}

func (c *Client) pageQuery(page int, filter string) url.Values {
	q := url.Values{}
	q.Set("pageSize", fmt.Sprintf("%d", c.pageSize))
	q.Set("pageNumber", fmt.Sprintf("%d", page))
	if filter != "" {
		q.Set("filter", filter)
	}
	return q
}

// containsFilter builds the REST filter expression the vendor SDK uses for
// its Contains operator.
func containsFilter(term string) string {
	return "name:has:" + term
}

// ListWorkbooks returns every workbook on the site.
func (c *Client) ListWorkbooks(ctx context.Context) ([]WorkbookItem, error) {
	return c.listWorkbooks(ctx, "")
}

func (c *Client) listWorkbooks(ctx context.Context, filter string) ([]WorkbookItem, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	var items []WorkbookItem
	err := c.forEachPage(ctx, func(page int) (int, int, error) {
		var resp struct {
			Pagination paginationInfo `json:"pagination"`
			Workbooks  struct {
				Workbook []WorkbookItem `json:"workbook"`
			} `json:"workbooks"`
		}
		if err := c.get(ctx, c.sitePath("workbooks"), c.pageQuery(page, filter), &resp); err != nil {
			return 0, 0, err
		}
		items = append(items, resp.Workbooks.Workbook...)
		return len(resp.Workbooks.Workbook), resp.Pagination.TotalAvailable, nil
	})
	if err != nil {
		return nil, apierr.Wrap(apierr.KindAPI, err, "failed to get workbooks")
	}
	return items, nil
}

// ListDatasources returns every published data source on the site.
func (c *Client) ListDatasources(ctx context.Context) ([]DatasourceItem, error) {
	return c.listDatasources(ctx, "")
}

func (c *Client) listDatasources(ctx context.Context, filter string) ([]DatasourceItem, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	var items []DatasourceItem
	err := c.forEachPage(ctx, func(page int) (int, int, error) {
		var resp struct {
			Pagination  paginationInfo `json:"pagination"`
			Datasources struct {
				Datasource []DatasourceItem `json:"datasource"`
			} `json:"datasources"`
		}
		if err := c.get(ctx, c.sitePath("datasources"), c.pageQuery(page, filter), &resp); err != nil {
			return 0, 0, err
		}
		items = append(items, resp.Datasources.Datasource...)
		return len(resp.Datasources.Datasource), resp.Pagination.TotalAvailable, nil
	})
	if err != nil {
		return nil, apierr.Wrap(apierr.KindAPI, err, "failed to get data sources")
	}
	return items, nil
}

// ListProjects returns every project on the site.
func (c *Client) ListProjects(ctx context.Context) ([]ProjectItem, error) {
	return c.listProjects(ctx, "")
}

func (c *Client) listProjects(ctx context.Context, filter string) ([]ProjectItem, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	var items []ProjectItem
	err := c.forEachPage(ctx, func(page int) (int, int, error) {
		var resp struct {
			Pagination paginationInfo `json:"pagination"`
			Projects   struct {
				Project []ProjectItem `json:"project"`
			} `json:"projects"`
		}
		if err := c.get(ctx, c.sitePath("projects"), c.pageQuery(page, filter), &resp); err != nil {
			return 0, 0, err
		}
		items = append(items, resp.Projects.Project...)
		return len(resp.Projects.Project), resp.Pagination.TotalAvailable, nil
	})
	if err != nil {
		return nil, apierr.Wrap(apierr.KindAPI, err, "failed to get projects")
	}
	return items, nil
}

// ListFlows returns every Prep flow on the site.
func (c *Client) ListFlows(ctx context.Context) ([]FlowItem, error) {
	return c.listFlows(ctx, "")
}

func (c *Client) listFlows(ctx context.Context, filter string) ([]FlowItem, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	var items []FlowItem
	err := c.forEachPage(ctx, func(page int) (int, int, error) {
		var resp struct {
			Pagination paginationInfo `json:"pagination"`
			Flows      struct {
				Flow []FlowItem `json:"flow"`
			} `json:"flows"`
		}
		if err := c.get(ctx, c.sitePath("flows"), c.pageQuery(page, filter), &resp); err != nil {
			return 0, 0, err
		}
		items = append(items, resp.Flows.Flow...)
		return len(resp.Flows.Flow), resp.Pagination.TotalAvailable, nil
	})
	if err != nil {
		return nil, apierr.Wrap(apierr.KindAPI, err, "failed to get flows")
	}
	return items, nil
}

// ListUsers returns every user on the site.
func (c *Client) ListUsers(ctx context.Context) ([]UserItem, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	var items []UserItem
	err := c.forEachPage(ctx, func(page int) (int, int, error) {
		var resp struct {
			Pagination paginationInfo `json:"pagination"`
			Users      struct {
				User []UserItem `json:"user"`
			} `json:"users"`
		}
		if err := c.get(ctx, c.sitePath("users"), c.pageQuery(page, ""), &resp); err != nil {
			return 0, 0, err
		}
		items = append(items, resp.Users.User...)
		return len(resp.Users.User), resp.Pagination.TotalAvailable, nil
	})
	if err != nil {
		return nil, apierr.Wrap(apierr.KindAPI, err, "failed to get users")
	}
	return items, nil
}

// ListGroups returns every group on the site.
func (c *Client) ListGroups(ctx context.Context) ([]GroupItem, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	var items []GroupItem
	err := c.forEachPage(ctx, func(page int) (int, int, error) {
		var resp struct {
			Pagination paginationInfo `json:"pagination"`
			Groups     struct {
				Group []GroupItem `json:"group"`
			} `json:"groups"`
		}
		if err := c.get(ctx, c.sitePath("groups"), c.pageQuery(page, ""), &resp); err != nil {
			return 0, 0, err
		}
		items = append(items, resp.Groups.Group...)
		return len(resp.Groups.Group), resp.Pagination.TotalAvailable, nil
	})
	if err != nil {
		return nil, apierr.Wrap(apierr.KindAPI, err, "failed to get groups")
	}
	return items, nil
}

// GetWorkbook fetches one workbook by LUID.
func (c *Client) GetWorkbook(ctx context.Context, id string) (*WorkbookItem, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	var resp struct {
		Workbook WorkbookItem `json:"workbook"`
	}
	if err := c.get(ctx, c.sitePath("workbooks/"+id), nil, &resp); err != nil {
		return nil, apierr.Wrap(apierr.KindAPI, err, "failed to get workbook %s", id)
	}
	return &resp.Workbook, nil
}

// GetDatasource fetches one data source by LUID.
func (c *Client) GetDatasource(ctx context.Context, id string) (*DatasourceItem, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	var resp struct {
		Datasource DatasourceItem `json:"datasource"`
	}
	if err := c.get(ctx, c.sitePath("datasources/"+id), nil, &resp); err != nil {
		return nil, apierr.Wrap(apierr.KindAPI, err, "failed to get data source %s", id)
	}
	return &resp.Datasource, nil
}

// WorkbookViews returns the views of one workbook.
func (c *Client) WorkbookViews(ctx context.Context, id string) ([]ViewItem, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	var resp struct {
		Views struct {
			View []ViewItem `json:"view"`
		} `json:"views"`
	}
	if err := c.get(ctx, c.sitePath("workbooks/"+id+"/views"), nil, &resp); err != nil {
		return nil, apierr.Wrap(apierr.KindAPI, err, "failed to get workbook views")
	}
	return resp.Views.View, nil
}

// WorkbookConnections returns the connections of one workbook.
func (c *Client) WorkbookConnections(ctx context.Context, id string) ([]ConnectionItem, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	var resp struct {
		Connections struct {
			Connection []ConnectionItem `json:"connection"`
		} `json:"connections"`
	}
	if err := c.get(ctx, c.sitePath("workbooks/"+id+"/connections"), nil, &resp); err != nil {
		return nil, apierr.Wrap(apierr.KindAPI, err, "failed to get workbook connections")
	}
	return resp.Connections.Connection, nil
}

// DatasourceConnections returns the connections of one data source.
func (c *Client) DatasourceConnections(ctx context.Context, id string) ([]ConnectionItem, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	var resp struct {
		Connections struct {
			Connection []ConnectionItem `json:"connection"`
		} `json:"connections"`
	}
	if err := c.get(ctx, c.sitePath("datasources/"+id+"/connections"), nil, &resp); err != nil {
		return nil, apierr.Wrap(apierr.KindAPI, err, "failed to get data source connections")
	}
	return resp.Connections.Connection, nil
}

// ServerInfo returns the server build and REST API version.
func (c *Client) ServerInfo(ctx context.Context) (*ServerInfo, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	var resp struct {
		ServerInfo ServerInfo `json:"serverInfo"`
	}
	if err := c.get(ctx, "serverinfo", nil, &resp); err != nil {
		return nil, apierr.Wrap(apierr.KindAPI, err, "failed to get server info")
	}
	return &resp.ServerInfo, nil
}

// CurrentSite returns the site the session is signed in to.
func (c *Client) CurrentSite(ctx context.Context) (*SiteItem, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	var resp struct {
		Site SiteItem `json:"site"`
	}
	if err := c.get(ctx, "sites/"+c.session.SiteLUID, nil, &resp); err != nil {
		return nil, apierr.Wrap(apierr.KindAPI, err, "failed to get current site")
	}
	return &resp.Site, nil
}

// SearchResults groups name-contains matches per content type.
type SearchResults struct {
	Workbooks   []WorkbookItem
	Datasources []DatasourceItem
	Projects    []ProjectItem
	Flows       []FlowItem
}

// Total returns the number of matches across all types.
func (r *SearchResults) Total() int {
	return len(r.Workbooks) + len(r.Datasources) + len(r.Projects) + len(r.Flows)
}

// Search runs independent contains-filtered list calls per requested
// content type and merges them into one keyed result. contentType is one of
// "all", "workbooks", "datasources", "projects", "flows".
func (c *Client) Search(ctx context.Context, term, contentType string) (*SearchResults, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}

	filter := containsFilter(term)
	results := &SearchResults{}

	if contentType == "all" || contentType == "workbooks" {
		workbooks, err := c.listWorkbooks(ctx, filter)
		if err != nil {
			return nil, err
		}
		results.Workbooks = workbooks
	}
	if contentType == "all" || contentType == "datasources" {
		datasources, err := c.listDatasources(ctx, filter)
		if err != nil {
			return nil, err
		}
		results.Datasources = datasources
	}
	if contentType == "all" || contentType == "projects" {
		projects, err := c.listProjects(ctx, filter)
		if err != nil {
			return nil, err
		}
		results.Projects = projects
	}
	if contentType == "all" || contentType == "flows" {
		flows, err := c.listFlows(ctx, filter)
		if err != nil {
			return nil, err
		}
		results.Flows = flows
	}

	return results, nil
}
