// Package models holds the normalized metadata schema. Records are flat
// mirrors of the Tableau REST objects: child entities carry denormalized
// copies of their project and owner display names captured at collection
// time, and nothing is re-validated afterwards.
package models

import "time"

// View is a sheet inside a workbook.
type View struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ContentURL string    `json:"content_url,omitempty"`
	WebpageURL string    `json:"webpage_url,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitzero"`
	UpdatedAt  time.Time `json:"updated_at,omitzero"`
}

// Connection describes a data connection embedded in a workbook or
// published data source. Passwords are never collected.
type Connection struct {
	ID             string `json:"id"`
	DatasourceID   string `json:"datasource_id,omitempty"`
	DatasourceName string `json:"datasource_name,omitempty"`
	Type           string `json:"connection_type,omitempty"`
	ServerAddress  string `json:"server_address,omitempty"`
	ServerPort     string `json:"server_port,omitempty"`
	Username       string `json:"username,omitempty"`
	EmbedPassword  bool   `json:"embed_password"`
}

// Lineage is the raw GraphQL lineage payload for a single item. It is kept
// as loose JSON; the metadata endpoint owns its shape.
type Lineage map[string]any

// Workbook is the normalized workbook record.
type Workbook struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	ProjectID   string       `json:"project_id"`
	ProjectName string       `json:"project_name"`
	OwnerID     string       `json:"owner_id"`
	OwnerName   string       `json:"owner_name"`
	CreatedAt   time.Time    `json:"created_at,omitzero"`
	UpdatedAt   time.Time    `json:"updated_at,omitzero"`
	Size        int64        `json:"size,omitempty"`
	WebpageURL  string       `json:"webpage_url,omitempty"`
	ContentURL  string       `json:"content_url,omitempty"`
	ShowTabs    bool         `json:"show_tabs"`
	Views       []View       `json:"views,omitempty"`
	Connections []Connection `json:"connections,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	Lineage     Lineage      `json:"lineage,omitempty"`
}

// Datasource is the normalized published data source record.
type Datasource struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	ProjectID   string       `json:"project_id"`
	ProjectName string       `json:"project_name"`
	OwnerID     string       `json:"owner_id"`
	OwnerName   string       `json:"owner_name"`
	CreatedAt   time.Time    `json:"created_at,omitzero"`
	UpdatedAt   time.Time    `json:"updated_at,omitzero"`
	Size        int64        `json:"size,omitempty"`
	WebpageURL  string       `json:"webpage_url,omitempty"`
	ContentURL  string       `json:"content_url,omitempty"`
	Connections []Connection `json:"connections,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	Lineage     Lineage      `json:"lineage,omitempty"`
}

// Project is the normalized project record. Content counts are computed from
// the collected child lists, not taken from the server.
type Project struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Description        string    `json:"description,omitempty"`
	ParentID           string    `json:"parent_id,omitempty"`
	ContentPermissions string    `json:"content_permissions,omitempty"`
	CreatedAt          time.Time `json:"created_at,omitzero"`
	UpdatedAt          time.Time `json:"updated_at,omitzero"`
	WorkbookCount      int       `json:"workbook_count"`
	DatasourceCount    int       `json:"datasource_count"`
	FlowCount          int       `json:"flow_count"`
}

// Flow is the normalized Prep flow record.
type Flow struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ProjectID   string    `json:"project_id"`
	ProjectName string    `json:"project_name"`
	OwnerID     string    `json:"owner_id"`
	OwnerName   string    `json:"owner_name"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
	UpdatedAt   time.Time `json:"updated_at,omitzero"`
	WebpageURL  string    `json:"webpage_url,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
}

// User is a site user.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	FullName  string    `json:"full_name,omitempty"`
	SiteRole  string    `json:"site_role,omitempty"`
	LastLogin time.Time `json:"last_login,omitzero"`
}

// Group is a site group.
type Group struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DomainName  string `json:"domain_name,omitempty"`
	MinimumRole string `json:"minimum_site_role,omitempty"`
}

// ServerMetadata is the root aggregate produced by one collection run. It
// owns all child lists, is built once from live API responses and never
// mutated in place; filtering yields a derived copy.
type ServerMetadata struct {
	ServerURL      string       `json:"server_url"`
	Version        string       `json:"version"`
	RESTAPIVersion string       `json:"rest_api_version"`
	SiteID         string       `json:"site_id"`
	SiteName       string       `json:"site_name"`
	Timestamp      time.Time    `json:"timestamp"`
	Workbooks      []Workbook   `json:"workbooks"`
	Datasources    []Datasource `json:"datasources"`
	Projects       []Project    `json:"projects"`
	Flows          []Flow       `json:"flows"`
}
