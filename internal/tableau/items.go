package tableau

import "time"

// Wire-level items as the REST API returns them. Numeric and boolean
// attributes arrive as strings in the JSON dialect, hence the ",string"
// tags. The metadata processor maps these into the normalized schema.

// ProjectRef is an embedded project reference.
type ProjectRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// OwnerRef is an embedded owner reference. Name is only populated on
// endpoints that expand the owner.
type OwnerRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type tagList struct {
	Tag []struct {
		Label string `json:"label"`
	} `json:"tag"`
}

// Labels flattens the tag envelope into a plain string slice.
func (t tagList) Labels() []string {
	if len(t.Tag) == 0 {
		return nil
	}
	labels := make([]string, 0, len(t.Tag))
	for _, tag := range t.Tag {
		labels = append(labels, tag.Label)
	}
	return labels
}

// WorkbookItem is a workbook as listed by the REST API.
type WorkbookItem struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	ContentURL  string     `json:"contentUrl"`
	WebpageURL  string     `json:"webpageUrl"`
	ShowTabs    bool       `json:"showTabs,string"`
	Size        int64      `json:"size,string"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	Project     ProjectRef `json:"project"`
	Owner       OwnerRef   `json:"owner"`
	Tags        tagList    `json:"tags"`
}

// TagLabels returns the workbook's tags as strings.
func (w WorkbookItem) TagLabels() []string { return w.Tags.Labels() }

// DatasourceItem is a published data source as listed by the REST API.
type DatasourceItem struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	ContentURL  string     `json:"contentUrl"`
	WebpageURL  string     `json:"webpageUrl"`
	Size        int64      `json:"size,string"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	Project     ProjectRef `json:"project"`
	Owner       OwnerRef   `json:"owner"`
	Tags        tagList    `json:"tags"`
}

// TagLabels returns the data source's tags as strings.
func (d DatasourceItem) TagLabels() []string { return d.Tags.Labels() }

// ProjectItem is a project as listed by the REST API.
type ProjectItem struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	ParentProjectID    string    `json:"parentProjectId"`
	ContentPermissions string    `json:"contentPermissions"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// FlowItem is a Prep flow as listed by the REST API.
type FlowItem struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	WebpageURL  string     `json:"webpageUrl"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	Project     ProjectRef `json:"project"`
	Owner       OwnerRef   `json:"owner"`
	Tags        tagList    `json:"tags"`
}

// TagLabels returns the flow's tags as strings.
func (f FlowItem) TagLabels() []string { return f.Tags.Labels() }

// UserItem is a site user as listed by the REST API.
type UserItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	FullName  string    `json:"fullName"`
	SiteRole  string    `json:"siteRole"`
	LastLogin time.Time `json:"lastLogin"`
}

// GroupItem is a site group as listed by the REST API.
type GroupItem struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Domain struct {
		Name string `json:"name"`
	} `json:"domain"`
	Import struct {
		SiteRole string `json:"siteRole"`
	} `json:"import"`
}

// ViewItem is a sheet inside a workbook.
type ViewItem struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ContentURL string    `json:"contentUrl"`
	WebpageURL string    `json:"webpageUrl"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ConnectionItem is a data connection embedded in a workbook or data source.
type ConnectionItem struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	ServerAddress string `json:"serverAddress"`
	ServerPort    string `json:"serverPort"`
	UserName      string `json:"userName"`
	EmbedPassword bool   `json:"embedPassword,string"`
	Datasource    struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"datasource"`
}

// SiteItem is a site as returned by the sites endpoint.
type SiteItem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ContentURL string `json:"contentUrl"`
}

// ServerInfo reports the server build and REST API version.
type ServerInfo struct {
	ProductVersion struct {
		Value string `json:"value"`
		Build string `json:"build"`
	} `json:"productVersion"`
	RESTAPIVersion string `json:"restApiVersion"`
}

type paginationInfo struct {
	PageNumber     int `json:"pageNumber,string"`
	PageSize       int `json:"pageSize,string"`
	TotalAvailable int `json:"totalAvailable,string"`
}
