package metadata

import (
	"strings"
	"time"

	"github.com/ppiankov/tabspectre/internal/models"
)

// FilterCriteria narrows a snapshot. All populated criteria must match
// (conjunction); an empty criteria set matches everything. Name matching is
// case-insensitive.
type FilterCriteria struct {
	ProjectNames []string
	OwnerNames   []string
	Tags         []string
	UpdatedSince time.Time
}

// IsZero reports whether no criteria are set.
func (c FilterCriteria) IsZero() bool {
	return len(c.ProjectNames) == 0 && len(c.OwnerNames) == 0 &&
		len(c.Tags) == 0 && c.UpdatedSince.IsZero()
}

// Filter returns a derived copy of meta containing only the items that
// match the criteria. The input snapshot is never modified. Projects carry
// no owner or tags, so only the project-name and updated-since criteria
// apply to them; when owner or tag criteria are set the project list is
// left intact as context for the filtered children.
func Filter(meta *models.ServerMetadata, criteria FilterCriteria) *models.ServerMetadata {
	out := *meta
	if criteria.IsZero() {
		return &out
	}

	projects := toLowerSet(criteria.ProjectNames)
	owners := toLowerSet(criteria.OwnerNames)
	tags := toLowerSet(criteria.Tags)

	out.Workbooks = nil
	for _, wb := range meta.Workbooks {
		if matchName(projects, wb.ProjectName) && matchName(owners, wb.OwnerName) &&
			matchTags(tags, wb.Tags) && matchSince(criteria.UpdatedSince, wb.UpdatedAt) {
			out.Workbooks = append(out.Workbooks, wb)
		}
	}

	out.Datasources = nil
	for _, ds := range meta.Datasources {
		if matchName(projects, ds.ProjectName) && matchName(owners, ds.OwnerName) &&
			matchTags(tags, ds.Tags) && matchSince(criteria.UpdatedSince, ds.UpdatedAt) {
			out.Datasources = append(out.Datasources, ds)
		}
	}

	out.Flows = nil
	for _, f := range meta.Flows {
		if matchName(projects, f.ProjectName) && matchName(owners, f.OwnerName) &&
			matchTags(tags, f.Tags) && matchSince(criteria.UpdatedSince, f.UpdatedAt) {
			out.Flows = append(out.Flows, f)
		}
	}

	if len(projects) > 0 || !criteria.UpdatedSince.IsZero() {
		out.Projects = nil
		for _, p := range meta.Projects {
			if matchName(projects, p.Name) && matchSince(criteria.UpdatedSince, p.UpdatedAt) {
				out.Projects = append(out.Projects, p)
			}
		}
	}

	return &out
}

func toLowerSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.ToLower(v)] = struct{}{}
	}
	return set
}

func matchName(set map[string]struct{}, name string) bool {
	if len(set) == 0 {
		return true
	}
	_, ok := set[strings.ToLower(name)]
	return ok
}

// matchTags is true when the item carries at least one of the wanted tags.
func matchTags(set map[string]struct{}, itemTags []string) bool {
	if len(set) == 0 {
		return true
	}
	for _, t := range itemTags {
		if _, ok := set[strings.ToLower(t)]; ok {
			return true
		}
	}
	return false
}

func matchSince(since, updated time.Time) bool {
	if since.IsZero() {
		return true
	}
	return !updated.Before(since)
}
