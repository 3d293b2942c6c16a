package eval

import (
	"sort"
	"time"

	"github.com/artpar/cmscore/domain/item"
	"github.com/artpar/cmscore/domain/view"
	"github.com/artpar/cmscore/pkg/cursor"
	"github.com/artpar/cmscore/ports"
)

// Candidate is a version a store loaded for a query, with its metadata
// item's version at the same ref.
type Candidate struct {
	Version  item.Version
	Metadata *item.Item
}

// Search filters, sorts and pages candidates for q. Candidates must already
// be restricted to the query's model and ref; the schema restriction is
// applied here.
func Search(candidates []Candidate, q ports.Query, now time.Time) (ports.Page, error) {
	matched := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if q.SchemaID != "" && c.Version.Value.SchemaID != q.SchemaID {
			continue
		}
		if Match(q.Filter, Subject{Item: c.Version.Value, Metadata: c.Metadata}, now) {
			matched = append(matched, c)
		}
	}

	by := view.DefaultSort
	if q.Sort != nil {
		by = *q.Sort
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return Less(by,
			Subject{Item: matched[i].Version.Value, Metadata: matched[i].Metadata},
			Subject{Item: matched[j].Version.Value, Metadata: matched[j].Metadata})
	})

	w, err := cursor.New(q.PageToken, q.PageSize, len(matched))
	if err != nil {
		return ports.Page{}, err
	}
	lo, hi := w.Bounds()
	page := ports.Page{
		Items:       make([]item.Version, 0, hi-lo),
		TotalCount:  len(matched),
		NextToken:   w.NextToken(),
		PrevToken:   w.PrevToken(),
		HasNext:     w.HasNext(),
		HasPrevious: w.HasPrevious(),
	}
	for _, c := range matched[lo:hi] {
		page.Items = append(page.Items, c.Version)
	}
	return page, nil
}
