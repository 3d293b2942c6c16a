package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/artpar/cmscore/app"
	"github.com/artpar/cmscore/domain/condition"
	"github.com/artpar/cmscore/domain/view"
	"github.com/artpar/cmscore/pkg/wire"
)

// ModelRequest creates or updates a model. On update, absent members are
// kept.
type ModelRequest struct {
	Key         *string `json:"key"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Metadata    bool    `json:"metadata,omitempty"`
}

// GroupRequest creates or updates a group.
type GroupRequest struct {
	Key         *string `json:"key"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// OrderRequest carries an ordered list of ids.
type OrderRequest struct {
	Order   []string `json:"order"`
	Version string   `json:"version,omitempty"`
}

// TitleRequest names the title field.
type TitleRequest struct {
	FieldID string `json:"fieldId"`
}

// FieldValueDoc is one value of an item write.
type FieldValueDoc struct {
	Field       string `json:"field"`
	ItemGroupID string `json:"itemGroupId,omitempty"`
	Value       any    `json:"value"`
}

// ItemRequest creates or updates an item. Version is required on update.
type ItemRequest struct {
	Version    string              `json:"version,omitempty"`
	Metadata   bool                `json:"metadata,omitempty"`
	Fields     []FieldValueDoc     `json:"fields"`
	Instances  map[string][]string `json:"instances,omitempty"`
	MetadataID *string             `json:"metadataId,omitempty"`
	ThreadID   string              `json:"threadId,omitempty"`
}

func fieldInputs(docs []FieldValueDoc) []app.FieldInput {
	out := make([]app.FieldInput, len(docs))
	for i, d := range docs {
		out[i] = app.FieldInput{Field: d.Field, ItemGroupID: d.ItemGroupID, Value: d.Value}
	}
	return out
}

// PublishRequest publishes a batch of items.
type PublishRequest struct {
	Items []struct {
		ID      string `json:"id"`
		Version string `json:"version,omitempty"`
	} `json:"items"`
}

// PublishResultDoc is the outcome for one item of a publish batch.
type PublishResultDoc struct {
	ID      string           `json:"id"`
	Version *wire.VersionDoc `json:"version,omitempty"`
	Error   *ErrorObject     `json:"error,omitempty"`
}

// VersionRequest names the expected head version of a state change.
type VersionRequest struct {
	Version string `json:"version"`
}

// InstanceRequest adds a group instance.
type InstanceRequest struct {
	Version     string          `json:"version"`
	ItemGroupID string          `json:"itemGroupId,omitempty"`
	Fields      []FieldValueDoc `json:"fields"`
}

// InstanceResponse is the item version after an instance was added.
type InstanceResponse struct {
	ItemGroupID string          `json:"itemGroupId"`
	Version     wire.VersionDoc `json:"version"`
}

// SearchRequest searches the items of a model.
type SearchRequest struct {
	Metadata  bool           `json:"metadata,omitempty"`
	Ref       string         `json:"ref,omitempty"`
	Filter    map[string]any `json:"filter,omitempty"`
	Sort      *wire.SortDoc  `json:"sort,omitempty"`
	PageToken string         `json:"pageToken,omitempty"`
	PageSize  int            `json:"pageSize,omitempty"`
}

func (s SearchRequest) input(modelID string) (app.SearchInput, error) {
	in := app.SearchInput{
		ModelID:   modelID,
		Metadata:  s.Metadata,
		Ref:       s.Ref,
		PageToken: s.PageToken,
		PageSize:  s.PageSize,
	}
	if s.Filter != nil {
		c, err := condition.FromTree(s.Filter)
		if err != nil {
			return app.SearchInput{}, err
		}
		in.Filter = c
	}
	if s.Sort != nil {
		srt := view.Sort(*s.Sort)
		in.Sort = &srt
	}
	return in, nil
}

// ReferencedResponse lists the items an item references.
type ReferencedResponse struct {
	Items []ReferencedDoc `json:"items"`
}

// ReferencedDoc is one resolved reference.
type ReferencedDoc struct {
	FieldID     string          `json:"fieldId"`
	ItemGroupID string          `json:"itemGroupId,omitempty"`
	Item        wire.VersionDoc `json:"item"`
}

// ListResponse wraps a list of documents.
type ListResponse[T any] struct {
	Items []T `json:"items"`
}

func userID(r *http.Request) string {
	return r.Header.Get(UserHeader)
}

func boolQuery(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}

// pageQuery reads ref, pageToken and pageSize from the query string.
func pageQuery(r *http.Request) (ref, token string, size int, err error) {
	q := r.URL.Query()
	if s := q.Get("pageSize"); s != "" {
		size, err = strconv.Atoi(s)
		if err != nil {
			return "", "", 0, badRequest{err}
		}
	}
	return q.Get("ref"), q.Get("pageToken"), size, nil
}

func param(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}
