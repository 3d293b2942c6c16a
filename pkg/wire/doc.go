package wire

import (
	"fmt"
	"time"

	"github.com/artpar/cmscore/domain/condition"
	"github.com/artpar/cmscore/domain/field"
	"github.com/artpar/cmscore/domain/item"
	"github.com/artpar/cmscore/domain/reference"
	"github.com/artpar/cmscore/domain/schema"
	"github.com/artpar/cmscore/domain/value"
	"github.com/artpar/cmscore/domain/view"
	"github.com/artpar/cmscore/ports"
)

// FieldDoc is the document form of a schema field.
type FieldDoc struct {
	ID          string     `json:"id"`
	Key         string     `json:"key"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Type        field.Spec `json:"type"`
	Required    bool       `json:"required,omitempty"`
	Unique      bool       `json:"unique,omitempty"`
	Multiple    bool       `json:"multiple,omitempty"`
	IsTitle     bool       `json:"isTitle,omitempty"`
	Order       int        `json:"order"`
	Default     any        `json:"defaultValue,omitempty"`
}

// FieldToDoc converts a schema field.
func FieldToDoc(f schema.Field) FieldDoc {
	return FieldDoc{
		ID:          f.ID,
		Key:         f.Key,
		Title:       f.Title,
		Description: f.Description,
		Type:        field.SpecOf(f.TypeProperty),
		Required:    f.Required,
		Unique:      f.Unique,
		Multiple:    f.Multiple,
		IsTitle:     f.IsTitle,
		Order:       f.Order,
		Default:     f.Default,
	}
}

// Field converts the document back into a schema field.
func (d FieldDoc) Field() (schema.Field, error) {
	tp, err := d.Type.Build()
	if err != nil {
		return schema.Field{}, fmt.Errorf("field %q: %w", d.Key, err)
	}
	return schema.Field{
		ID:           d.ID,
		Key:          d.Key,
		Title:        d.Title,
		Description:  d.Description,
		TypeProperty: tp,
		Required:     d.Required,
		Unique:       d.Unique,
		Multiple:     d.Multiple,
		IsTitle:      d.IsTitle,
		Order:        d.Order,
		Default:      d.Default,
	}, nil
}

// SchemaDoc is the document form of a schema. Fields are in display order.
type SchemaDoc struct {
	ID     string     `json:"id"`
	Fields []FieldDoc `json:"fields"`
}

// SchemaToDoc converts a schema.
func SchemaToDoc(s schema.Schema) SchemaDoc {
	fields := s.Fields()
	d := SchemaDoc{ID: s.ID, Fields: make([]FieldDoc, len(fields))}
	for i, f := range fields {
		d.Fields[i] = FieldToDoc(f)
	}
	return d
}

// Schema rebuilds the schema, re-checking every schema invariant.
func (d SchemaDoc) Schema() (schema.Schema, error) {
	fields := make([]schema.Field, 0, len(d.Fields))
	for _, fd := range d.Fields {
		f, err := fd.Field()
		if err != nil {
			return schema.Schema{}, err
		}
		fields = append(fields, f)
	}
	return schema.New(d.ID, fields...)
}

// ModelDoc is the document form of a model.
type ModelDoc struct {
	ID               string     `json:"id"`
	Key              string     `json:"key"`
	Name             string     `json:"name"`
	Description      string     `json:"description,omitempty"`
	SchemaID         string     `json:"schemaId"`
	MetadataSchemaID string     `json:"metadataSchemaId,omitempty"`
	Schema           *SchemaDoc `json:"schema,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// ModelToDoc converts a model.
func ModelToDoc(m schema.Model) ModelDoc {
	return ModelDoc{
		ID:               m.ID,
		Key:              m.Key,
		Name:             m.Name,
		Description:      m.Description,
		SchemaID:         m.SchemaID,
		MetadataSchemaID: m.MetadataSchemaID,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// Model converts the document back into a model.
func (d ModelDoc) Model() schema.Model {
	return schema.Model{
		ID:               d.ID,
		Key:              d.Key,
		Name:             d.Name,
		Description:      d.Description,
		SchemaID:         d.SchemaID,
		MetadataSchemaID: d.MetadataSchemaID,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

// GroupDoc is the document form of a group.
type GroupDoc struct {
	ID          string     `json:"id"`
	Key         string     `json:"key"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	SchemaID    string     `json:"schemaId"`
	Schema      *SchemaDoc `json:"schema,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// GroupToDoc converts a group.
func GroupToDoc(g schema.Group) GroupDoc {
	return GroupDoc{
		ID:          g.ID,
		Key:         g.Key,
		Name:        g.Name,
		Description: g.Description,
		SchemaID:    g.SchemaID,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}
}

// Group converts the document back into a group.
func (d GroupDoc) Group() schema.Group {
	return schema.Group{
		ID:          d.ID,
		Key:         d.Key,
		Name:        d.Name,
		Description: d.Description,
		SchemaID:    d.SchemaID,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// ItemFieldDoc is one stored field value. Value is a scalar (null when
// cleared) for single fields and a list for multiple fields.
type ItemFieldDoc struct {
	SchemaFieldID string     `json:"schemaFieldId"`
	ItemGroupID   string     `json:"itemGroupId,omitempty"`
	Kind          field.Kind `json:"kind"`
	Multiple      bool       `json:"multiple,omitempty"`
	Value         any        `json:"value"`
}

// ValueToDoc flattens a stored value.
func ValueToDoc(v value.Value) any {
	if v.Multiple {
		items := make([]any, len(v.Items))
		copy(items, v.Items)
		return items
	}
	if len(v.Items) == 0 {
		return nil
	}
	return v.Items[0]
}

// ValueFromDoc canonicalizes a decoded value of the given kind.
func ValueFromDoc(kind field.Kind, multiple bool, raw any) (value.Value, error) {
	if !kind.IsValid() || !kind.HoldsValue() {
		return value.Value{}, fmt.Errorf("value kind %q holds no value", kind)
	}
	out := value.Value{Kind: kind, Multiple: multiple, Items: []any{}}
	var elems []any
	switch {
	case raw == nil:
	case multiple:
		list, ok := raw.([]any)
		if !ok {
			return value.Value{}, fmt.Errorf("multiple %s value is not a list", kind)
		}
		elems = list
	default:
		elems = []any{raw}
	}
	for _, e := range elems {
		c, err := field.Normalize(kind, e)
		if err != nil {
			return value.Value{}, err
		}
		out.Items = append(out.Items, c)
	}
	return out, nil
}

// ItemDoc is the document form of an item snapshot.
type ItemDoc struct {
	ID         string              `json:"id"`
	ModelID    string              `json:"modelId"`
	SchemaID   string              `json:"schemaId"`
	Status     item.Status         `json:"status"`
	Version    string              `json:"version"`
	Fields     []ItemFieldDoc      `json:"fields"`
	GroupOrder map[string][]string `json:"groupOrder,omitempty"`
	MetadataID string              `json:"metadataId,omitempty"`
	ThreadID   string              `json:"threadId,omitempty"`
	CreatedBy  string              `json:"createdBy,omitempty"`
	UpdatedBy  string              `json:"updatedBy,omitempty"`
	CreatedAt  time.Time           `json:"createdAt"`
	UpdatedAt  time.Time           `json:"updatedAt"`
}

// ItemToDoc converts an item.
func ItemToDoc(it item.Item) ItemDoc {
	d := ItemDoc{
		ID:         it.ID,
		ModelID:    it.ModelID,
		SchemaID:   it.SchemaID,
		Status:     it.Status,
		Version:    it.Version,
		Fields:     make([]ItemFieldDoc, len(it.Fields)),
		MetadataID: it.MetadataID,
		ThreadID:   it.ThreadID,
		CreatedBy:  it.CreatedBy,
		UpdatedBy:  it.UpdatedBy,
		CreatedAt:  it.CreatedAt,
		UpdatedAt:  it.UpdatedAt,
	}
	for i, f := range it.Fields {
		d.Fields[i] = ItemFieldDoc{
			SchemaFieldID: f.SchemaFieldID,
			ItemGroupID:   f.ItemGroupID,
			Kind:          f.Value.Kind,
			Multiple:      f.Value.Multiple,
			Value:         ValueToDoc(f.Value),
		}
	}
	if len(it.GroupOrder) > 0 {
		d.GroupOrder = make(map[string][]string, len(it.GroupOrder))
		for k, ids := range it.GroupOrder {
			d.GroupOrder[k] = append([]string(nil), ids...)
		}
	}
	return d
}

// Item converts the document back into an item with canonical values.
func (d ItemDoc) Item() (item.Item, error) {
	it := item.Item{
		ID:         d.ID,
		ModelID:    d.ModelID,
		SchemaID:   d.SchemaID,
		Status:     d.Status,
		Version:    d.Version,
		Fields:     make([]item.Field, 0, len(d.Fields)),
		MetadataID: d.MetadataID,
		ThreadID:   d.ThreadID,
		CreatedBy:  d.CreatedBy,
		UpdatedBy:  d.UpdatedBy,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
	for _, fd := range d.Fields {
		v, err := ValueFromDoc(fd.Kind, fd.Multiple, fd.Value)
		if err != nil {
			return item.Item{}, fmt.Errorf("item %s field %s: %w", d.ID, fd.SchemaFieldID, err)
		}
		it.Fields = append(it.Fields, item.Field{SchemaFieldID: fd.SchemaFieldID, ItemGroupID: fd.ItemGroupID, Value: v})
	}
	if len(d.GroupOrder) > 0 {
		it.GroupOrder = make(map[string][]string, len(d.GroupOrder))
		for k, ids := range d.GroupOrder {
			it.GroupOrder[k] = append([]string(nil), ids...)
		}
	}
	return it, nil
}

// VersionDoc is the document form of an item version.
type VersionDoc struct {
	ID        string      `json:"id"`
	ItemID    string      `json:"itemId"`
	Parents   []string    `json:"parents"`
	Refs      []string    `json:"refs"`
	Action    item.Action `json:"action"`
	Value     ItemDoc     `json:"value"`
	CreatedAt time.Time   `json:"createdAt"`
}

// VersionToDoc converts a version.
func VersionToDoc(v item.Version) VersionDoc {
	return VersionDoc{
		ID:        v.ID,
		ItemID:    v.ItemID,
		Parents:   nonNil(v.Parents),
		Refs:      nonNil(v.Refs),
		Action:    v.Action,
		Value:     ItemToDoc(v.Value),
		CreatedAt: v.CreatedAt,
	}
}

// Version converts the document back into a version.
func (d VersionDoc) Version() (item.Version, error) {
	it, err := d.Value.Item()
	if err != nil {
		return item.Version{}, err
	}
	return item.Version{
		ID:        d.ID,
		ItemID:    d.ItemID,
		Parents:   append([]string(nil), d.Parents...),
		Refs:      append([]string(nil), d.Refs...),
		Action:    d.Action,
		Value:     it,
		CreatedAt: d.CreatedAt,
	}, nil
}

// VersionsToDoc converts a list of versions.
func VersionsToDoc(vs []item.Version) []VersionDoc {
	out := make([]VersionDoc, len(vs))
	for i, v := range vs {
		out[i] = VersionToDoc(v)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append([]string(nil), s...)
}

// LinkDoc is the document form of a bidirectional reference link.
type LinkDoc struct {
	ID            string `json:"id"`
	SourceModelID string `json:"sourceModelId"`
	SourceFieldID string `json:"sourceFieldId"`
	TargetModelID string `json:"targetModelId"`
	TargetFieldID string `json:"targetFieldId"`
}

// LinkToDoc converts a link.
func LinkToDoc(l reference.Link) LinkDoc {
	return LinkDoc(l)
}

// Link converts the document back into a link.
func (d LinkDoc) Link() reference.Link {
	return reference.Link(d)
}

// ColumnDoc is one view column.
type ColumnDoc struct {
	Field   condition.FieldSelector `json:"field"`
	Visible bool                    `json:"visible"`
}

// SortDoc is a view sort.
type SortDoc struct {
	Field     condition.FieldSelector `json:"field"`
	Direction view.Direction          `json:"direction"`
}

// ViewDoc is the document form of a view. Filter is a condition tree.
type ViewDoc struct {
	ID        string         `json:"id"`
	ModelID   string         `json:"modelId"`
	Name      string         `json:"name"`
	Order     int            `json:"order"`
	Columns   []ColumnDoc    `json:"columns"`
	Sort      *SortDoc       `json:"sort,omitempty"`
	Filter    map[string]any `json:"filter,omitempty"`
	CreatedBy string         `json:"createdBy,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// ViewToDoc converts a view.
func ViewToDoc(v view.View) ViewDoc {
	d := ViewDoc{
		ID:        v.ID,
		ModelID:   v.ModelID,
		Name:      v.Name,
		Order:     v.Order,
		Columns:   make([]ColumnDoc, len(v.Columns)),
		CreatedBy: v.CreatedBy,
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.UpdatedAt,
	}
	for i, c := range v.Columns {
		d.Columns[i] = ColumnDoc(c)
	}
	if v.Sort != nil {
		s := SortDoc(*v.Sort)
		d.Sort = &s
	}
	if v.Filter != nil {
		d.Filter = condition.ToTree(v.Filter)
	}
	return d
}

// View converts the document back into a view.
func (d ViewDoc) View() (view.View, error) {
	v := view.View{
		ID:        d.ID,
		ModelID:   d.ModelID,
		Name:      d.Name,
		Order:     d.Order,
		Columns:   make([]view.Column, len(d.Columns)),
		CreatedBy: d.CreatedBy,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	for i, c := range d.Columns {
		v.Columns[i] = view.Column(c)
	}
	if d.Sort != nil {
		s := view.Sort(*d.Sort)
		v.Sort = &s
	}
	if d.Filter != nil {
		c, err := condition.FromTree(d.Filter)
		if err != nil {
			return view.View{}, err
		}
		v.Filter = c
	}
	return v, nil
}

// PageDoc is one page of search results.
type PageDoc struct {
	Items       []VersionDoc `json:"items"`
	TotalCount  int          `json:"totalCount"`
	NextToken   string       `json:"nextToken,omitempty"`
	PrevToken   string       `json:"prevToken,omitempty"`
	HasNext     bool         `json:"hasNext"`
	HasPrevious bool         `json:"hasPrevious"`
}

// PageToDoc converts a search page.
func PageToDoc(p ports.Page) PageDoc {
	return PageDoc{
		Items:       VersionsToDoc(p.Items),
		TotalCount:  p.TotalCount,
		NextToken:   p.NextToken,
		PrevToken:   p.PrevToken,
		HasNext:     p.HasNext,
		HasPrevious: p.HasPrevious,
	}
}
