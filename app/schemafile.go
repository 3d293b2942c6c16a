package app

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/artpar/cmscore/domain/field"
	"github.com/artpar/cmscore/domain/schema"
	"github.com/artpar/cmscore/ports"
)

// SchemaFile is a declarative set of groups and models. Reference and group
// targets name models and groups by key.
//
//	groups:
//	  - key: seo
//	    name: SEO
//	    fields:
//	      - {key: slug, title: Slug, type: text}
//	models:
//	  - key: post
//	    name: Post
//	    fields:
//	      - {key: title, title: Title, type: text, required: true, isTitle: true}
//	      - {key: seo, title: SEO, type: group, group: seo}
//	      - key: author
//	        title: Author
//	        type: reference
//	        model: author
//	        correspondingField: {key: posts, title: Posts}
type SchemaFile struct {
	Groups []GroupEntry `yaml:"groups"`
	Models []ModelEntry `yaml:"models"`
}

// GroupEntry declares a group and its fields.
type GroupEntry struct {
	Key         string       `yaml:"key"`
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Fields      []FieldEntry `yaml:"fields"`
}

// ModelEntry declares a model, its fields and its metadata fields.
type ModelEntry struct {
	Key            string       `yaml:"key"`
	Name           string       `yaml:"name"`
	Description    string       `yaml:"description"`
	Fields         []FieldEntry `yaml:"fields"`
	MetadataFields []FieldEntry `yaml:"metadataFields"`
}

// FieldEntry declares one field. The type keys are inlined.
type FieldEntry struct {
	Key         string     `yaml:"key"`
	Title       string     `yaml:"title"`
	Description string     `yaml:"description"`
	Spec        field.Spec `yaml:",inline"`
	Required    bool       `yaml:"required"`
	Unique      bool       `yaml:"unique"`
	Multiple    bool       `yaml:"multiple"`
	IsTitle     bool       `yaml:"isTitle"`
	Default     any        `yaml:"default"`
}

// ParseSchemaFile decodes a YAML schema file.
func ParseSchemaFile(data []byte) (SchemaFile, error) {
	var f SchemaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return SchemaFile{}, fmt.Errorf("parse schema file: %w", err)
	}
	return f, nil
}

// Problem is one rejected entry of a schema file.
type Problem struct {
	Path string // e.g. "models.post.fields.author"
	Err  error
}

func (p Problem) Error() string { return p.Path + ": " + p.Err.Error() }

// ApplyReport summarizes an ApplyFile run.
type ApplyReport struct {
	GroupsCreated int
	ModelsCreated int
	FieldsAdded   int
	Skipped       int // entries already present by key
	Problems      []Problem
}

// OK returns true if nothing was rejected.
func (r ApplyReport) OK() bool { return len(r.Problems) == 0 }

// ApplyFile creates the groups, models and fields of f that do not exist yet.
// Groups and models are matched by key, fields by key within their schema.
// A rejected entry is recorded and the rest of the file still applies.
func (s *SchemaService) ApplyFile(ctx context.Context, f SchemaFile) (ApplyReport, error) {
	var r ApplyReport
	groups := make(map[string]schema.Group)
	models := make(map[string]schema.Model)

	for _, g := range f.Groups {
		got, created, err := s.ensureGroup(ctx, g)
		if err != nil {
			if !r.problem("groups."+g.Key, err) {
				return r, err
			}
			continue
		}
		if created {
			r.GroupsCreated++
		} else {
			r.Skipped++
		}
		groups[g.Key] = got
	}

	for _, m := range f.Models {
		got, created, err := s.ensureModel(ctx, m)
		if err != nil {
			if !r.problem("models."+m.Key, err) {
				return r, err
			}
			continue
		}
		if created {
			r.ModelsCreated++
		} else {
			r.Skipped++
		}
		models[m.Key] = got
	}

	// Fields go in after every model exists so references may point forward.
	for _, g := range f.Groups {
		if grp, ok := groups[g.Key]; ok {
			if err := s.applyFields(ctx, &r, "groups."+g.Key+".fields", grp.SchemaID, g.Fields); err != nil {
				return r, err
			}
		}
	}
	for _, m := range f.Models {
		mod, ok := models[m.Key]
		if !ok {
			continue
		}
		if err := s.applyFields(ctx, &r, "models."+m.Key+".fields", mod.SchemaID, m.Fields); err != nil {
			return r, err
		}
		if len(m.MetadataFields) == 0 {
			continue
		}
		if !mod.HasMetadata() {
			r.problem("models."+m.Key+".metadataFields", ErrNoMetadataSchema)
			continue
		}
		if err := s.applyFields(ctx, &r, "models."+m.Key+".metadataFields", mod.MetadataSchemaID, m.MetadataFields); err != nil {
			return r, err
		}
	}

	return r, nil
}

// problem records err when it is a rejection and reports whether it was one.
func (r *ApplyReport) problem(path string, err error) bool {
	if !rejected(err) {
		return false
	}
	r.Problems = append(r.Problems, Problem{Path: path, Err: err})
	return true
}

func rejected(err error) bool {
	var (
		ie *schema.IntegrityError
		ve *field.ValidationError
		ae *InvalidError
	)
	return errors.As(err, &ie) || errors.As(err, &ve) || errors.As(err, &ae) ||
		errors.Is(err, ErrNoMetadataSchema) || errors.Is(err, errUnknownTarget) ||
		errors.Is(err, errBadFieldType)
}

var (
	errUnknownTarget = errors.New("unknown target key")
	errBadFieldType  = errors.New("bad field type")
)

func (s *SchemaService) ensureGroup(ctx context.Context, g GroupEntry) (schema.Group, bool, error) {
	if got, err := s.groups.GetByKey(ctx, g.Key); err == nil {
		return got, false, nil
	} else if !errors.Is(err, ports.ErrNotFound) {
		return schema.Group{}, false, err
	}
	got, err := s.CreateGroup(ctx, GroupInput{Key: g.Key, Name: g.Name, Description: g.Description})
	return got, err == nil, err
}

func (s *SchemaService) ensureModel(ctx context.Context, m ModelEntry) (schema.Model, bool, error) {
	if got, err := s.models.GetByKey(ctx, m.Key); err == nil {
		return got, false, nil
	} else if !errors.Is(err, ports.ErrNotFound) {
		return schema.Model{}, false, err
	}
	got, err := s.CreateModel(ctx, ModelInput{
		Key:         m.Key,
		Name:        m.Name,
		Description: m.Description,
		Metadata:    len(m.MetadataFields) > 0,
	})
	return got, err == nil, err
}

func (s *SchemaService) applyFields(ctx context.Context, r *ApplyReport, path, schemaID string, entries []FieldEntry) error {
	for _, e := range entries {
		p := path + "." + e.Key

		sc, err := s.GetSchema(ctx, schemaID)
		if err != nil {
			return err
		}
		if _, exists := sc.FieldByKey(e.Key); exists {
			r.Skipped++
			continue
		}

		f, err := s.fieldFromEntry(ctx, e)
		if err == nil {
			_, err = s.AddField(ctx, schemaID, f)
		}
		if err != nil {
			if !r.problem(p, err) {
				return err
			}
			continue
		}
		r.FieldsAdded++
	}
	return nil
}

// fieldFromEntry resolves target keys to ids and builds the type property.
func (s *SchemaService) fieldFromEntry(ctx context.Context, e FieldEntry) (schema.Field, error) {
	spec := e.Spec
	if spec.ModelID != "" {
		m, err := s.models.GetByKey(ctx, spec.ModelID)
		if errors.Is(err, ports.ErrNotFound) {
			return schema.Field{}, fmt.Errorf("model %q: %w", spec.ModelID, errUnknownTarget)
		} else if err != nil {
			return schema.Field{}, err
		}
		spec.ModelID = m.ID
		spec.SchemaID = ""
	}
	if spec.GroupID != "" {
		g, err := s.groups.GetByKey(ctx, spec.GroupID)
		if errors.Is(err, ports.ErrNotFound) {
			return schema.Field{}, fmt.Errorf("group %q: %w", spec.GroupID, errUnknownTarget)
		} else if err != nil {
			return schema.Field{}, err
		}
		spec.GroupID = g.ID
	}

	tp, err := spec.Build()
	if err != nil {
		return schema.Field{}, fmt.Errorf("%w: %v", errBadFieldType, err)
	}
	return schema.Field{
		Key:          e.Key,
		Title:        e.Title,
		Description:  e.Description,
		TypeProperty: tp,
		Required:     e.Required,
		Unique:       e.Unique,
		Multiple:     e.Multiple,
		IsTitle:      e.IsTitle,
		Default:      e.Default,
	}, nil
}
