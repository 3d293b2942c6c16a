// Package view provides saved views: the columns, sort and filter an
// operator uses to browse a model's items.
package view

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/artpar/cmscore/domain/condition"
	"github.com/artpar/cmscore/domain/field"
)

var (
	ErrInvalidName      = errors.New("view name is required")
	ErrMissingModel     = errors.New("view needs a model")
	ErrInvalidColumn    = errors.New("invalid column")
	ErrDuplicateColumn  = errors.New("duplicate column")
	ErrInvalidSort      = errors.New("invalid sort")
	ErrInvalidDirection = errors.New("sort direction must be ASC or DESC")
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// Column is one displayed column.
type Column struct {
	Field   condition.FieldSelector
	Visible bool
}

// Sort orders items by one target.
type Sort struct {
	Field     condition.FieldSelector
	Direction Direction
}

// View is a saved browse configuration for a model.
type View struct {
	ID        string
	ModelID   string
	Name      string
	Order     int
	Columns   []Column
	Sort      *Sort
	Filter    condition.Condition // nil matches every item
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DefaultSort orders by creation date, newest first.
var DefaultSort = Sort{Field: condition.Meta(condition.SelectorCreationDate), Direction: Desc}

// EffectiveSort returns the view's sort or DefaultSort.
func (v View) EffectiveSort() Sort {
	if v.Sort == nil {
		return DefaultSort
	}
	return *v.Sort
}

// Validate checks the view against the model's schemas.
func Validate(v View, r condition.Resolver) error {
	if strings.TrimSpace(v.Name) == "" {
		return ErrInvalidName
	}
	if v.ModelID == "" {
		return ErrMissingModel
	}

	seen := make(map[condition.FieldSelector]bool, len(v.Columns))
	for i, c := range v.Columns {
		if seen[c.Field] {
			return fmt.Errorf("%w: %s", ErrDuplicateColumn, c.Field)
		}
		seen[c.Field] = true
		if _, err := condition.Resolve(c.Field, r); err != nil {
			return fmt.Errorf("%w %d (%s): %v", ErrInvalidColumn, i, c.Field, err)
		}
	}

	if v.Sort != nil {
		if v.Sort.Direction != Asc && v.Sort.Direction != Desc {
			return ErrInvalidDirection
		}
		t, err := condition.Resolve(v.Sort.Field, r)
		if err != nil {
			return fmt.Errorf("%w (%s): %v", ErrInvalidSort, v.Sort.Field, err)
		}
		if t.Field != nil {
			k := t.Field.Kind()
			if k == field.KindGroup || k.IsGeometry() || t.Field.Multiple {
				return fmt.Errorf("%w: cannot sort by %s field %s", ErrInvalidSort, k, v.Sort.Field)
			}
		}
	}

	if v.Filter != nil {
		return condition.Validate(v.Filter, r)
	}
	return nil
}
