package item

import "fmt"

// Status is the lifecycle state of an item.
type Status string

const (
	StatusDraft        Status = "DRAFT"
	StatusReview       Status = "REVIEW"
	StatusPublicDraft  Status = "PUBLIC_DRAFT"
	StatusPublicReview Status = "PUBLIC_REVIEW"
	StatusPublic       Status = "PUBLIC"
)

// IsPublic returns true if a published version exists for this status.
func (s Status) IsPublic() bool {
	return s == StatusPublic || s == StatusPublicDraft || s == StatusPublicReview
}

// IsValid returns true for a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusReview, StatusPublicDraft, StatusPublicReview, StatusPublic:
		return true
	}
	return false
}

// Action is a mutation that produces a new version.
type Action string

const (
	ActionCreate        Action = "create"
	ActionUpdate        Action = "update"
	ActionRequestReview Action = "request_review"
	ActionCancelReview  Action = "cancel_review"
	ActionPublish       Action = "publish"
	ActionUnpublish     Action = "unpublish"
)

// Transition returns the status reached by applying a to an item in status s.
//
//	create:         -> DRAFT
//	update:         PUBLIC -> PUBLIC_DRAFT, otherwise unchanged
//	request_review: DRAFT -> REVIEW, PUBLIC/PUBLIC_DRAFT -> PUBLIC_REVIEW
//	cancel_review:  REVIEW -> DRAFT, PUBLIC_REVIEW -> PUBLIC_DRAFT
//	publish:        any -> PUBLIC
//	unpublish:      PUBLIC* -> DRAFT
func Transition(s Status, a Action) (Status, error) {
	switch a {
	case ActionCreate:
		return StatusDraft, nil
	case ActionUpdate:
		if s == StatusPublic {
			return StatusPublicDraft, nil
		}
		if s.IsValid() {
			return s, nil
		}
	case ActionRequestReview:
		switch s {
		case StatusDraft:
			return StatusReview, nil
		case StatusPublic, StatusPublicDraft:
			return StatusPublicReview, nil
		}
	case ActionCancelReview:
		switch s {
		case StatusReview:
			return StatusDraft, nil
		case StatusPublicReview:
			return StatusPublicDraft, nil
		}
	case ActionPublish:
		if s.IsValid() {
			return StatusPublic, nil
		}
	case ActionUnpublish:
		if s.IsPublic() {
			return StatusDraft, nil
		}
		return s, ErrNotPublished
	}
	return s, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, a, s)
}
