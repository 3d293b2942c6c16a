package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/artpar/cmscore/app"
	"github.com/artpar/cmscore/domain/condition"
	"github.com/artpar/cmscore/domain/field"
	"github.com/artpar/cmscore/domain/item"
	"github.com/artpar/cmscore/domain/reference"
	"github.com/artpar/cmscore/domain/schema"
	"github.com/artpar/cmscore/domain/view"
	"github.com/artpar/cmscore/pkg/cursor"
	"github.com/artpar/cmscore/pkg/wire"
	"github.com/artpar/cmscore/ports"
)

const maxBodySize = 10 << 20

// ErrorSource points at the request member that caused an error.
type ErrorSource struct {
	Pointer   string `json:"pointer,omitempty"`
	Parameter string `json:"parameter,omitempty"`
}

// ErrorObject is one entry of an error document.
type ErrorObject struct {
	Status string         `json:"status"`
	Code   string         `json:"code"`
	Title  string         `json:"title"`
	Detail string         `json:"detail,omitempty"`
	Source *ErrorSource   `json:"source,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// ErrorDocument is the body of every error response.
type ErrorDocument struct {
	Errors []ErrorObject `json:"errors"`
}

var errUnsupportedMedia = errors.New("unsupported content type")

type badRequest struct{ err error }

func (e badRequest) Error() string { return e.err.Error() }
func (e badRequest) Unwrap() error { return e.err }

// writeJSON is used by the health endpoints, which always answer in JSON.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", wire.ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	c := h.codecs.Negotiate(r.Header.Get("Accept"))
	body, err := c.Marshal(v)
	if err != nil {
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("encode response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", c.ContentType())
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (h *Handler) decode(r *http.Request, v any) error {
	c, ok := h.codecs.ForContentType(r.Header.Get("Content-Type"))
	if !ok {
		return errUnsupportedMedia
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return badRequest{fmt.Errorf("read body: %w", err)}
	}
	if len(data) == 0 {
		return badRequest{errors.New("request body is empty")}
	}
	if err := c.Unmarshal(data, v); err != nil {
		return badRequest{fmt.Errorf("decode body: %w", err)}
	}
	return nil
}

// decodeOptional leaves v untouched when the request has no body.
func (h *Handler) decodeOptional(r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return nil
	}
	return h.decode(r, v)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, objs := errorObjects(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
	}
	h.respond(w, r, status, ErrorDocument{Errors: objs})
}

func object(status int, code, title string, err error) ErrorObject {
	return ErrorObject{
		Status: fmt.Sprint(status),
		Code:   code,
		Title:  title,
		Detail: err.Error(),
	}
}

// errorObjects maps a service error to its status and error objects.
func errorObjects(err error) (int, []ErrorObject) {
	var (
		conflict    *item.ConflictError
		validation  *field.ValidationError
		inconsist   *item.InconsistencyError
		malformed   *condition.MalformedError
		invalidAttr *app.InvalidError
		integrity   *schema.IntegrityError
		bad         badRequest
	)

	switch {
	case errors.Is(err, errUnsupportedMedia):
		return http.StatusUnsupportedMediaType, []ErrorObject{object(http.StatusUnsupportedMediaType, "unsupported_media_type", "Unsupported Media Type", err)}

	case errors.As(err, &bad):
		return http.StatusBadRequest, []ErrorObject{object(http.StatusBadRequest, "bad_request", "Bad Request", err)}

	case errors.Is(err, ports.ErrNotFound):
		return http.StatusNotFound, []ErrorObject{object(http.StatusNotFound, "not_found", "Not Found", err)}

	case errors.As(err, &conflict):
		o := object(http.StatusConflict, "version_conflict", "Version Conflict", err)
		o.Meta = map[string]any{"head": conflict.Head}
		return http.StatusConflict, []ErrorObject{o}

	case errors.Is(err, ports.ErrDuplicate):
		return http.StatusConflict, []ErrorObject{object(http.StatusConflict, "duplicate", "Conflict", err)}

	case errors.Is(err, item.ErrReferenced),
		errors.Is(err, app.ErrModelInUse),
		errors.Is(err, schema.ErrGroupReferenced),
		errors.Is(err, schema.ErrCorrespondingRef):
		return http.StatusConflict, []ErrorObject{object(http.StatusConflict, "in_use", "Conflict", err)}

	case errors.Is(err, item.ErrInvalidTransition),
		errors.Is(err, item.ErrNotPublished),
		errors.Is(err, item.ErrDeleted):
		return http.StatusConflict, []ErrorObject{object(http.StatusConflict, "invalid_state", "Conflict", err)}

	case errors.As(err, &validation):
		o := object(http.StatusUnprocessableEntity, string(validation.Code), "Validation Failed", err)
		if validation.Field != "" {
			o.Source = &ErrorSource{Pointer: "/fields/" + validation.Field}
		}
		return http.StatusUnprocessableEntity, []ErrorObject{o}

	case errors.As(err, &invalidAttr):
		keys := make([]string, 0, len(invalidAttr.Errors))
		for k := range invalidAttr.Errors {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		objs := make([]ErrorObject, len(keys))
		for i, k := range keys {
			objs[i] = ErrorObject{
				Status: fmt.Sprint(http.StatusUnprocessableEntity),
				Code:   "invalid_attribute",
				Title:  "Validation Failed",
				Detail: invalidAttr.Errors[k],
				Source: &ErrorSource{Pointer: "/" + k},
			}
		}
		return http.StatusUnprocessableEntity, objs

	case errors.As(err, &integrity):
		o := object(http.StatusUnprocessableEntity, "schema_integrity", "Schema Rejected", err)
		o.Meta = map[string]any{"op": integrity.Op}
		if integrity.Field != "" {
			o.Source = &ErrorSource{Pointer: "/fields/" + integrity.Field}
		}
		return http.StatusUnprocessableEntity, []ErrorObject{o}

	case errors.As(err, &malformed):
		o := object(http.StatusUnprocessableEntity, "malformed_condition", "Malformed Condition", err)
		if malformed.Path != "" {
			o.Source = &ErrorSource{Pointer: "/filter/" + strings.ReplaceAll(malformed.Path, ".", "/")}
		}
		return http.StatusUnprocessableEntity, []ErrorObject{o}

	case errors.As(err, &inconsist):
		o := object(http.StatusUnprocessableEntity, "inconsistent", "Inconsistent Item", err)
		o.Meta = map[string]any{"schemaFieldId": inconsist.SchemaFieldID}
		return http.StatusUnprocessableEntity, []ErrorObject{o}

	case errors.Is(err, app.ErrUnknownField),
		errors.Is(err, app.ErrNotMetadata),
		errors.Is(err, app.ErrNoMetadataSchema),
		errors.Is(err, item.ErrUnknownInstance),
		errors.Is(err, item.ErrNotPermutation),
		errors.Is(err, item.ErrNotGroupField),
		errors.Is(err, schema.ErrNotPermutation),
		errors.Is(err, schema.ErrFieldNotFound),
		errors.Is(err, schema.ErrInvalidTitle),
		errors.Is(err, view.ErrInvalidName),
		errors.Is(err, view.ErrMissingModel),
		errors.Is(err, view.ErrInvalidColumn),
		errors.Is(err, view.ErrDuplicateColumn),
		errors.Is(err, view.ErrInvalidSort),
		errors.Is(err, view.ErrInvalidDirection),
		errors.Is(err, condition.ErrMalformed):
		return http.StatusUnprocessableEntity, []ErrorObject{object(http.StatusUnprocessableEntity, "unprocessable", "Unprocessable Entity", err)}

	case errors.Is(err, cursor.ErrInvalidToken),
		errors.Is(err, app.ErrUnknownRef),
		errors.Is(err, app.ErrVersionRequired),
		errors.Is(err, reference.ErrNotBidirectional),
		errors.Is(err, reference.ErrNotReference):
		return http.StatusBadRequest, []ErrorObject{object(http.StatusBadRequest, "bad_request", "Bad Request", err)}
	}

	return http.StatusInternalServerError, []ErrorObject{{
		Status: fmt.Sprint(http.StatusInternalServerError),
		Code:   "internal_error",
		Title:  "Internal Server Error",
	}}
}
