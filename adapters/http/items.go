package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/artpar/cmscore/app"
	"github.com/artpar/cmscore/domain/item"
	"github.com/artpar/cmscore/pkg/wire"
	"github.com/artpar/cmscore/ports"
)

func (h *Handler) versionResult(w http.ResponseWriter, r *http.Request, status int, v item.Version, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, status, wire.VersionToDoc(v))
}

func (h *Handler) pageResult(w http.ResponseWriter, r *http.Request, p ports.Page, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, wire.PageToDoc(p))
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	ref, token, size, err := pageQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	modelID := param(r, "modelID")
	if boolQuery(r, "metadata") {
		p, err := h.items.Search(r.Context(), app.SearchInput{
			ModelID: modelID, Metadata: true, Ref: ref, PageToken: token, PageSize: size,
		})
		h.pageResult(w, r, p, err)
		return
	}
	p, err := h.items.LookupByModel(r.Context(), modelID, ref, token, size)
	h.pageResult(w, r, p, err)
}

func (h *Handler) searchItems(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	in, err := req.input(param(r, "modelID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.items.Search(r.Context(), in)
	h.pageResult(w, r, p, err)
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	var req ItemRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	v, err := h.items.Create(r.Context(), app.CreateItemInput{
		ModelID:    param(r, "modelID"),
		Metadata:   req.Metadata,
		Fields:     fieldInputs(req.Fields),
		Instances:  req.Instances,
		MetadataID: deref(req.MetadataID),
		ThreadID:   req.ThreadID,
		UserID:     userID(r),
	})
	h.versionResult(w, r, http.StatusCreated, v, err)
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	at := r.URL.Query().Get("at")
	if at == "" {
		at = item.RefLatest
	}
	v, err := h.items.GetAt(r.Context(), param(r, "itemID"), at)
	h.versionResult(w, r, http.StatusOK, v, err)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	var req ItemRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	v, err := h.items.Update(r.Context(), app.UpdateItemInput{
		ItemID:     param(r, "itemID"),
		Version:    req.Version,
		Fields:     fieldInputs(req.Fields),
		Instances:  req.Instances,
		MetadataID: req.MetadataID,
		UserID:     userID(r),
	})
	h.versionResult(w, r, http.StatusOK, v, err)
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.items.Delete(r.Context(), param(r, "itemID"), boolQuery(r, "cascade")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) itemHistory(w http.ResponseWriter, r *http.Request) {
	vs, err := h.items.History(r.Context(), param(r, "itemID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, ListResponse[wire.VersionDoc]{Items: wire.VersionsToDoc(vs)})
}

func (h *Handler) referencedItems(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("ref")
	switch ref {
	case "":
		ref = item.RefLatest
	case item.RefLatest, item.RefPublished:
	default:
		h.fail(w, r, fmt.Errorf("%w: %s", app.ErrUnknownRef, ref))
		return
	}
	v, err := h.items.GetAt(r.Context(), param(r, "itemID"), ref)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resolved, err := h.refs.ResolveReferencedItems(r.Context(), v.Value, ref)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := ReferencedResponse{Items: make([]ReferencedDoc, len(resolved))}
	for i, rv := range resolved {
		out.Items[i] = ReferencedDoc{FieldID: rv.FieldID, ItemGroupID: rv.ItemGroupID, Item: wire.VersionToDoc(rv.Item)}
	}
	h.respond(w, r, http.StatusOK, out)
}

func (h *Handler) publishItems(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	in := make([]app.PublishInput, len(req.Items))
	for i, it := range req.Items {
		in[i] = app.PublishInput{ItemID: it.ID, Version: it.Version}
	}
	results := h.items.Publish(r.Context(), in, userID(r))
	out := ListResponse[PublishResultDoc]{Items: make([]PublishResultDoc, len(results))}
	for i, res := range results {
		d := PublishResultDoc{ID: res.ItemID}
		if res.Err != nil {
			_, objs := errorObjects(res.Err)
			d.Error = &objs[0]
		} else {
			vd := wire.VersionToDoc(res.Version)
			d.Version = &vd
		}
		out.Items[i] = d
	}
	h.respond(w, r, http.StatusOK, out)
}

type transitionFunc func(ctx context.Context, itemID, version, userID string) (item.Version, error)

func (h *Handler) transition(fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VersionRequest
		if err := h.decodeOptional(r, &req); err != nil {
			h.fail(w, r, err)
			return
		}
		v, err := fn(r.Context(), param(r, "itemID"), req.Version, userID(r))
		h.versionResult(w, r, http.StatusOK, v, err)
	}
}

func (h *Handler) addInstance(w http.ResponseWriter, r *http.Request) {
	var req InstanceRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	v, id, err := h.items.AddInstance(r.Context(), app.InstanceInput{
		ItemID:      param(r, "itemID"),
		Version:     req.Version,
		GroupField:  param(r, "groupField"),
		ItemGroupID: req.ItemGroupID,
		Fields:      fieldInputs(req.Fields),
		UserID:      userID(r),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, http.StatusCreated, InstanceResponse{ItemGroupID: id, Version: wire.VersionToDoc(v)})
}

func (h *Handler) removeInstance(w http.ResponseWriter, r *http.Request) {
	v, err := h.items.RemoveInstance(r.Context(),
		param(r, "itemID"),
		r.URL.Query().Get("version"),
		param(r, "groupField"),
		param(r, "itemGroupID"),
		userID(r))
	h.versionResult(w, r, http.StatusOK, v, err)
}

func (h *Handler) reorderInstances(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	v, err := h.items.ReorderInstances(r.Context(), param(r, "itemID"), req.Version, param(r, "groupField"), req.Order, userID(r))
	h.versionResult(w, r, http.StatusOK, v, err)
}
