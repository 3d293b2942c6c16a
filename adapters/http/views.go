package http

import (
	"net/http"

	"github.com/artpar/cmscore/domain/view"
	"github.com/artpar/cmscore/pkg/wire"
)

func (h *Handler) decodeView(r *http.Request) (view.View, error) {
	var doc wire.ViewDoc
	if err := h.decode(r, &doc); err != nil {
		return view.View{}, err
	}
	return doc.View()
}

func (h *Handler) listViews(w http.ResponseWriter, r *http.Request) {
	views, err := h.views.ListByModel(r.Context(), param(r, "modelID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := ListResponse[wire.ViewDoc]{Items: make([]wire.ViewDoc, len(views))}
	for i, v := range views {
		out.Items[i] = wire.ViewToDoc(v)
	}
	h.respond(w, r, http.StatusOK, out)
}

func (h *Handler) createView(w http.ResponseWriter, r *http.Request) {
	v, err := h.decodeView(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	v.ModelID = param(r, "modelID")
	v.CreatedBy = userID(r)
	saved, err := h.views.Create(r.Context(), v)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, http.StatusCreated, wire.ViewToDoc(saved))
}

// validateView checks a view against the model's schemas without storing it.
func (h *Handler) validateView(w http.ResponseWriter, r *http.Request) {
	v, err := h.decodeView(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	v.ModelID = param(r, "modelID")
	if err := h.views.Validate(r.Context(), v); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getView(w http.ResponseWriter, r *http.Request) {
	v, err := h.views.Get(r.Context(), param(r, "viewID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, wire.ViewToDoc(v))
}

func (h *Handler) updateView(w http.ResponseWriter, r *http.Request) {
	v, err := h.decodeView(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	v.ID = param(r, "viewID")
	saved, err := h.views.Update(r.Context(), v)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, wire.ViewToDoc(saved))
}

func (h *Handler) deleteView(w http.ResponseWriter, r *http.Request) {
	if err := h.views.Delete(r.Context(), param(r, "viewID")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) viewItems(w http.ResponseWriter, r *http.Request) {
	ref, token, size, err := pageQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.views.Search(r.Context(), param(r, "viewID"), ref, token, size)
	h.pageResult(w, r, p, err)
}
