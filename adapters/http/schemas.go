package http

import (
	"net/http"

	"github.com/artpar/cmscore/app"
	"github.com/artpar/cmscore/domain/schema"
	"github.com/artpar/cmscore/pkg/wire"
)

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (h *Handler) modelDoc(r *http.Request, m schema.Model) (wire.ModelDoc, error) {
	d := wire.ModelToDoc(m)
	sc, err := h.schemas.GetSchema(r.Context(), m.SchemaID)
	if err != nil {
		return d, err
	}
	sd := wire.SchemaToDoc(sc)
	d.Schema = &sd
	return d, nil
}

func (h *Handler) listModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.schemas.ListModels(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := ListResponse[wire.ModelDoc]{Items: make([]wire.ModelDoc, len(models))}
	for i, m := range models {
		out.Items[i] = wire.ModelToDoc(m)
	}
	h.respond(w, r, http.StatusOK, out)
}

func (h *Handler) createModel(w http.ResponseWriter, r *http.Request) {
	var req ModelRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	m, err := h.schemas.CreateModel(r.Context(), app.ModelInput{
		Key:         deref(req.Key),
		Name:        deref(req.Name),
		Description: deref(req.Description),
		Metadata:    req.Metadata,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	d, err := h.modelDoc(r, m)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, http.StatusCreated, d)
}

func (h *Handler) getModel(w http.ResponseWriter, r *http.Request) {
	m, err := h.schemas.GetModel(r.Context(), param(r, "modelID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	d, err := h.modelDoc(r, m)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, d)
}

func (h *Handler) updateModel(w http.ResponseWriter, r *http.Request) {
	var req ModelRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	m, err := h.schemas.UpdateModel(r.Context(), param(r, "modelID"), app.ModelUpdate{
		Key:         req.Key,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, wire.ModelToDoc(m))
}

func (h *Handler) deleteModel(w http.ResponseWriter, r *http.Request) {
	if err := h.schemas.DeleteModel(r.Context(), param(r, "modelID")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) groupDoc(r *http.Request, g schema.Group) (wire.GroupDoc, error) {
	d := wire.GroupToDoc(g)
	sc, err := h.schemas.GetSchema(r.Context(), g.SchemaID)
	if err != nil {
		return d, err
	}
	sd := wire.SchemaToDoc(sc)
	d.Schema = &sd
	return d, nil
}

func (h *Handler) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.schemas.ListGroups(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := ListResponse[wire.GroupDoc]{Items: make([]wire.GroupDoc, len(groups))}
	for i, g := range groups {
		out.Items[i] = wire.GroupToDoc(g)
	}
	h.respond(w, r, http.StatusOK, out)
}

func (h *Handler) createGroup(w http.ResponseWriter, r *http.Request) {
	var req GroupRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	g, err := h.schemas.CreateGroup(r.Context(), app.GroupInput{
		Key:         deref(req.Key),
		Name:        deref(req.Name),
		Description: deref(req.Description),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	d, err := h.groupDoc(r, g)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, http.StatusCreated, d)
}

func (h *Handler) getGroup(w http.ResponseWriter, r *http.Request) {
	g, err := h.schemas.GetGroup(r.Context(), param(r, "groupID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	d, err := h.groupDoc(r, g)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, d)
}

func (h *Handler) updateGroup(w http.ResponseWriter, r *http.Request) {
	var req GroupRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	g, err := h.schemas.UpdateGroup(r.Context(), param(r, "groupID"), app.GroupUpdate{
		Key:         req.Key,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, wire.GroupToDoc(g))
}

func (h *Handler) deleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.schemas.DeleteGroup(r.Context(), param(r, "groupID"), boolQuery(r, "cascade")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getSchema(w http.ResponseWriter, r *http.Request) {
	sc, err := h.schemas.GetSchema(r.Context(), param(r, "schemaID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, wire.SchemaToDoc(sc))
}

func (h *Handler) schemaResult(w http.ResponseWriter, r *http.Request, status int, sc schema.Schema, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, status, wire.SchemaToDoc(sc))
}

func (h *Handler) decodeField(r *http.Request) (schema.Field, error) {
	var doc wire.FieldDoc
	if err := h.decode(r, &doc); err != nil {
		return schema.Field{}, err
	}
	f, err := doc.Field()
	if err != nil {
		return schema.Field{}, badRequest{err}
	}
	return f, nil
}

func (h *Handler) addField(w http.ResponseWriter, r *http.Request) {
	f, err := h.decodeField(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sc, err := h.schemas.AddField(r.Context(), param(r, "schemaID"), f)
	h.schemaResult(w, r, http.StatusCreated, sc, err)
}

func (h *Handler) updateField(w http.ResponseWriter, r *http.Request) {
	f, err := h.decodeField(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	f.ID = param(r, "fieldID")
	sc, err := h.schemas.UpdateField(r.Context(), param(r, "schemaID"), f)
	h.schemaResult(w, r, http.StatusOK, sc, err)
}

func (h *Handler) removeField(w http.ResponseWriter, r *http.Request) {
	sc, err := h.schemas.RemoveField(r.Context(), param(r, "schemaID"), param(r, "fieldID"), boolQuery(r, "cascade"))
	h.schemaResult(w, r, http.StatusOK, sc, err)
}

func (h *Handler) reorderFields(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	sc, err := h.schemas.ReorderFields(r.Context(), param(r, "schemaID"), req.Order)
	h.schemaResult(w, r, http.StatusOK, sc, err)
}

func (h *Handler) setTitleField(w http.ResponseWriter, r *http.Request) {
	var req TitleRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	sc, err := h.schemas.SetTitleField(r.Context(), param(r, "schemaID"), req.FieldID)
	h.schemaResult(w, r, http.StatusOK, sc, err)
}
