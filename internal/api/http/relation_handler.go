package http

import (
	"net/http"

	"github.com/google/uuid"

	"peer-rental-core/internal/domain"
)

// SetRelation is an idempotent toggle: the body names the desired state,
// not a flip.
func (h *Handler) SetRelation(w http.ResponseWriter, r *http.Request) {
	email, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req relationRequest
	if err := bind(r, &req, h.validate); err != nil {
		writeError(w, err)
		return
	}
	var surrogate uuid.UUID
	if req.ID != "" {
		id, err := uuid.Parse(req.ID)
		if err != nil {
			writeError(w, domain.NewValidationError("set_relation", "relation id %q is not a uuid", req.ID))
			return
		}
		surrogate = id
	}
	key := domain.RelationKey{Kind: domain.RelationKind(req.Kind), ActorEmail: email, Target: req.Target}
	rel, err := h.svc.Relations.SetRelation(r.Context(), key, *req.Active, surrogate)
	if err != nil {
		writeError(w, err)
		return
	}
	if rel == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

func (h *Handler) ListRelations(w http.ResponseWriter, r *http.Request) {
	email, ok := h.caller(w, r)
	if !ok {
		return
	}
	kind := domain.RelationKind(r.URL.Query().Get("kind"))
	rels, err := h.svc.Relations.ListRelations(r.Context(), kind, email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageResponse[domain.Relation]{Items: rels, Total: int32(len(rels)), Page: 1})
}
