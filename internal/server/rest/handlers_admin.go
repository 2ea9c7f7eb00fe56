package rest

import (
	"net/http"

	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/go-chi/chi/v5"
)

type roleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

func (s *Server) handleAdminGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: newUserView(u)})
}

func (s *Server) handleAdminSetRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := s.decodeAndCheck(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.users.SetRole(r.Context(), chi.URLParam(r, "id"), models.Role(req.Role))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: newUserView(u)})
}
