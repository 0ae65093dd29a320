package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"rwa-portfolio/internal/domain"
)

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := s.deps.Catalog.ListAssets(r.Context())
	if err != nil {
		s.respondStoreError(w, r, err, "assets")
		return
	}
	if assets == nil {
		assets = []*domain.Asset{}
	}
	s.respondJSON(w, http.StatusOK, assets)
}

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := s.deps.Catalog.GetAsset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondStoreError(w, r, err, "asset")
		return
	}
	s.respondJSON(w, http.StatusOK, asset)
}
