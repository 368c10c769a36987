package api

import (
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/JakeFAU/magazine-cms/internal/cache"
	"github.com/JakeFAU/magazine-cms/internal/content"
	"github.com/JakeFAU/magazine-cms/internal/validation"
)

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	gen := s.deps.Cache.Generation()
	if cached, ok := s.deps.Cache.Get(cache.CategoriesKey); ok {
		if categories, ok := cached.([]content.Category); ok {
			s.writeJSON(w, http.StatusOK, categories)
			return
		}
	}
	categories, err := s.deps.Categories.ListCategories(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to fetch categories", err)
		return
	}
	if categories == nil {
		categories = []content.Category{}
	}
	s.deps.Cache.SetIfCurrent(gen, cache.CategoriesKey, categories)
	s.writeJSON(w, http.StatusOK, categories)
}

func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	var in content.NewCategory
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if err := validation.Struct(in); err != nil {
		s.writeError(w, http.StatusBadRequest, "Category name is required", err)
		return
	}
	category, err := s.deps.Categories.CreateCategory(r.Context(), in)
	if err != nil {
		if statusFor(err) == http.StatusBadRequest {
			s.writeError(w, http.StatusConflict, "Category already exists", err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, "Failed to create category", err)
		return
	}
	s.deps.Cache.InvalidateCategories()
	s.writeJSON(w, http.StatusCreated, category)
}
