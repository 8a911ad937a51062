package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"dinner-house/internal/catalog"
	"dinner-house/internal/domain"
)

func (s *Server) searchInventory(w http.ResponseWriter, r *http.Request) {
	var active *bool
	if v := r.URL.Query().Get("active"); v != "" {
		b := v == "true"
		active = &b
	}
	items, err := s.catalog.Repo().SearchItems(r.Context(), r.URL.Query().Get("q"), active, queryInt(r, "limit"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) bulkStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Updates []catalog.StockUpdate `json:"updates"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	if len(req.Updates) == 0 {
		writeError(w, s.log, domain.Invalidf("updates must not be empty"))
		return
	}
	results, err := s.catalog.UpdateStock(r.Context(), req.Updates)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) patchStock(w http.ResponseWriter, r *http.Request) {
	var upd catalog.StockUpdate
	if err := decodeJSON(r, &upd); err != nil {
		writeError(w, s.log, err)
		return
	}
	item, err := s.catalog.PatchStock(r.Context(), chi.URLParam(r, "code"), upd)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// uploadStocktake ingests a spreadsheet of counted quantities. Rows that
// fail to parse are reported back without aborting the rest of the sheet.
func (s *Server) uploadStocktake(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, s.log, domain.Invalidf("expected multipart upload: %v", err))
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, s.log, domain.Invalidf("missing file field"))
		return
	}
	defer file.Close()

	results, rowErrs, err := s.catalog.ImportStockXLSX(r.Context(), file)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"errors":  rowErrs,
	})
}
