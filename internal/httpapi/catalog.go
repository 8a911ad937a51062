package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"dinner-house/internal/domain"
)

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.catalog.Repo().ListCategories(r.Context())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": cats})
}

func (s *Server) listMenuItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	// Category or text filters bypass the cache; the plain listing is the
	// hot path and is served from Redis.
	if q.Get("category_id") != "" || q.Get("q") != "" {
		var active *bool
		if q.Get("active") != "" {
			v := q.Get("active") == "true"
			active = &v
		}
		if q.Get("q") != "" {
			items, err := s.catalog.Repo().SearchItems(r.Context(), q.Get("q"), active, queryInt(r, "limit"))
			if err != nil {
				writeError(w, s.log, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"items": items})
			return
		}
		items, err := s.catalog.Repo().ListItems(r.Context(), queryInt64(r, "category_id"), active == nil || *active)
		if err != nil {
			writeError(w, s.log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
		return
	}

	items, err := s.catalog.MenuItems(r.Context())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) getMenuItem(w http.ResponseWriter, r *http.Request) {
	repo := s.catalog.Repo()
	item, err := repo.GetItemByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	groups, err := repo.ItemOptionGroups(r.Context(), item.ID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	windows, err := repo.ItemAvailability(r.Context(), item.ID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"item":          item,
		"option_groups": groups,
		"availability":  windows,
	})
}

func (s *Server) listStyles(w http.ResponseWriter, r *http.Request) {
	styles, err := s.catalog.Repo().ListStyles(r.Context())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"styles": styles})
}

func (s *Server) listDinners(w http.ResponseWriter, r *http.Request) {
	dinners, err := s.catalog.Dinners(r.Context())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dinners": dinners})
}

func (s *Server) dinnerAddons(w http.ResponseWriter, r *http.Request) {
	at := time.Now()
	if raw := r.URL.Query().Get("at"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, s.log, domain.Invalidf("at must be RFC3339"))
			return
		}
		at = t
	}
	items, err := s.catalog.AddonCandidates(r.Context(), chi.URLParam(r, "code"), at)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) getDinner(w http.ResponseWriter, r *http.Request) {
	detail, err := s.catalog.DinnerDetail(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}
