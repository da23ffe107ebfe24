package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"medialib/models"
	"medialib/services/providers"
)

type providerRegistry interface {
	Get(name string) (providers.Provider, error)
	All() []providers.Provider
}

var _ providerRegistry = (*providers.Registry)(nil)

type ProvidersHandler struct {
	Registry providerRegistry
	Store    *providers.Store
}

func NewProvidersHandler(registry providerRegistry, store *providers.Store) *ProvidersHandler {
	return &ProvidersHandler{Registry: registry, Store: store}
}

type providerInfo struct {
	Name         string                 `json:"name"`
	Capabilities providers.Capabilities `json:"capabilities"`
	Enabled      bool                   `json:"enabled"`
}

// List returns every builtin provider and whether it is enabled.
func (h *ProvidersHandler) List(w http.ResponseWriter, r *http.Request) {
	enabled := make(map[string]bool)
	for _, p := range h.Registry.All() {
		enabled[p.Name()] = true
	}

	out := make([]providerInfo, 0)
	for _, d := range providers.Builtin() {
		out = append(out, providerInfo{Name: d.Name, Capabilities: d.Capabilities, Enabled: enabled[d.Name]})
	}
	writeJSON(w, out)
}

// Search runs a single query against one provider.
func (h *ProvidersHandler) Search(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w, r)
	if !ok {
		return
	}

	mode := providers.ModeEpisode
	if raw := strings.TrimSpace(r.URL.Query().Get("mode")); raw != "" {
		parsed, valid := providers.ParseMode(raw)
		if !valid {
			writeJSONError(w, "mode must be one of RSS, Episode, Season, Movie", http.StatusBadRequest)
			return
		}
		mode = parsed
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" && mode != providers.ModeRSS {
		writeJSONError(w, "q is required", http.StatusBadRequest)
		return
	}

	results, err := p.Search(r.Context(), providers.SearchStrings{mode: {query}})
	if err != nil {
		log.Printf("[providers] %s search failed: %v", p.Name(), err)
		writeJSONError(w, err.Error(), http.StatusBadGateway)
		return
	}
	if results == nil {
		results = []models.SearchResult{}
	}
	writeJSON(w, results)
}

// Cached returns the stored RSS results for a provider.
func (h *ProvidersHandler) Cached(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w, r)
	if !ok {
		return
	}
	results, err := providers.NewCache(p, h.Store).Results(r.Context())
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if results == nil {
		results = []models.SearchResult{}
	}
	writeJSON(w, results)
}

// RefreshCache runs the provider's RSS search and stores the results.
func (h *ProvidersHandler) RefreshCache(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w, r)
	if !ok {
		return
	}
	if !p.Capabilities().CanDaily {
		writeJSONError(w, p.Name()+" has no RSS feed", http.StatusBadRequest)
		return
	}

	count, err := providers.NewCache(p, h.Store).Update(r.Context())
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, context.Canceled) {
			status = http.StatusRequestTimeout
		}
		writeJSONError(w, err.Error(), status)
		return
	}
	writeJSON(w, map[string]any{"provider": p.Name(), "count": count})
}

func (h *ProvidersHandler) provider(w http.ResponseWriter, r *http.Request) (providers.Provider, bool) {
	name := mux.Vars(r)["name"]
	p, err := h.Registry.Get(name)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusNotFound)
		return nil, false
	}
	return p, true
}
