// internal/api/content/handlers.go
package content

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/percussion/percussioncms-sub111/internal/api/apiutil"
	"github.com/percussion/percussioncms-sub111/internal/api/authz"
	"github.com/percussion/percussioncms-sub111/internal/content"
	"github.com/percussion/percussioncms-sub111/internal/data"
)

type Store interface {
	Import(ctx context.Context, doc *content.Document, actor string) ([]content.ImportResult, error)
	List(ctx context.Context, path string, req data.PageRequest) (data.PagedResult[data.ItemProperties], error)
	Get(ctx context.Context, id string) (content.Item, error)
	ChangeState(ctx context.Context, id string, state content.State, actor string) (content.Item, error)
}

var (
	store     Store
	storeOnce sync.Once
)

const (
	maxImportBytes      = 10 << 20
	contentQueryTimeout = 30 * time.Second
)

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(s Store) {
	if s == nil {
		return
	}
	storeOnce.Do(func() {
		store = s
	})
}

func loadStore(w http.ResponseWriter, r *http.Request) Store {
	if store == nil {
		log.Ctx(r.Context()).Error().Msg("Content store not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
	return store
}

func actorName(r *http.Request) string {
	if user := authz.UserFromContext(r.Context()); user != nil {
		return user.Name
	}
	return ""
}

type importResponse struct {
	Results []content.ImportResult `json:"results"`
	Created int                    `json:"created"`
	Updated int                    `json:"updated"`
	Failed  int                    `json:"failed"`
}

// POST /api/v1/content/import
func HandleImport(w http.ResponseWriter, r *http.Request) {
	s := loadStore(w, r)
	if s == nil {
		return
	}

	doc, err := content.ParseDocument(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	results, err := s.Import(r.Context(), doc, actorName(r))
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	resp := importResponse{Results: results}
	for _, res := range results {
		switch res.Status {
		case content.ImportCreated:
			resp.Created++
		case content.ImportUpdated:
			resp.Updated++
		default:
			resp.Failed++
		}
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write import response")
	}
}

// GET /api/v1/content/items?path=&startIndex=&maxResults=
func HandleListItems(w http.ResponseWriter, r *http.Request) {
	s := loadStore(w, r)
	if s == nil {
		return
	}

	path := strings.TrimSpace(r.URL.Query().Get("path"))
	if path == "" {
		path = "/"
	}
	page, err := apiutil.PageRequestFromQuery(r)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), contentQueryTimeout)
	defer cancel()

	result, err := s.List(ctx, path, page)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, result); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write item list")
	}
}

// GET /api/v1/content/items/{id}
func HandleGetItem(w http.ResponseWriter, r *http.Request) {
	s := loadStore(w, r)
	if s == nil {
		return
	}

	item, err := s.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, item); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write item")
	}
}

type stateRequest struct {
	State string `json:"state" validate:"required"`
}

// POST /api/v1/content/items/{id}/state
func HandleChangeState(w http.ResponseWriter, r *http.Request) {
	s := loadStore(w, r)
	if s == nil {
		return
	}

	var req stateRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.BadRequest(err))
		return
	}
	if err := data.Validate(req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	item, err := s.ChangeState(r.Context(), r.PathValue("id"), content.State(req.State), actorName(r))
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, item); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write item")
	}
}
