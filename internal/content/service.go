// Package content stores repository items and implements the XML batch
// import used by the uploader.
package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/percussion/percussioncms-sub111/internal/activity"
	"github.com/percussion/percussioncms-sub111/internal/data"
	"github.com/percussion/percussioncms-sub111/internal/db"
	dbgen "github.com/percussion/percussioncms-sub111/internal/db/generated"
)

var (
	ErrNotFound = errors.New("content item not found")
	ErrInvalid  = errors.New("invalid content request")
)

type State string

const (
	StateDraft    State = "Draft"
	StateLive     State = "Live"
	StateArchived State = "Archived"
)

// ParseState accepts any letter case.
func ParseState(raw string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "draft":
		return StateDraft, nil
	case "live":
		return StateLive, nil
	case "archived":
		return StateArchived, nil
	}
	return "", fmt.Errorf("%w: unknown workflow state %q", ErrInvalid, raw)
}

const defaultWorkflow = "Default Workflow"

type ImportStatus string

const (
	ImportCreated ImportStatus = "CREATED"
	ImportUpdated ImportStatus = "UPDATED"
	ImportFailed  ImportStatus = "FAILED"
)

type ImportResult struct {
	Path    string       `json:"path"`
	ID      string       `json:"id,omitempty"`
	Status  ImportStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Item is an item with its field values.
type Item struct {
	data.ItemProperties
	Fields map[string]string `json:"fields"`
}

type Service struct {
	db  *db.DB
	now func() time.Time
}

func NewService(database *db.DB) *Service {
	return &Service{db: database, now: time.Now}
}

// Import upserts every item of doc by path. Items fail independently; the
// returned error is reserved for failures that stop the whole batch.
func (s *Service) Import(ctx context.Context, doc *Document, actor string) ([]ImportResult, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", ErrInvalid)
	}
	logger := log.Ctx(ctx)

	results := make([]ImportResult, 0, len(doc.Items))
	var created, updated, failed int
	for _, it := range doc.Items {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := s.importItem(ctx, it, actor)
		switch res.Status {
		case ImportCreated:
			created++
		case ImportUpdated:
			updated++
		default:
			failed++
			logger.Warn().Str("path", res.Path).Str("reason", res.Message).Msg("Import item failed")
		}
		results = append(results, res)
	}

	logger.Info().
		Str("actor", actor).
		Int("created", created).
		Int("updated", updated).
		Int("failed", failed).
		Msg("Content import finished")
	return results, nil
}

func (s *Service) importItem(ctx context.Context, it DocumentItem, actor string) ImportResult {
	raw := strings.TrimSpace(it.Path)
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.ContainsAny(raw, " \t\r\n") {
		return ImportResult{Path: it.Path, Status: ImportFailed, Message: "path must be an absolute path without whitespace"}
	}
	path := activity.NormalizePath(raw)
	if path == "/" {
		return ImportResult{Path: it.Path, Status: ImportFailed, Message: "path must name an item"}
	}

	name := strings.TrimSpace(it.Name)
	if name == "" {
		name = path[strings.LastIndex(path, "/")+1:]
	}
	contentType := strings.TrimSpace(it.Type)
	if contentType == "" {
		contentType = "page"
	}
	fields, err := json.Marshal(it.fieldMap())
	if err != nil {
		return ImportResult{Path: path, Status: ImportFailed, Message: err.Error()}
	}

	now := db.Timestamp(s.now())
	var result ImportResult
	err = s.db.RunInTx(ctx, func(tx *db.DB) error {
		existing, err := tx.Queries.GetContentItemByPath(ctx, path)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			item, err := tx.Queries.CreateContentItem(ctx, dbgen.CreateContentItemParams{
				ID:           uuid.NewString(),
				Path:         path,
				Name:         name,
				ContentType:  contentType,
				LastModifier: actor,
				Fields:       string(fields),
				CreatedAt:    now,
				ModifiedAt:   now,
			})
			if err != nil {
				return fmt.Errorf("create item: %w", err)
			}
			result = ImportResult{Path: path, ID: item.ID, Status: ImportCreated}
			return nil
		case err != nil:
			return fmt.Errorf("load item: %w", err)
		}

		item, err := tx.Queries.UpdateContentItem(ctx, dbgen.UpdateContentItemParams{
			Name:         name,
			ContentType:  contentType,
			LastModifier: actor,
			Fields:       string(fields),
			ModifiedAt:   now,
			ID:           existing.ID,
		})
		if err != nil {
			return fmt.Errorf("update item: %w", err)
		}
		result = ImportResult{Path: path, ID: item.ID, Status: ImportUpdated}
		return nil
	})
	if err != nil {
		return ImportResult{Path: path, Status: ImportFailed, Message: err.Error()}
	}
	return result
}

// List pages the items at or below path, ordered by path.
func (s *Service) List(ctx context.Context, path string, req data.PageRequest) (data.PagedResult[data.ItemProperties], error) {
	if err := data.Validate(req); err != nil {
		return data.PagedResult[data.ItemProperties]{}, err
	}
	root := activity.NormalizePath(path)
	prefix := activity.LikePrefix(root)

	total, err := s.db.Queries.CountContentItemsUnderPath(ctx, dbgen.CountContentItemsUnderPathParams{
		Path:   root,
		Prefix: prefix,
	})
	if err != nil {
		return data.PagedResult[data.ItemProperties]{}, fmt.Errorf("count items: %w", err)
	}
	rows, err := s.db.Queries.ListContentItemsUnderPath(ctx, dbgen.ListContentItemsUnderPathParams{
		Path:   root,
		Prefix: prefix,
		Limit:  int64(req.MaxResults),
		Offset: int64(req.Offset()),
	})
	if err != nil {
		return data.PagedResult[data.ItemProperties]{}, fmt.Errorf("list items: %w", err)
	}

	items := make([]data.ItemProperties, 0, len(rows))
	for _, row := range rows {
		items = append(items, toProperties(row))
	}
	return data.NewPagedResult(items, req, int(total)), nil
}

func (s *Service) Get(ctx context.Context, id string) (Item, error) {
	row, err := s.db.Queries.GetContentItem(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	if err != nil {
		return Item{}, fmt.Errorf("get item: %w", err)
	}
	return toItem(row), nil
}

// ChangeState moves an item to state. Live stamps the publish date and
// Archived stamps the archive date. Any other state clears the archive date.
func (s *Service) ChangeState(ctx context.Context, id string, state State, actor string) (Item, error) {
	state, err := ParseState(string(state))
	if err != nil {
		return Item{}, err
	}

	var updated dbgen.ContentItem
	err = s.db.RunInTx(ctx, func(tx *db.DB) error {
		current, err := tx.Queries.GetContentItem(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get item: %w", err)
		}

		now := db.Timestamp(s.now())
		params := dbgen.UpdateContentItemStateParams{
			WorkflowState: string(state),
			LastModifier:  actor,
			ModifiedAt:    now,
			PublishedAt:   current.PublishedAt,
			ID:            id,
		}
		switch state {
		case StateLive:
			params.PublishedAt = sql.NullTime{Time: now, Valid: true}
		case StateArchived:
			params.ArchivedAt = sql.NullTime{Time: now, Valid: true}
		}

		updated, err = tx.Queries.UpdateContentItemState(ctx, params)
		if err != nil {
			return fmt.Errorf("update state: %w", err)
		}
		return nil
	})
	if err != nil {
		return Item{}, err
	}

	log.Ctx(ctx).Info().
		Str("item_id", id).
		Str("state", string(state)).
		Str("actor", actor).
		Msg("Content item state changed")
	return toItem(updated), nil
}

func toProperties(row dbgen.ContentItem) data.ItemProperties {
	props := data.ItemProperties{
		ID:               row.ID,
		Name:             row.Name,
		Path:             row.Path,
		Type:             row.ContentType,
		Workflow:         defaultWorkflow,
		Status:           row.WorkflowState,
		LastModifier:     row.LastModifier,
		LastModifiedDate: row.ModifiedAt,
		CreatedDate:      row.CreatedAt,
	}
	if row.PublishedAt.Valid {
		t := row.PublishedAt.Time
		props.LastPublishedDate = &t
	}
	if row.ArchivedAt.Valid {
		t := row.ArchivedAt.Time
		props.ArchivedDate = &t
	}
	return props
}

func toItem(row dbgen.ContentItem) Item {
	fields := map[string]string{}
	if row.Fields != "" {
		if err := json.Unmarshal([]byte(row.Fields), &fields); err != nil {
			log.Warn().Err(err).Str("item_id", row.ID).Msg("Stored item fields are not valid JSON")
		}
	}
	return Item{ItemProperties: toProperties(row), Fields: fields}
}
