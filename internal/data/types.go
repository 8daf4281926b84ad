// Package data holds the data objects shared by the REST services: paging
// wrappers, item summaries, status envelopes and bean validation.
package data

import (
	"context"
	"time"
)

// Service is the CRUD contract implemented by the persistence-backed services.
type Service[T any, ID comparable] interface {
	Find(ctx context.Context, id ID) (T, error)
	FindAll(ctx context.Context) ([]T, error)
	Save(ctx context.Context, obj T) (T, error)
	Delete(ctx context.Context, id ID) error
}

// ItemProperties summarises a content item for list views.
type ItemProperties struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Path              string     `json:"path"`
	Type              string     `json:"type"`
	Workflow          string     `json:"workflow"`
	Status            string     `json:"status"`
	LastModifier      string     `json:"lastModifier"`
	LastModifiedDate  time.Time  `json:"lastModifiedDate"`
	CreatedDate       time.Time  `json:"createdDate"`
	LastPublishedDate *time.Time `json:"lastPublishedDate,omitempty"`
	ArchivedDate      *time.Time `json:"archivedDate,omitempty"`
}

const (
	StatusSuccess = "SUCCESS"
	StatusFailure = "FAILURE"
)

type StatusMessage struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NoContent is returned by operations that have nothing to report.
type NoContent struct {
	Result string `json:"result"`
}

func NewNoContent(result string) NoContent {
	return NoContent{Result: result}
}
