package domain

import (
	"context"
	"io"
)

// Service is the network side of one entity type (implemented by api.Resource).
// Mutating calls take the bearer token explicitly so callers fetch a fresh
// one immediately before each request.
type Service[T any, D any] interface {
	// List returns one page of the scoped list, in server order
	List(ctx context.Context, scope Scope, page, size int) (Page[T], error)

	// Get returns a single entity
	Get(ctx context.Context, scope Scope, id string) (T, error)

	Create(ctx context.Context, scope Scope, in D, token string) (T, error)
	Update(ctx context.Context, scope Scope, id string, in D, token string) (T, error)
	Activate(ctx context.Context, scope Scope, id, token string) (T, error)
	Deactivate(ctx context.Context, scope Scope, id, token string) (T, error)
	Delete(ctx context.Context, scope Scope, id, token string) error
}

// ImageUploader is implemented by services whose entities carry a primary image.
type ImageUploader[T any] interface {
	UploadPrimaryImage(ctx context.Context, id string, file Upload, token string) (T, error)
}

// Upload is a file sent as multipart form data.
type Upload struct {
	Field       string // form field name, defaults to "file"
	Filename    string
	ContentType string
	Body        io.Reader
}

// PublicationStats provides the aggregate queries behind the publication charts.
type PublicationStats interface {
	Keywords(ctx context.Context) ([]KeywordCount, error)
	Years(ctx context.Context) ([]YearCount, error)
}

// TokenSource supplies bearer tokens. An empty token with a nil error means
// the user is not signed in.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}
