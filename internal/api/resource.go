package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"

	"github.com/mmcdole/folio/internal/domain"
)

// Resource is the REST binding of one entity type:
//
//	GET    {path}?page=&size=&{scopeParam}=&status=
//	GET    {path}/{id}
//	POST   {path}
//	PUT    {path}/{id}
//	PATCH  {path}/{id}/activate
//	PATCH  {path}/{id}/deactivate
//	DELETE {path}/{id}
//	POST   {path}/{id}/image
//
// The parent id of a scoped type travels as scopeParam on every call.
type Resource[T any, D any] struct {
	client     *Client
	path       string
	scopeParam string
}

// NewResource binds path on c. scopeParam names the query parameter carrying
// Scope.ParentID; leave it empty for top-level types.
func NewResource[T any, D any](c *Client, path, scopeParam string) *Resource[T, D] {
	return &Resource[T, D]{client: c, path: path, scopeParam: scopeParam}
}

func (r *Resource[T, D]) scopeQuery(scope domain.Scope) url.Values {
	q := url.Values{}
	if r.scopeParam != "" && scope.ParentID != "" {
		q.Set(r.scopeParam, scope.ParentID)
	}
	return q
}

func (r *Resource[T, D]) itemPath(id string) string {
	return r.path + "/" + url.PathEscape(id)
}

func (r *Resource[T, D]) List(ctx context.Context, scope domain.Scope, page, size int) (domain.Page[T], error) {
	q := r.scopeQuery(scope)
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	if scope.Status != "" {
		q.Set("status", string(scope.Status))
	}

	var p domain.Page[T]
	if err := r.client.getJSON(ctx, r.path, q, &p); err != nil {
		return domain.Page[T]{}, fmt.Errorf("list %s: %w", r.path, err)
	}
	if p.Items == nil {
		p.Items = []T{}
	}
	return p, nil
}

func (r *Resource[T, D]) Get(ctx context.Context, scope domain.Scope, id string) (T, error) {
	var v T
	if err := r.client.getJSON(ctx, r.itemPath(id), r.scopeQuery(scope), &v); err != nil {
		return v, fmt.Errorf("get %s: %w", r.itemPath(id), err)
	}
	return v, nil
}

func (r *Resource[T, D]) Create(ctx context.Context, scope domain.Scope, in D, token string) (T, error) {
	var v T
	if err := r.client.sendJSON(ctx, http.MethodPost, r.path, r.scopeQuery(scope), in, token, &v); err != nil {
		return v, fmt.Errorf("create %s: %w", r.path, err)
	}
	return v, nil
}

func (r *Resource[T, D]) Update(ctx context.Context, scope domain.Scope, id string, in D, token string) (T, error) {
	var v T
	if err := r.client.sendJSON(ctx, http.MethodPut, r.itemPath(id), r.scopeQuery(scope), in, token, &v); err != nil {
		return v, fmt.Errorf("update %s: %w", r.itemPath(id), err)
	}
	return v, nil
}

func (r *Resource[T, D]) Activate(ctx context.Context, scope domain.Scope, id, token string) (T, error) {
	return r.transition(ctx, scope, id, "activate", token)
}

func (r *Resource[T, D]) Deactivate(ctx context.Context, scope domain.Scope, id, token string) (T, error) {
	return r.transition(ctx, scope, id, "deactivate", token)
}

func (r *Resource[T, D]) transition(ctx context.Context, scope domain.Scope, id, action, token string) (T, error) {
	var v T
	path := r.itemPath(id) + "/" + action
	if err := r.client.sendJSON(ctx, http.MethodPatch, path, r.scopeQuery(scope), nil, token, &v); err != nil {
		return v, fmt.Errorf("%s %s: %w", action, r.itemPath(id), err)
	}
	return v, nil
}

func (r *Resource[T, D]) Delete(ctx context.Context, scope domain.Scope, id, token string) error {
	if err := r.client.sendJSON(ctx, http.MethodDelete, r.itemPath(id), r.scopeQuery(scope), nil, token, nil); err != nil {
		return fmt.Errorf("delete %s: %w", r.itemPath(id), err)
	}
	return nil
}

// UploadPrimaryImage sends file as multipart form data and returns the
// updated entity.
func (r *Resource[T, D]) UploadPrimaryImage(ctx context.Context, id string, file domain.Upload, token string) (T, error) {
	var v T
	if file.Body == nil {
		return v, &domain.ValidationError{Field: "file", Message: "upload has no content"}
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	field := file.Field
	if field == "" {
		field = "file"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, file.Filename))
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := w.CreatePart(header)
	if err != nil {
		return v, fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := io.Copy(part, file.Body); err != nil {
		return v, fmt.Errorf("failed to read upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return v, fmt.Errorf("failed to encode form: %w", err)
	}

	path := r.itemPath(id) + "/image"
	data, err := r.client.doRequest(ctx, request{
		method:      http.MethodPost,
		path:        path,
		body:        buf.Bytes(),
		contentType: w.FormDataContentType(),
		token:       token,
	})
	if err != nil {
		return v, fmt.Errorf("upload %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("failed to decode response: %w", err)
	}
	return v, nil
}
