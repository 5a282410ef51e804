package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/folio/internal/domain"
)

func newTestClient(t *testing.T, h http.Handler, opts Options) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL+"/", opts, nil)
	c.retryDelay = time.Millisecond
	return c
}

func TestAPIError_Parsing(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
		code    string
	}{
		{name: "message and code", body: `{"message":"stale version","code":"VERSION_CONFLICT"}`, message: "stale version", code: "VERSION_CONFLICT"},
		{name: "error field", body: `{"error":"bad gateway"}`, message: "bad gateway"},
		{name: "plain text", body: "upstream timed out\n", message: "upstream timed out"},
		{name: "empty", body: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := apiError(http.StatusBadRequest, []byte(tt.body))
			assert.Equal(t, http.StatusBadRequest, e.Status)
			assert.Equal(t, tt.message, e.Message)
			assert.Equal(t, tt.code, e.Code)
		})
	}
}

func TestDoRequest_ErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		body   string
		target error
	}{
		{status: http.StatusNotFound, target: domain.ErrNotFound},
		{status: http.StatusUnauthorized, target: domain.ErrAuthFailed},
		{status: http.StatusForbidden, target: domain.ErrAuthFailed},
		{status: http.StatusConflict, target: domain.ErrVersionConflict},
		{status: http.StatusBadRequest, body: `{"code":"VERSION_CONFLICT"}`, target: domain.ErrVersionConflict},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var calls atomic.Int32
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}), Options{})

			_, err := c.doRequest(context.Background(), request{method: http.MethodGet, path: "/courses/c1"})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			assert.Equal(t, int32(1), calls.Load(), "4xx responses are not retried")
		})
	}
}

func TestDoRequest_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, `{"ok":true}`)
	}), Options{MaxRetries: 3})

	data, err := c.doRequest(context.Background(), request{method: http.MethodGet, path: "/courses"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))
	assert.Equal(t, int32(3), calls.Load())

	t.Run("Gives up after max retries", func(t *testing.T) {
		var calls atomic.Int32
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}), Options{MaxRetries: 2})

		_, err := c.doRequest(context.Background(), request{method: http.MethodGet, path: "/courses"})
		var apiErr *domain.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
		assert.Equal(t, int32(3), calls.Load())
	})
}

func TestDoRequest_NonIdempotentSentOnce(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		call func(svcs Services) error
	}{
		{name: "Create", call: func(svcs Services) error {
			_, err := svcs.Courses.Create(ctx, domain.Scope{}, domain.CourseInput{Title: "Algebra", Code: "MATH101"}, "tok")
			return err
		}},
		{name: "Activate", call: func(svcs Services) error {
			_, err := svcs.Courses.Activate(ctx, domain.Scope{}, "c1", "tok")
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(http.StatusGatewayTimeout)
			}), Options{MaxRetries: 3})

			err := tt.call(NewServices(c))
			var apiErr *domain.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, http.StatusGatewayTimeout, apiErr.Status)
			assert.Equal(t, int32(1), calls.Load(), "a gateway timeout may hide a committed write")
		})
	}

	t.Run("Delete is retried", func(t *testing.T) {
		var calls atomic.Int32
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		}), Options{MaxRetries: 3})

		require.NoError(t, NewServices(c).Courses.Delete(ctx, domain.Scope{}, "c1", "tok"))
		assert.Equal(t, int32(2), calls.Load())
	})
}

func TestDoRequest_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, Options{MaxRetries: -1}, nil)
	_, err := c.doRequest(context.Background(), request{method: http.MethodGet, path: "/courses"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrServerOffline)

	var netErr *domain.NetworkError
	assert.ErrorAs(t, err, &netErr)
}

func TestDoRequest_Headers(t *testing.T) {
	var ids []string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids = append(ids, r.Header.Get("X-Request-ID"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		if len(ids) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, `{}`)
	}), Options{})

	err := c.sendJSON(context.Background(), http.MethodPut, "/courses/c1", nil, map[string]string{"title": "x"}, "secret", nil)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.NotEmpty(t, ids[0])
	assert.Equal(t, ids[0], ids[1], "retries reuse the request id")
}

func TestResource_List(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quizzes", r.URL.Path)
		assert.Equal(t, "c1", r.URL.Query().Get("courseId"))
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "5", r.URL.Query().Get("size"))
		assert.Equal(t, "ACTIVE", r.URL.Query().Get("status"))
		io.WriteString(w, `{"items":[{"id":"q1","courseId":"c1","title":"Week 1","status":"ACTIVE","v":2}],
			"pagination":{"totalCount":6,"totalPages":2,"currentPage":1,"currentPageSize":1}}`)
	}), Options{})

	quizzes := NewServices(c).Quizzes
	p, err := quizzes.List(context.Background(), domain.Scope{ParentID: "c1", Status: domain.StatusActive}, 1, 5)
	require.NoError(t, err)
	require.Len(t, p.Items, 1)
	assert.Equal(t, "Week 1", p.Items[0].Title)
	assert.Equal(t, 2, p.Items[0].V)
	assert.Equal(t, 6, p.Pagination.TotalCount)

	t.Run("Missing items decode as empty", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"pagination":{"totalCount":0}}`)
		}), Options{})
		p, err := NewServices(c).Awards.List(context.Background(), domain.Scope{}, 0, 10)
		require.NoError(t, err)
		assert.NotNil(t, p.Items)
		assert.Empty(t, p.Items)
	})
}

func TestResource_Mutations(t *testing.T) {
	type call struct {
		method string
		path   string
		body   string
	}
	var calls []call
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		calls = append(calls, call{r.Method, r.URL.Path, string(body)})
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		io.WriteString(w, `{"id":"c1","title":"Algebra","code":"MATH101","status":"ACTIVE","v":3}`)
	}), Options{})

	courses := NewServices(c).Courses
	ctx := context.Background()

	created, err := courses.Create(ctx, domain.Scope{}, domain.CourseInput{Title: "Algebra", Code: "MATH101"}, "tok")
	require.NoError(t, err)
	assert.Equal(t, "c1", created.ID)

	_, err = courses.Update(ctx, domain.Scope{}, "c1", domain.CourseInput{Title: "Algebra", Code: "MATH101", V: 2}, "tok")
	require.NoError(t, err)

	activated, err := courses.Activate(ctx, domain.Scope{}, "c1", "tok")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, activated.Status)

	_, err = courses.Deactivate(ctx, domain.Scope{}, "c1", "tok")
	require.NoError(t, err)

	require.NoError(t, courses.Delete(ctx, domain.Scope{}, "c1", "tok"))

	require.Len(t, calls, 5)
	assert.Equal(t, http.MethodPost, calls[0].method)
	assert.Equal(t, "/courses", calls[0].path)

	var sent map[string]any
	require.NoError(t, json.Unmarshal([]byte(calls[1].body), &sent))
	assert.Equal(t, http.MethodPut, calls[1].method)
	assert.Equal(t, "/courses/c1", calls[1].path)
	assert.EqualValues(t, 2, sent["v"], "updates carry the version counter")

	assert.Equal(t, call{http.MethodPatch, "/courses/c1/activate", ""}, calls[2])
	assert.Equal(t, call{http.MethodPatch, "/courses/c1/deactivate", ""}, calls[3])
	assert.Equal(t, call{http.MethodDelete, "/courses/c1", ""}, calls[4])
}

func TestResource_UploadPrimaryImage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/awards/a1/image", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "medal.png", hdr.Filename)
		assert.Equal(t, "image/png", hdr.Header.Get("Content-Type"))
		assert.Equal(t, "PNGDATA", string(data))

		io.WriteString(w, `{"id":"a1","title":"Best paper","primaryImage":"/img/a1.png"}`)
	}), Options{})

	award, err := NewServices(c).Awards.UploadPrimaryImage(context.Background(), "a1", domain.Upload{
		Filename:    "medal.png",
		ContentType: "image/png",
		Body:        strings.NewReader("PNGDATA"),
	}, "tok")
	require.NoError(t, err)
	assert.Equal(t, "/img/a1.png", award.PrimaryImage)
}

func TestResource_UploadWithoutBody(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}), Options{})

	_, err := NewServices(c).Awards.UploadPrimaryImage(context.Background(), "a1", domain.Upload{Filename: "medal.png"}, "tok")
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "file", verr.Field)
	assert.Zero(t, calls.Load())
}

func TestPublications_Aggregates(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/publications/keywords":
			io.WriteString(w, `[{"keyword":"caching","count":4}]`)
		case "/publications/years":
			io.WriteString(w, `[{"year":2023,"count":2},{"year":2024,"count":5}]`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}), Options{})

	pubs := NewServices(c).Publications
	kw, err := pubs.Keywords(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.KeywordCount{{Keyword: "caching", Count: 4}}, kw)

	years, err := pubs.Years(context.Background())
	require.NoError(t, err)
	assert.Len(t, years, 2)
}
