package hooks_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mmcdole/folio/internal/domain"
)

// fakeService is an in-memory backend for one entity type. Items are kept
// in creation order; List serves them newest first like the real API.
type fakeService[T domain.Entity[T], D domain.Input[T]] struct {
	mu       sync.Mutex
	items    []T
	next     int
	prefix   string
	build    func(id string, scope domain.Scope, in D) T
	parentOf func(T) string

	err      error         // returned by every mutation while set
	gate     chan struct{} // when set, mutations block until it is closed
	listGate chan struct{} // when set, List blocks until it is closed
	tokens   []string

	lists atomic.Int32
	gets  atomic.Int32
}

func newFake[T domain.Entity[T], D domain.Input[T]](prefix string, build func(string, domain.Scope, D) T, parentOf func(T) string) *fakeService[T, D] {
	return &fakeService[T, D]{prefix: prefix, build: build, parentOf: parentOf}
}

// add stores an entity directly, bypassing Create.
func (f *fakeService[T, D]) add(scope domain.Scope, in D) T {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addLocked(scope, in)
}

func (f *fakeService[T, D]) addLocked(scope domain.Scope, in D) T {
	f.next++
	v := f.build(fmt.Sprintf("%s%d", f.prefix, f.next), scope, in)
	f.items = append(f.items, v)
	return v
}

func (f *fakeService[T, D]) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// resume clears any injected error and gate.
func (f *fakeService[T, D]) resume() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = nil
	f.gate = nil
}

func (f *fakeService[T, D]) hold() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	return f.gate
}

// mutate waits on the gate, records the token, and reports the injected error.
func (f *fakeService[T, D]) mutate(ctx context.Context, token string) error {
	f.mu.Lock()
	gate := f.gate
	f.tokens = append(f.tokens, token)
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeService[T, D]) ordered(parentID string) []T {
	var out []T
	for _, v := range f.items {
		if parentID == "" || f.parentOf == nil || f.parentOf(v) == parentID {
			out = append(out, v)
		}
	}
	return out
}

func (f *fakeService[T, D]) indexLocked(id string) int {
	for i, v := range f.items {
		if v.GetID() == id {
			return i
		}
	}
	return -1
}

func (f *fakeService[T, D]) List(ctx context.Context, scope domain.Scope, page, size int) (domain.Page[T], error) {
	f.lists.Add(1)
	f.mu.Lock()
	gate := f.listGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			var zero domain.Page[T]
			return zero, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	all := f.ordered(scope.ParentID)
	newest := make([]T, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if scope.Status == "" || all[i].GetStatus() == scope.Status {
			newest = append(newest, all[i])
		}
	}

	start := page * size
	if start > len(newest) {
		start = len(newest)
	}
	end := start + size
	if end > len(newest) {
		end = len(newest)
	}
	items := append([]T{}, newest[start:end]...)
	return domain.Page[T]{
		Items: items,
		Pagination: domain.Pagination{
			TotalCount:      len(newest),
			TotalPages:      (len(newest) + size - 1) / size,
			CurrentPage:     page,
			CurrentPageSize: len(items),
		},
	}, nil
}

func (f *fakeService[T, D]) Get(ctx context.Context, scope domain.Scope, id string) (T, error) {
	f.gets.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.indexLocked(id); i >= 0 {
		return f.items[i], nil
	}
	var zero T
	return zero, &domain.APIError{Status: 404, Message: "not found"}
}

func (f *fakeService[T, D]) Create(ctx context.Context, scope domain.Scope, in D, token string) (T, error) {
	var zero T
	if err := f.mutate(ctx, token); err != nil {
		return zero, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addLocked(scope, in), nil
}

func (f *fakeService[T, D]) Update(ctx context.Context, scope domain.Scope, id string, in D, token string) (T, error) {
	var zero T
	if err := f.mutate(ctx, token); err != nil {
		return zero, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexLocked(id)
	if i < 0 {
		return zero, &domain.APIError{Status: 404, Message: "not found"}
	}
	v := f.build(id, scope, in).WithStatus(f.items[i].GetStatus())
	f.items[i] = v
	return v, nil
}

func (f *fakeService[T, D]) Activate(ctx context.Context, scope domain.Scope, id, token string) (T, error) {
	return f.setStatus(ctx, id, token, domain.StatusActive)
}

func (f *fakeService[T, D]) Deactivate(ctx context.Context, scope domain.Scope, id, token string) (T, error) {
	return f.setStatus(ctx, id, token, domain.StatusInactive)
}

func (f *fakeService[T, D]) setStatus(ctx context.Context, id, token string, status domain.DocumentStatus) (T, error) {
	var zero T
	if err := f.mutate(ctx, token); err != nil {
		return zero, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexLocked(id)
	if i < 0 {
		return zero, &domain.APIError{Status: 404, Message: "not found"}
	}
	f.items[i] = f.items[i].WithStatus(status)
	return f.items[i], nil
}

func (f *fakeService[T, D]) Delete(ctx context.Context, scope domain.Scope, id, token string) error {
	if err := f.mutate(ctx, token); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexLocked(id)
	if i < 0 {
		return &domain.APIError{Status: 404, Message: "not found"}
	}
	f.items = append(f.items[:i], f.items[i+1:]...)
	return nil
}

// courseService serves courses whose quiz summaries are read from the quiz
// backend at request time.
type courseService struct {
	*fakeService[domain.Course, domain.CourseInput]
	quizzes *fakeService[domain.Quiz, domain.QuizInput]
}

func (c *courseService) Get(ctx context.Context, scope domain.Scope, id string) (domain.Course, error) {
	course, err := c.fakeService.Get(ctx, scope, id)
	if err != nil {
		return course, err
	}
	c.quizzes.mu.Lock()
	defer c.quizzes.mu.Unlock()
	course.QuizIDs = nil
	course.Quizzes = nil
	for _, q := range c.quizzes.ordered(id) {
		course.QuizIDs = append(course.QuizIDs, q.ID)
		course.Quizzes = append(course.Quizzes, domain.QuizSummary{ID: q.ID, Title: q.Title, McqCount: q.McqCount, Status: q.Status})
	}
	return course, nil
}

type statsService struct {
	keywords atomic.Int32
}

func (s *statsService) Keywords(context.Context) ([]domain.KeywordCount, error) {
	n := s.keywords.Add(1)
	return []domain.KeywordCount{{Keyword: "caching", Count: int(n)}}, nil
}

func (s *statsService) Years(context.Context) ([]domain.YearCount, error) {
	return []domain.YearCount{{Year: 2024, Count: 3}}, nil
}

type backends struct {
	awards       *fakeService[domain.Award, domain.AwardInput]
	blogPosts    *fakeService[domain.BlogPost, domain.BlogPostInput]
	courses      *courseService
	mcqs         *fakeService[domain.Mcq, domain.McqInput]
	publications *fakeService[domain.Publication, domain.PublicationInput]
	stats        *statsService
	quizzes      *fakeService[domain.Quiz, domain.QuizInput]
	research     *fakeService[domain.Research, domain.ResearchInput]
}

func newBackends() *backends {
	quizzes := newFake("quiz-", func(id string, s domain.Scope, in domain.QuizInput) domain.Quiz {
		q := in.Draft(id)
		q.CourseID = s.ParentID
		return q
	}, func(q domain.Quiz) string { return q.CourseID })

	return &backends{
		awards: newFake("award-", func(id string, _ domain.Scope, in domain.AwardInput) domain.Award {
			return in.Draft(id)
		}, nil),
		blogPosts: newFake("post-", func(id string, _ domain.Scope, in domain.BlogPostInput) domain.BlogPost {
			return in.Draft(id)
		}, nil),
		courses: &courseService{
			fakeService: newFake("course-", func(id string, _ domain.Scope, in domain.CourseInput) domain.Course {
				return in.Draft(id)
			}, nil),
			quizzes: quizzes,
		},
		mcqs: newFake("mcq-", func(id string, s domain.Scope, in domain.McqInput) domain.Mcq {
			m := in.Draft(id)
			m.QuizID = s.ParentID
			return m
		}, func(m domain.Mcq) string { return m.QuizID }),
		publications: newFake("pub-", func(id string, _ domain.Scope, in domain.PublicationInput) domain.Publication {
			return in.Draft(id)
		}, nil),
		stats:   &statsService{},
		quizzes: quizzes,
		research: newFake("research-", func(id string, _ domain.Scope, in domain.ResearchInput) domain.Research {
			return in.Draft(id)
		}, nil),
	}
}
