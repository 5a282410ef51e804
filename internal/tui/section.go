package tui

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/mmcdole/folio/internal/domain"
	"github.com/mmcdole/folio/internal/hooks"
	"github.com/mmcdole/folio/internal/query"
	"github.com/mmcdole/folio/internal/tui/components"
)

// Section names
const (
	SectionAwards       = "Awards"
	SectionBlogPosts    = "Blog posts"
	SectionCourses      = "Courses"
	SectionQuizzes      = "Quizzes"
	SectionMcqs         = "Questions"
	SectionPublications = "Publications"
	SectionResearch     = "Research"
)

// PageView is a snapshot of the open list page.
type PageView struct {
	Items      []domain.ListItem
	Pagination domain.Pagination
	Pending    bool
	Fetching   bool
	Stale      bool
	Err        error
}

// Section is one entity type as the dashboard sees it. Scope is passed to
// every mutation so commands never read model state off the UI goroutine.
type Section interface {
	Name() string
	// Child is the section opened from a selected row, empty for leaves.
	Child() string
	CanCreate() bool

	Open(scope domain.Scope, page, size int, notify func())
	View() PageView
	Refetch()
	Invalidate()
	Close()

	// Fields lists the entry form shown for a new entry.
	Fields() []components.Field
	// Validate checks form values before anything is sent.
	Validate(values []string) error
	Create(ctx context.Context, scope domain.Scope, values []string) (domain.ListItem, error)
	Activate(ctx context.Context, scope domain.Scope, id string) error
	Deactivate(ctx context.Context, scope domain.Scope, id string) error
	Delete(ctx context.Context, scope domain.Scope, id string) error
}

// setSection adapts a typed hook set to Section.
type setSection[T domain.Entity[T], D domain.Input[T]] struct {
	name  string
	child string
	set   *hooks.Set[T, D]

	// fields and draft describe the entry form; draft receives the values
	// in field order. A nil draft disables creation.
	fields []components.Field
	draft  func(values []string) D

	obs   *query.Observer[domain.Page[T]]
	unsub func()
}

func (s *setSection[T, D]) Name() string    { return s.name }
func (s *setSection[T, D]) Child() string   { return s.child }
func (s *setSection[T, D]) CanCreate() bool { return s.draft != nil }

func (s *setSection[T, D]) Open(scope domain.Scope, page, size int, notify func()) {
	s.Close()
	s.obs = s.set.Query(scope, page, size, nil)
	s.unsub = s.obs.Subscribe(func(query.State[domain.Page[T]]) { notify() })
}

func (s *setSection[T, D]) View() PageView {
	if s.obs == nil {
		return PageView{Pending: true}
	}
	st := s.obs.State()
	return PageView{
		Items:      domain.ListItems(st.Data.Items),
		Pagination: st.Data.Pagination,
		Pending:    st.IsPending,
		Fetching:   st.IsFetching,
		Stale:      st.IsStale,
		Err:        st.Err,
	}
}

func (s *setSection[T, D]) Refetch() {
	if s.obs != nil {
		s.obs.Refetch()
	}
}

func (s *setSection[T, D]) Invalidate() { s.set.Invalidate() }

func (s *setSection[T, D]) Close() {
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
	if s.obs != nil {
		s.obs.Close()
		s.obs = nil
	}
}

func (s *setSection[T, D]) Fields() []components.Field { return s.fields }

func (s *setSection[T, D]) Validate(values []string) error {
	return s.draft(values).Validate()
}

func (s *setSection[T, D]) Create(ctx context.Context, scope domain.Scope, values []string) (domain.ListItem, error) {
	v, err := s.set.Create(ctx, scope, s.draft(values))
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *setSection[T, D]) Activate(ctx context.Context, scope domain.Scope, id string) error {
	_, err := s.set.Activate(ctx, scope, id)
	return err
}

func (s *setSection[T, D]) Deactivate(ctx context.Context, scope domain.Scope, id string) error {
	_, err := s.set.Deactivate(ctx, scope, id)
	return err
}

func (s *setSection[T, D]) Delete(ctx context.Context, scope domain.Scope, id string) error {
	return s.set.Delete(ctx, scope, id)
}

// Sections builds the dashboard sections over reg. Courses open into their
// quizzes and quizzes into their questions.
func Sections(reg *hooks.Registry) []Section {
	thisYear := strconv.Itoa(time.Now().Year())
	return []Section{
		&setSection[domain.Award, domain.AwardInput]{
			name: SectionAwards,
			set:  reg.Awards,
			fields: []components.Field{
				{Label: "Title"},
				{Label: "Issuer", Placeholder: "optional"},
				{Label: "Year", Value: thisYear},
			},
			draft: func(v []string) domain.AwardInput {
				return domain.AwardInput{Title: v[0], Issuer: v[1], Year: atoi(v[2])}
			},
		},
		&setSection[domain.BlogPost, domain.BlogPostInput]{
			name: SectionBlogPosts,
			set:  reg.BlogPosts,
			fields: []components.Field{
				{Label: "Title"},
				{Label: "Slug", Placeholder: "derived from the title"},
				{Label: "Tags", Placeholder: "comma separated"},
			},
			draft: func(v []string) domain.BlogPostInput {
				sl := v[1]
				if sl == "" {
					sl = slug(v[0])
				}
				return domain.BlogPostInput{Title: v[0], Slug: sl, Tags: splitList(v[2])}
			},
		},
		&setSection[domain.Course, domain.CourseInput]{
			name:  SectionCourses,
			child: SectionQuizzes,
			set:   reg.Courses,
			fields: []components.Field{
				{Label: "Title"},
				{Label: "Code", Placeholder: "derived from the title"},
				{Label: "Term", Placeholder: "optional"},
			},
			draft: func(v []string) domain.CourseInput {
				code := v[1]
				if code == "" && v[0] != "" {
					code = initials(v[0])
				}
				return domain.CourseInput{Title: v[0], Code: code, Term: v[2]}
			},
		},
		&setSection[domain.Publication, domain.PublicationInput]{
			name: SectionPublications,
			set:  reg.Publications.Set,
			fields: []components.Field{
				{Label: "Title"},
				{Label: "Authors", Placeholder: "comma separated"},
				{Label: "Year", Value: thisYear},
				{Label: "Keywords", Placeholder: "comma separated"},
			},
			draft: func(v []string) domain.PublicationInput {
				return domain.PublicationInput{Title: v[0], Authors: splitList(v[1]), Year: atoi(v[2]), Keywords: splitList(v[3])}
			},
		},
		&setSection[domain.Research, domain.ResearchInput]{
			name: SectionResearch,
			set:  reg.Research,
			fields: []components.Field{
				{Label: "Title"},
				{Label: "Summary", Placeholder: "optional"},
			},
			draft: func(v []string) domain.ResearchInput {
				return domain.ResearchInput{Title: v[0], Summary: v[1]}
			},
		},
		&setSection[domain.Quiz, domain.QuizInput]{
			name:  SectionQuizzes,
			child: SectionMcqs,
			set:   reg.Quizzes,
			fields: []components.Field{
				{Label: "Title"},
				{Label: "Time limit (minutes)", Placeholder: "0 for none"},
			},
			draft: func(v []string) domain.QuizInput {
				return domain.QuizInput{Title: v[0], TimeLimit: atoi(v[1])}
			},
		},
		&setSection[domain.Mcq, domain.McqInput]{
			name: SectionMcqs,
			set:  reg.Mcqs,
			fields: []components.Field{
				{Label: "Question"},
				{Label: "Options", Placeholder: "a; *b; c  (* marks the answer)"},
			},
			draft: func(v []string) domain.McqInput {
				return domain.McqInput{Question: v[0], Options: parseOptions(v[1])}
			},
		},
	}
}

// atoi parses a form number; blanks and garbage become zero and are left
// to input validation.
func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

// splitList splits a comma separated field, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseOptions reads "a; *b; c" into options, marking starred ones correct.
func parseOptions(s string) []domain.McqOption {
	var out []domain.McqOption
	for _, p := range strings.Split(s, ";") {
		p = strings.TrimSpace(p)
		correct := strings.HasPrefix(p, "*")
		p = strings.TrimSpace(strings.TrimPrefix(p, "*"))
		if p == "" {
			continue
		}
		out = append(out, domain.McqOption{Text: p, Correct: correct})
	}
	return out
}

// slug lowercases title and joins its words with dashes.
func slug(title string) string {
	words := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(words, "-")
}

// initials derives a placeholder course code from the title's words.
func initials(title string) string {
	var b strings.Builder
	for _, w := range strings.Fields(title) {
		r := []rune(w)[0]
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	if b.Len() == 0 {
		return "NEW"
	}
	return b.String()
}
