package hooks

import (
	"context"

	"github.com/mmcdole/folio/internal/domain"
	"github.com/mmcdole/folio/internal/query"
	"github.com/mmcdole/folio/internal/store"
)

// Cache tags per entity type.
const (
	TagAward        store.Tag = "award"
	TagAwards       store.Tag = "awards"
	TagBlogPost     store.Tag = "blog-post"
	TagBlogPosts    store.Tag = "blog-posts"
	TagCourse       store.Tag = "course"
	TagCourses      store.Tag = "courses"
	TagMcq          store.Tag = "mcq"
	TagMcqs         store.Tag = "mcqs"
	TagPublication  store.Tag = "publication"
	TagPublications store.Tag = "publications"
	TagQuiz         store.Tag = "quiz"
	TagQuizzes      store.Tag = "quizzes"
	TagResearch     store.Tag = "research"
	TagResearchList store.Tag = "research-list"
)

// Publication aggregate names.
const (
	AggregateKeywords = "keywords"
	AggregateYears    = "years"
)

type (
	Awards    = Set[domain.Award, domain.AwardInput]
	BlogPosts = Set[domain.BlogPost, domain.BlogPostInput]
	Courses   = Set[domain.Course, domain.CourseInput]
	Mcqs      = Set[domain.Mcq, domain.McqInput]
	Quizzes   = Set[domain.Quiz, domain.QuizInput]
	Research  = Set[domain.Research, domain.ResearchInput]
)

func NewAwards(c *query.Client, svc domain.Service[domain.Award, domain.AwardInput], tokens domain.TokenSource, opts ...Option) *Awards {
	return NewSet(c, svc, tokens, Descriptor{Record: TagAward, List: TagAwards}, opts...)
}

func NewBlogPosts(c *query.Client, svc domain.Service[domain.BlogPost, domain.BlogPostInput], tokens domain.TokenSource, opts ...Option) *BlogPosts {
	return NewSet(c, svc, tokens, Descriptor{Record: TagBlogPost, List: TagBlogPosts}, opts...)
}

func NewCourses(c *query.Client, svc domain.Service[domain.Course, domain.CourseInput], tokens domain.TokenSource, opts ...Option) *Courses {
	return NewSet(c, svc, tokens, Descriptor{Record: TagCourse, List: TagCourses}, opts...)
}

// NewQuizzes scopes quizzes by course. Quiz mutations mark the owning
// course stale since it embeds a quiz summary.
func NewQuizzes(c *query.Client, svc domain.Service[domain.Quiz, domain.QuizInput], tokens domain.TokenSource, opts ...Option) *Quizzes {
	return NewSet(c, svc, tokens, Descriptor{Record: TagQuiz, List: TagQuizzes, Parent: TagCourse}, opts...)
}

// NewMcqs scopes questions by quiz.
func NewMcqs(c *query.Client, svc domain.Service[domain.Mcq, domain.McqInput], tokens domain.TokenSource, opts ...Option) *Mcqs {
	return NewSet(c, svc, tokens, Descriptor{Record: TagMcq, List: TagMcqs, Parent: TagQuiz}, opts...)
}

func NewResearch(c *query.Client, svc domain.Service[domain.Research, domain.ResearchInput], tokens domain.TokenSource, opts ...Option) *Research {
	return NewSet(c, svc, tokens, Descriptor{Record: TagResearch, List: TagResearchList}, opts...)
}

// Publications adds the chart aggregates to the publication hook set. Every
// publication mutation marks the aggregates stale.
type Publications struct {
	*Set[domain.Publication, domain.PublicationInput]
	stats domain.PublicationStats
}

func NewPublications(
	c *query.Client,
	svc domain.Service[domain.Publication, domain.PublicationInput],
	stats domain.PublicationStats,
	tokens domain.TokenSource,
	opts ...Option,
) *Publications {
	desc := Descriptor{
		Record:  TagPublication,
		List:    TagPublications,
		Derived: []store.Pattern{{Tag: TagPublications, Kind: store.KindAggregate}},
	}
	return &Publications{Set: NewSet(c, svc, tokens, desc, opts...), stats: stats}
}

// Keywords observes keyword counts across all publications.
func (p *Publications) Keywords() *query.Observer[[]domain.KeywordCount] {
	return query.Observe(p.client, query.Query[[]domain.KeywordCount]{
		Key:   store.AggregateKey(TagPublications, AggregateKeywords),
		Fetch: p.stats.Keywords,
	})
}

// Years observes publication counts per year.
func (p *Publications) Years() *query.Observer[[]domain.YearCount] {
	return query.Observe(p.client, query.Query[[]domain.YearCount]{
		Key:   store.AggregateKey(TagPublications, AggregateYears),
		Fetch: p.stats.Years,
	})
}

// FetchKeywords loads keyword counts through the cache.
func (p *Publications) FetchKeywords(ctx context.Context) ([]domain.KeywordCount, error) {
	return query.Ensure(ctx, p.client, store.AggregateKey(TagPublications, AggregateKeywords), p.stats.Keywords)
}

// Services bundles the network side of every entity type.
type Services struct {
	Awards           domain.Service[domain.Award, domain.AwardInput]
	BlogPosts        domain.Service[domain.BlogPost, domain.BlogPostInput]
	Courses          domain.Service[domain.Course, domain.CourseInput]
	Mcqs             domain.Service[domain.Mcq, domain.McqInput]
	Publications     domain.Service[domain.Publication, domain.PublicationInput]
	PublicationStats domain.PublicationStats
	Quizzes          domain.Service[domain.Quiz, domain.QuizInput]
	Research         domain.Service[domain.Research, domain.ResearchInput]
}

// Registry holds one hook set per entity type, all sharing one client.
type Registry struct {
	Client       *query.Client
	Awards       *Awards
	BlogPosts    *BlogPosts
	Courses      *Courses
	Mcqs         *Mcqs
	Publications *Publications
	Quizzes      *Quizzes
	Research     *Research
}

// New assembles the hook sets for every entity type.
func New(c *query.Client, svcs Services, tokens domain.TokenSource, opts ...Option) *Registry {
	return &Registry{
		Client:       c,
		Awards:       NewAwards(c, svcs.Awards, tokens, opts...),
		BlogPosts:    NewBlogPosts(c, svcs.BlogPosts, tokens, opts...),
		Courses:      NewCourses(c, svcs.Courses, tokens, opts...),
		Mcqs:         NewMcqs(c, svcs.Mcqs, tokens, opts...),
		Publications: NewPublications(c, svcs.Publications, svcs.PublicationStats, tokens, opts...),
		Quizzes:      NewQuizzes(c, svcs.Quizzes, tokens, opts...),
		Research:     NewResearch(c, svcs.Research, tokens, opts...),
	}
}
