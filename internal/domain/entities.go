package domain

import "time"

// DocumentStatus is the publish lifecycle flag carried by every entity.
type DocumentStatus string

const (
	StatusActive   DocumentStatus = "ACTIVE"
	StatusInactive DocumentStatus = "INACTIVE"
)

// Valid reports whether s is one of the known statuses.
func (s DocumentStatus) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// Entity is implemented by every cached content type. WithStatus returns a
// copy so cached values are never mutated in place.
type Entity[T any] interface {
	ListItem
	GetVersion() int
	WithStatus(DocumentStatus) T
}

// Award is a prize or distinction shown on the public site.
type Award struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Issuer       string         `json:"issuer"`
	Year         int            `json:"year"`
	Description  string         `json:"description,omitempty"`
	PrimaryImage string         `json:"primaryImage,omitempty"`
	Status       DocumentStatus `json:"status"`
	V            int            `json:"v"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

func (a Award) GetID() string { return a.ID }
func (a Award) GetStatus() DocumentStatus { return a.Status }
func (a Award) GetVersion() int { return a.V }
func (a Award) GetTitle() string { return a.Title }
func (a Award) WithStatus(s DocumentStatus) Award {
	a.Status = s
	return a
}

// BlogPost is a long-form article.
type BlogPost struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Slug         string         `json:"slug"`
	Summary      string         `json:"summary,omitempty"`
	Body         string         `json:"body"`
	Tags         []string       `json:"tags,omitempty"`
	PrimaryImage string         `json:"primaryImage,omitempty"`
	PublishedAt  *time.Time     `json:"publishedAt,omitempty"`
	Status       DocumentStatus `json:"status"`
	V            int            `json:"v"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

func (b BlogPost) GetID() string { return b.ID }
func (b BlogPost) GetStatus() DocumentStatus { return b.Status }
func (b BlogPost) GetVersion() int { return b.V }
func (b BlogPost) GetTitle() string { return b.Title }
func (b BlogPost) WithStatus(s DocumentStatus) BlogPost {
	b.Status = s
	return b
}

// QuizSummary is the lightweight quiz view embedded in a Course.
type QuizSummary struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	McqCount int            `json:"mcqCount"`
	Status   DocumentStatus `json:"status"`
}

// Course owns an ordered list of quizzes.
type Course struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Code         string         `json:"code"`
	Term         string         `json:"term,omitempty"`
	Description  string         `json:"description,omitempty"`
	PrimaryImage string         `json:"primaryImage,omitempty"`
	QuizIDs      []string       `json:"quizIds"`
	Quizzes      []QuizSummary  `json:"quizzes,omitempty"`
	Status       DocumentStatus `json:"status"`
	V            int            `json:"v"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

func (c Course) GetID() string { return c.ID }
func (c Course) GetStatus() DocumentStatus { return c.Status }
func (c Course) GetVersion() int { return c.V }
func (c Course) GetTitle() string { return c.Title }
func (c Course) WithStatus(s DocumentStatus) Course {
	c.Status = s
	return c
}

// Quiz belongs to a Course and owns Mcqs.
type Quiz struct {
	ID          string         `json:"id"`
	CourseID    string         `json:"courseId"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	TimeLimit   int            `json:"timeLimit,omitempty"` // minutes, 0 = untimed
	McqCount    int            `json:"mcqCount"`
	Status      DocumentStatus `json:"status"`
	V           int            `json:"v"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

func (q Quiz) GetID() string { return q.ID }
func (q Quiz) GetStatus() DocumentStatus { return q.Status }
func (q Quiz) GetVersion() int { return q.V }
func (q Quiz) GetTitle() string { return q.Title }
func (q Quiz) WithStatus(s DocumentStatus) Quiz {
	q.Status = s
	return q
}

// McqOption is one answer choice.
type McqOption struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Mcq is a multiple-choice question scoped to a Quiz.
type Mcq struct {
	ID          string         `json:"id"`
	QuizID      string         `json:"quizId"`
	Question    string         `json:"question"`
	Options     []McqOption    `json:"options"`
	Explanation string         `json:"explanation,omitempty"`
	Order       int            `json:"order"`
	Status      DocumentStatus `json:"status"`
	V           int            `json:"v"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

func (m Mcq) GetID() string { return m.ID }
func (m Mcq) GetStatus() DocumentStatus { return m.Status }
func (m Mcq) GetVersion() int { return m.V }
func (m Mcq) GetTitle() string { return m.Question }
func (m Mcq) WithStatus(s DocumentStatus) Mcq {
	m.Status = s
	return m
}

// Publication is a paper, book or talk.
type Publication struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Authors      []string       `json:"authors"`
	Venue        string         `json:"venue,omitempty"`
	Year         int            `json:"year"`
	Keywords     []string       `json:"keywords,omitempty"`
	DOI          string         `json:"doi,omitempty"`
	URL          string         `json:"url,omitempty"`
	PrimaryImage string         `json:"primaryImage,omitempty"`
	Status       DocumentStatus `json:"status"`
	V            int            `json:"v"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

func (p Publication) GetID() string { return p.ID }
func (p Publication) GetStatus() DocumentStatus { return p.Status }
func (p Publication) GetVersion() int { return p.V }
func (p Publication) GetTitle() string { return p.Title }
func (p Publication) WithStatus(s DocumentStatus) Publication {
	p.Status = s
	return p
}

// Research is a research project or line of work.
type Research struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Summary       string         `json:"summary,omitempty"`
	Body          string         `json:"body,omitempty"`
	Collaborators []string       `json:"collaborators,omitempty"`
	StartYear     int            `json:"startYear,omitempty"`
	EndYear       int            `json:"endYear,omitempty"` // 0 = ongoing
	PrimaryImage  string         `json:"primaryImage,omitempty"`
	Status        DocumentStatus `json:"status"`
	V             int            `json:"v"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

func (r Research) GetID() string { return r.ID }
func (r Research) GetStatus() DocumentStatus { return r.Status }
func (r Research) GetVersion() int { return r.V }
func (r Research) GetTitle() string { return r.Title }
func (r Research) WithStatus(s DocumentStatus) Research {
	r.Status = s
	return r
}

// KeywordCount is one bar of the publication keyword chart.
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// YearCount is one bar of the publications-per-year chart.
type YearCount struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}
