package domain

import (
	"strings"
	"time"
)

// Inputs are the create/update payloads sent to the backend. V must carry the
// version the caller last read; it is ignored on create.

// Validator is implemented by every input so forms can reject a payload
// before it reaches the cache layer.
type Validator interface {
	Validate() error
}

// Input is a payload for entity type T. Draft builds the optimistic
// placeholder shown until the server responds.
type Input[T any] interface {
	Validator
	Draft(id string) T
}

type AwardInput struct {
	Title       string `json:"title"`
	Issuer      string `json:"issuer"`
	Year        int    `json:"year"`
	Description string `json:"description,omitempty"`
	V           int    `json:"v"`
}

func (in AwardInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if in.Year <= 0 {
		return &ValidationError{Field: "year", Message: "year must be positive"}
	}
	return nil
}

func (in AwardInput) Draft(id string) Award {
	return Award{ID: id, Title: in.Title, Issuer: in.Issuer, Year: in.Year,
		Description: in.Description, Status: StatusInactive, CreatedAt: time.Now()}
}

type BlogPostInput struct {
	Title   string   `json:"title"`
	Slug    string   `json:"slug"`
	Summary string   `json:"summary,omitempty"`
	Body    string   `json:"body"`
	Tags    []string `json:"tags,omitempty"`
	V       int      `json:"v"`
}

func (in BlogPostInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if strings.ContainsAny(in.Slug, " /?#") {
		return &ValidationError{Field: "slug", Message: "slug must be URL safe"}
	}
	return nil
}

func (in BlogPostInput) Draft(id string) BlogPost {
	return BlogPost{ID: id, Title: in.Title, Slug: in.Slug, Summary: in.Summary,
		Body: in.Body, Tags: in.Tags, Status: StatusInactive, CreatedAt: time.Now()}
}

type CourseInput struct {
	Title       string `json:"title"`
	Code        string `json:"code"`
	Term        string `json:"term,omitempty"`
	Description string `json:"description,omitempty"`
	V           int    `json:"v"`
}

func (in CourseInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if strings.TrimSpace(in.Code) == "" {
		return &ValidationError{Field: "code", Message: "course code is required"}
	}
	return nil
}

func (in CourseInput) Draft(id string) Course {
	return Course{ID: id, Title: in.Title, Code: in.Code, Term: in.Term,
		Description: in.Description, Status: StatusInactive, CreatedAt: time.Now()}
}

type QuizInput struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	TimeLimit   int    `json:"timeLimit,omitempty"`
	V           int    `json:"v"`
}

func (in QuizInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if in.TimeLimit < 0 {
		return &ValidationError{Field: "timeLimit", Message: "time limit cannot be negative"}
	}
	return nil
}

func (in QuizInput) Draft(id string) Quiz {
	return Quiz{ID: id, Title: in.Title, Description: in.Description,
		TimeLimit: in.TimeLimit, Status: StatusInactive, CreatedAt: time.Now()}
}

type McqInput struct {
	Question    string      `json:"question"`
	Options     []McqOption `json:"options"`
	Explanation string      `json:"explanation,omitempty"`
	Order       int         `json:"order"`
	V           int         `json:"v"`
}

func (in McqInput) Validate() error {
	if strings.TrimSpace(in.Question) == "" {
		return &ValidationError{Field: "question", Message: "question is required"}
	}
	if len(in.Options) < 2 {
		return &ValidationError{Field: "options", Message: "at least two options are required"}
	}
	for _, o := range in.Options {
		if o.Correct {
			return nil
		}
	}
	return &ValidationError{Field: "options", Message: "one option must be marked correct"}
}

func (in McqInput) Draft(id string) Mcq {
	return Mcq{ID: id, Question: in.Question, Options: in.Options,
		Explanation: in.Explanation, Order: in.Order, Status: StatusInactive, CreatedAt: time.Now()}
}

type PublicationInput struct {
	Title    string   `json:"title"`
	Authors  []string `json:"authors"`
	Venue    string   `json:"venue,omitempty"`
	Year     int      `json:"year"`
	Keywords []string `json:"keywords,omitempty"`
	DOI      string   `json:"doi,omitempty"`
	URL      string   `json:"url,omitempty"`
	V        int      `json:"v"`
}

func (in PublicationInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if len(in.Authors) == 0 {
		return &ValidationError{Field: "authors", Message: "at least one author is required"}
	}
	if in.Year <= 0 {
		return &ValidationError{Field: "year", Message: "year must be positive"}
	}
	return nil
}

func (in PublicationInput) Draft(id string) Publication {
	return Publication{ID: id, Title: in.Title, Authors: in.Authors, Venue: in.Venue,
		Year: in.Year, Keywords: in.Keywords, DOI: in.DOI, URL: in.URL,
		Status: StatusInactive, CreatedAt: time.Now()}
}

type ResearchInput struct {
	Title         string   `json:"title"`
	Summary       string   `json:"summary,omitempty"`
	Body          string   `json:"body,omitempty"`
	Collaborators []string `json:"collaborators,omitempty"`
	StartYear     int      `json:"startYear,omitempty"`
	EndYear       int      `json:"endYear,omitempty"`
	V             int      `json:"v"`
}

func (in ResearchInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if in.EndYear != 0 && in.EndYear < in.StartYear {
		return &ValidationError{Field: "endYear", Message: "end year precedes start year"}
	}
	return nil
}

func (in ResearchInput) Draft(id string) Research {
	return Research{ID: id, Title: in.Title, Summary: in.Summary, Body: in.Body,
		Collaborators: in.Collaborators, StartYear: in.StartYear, EndYear: in.EndYear,
		Status: StatusInactive, CreatedAt: time.Now()}
}
