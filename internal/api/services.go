package api

import (
	"context"
	"fmt"

	"github.com/mmcdole/folio/internal/domain"
)

// Publications is the publication resource plus the chart aggregates.
type Publications struct {
	*Resource[domain.Publication, domain.PublicationInput]
}

// Keywords returns publication counts per keyword.
func (p *Publications) Keywords(ctx context.Context) ([]domain.KeywordCount, error) {
	var out []domain.KeywordCount
	if err := p.client.getJSON(ctx, p.path+"/keywords", nil, &out); err != nil {
		return nil, fmt.Errorf("publication keywords: %w", err)
	}
	return out, nil
}

// Years returns publication counts per year.
func (p *Publications) Years(ctx context.Context) ([]domain.YearCount, error) {
	var out []domain.YearCount
	if err := p.client.getJSON(ctx, p.path+"/years", nil, &out); err != nil {
		return nil, fmt.Errorf("publication years: %w", err)
	}
	return out, nil
}

// Services holds one resource per entity type.
type Services struct {
	Awards       *Resource[domain.Award, domain.AwardInput]
	BlogPosts    *Resource[domain.BlogPost, domain.BlogPostInput]
	Courses      *Resource[domain.Course, domain.CourseInput]
	Mcqs         *Resource[domain.Mcq, domain.McqInput]
	Publications *Publications
	Quizzes      *Resource[domain.Quiz, domain.QuizInput]
	Research     *Resource[domain.Research, domain.ResearchInput]
}

// NewServices binds every entity type on c.
func NewServices(c *Client) Services {
	return Services{
		Awards:       NewResource[domain.Award, domain.AwardInput](c, "/awards", ""),
		BlogPosts:    NewResource[domain.BlogPost, domain.BlogPostInput](c, "/blog-posts", ""),
		Courses:      NewResource[domain.Course, domain.CourseInput](c, "/courses", ""),
		Mcqs:         NewResource[domain.Mcq, domain.McqInput](c, "/mcqs", "quizId"),
		Publications: &Publications{NewResource[domain.Publication, domain.PublicationInput](c, "/publications", "")},
		Quizzes:      NewResource[domain.Quiz, domain.QuizInput](c, "/quizzes", "courseId"),
		Research:     NewResource[domain.Research, domain.ResearchInput](c, "/research", ""),
	}
}
