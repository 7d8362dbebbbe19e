package feedback

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/studentportal/core"
	"github.com/trezcool/studentportal/core/user"
)

var nowFunc = time.Now // mockable

// Feedback is append-only: it is never updated nor deleted.
type Feedback struct {
	ID         int64     `json:"id"`
	AuthorID   int64     `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Subject    string    `json:"subject"`
	Message    string    `json:"message"`
	Rating     int       `json:"rating"`
	CreatedAt  time.Time `json:"created_at"` // UTC
}

type Form struct {
	Subject string `json:"subject" form:"subject" validate:"required,max=200"`
	Message string `json:"message" form:"message" validate:"required"`
	Rating  int    `json:"rating" form:"rating" validate:"required,min=1,max=5"`
}

func (f *Form) Clean() {
	f.Subject = core.CleanString(f.Subject)
	f.Message = core.CleanString(f.Message)
}

type QueryFilter struct {
	AuthorID int64
	Rating   int // 0 matches any rating
	Limit    int
}

type (
	Repository interface {
		CreateFeedback(ctx context.Context, fb Feedback, exec ...core.DBExecutor) (Feedback, error)
		// QueryFeedback returns matching entries, newest first.
		QueryFeedback(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Feedback, error)
		CountFeedback(ctx context.Context, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		Submit(ctx context.Context, p user.Principal, f Form) (Feedback, error)
		ListAll(ctx context.Context, p user.Principal, rating int) ([]Feedback, error)
		ListForUser(ctx context.Context, userID int64) ([]Feedback, error)
		Recent(ctx context.Context, n int) ([]Feedback, error)
		Count(ctx context.Context) (int, error)
	}

	service struct {
		repo     Repository
		validate *core.Validator
	}
)

var _ Service = (*service)(nil)

func NewService(validate *core.Validator, repo Repository) Service {
	return &service{repo: repo, validate: validate}
}

func (svc *service) Submit(ctx context.Context, p user.Principal, f Form) (Feedback, error) {
	f.Clean()
	if err := svc.validate.Struct(f); err != nil {
		return Feedback{}, err
	}
	fb := Feedback{
		AuthorID:   p.UserID,
		AuthorName: p.Name,
		Subject:    f.Subject,
		Message:    f.Message,
		Rating:     f.Rating,
		CreatedAt:  nowFunc().UTC(),
	}
	fb, err := svc.repo.CreateFeedback(ctx, fb)
	return fb, errors.Wrap(err, "creating feedback")
}

// ListAll is admin-only. A rating outside 1..5 lists every entry.
func (svc *service) ListAll(ctx context.Context, p user.Principal, rating int) ([]Feedback, error) {
	if !p.IsAdmin() {
		return nil, core.ErrForbidden
	}
	if rating < 1 || rating > 5 {
		rating = 0
	}
	return svc.repo.QueryFeedback(ctx, QueryFilter{Rating: rating})
}

func (svc *service) ListForUser(ctx context.Context, userID int64) ([]Feedback, error) {
	return svc.repo.QueryFeedback(ctx, QueryFilter{AuthorID: userID})
}

func (svc *service) Recent(ctx context.Context, n int) ([]Feedback, error) {
	return svc.repo.QueryFeedback(ctx, QueryFilter{Limit: n})
}

func (svc *service) Count(ctx context.Context) (int, error) {
	return svc.repo.CountFeedback(ctx)
}
