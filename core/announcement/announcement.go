package announcement

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/studentportal/core"
	"github.com/trezcool/studentportal/core/user"
)

var (
	ErrNotFound = core.NewNotFoundError("announcement")

	nowFunc = time.Now // mockable
)

type Announcement struct {
	ID         int64      `json:"id"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	AuthorID   int64      `json:"author_id"`
	AuthorName string     `json:"author_name"`
	CreatedAt  time.Time  `json:"created_at"`           // UTC
	UpdatedAt  *time.Time `json:"updated_at,omitempty"` // UTC; nil until edited
}

type Form struct {
	Title   string `json:"title" form:"title" validate:"required,max=200"`
	Message string `json:"message" form:"message" validate:"required"`
}

func (f *Form) Clean() {
	f.Title = core.CleanString(f.Title)
	f.Message = core.CleanString(f.Message)
}

type QueryFilter struct {
	// Search does a case-insensitive substring match on Title or Message.
	Search string `query:"search"`
	Limit  int    `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

type (
	Repository interface {
		CreateAnnouncement(ctx context.Context, a Announcement, exec ...core.DBExecutor) (Announcement, error)
		GetAnnouncementByID(ctx context.Context, id int64, exec ...core.DBExecutor) (Announcement, error)
		UpdateAnnouncement(ctx context.Context, a Announcement, exec ...core.DBExecutor) (Announcement, error)
		DeleteAnnouncement(ctx context.Context, id int64, exec ...core.DBExecutor) error
		// QueryAnnouncements returns matching announcements, newest first.
		QueryAnnouncements(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Announcement, error)
		CountAnnouncements(ctx context.Context, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		Create(ctx context.Context, p user.Principal, f Form) (Announcement, error)
		Edit(ctx context.Context, p user.Principal, id int64, f Form) (Announcement, error)
		Delete(ctx context.Context, p user.Principal, id int64) error
		Get(ctx context.Context, id int64) (Announcement, error)
		Search(ctx context.Context, query string) ([]Announcement, error)
		Recent(ctx context.Context, n int) ([]Announcement, error)
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

func (svc *service) Create(ctx context.Context, p user.Principal, f Form) (Announcement, error) {
	if !p.IsAdmin() {
		return Announcement{}, core.ErrForbidden
	}
	f.Clean()
	if err := svc.validate.Struct(f); err != nil {
		return Announcement{}, err
	}
	a := Announcement{
		Title:      f.Title,
		Message:    f.Message,
		AuthorID:   p.UserID,
		AuthorName: p.Name,
		CreatedAt:  nowFunc().UTC(),
	}
	a, err := svc.repo.CreateAnnouncement(ctx, a)
	return a, errors.Wrap(err, "creating announcement")
}

// Edit lets any admin change any announcement; it stamps UpdatedAt.
func (svc *service) Edit(ctx context.Context, p user.Principal, id int64, f Form) (Announcement, error) {
	if !p.IsAdmin() {
		return Announcement{}, core.ErrForbidden
	}
	a, err := svc.repo.GetAnnouncementByID(ctx, id)
	if err != nil {
		return Announcement{}, err
	}
	f.Clean()
	if err = svc.validate.Struct(f); err != nil {
		return Announcement{}, err
	}

	now := nowFunc().UTC()
	a.Title = f.Title
	a.Message = f.Message
	a.UpdatedAt = &now
	return svc.repo.UpdateAnnouncement(ctx, a)
}

func (svc *service) Delete(ctx context.Context, p user.Principal, id int64) error {
	if !p.IsAdmin() {
		return core.ErrForbidden
	}
	return svc.repo.DeleteAnnouncement(ctx, id)
}

func (svc *service) Get(ctx context.Context, id int64) (Announcement, error) {
	return svc.repo.GetAnnouncementByID(ctx, id)
}

// Search lists every announcement when query is blank.
func (svc *service) Search(ctx context.Context, query string) ([]Announcement, error) {
	filter := QueryFilter{Search: query}
	filter.Clean()
	return svc.repo.QueryAnnouncements(ctx, filter)
}

func (svc *service) Recent(ctx context.Context, n int) ([]Announcement, error) {
	return svc.repo.QueryAnnouncements(ctx, QueryFilter{Limit: n})
}

func (svc *service) Count(ctx context.Context) (int, error) {
	return svc.repo.CountAnnouncements(ctx)
}
