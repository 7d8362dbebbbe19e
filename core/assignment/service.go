package assignment

import (
	"context"
	"fmt"
	"io"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/studentportal/core"
	"github.com/trezcool/studentportal/core/notification"
	"github.com/trezcool/studentportal/core/user"
)

var (
	// errors
	ErrNotFound    = core.NewNotFoundError("assignment")
	ErrNoFile      = errors.New("No file selected")
	ErrInvalidType = errors.New("Invalid file type")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateAssignment(ctx context.Context, a Assignment, exec ...core.DBExecutor) (Assignment, error)
		GetAssignmentByID(ctx context.Context, id int64, exec ...core.DBExecutor) (Assignment, error)
		GetAssignmentByFilename(ctx context.Context, filename string, exec ...core.DBExecutor) (Assignment, error)
		// SetGrading writes all four grading columns in one statement.
		SetGrading(ctx context.Context, id int64, g Grading, exec ...core.DBExecutor) error
		DeleteAssignment(ctx context.Context, id int64, exec ...core.DBExecutor) error
		// QueryAssignments returns matching assignments, most recent upload first.
		QueryAssignments(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Assignment, error)
		CountAssignments(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		Submit(ctx context.Context, p user.Principal, up *Upload) (Assignment, error)
		Grade(ctx context.Context, p user.Principal, id int64, gf GradeForm) (Assignment, error)
		Delete(ctx context.Context, p user.Principal, id int64) error
		Get(ctx context.Context, id int64) (Assignment, error)
		// Open returns the artifact stored under filename if p may act on its owner.
		Open(ctx context.Context, p user.Principal, filename string) (Assignment, io.ReadCloser, error)
		ListFor(ctx context.Context, ownerID int64) ([]Assignment, error)
		ListAll(ctx context.Context, p user.Principal) ([]Assignment, error)
		Recent(ctx context.Context, n int) ([]Assignment, error)
		Count(ctx context.Context, filter QueryFilter) (int, error)
	}

	Deps struct {
		Tx       core.TxRunner
		Repo     Repository
		Files    core.FileStore
		NotifSvc notification.Service
		UserSvc  user.Service
		MailSvc  core.EmailService
		Events   core.EventPublisher
		Logger   core.Logger
	}

	service struct {
		Deps
		validate   *core.Validator
		allowedExt []string
	}
)

var _ Service = (*service)(nil)

func NewService(conf *core.Config, validate *core.Validator, deps Deps) Service {
	return &service{
		Deps:       deps,
		validate:   validate,
		allowedExt: conf.Storage.AllowedExtensions,
	}
}

func (svc *service) allowed(ext string) bool {
	for _, e := range svc.allowedExt {
		if e == ext {
			return true
		}
	}
	return false
}

func (svc *service) invalidTypeErr() error {
	msg := fmt.Sprintf("%s. Only %s files are allowed.", ErrInvalidType, humanList(svc.allowedExt))
	return core.NewValidationError(ErrInvalidType, core.FieldError{Field: "file", Error: msg})
}

// Submit stores the artifact then records it. The record is never created without its file.
func (svc *service) Submit(ctx context.Context, p user.Principal, up *Upload) (Assignment, error) {
	if up == nil || up.Content == nil || core.CleanString(up.Filename) == "" {
		return Assignment{}, core.NewValidationError(ErrNoFile, core.FieldError{Field: "file", Error: ErrNoFile.Error()})
	}
	if !svc.allowed(extension(up.Filename)) {
		return Assignment{}, svc.invalidTypeErr()
	}
	safeName := uploadName(up.Filename)

	now := nowFunc().UTC()
	a := Assignment{
		OwnerID:    p.UserID,
		OwnerName:  p.Name,
		Filename:   storedFilename(p.UserID, now, safeName),
		UploadedAt: now,
	}
	if err := svc.Files.Save(ctx, a.Filename, up.Content, up.Size, up.ContentType); err != nil {
		return Assignment{}, core.NewStorageError("saving assignment file", err)
	}

	created, err := svc.Repo.CreateAssignment(ctx, a)
	if err != nil {
		if rmErr := svc.Files.Remove(ctx, a.Filename); rmErr != nil {
			svc.Logger.Error("removing orphaned assignment file", rmErr, map[string]interface{}{"filename": a.Filename}, p)
		}
		return Assignment{}, core.NewStorageError("creating assignment", err)
	}

	svc.publish(ctx, p, core.Event{
		Kind:       core.EventAssignmentSubmitted,
		ActorID:    p.UserID,
		SubjectID:  created.ID,
		Data:       map[string]interface{}{"filename": created.Filename},
		OccurredAt: now,
	})
	return created, nil
}

func gradedMessage(filename, grade string) string {
	return fmt.Sprintf("Your assignment %q has been graded: %s", filename, grade)
}

// Grade records the grading and notifies the owner in a single transaction.
// Re-grading overwrites the previous grading and sends a new notification.
func (svc *service) Grade(ctx context.Context, p user.Principal, id int64, gf GradeForm) (Assignment, error) {
	if !p.IsAdmin() {
		return Assignment{}, core.ErrForbidden
	}
	gf.Clean()
	if err := svc.validate.Struct(gf); err != nil {
		return Assignment{}, err
	}

	var graded Assignment
	err := svc.Tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		a, err := svc.Repo.GetAssignmentByID(ctx, id, exec)
		if err != nil {
			return err
		}
		g := Grading{
			Grade:      gf.Grade,
			Comments:   gf.Comments,
			GradedBy:   p.UserID,
			GraderName: p.Name,
			GradedAt:   nowFunc().UTC(),
		}
		if err = svc.Repo.SetGrading(ctx, a.ID, g, exec); err != nil {
			return core.NewStorageError("grading assignment", err)
		}
		if _, err = svc.NotifSvc.SendOne(ctx, a.OwnerID, gradedMessage(a.Filename, g.Grade), exec); err != nil {
			return core.NewStorageError("notifying assignment owner", err)
		}
		a.Grading = &g
		graded = a
		return nil
	})
	if err != nil {
		return Assignment{}, err
	}

	svc.publish(ctx, p, core.Event{
		Kind:       core.EventAssignmentGraded,
		ActorID:    p.UserID,
		SubjectID:  graded.ID,
		Data:       map[string]interface{}{"filename": graded.Filename, "grade": graded.Grading.Grade, "owner_id": graded.OwnerID},
		OccurredAt: graded.Grading.GradedAt,
	})
	svc.mailOwner(ctx, p, graded)
	return graded, nil
}

// mailOwner mirrors the grading notification by email. Failures are logged only.
func (svc *service) mailOwner(ctx context.Context, p user.Principal, a Assignment) {
	if svc.MailSvc == nil {
		return
	}
	owner, err := svc.UserSvc.GetByID(ctx, a.OwnerID)
	if err != nil {
		svc.Logger.Warn("finding assignment owner for grading email", err, p)
		return
	}
	svc.MailSvc.SendMessages(&core.EmailMessage{
		To:          []mail.Address{{Name: owner.Name, Address: owner.Email}},
		Subject:     "Assignment graded",
		TextContent: gradedMessage(a.Filename, a.Grading.Grade),
	})
}

// Delete removes the record inside a transaction, then the stored file.
// A file that cannot be removed is logged and left behind.
func (svc *service) Delete(ctx context.Context, p user.Principal, id int64) error {
	var deleted Assignment
	err := svc.Tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		a, err := svc.Repo.GetAssignmentByID(ctx, id, exec)
		if err != nil {
			return err
		}
		if !p.CanActOn(a.OwnerID) {
			return core.ErrForbidden
		}
		if err = svc.Repo.DeleteAssignment(ctx, a.ID, exec); err != nil {
			return core.NewStorageError("deleting assignment", err)
		}
		deleted = a
		return nil
	})
	if err != nil {
		return err
	}

	if err = svc.Files.Remove(ctx, deleted.Filename); err != nil {
		svc.Logger.Error("removing assignment file", err, map[string]interface{}{"filename": deleted.Filename}, p)
	}

	svc.publish(ctx, p, core.Event{
		Kind:       core.EventAssignmentDeleted,
		ActorID:    p.UserID,
		SubjectID:  deleted.ID,
		Data:       map[string]interface{}{"filename": deleted.Filename, "owner_id": deleted.OwnerID},
		OccurredAt: nowFunc().UTC(),
	})
	return nil
}

func (svc *service) Get(ctx context.Context, id int64) (Assignment, error) {
	return svc.Repo.GetAssignmentByID(ctx, id)
}

func (svc *service) Open(ctx context.Context, p user.Principal, filename string) (Assignment, io.ReadCloser, error) {
	a, err := svc.Repo.GetAssignmentByFilename(ctx, filename)
	if err != nil {
		return Assignment{}, nil, err
	}
	if !p.CanActOn(a.OwnerID) {
		return Assignment{}, nil, core.ErrForbidden
	}
	rc, err := svc.Files.Open(ctx, a.Filename)
	if err != nil {
		if core.IsFileNotFound(err) {
			return Assignment{}, nil, err
		}
		return Assignment{}, nil, core.NewStorageError("opening assignment file", err)
	}
	return a, rc, nil
}

func (svc *service) ListFor(ctx context.Context, ownerID int64) ([]Assignment, error) {
	return svc.Repo.QueryAssignments(ctx, QueryFilter{OwnerID: ownerID})
}

func (svc *service) ListAll(ctx context.Context, p user.Principal) ([]Assignment, error) {
	if !p.IsAdmin() {
		return nil, core.ErrForbidden
	}
	return svc.Repo.QueryAssignments(ctx, QueryFilter{})
}

func (svc *service) Recent(ctx context.Context, n int) ([]Assignment, error) {
	return svc.Repo.QueryAssignments(ctx, QueryFilter{Limit: n})
}

func (svc *service) Count(ctx context.Context, filter QueryFilter) (int, error) {
	return svc.Repo.CountAssignments(ctx, filter)
}

func (svc *service) publish(ctx context.Context, p user.Principal, evt core.Event) {
	if svc.Events == nil {
		return
	}
	if err := svc.Events.Publish(ctx, evt); err != nil {
		svc.Logger.Error("publishing event", errors.Wrap(err, evt.Kind), p)
	}
}
