package echoapi

import (
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/studentportal/core"
	"github.com/trezcool/studentportal/core/assignment"
)

func (s *server) registerAssignmentRoutes() {
	s.app.GET("/assignments", s.assignments, s.requireAuth)
	s.app.GET("/upload", s.uploadPage, s.requireAuth)
	s.app.POST("/upload", s.upload, s.requireAuth)
	s.app.GET("/download/:filename", s.download, s.requireAuth)
	s.app.GET("/delete/:id", s.deleteAssignment, s.requireAuth)
}

// paramID parses the :name path parameter. Malformed ids are reported as a missing resource.
func paramID(ctx echo.Context, name, resource string) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, core.NewNotFoundError(resource)
	}
	return id, nil
}

func (s *server) assignments(ctx echo.Context) error {
	list, err := s.AssignmentSvc.ListFor(ctx.Request().Context(), mustPrincipal(ctx).UserID)
	if err != nil {
		return errors.Wrap(err, "listing assignments")
	}
	return s.render(ctx, http.StatusOK, "assignments", echo.Map{"assignments": orEmpty(list)})
}

func (s *server) uploadPage(ctx echo.Context) error {
	return s.render(ctx, http.StatusOK, "upload", echo.Map{"allowed_extensions": s.Conf.Storage.AllowedExtensions})
}

func (s *server) upload(ctx echo.Context) error {
	var up *assignment.Upload
	fh, err := ctx.FormFile("file")
	switch {
	case err == nil:
		f, err := fh.Open()
		if err != nil {
			return errors.Wrap(err, "opening uploaded file")
		}
		defer func() { _ = f.Close() }()
		up = &assignment.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(echo.HeaderContentType),
			Size:        fh.Size,
			Content:     f,
		}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart), errors.Is(err, multipart.ErrMessageTooLarge):
		// reported as "No file selected" below
	default:
		return errors.Wrap(err, "reading uploaded file")
	}

	p := mustPrincipal(ctx)
	a, err := s.AssignmentSvc.Submit(ctx.Request().Context(), p, up)
	if err != nil {
		return s.handleErr(ctx, err, "/upload", "Error uploading file")
	}
	s.Logger.Info("assignment uploaded", map[string]interface{}{"assignment_id": a.ID, "filename": a.Filename}, p)
	return s.redirect(ctx, "/assignments", flashSuccess, "File uploaded successfully")
}

func (s *server) download(ctx echo.Context) error {
	a, rc, err := s.AssignmentSvc.Open(ctx.Request().Context(), mustPrincipal(ctx), ctx.Param("filename"))
	if err != nil {
		if core.IsNotFound(err) {
			return s.bounce(ctx, "/assignments", flashDanger, "File not found")
		}
		return s.handleErr(ctx, err, "/assignments", "Error downloading file")
	}
	defer func() { _ = rc.Close() }()

	contentType := mime.TypeByExtension(filepath.Ext(a.Filename))
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename}))
	return ctx.Stream(http.StatusOK, contentType, rc)
}

func (s *server) deleteAssignment(ctx echo.Context) error {
	p := mustPrincipal(ctx)
	fallback := "/assignments"
	if p.IsAdmin() {
		fallback = "/admin/assignments"
	}

	id, err := paramID(ctx, "id", "assignment")
	if err != nil {
		return s.handleErr(ctx, err, fallback, "")
	}
	if err = s.AssignmentSvc.Delete(ctx.Request().Context(), p, id); err != nil {
		return s.handleErr(ctx, err, fallback, "Error deleting assignment")
	}
	s.Logger.Info("assignment deleted", map[string]interface{}{"assignment_id": id}, p)
	return s.redirect(ctx, fallback, flashSuccess, "Assignment deleted successfully")
}
