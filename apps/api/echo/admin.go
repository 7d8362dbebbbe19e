package echoapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/studentportal/core/announcement"
	"github.com/trezcool/studentportal/core/assignment"
	"github.com/trezcool/studentportal/core/notification"
)

func (s *server) registerAdminRoutes() {
	g := s.app.Group("/admin", s.requireAuth, s.requireAdmin)

	g.GET("/dashboard", s.adminDashboard)
	g.GET("/students", s.adminStudents)
	g.GET("/student/:id", s.adminStudentDetail)
	g.GET("/assignments", s.adminAssignments)
	g.GET("/grade/:id", s.gradePage)
	g.POST("/grade/:id", s.grade)

	g.GET("/announcements", s.adminAnnouncements)
	g.GET("/announcement/create", s.announcementFormPage)
	g.POST("/announcement/create", s.createAnnouncement)
	g.GET("/announcement/edit/:id", s.editAnnouncementPage)
	g.POST("/announcement/edit/:id", s.editAnnouncement)
	g.GET("/announcement/delete/:id", s.deleteAnnouncement)

	g.GET("/feedback", s.adminFeedback)
	g.GET("/notifications", s.adminNotificationsPage)
	g.POST("/notifications", s.sendNotification)
}

type adminStats struct {
	TotalStudents       int `json:"total_students"`
	TotalAssignments    int `json:"total_assignments"`
	TotalAnnouncements  int `json:"total_announcements"`
	TotalFeedback       int `json:"total_feedback"`
	UngradedAssignments int `json:"ungraded_assignments"`
}

func (s *server) adminDashboard(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	var stats adminStats
	var err error
	if stats.TotalStudents, err = s.UserSvc.CountStudents(reqCtx); err != nil {
		return errors.Wrap(err, "counting students")
	}
	if stats.TotalAssignments, err = s.AssignmentSvc.Count(reqCtx, assignment.QueryFilter{}); err != nil {
		return errors.Wrap(err, "counting assignments")
	}
	if stats.TotalAnnouncements, err = s.AnnouncementSvc.Count(reqCtx); err != nil {
		return errors.Wrap(err, "counting announcements")
	}
	if stats.TotalFeedback, err = s.FeedbackSvc.Count(reqCtx); err != nil {
		return errors.Wrap(err, "counting feedback")
	}
	if stats.UngradedAssignments, err = s.AssignmentSvc.Count(reqCtx, assignment.QueryFilter{Ungraded: true}); err != nil {
		return errors.Wrap(err, "counting ungraded assignments")
	}

	recentAssignments, err := s.AssignmentSvc.Recent(reqCtx, 5)
	if err != nil {
		return errors.Wrap(err, "querying recent assignments")
	}
	recentFeedback, err := s.FeedbackSvc.Recent(reqCtx, 5)
	if err != nil {
		return errors.Wrap(err, "querying recent feedback")
	}

	return s.render(ctx, http.StatusOK, "admin_dashboard", echo.Map{
		"stats":              stats,
		"recent_assignments": orEmpty(recentAssignments),
		"recent_feedback":    orEmpty(recentFeedback),
	})
}

func (s *server) adminStudents(ctx echo.Context) error {
	students, err := s.UserSvc.QueryStudents(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return s.render(ctx, http.StatusOK, "admin_students", echo.Map{"students": orEmpty(students)})
}

func (s *server) adminStudentDetail(ctx echo.Context) error {
	id, err := paramID(ctx, "id", "student")
	if err != nil {
		return s.handleErr(ctx, err, "/admin/students", "")
	}
	reqCtx := ctx.Request().Context()

	student, err := s.UserSvc.GetStudent(reqCtx, id)
	if err != nil {
		return s.handleErr(ctx, err, "/admin/students", "")
	}
	assignments, err := s.AssignmentSvc.ListFor(reqCtx, id)
	if err != nil {
		return errors.Wrap(err, "listing student assignments")
	}
	fb, err := s.FeedbackSvc.ListForUser(reqCtx, id)
	if err != nil {
		return errors.Wrap(err, "listing student feedback")
	}
	return s.render(ctx, http.StatusOK, "admin_student_detail", echo.Map{
		"student":     student,
		"assignments": orEmpty(assignments),
		"feedback":    orEmpty(fb),
	})
}

func (s *server) adminAssignments(ctx echo.Context) error {
	list, err := s.AssignmentSvc.ListAll(ctx.Request().Context(), mustPrincipal(ctx))
	if err != nil {
		return s.handleErr(ctx, err, "/admin/dashboard", "")
	}
	return s.render(ctx, http.StatusOK, "admin_assignments", echo.Map{"assignments": orEmpty(list)})
}

func (s *server) gradePage(ctx echo.Context) error {
	id, err := paramID(ctx, "id", "assignment")
	if err != nil {
		return s.handleErr(ctx, err, "/admin/assignments", "")
	}
	a, err := s.AssignmentSvc.Get(ctx.Request().Context(), id)
	if err != nil {
		return s.handleErr(ctx, err, "/admin/assignments", "")
	}
	return s.render(ctx, http.StatusOK, "admin_grade", echo.Map{"assignment": a})
}

func (s *server) grade(ctx echo.Context) error {
	id, err := paramID(ctx, "id", "assignment")
	if err != nil {
		return s.handleErr(ctx, err, "/admin/assignments", "")
	}
	var data assignment.GradeForm
	if err = ctx.Bind(&data); err != nil {
		return err
	}

	p := mustPrincipal(ctx)
	a, err := s.AssignmentSvc.Grade(ctx.Request().Context(), p, id, data)
	if err != nil {
		return s.handleErr(ctx, err, "/admin/assignments", "Error grading assignment")
	}
	s.metrics.notified("graded", 1)
	s.Logger.Info("assignment graded", map[string]interface{}{"assignment_id": a.ID, "grade": a.Grading.Grade}, p)
	return s.redirect(ctx, "/admin/assignments", flashSuccess, "Assignment graded successfully")
}

func (s *server) adminAnnouncements(ctx echo.Context) error {
	list, err := s.AnnouncementSvc.Search(ctx.Request().Context(), ctx.QueryParam("search"))
	if err != nil {
		return errors.Wrap(err, "listing announcements")
	}
	return s.render(ctx, http.StatusOK, "admin_announcements", echo.Map{"announcements": orEmpty(list)})
}

func (s *server) announcementFormPage(ctx echo.Context) error {
	return s.render(ctx, http.StatusOK, "admin_announcement_form", nil)
}

func (s *server) createAnnouncement(ctx echo.Context) error {
	var data announcement.Form
	if err := ctx.Bind(&data); err != nil {
		return err
	}
	p := mustPrincipal(ctx)
	a, err := s.AnnouncementSvc.Create(ctx.Request().Context(), p, data)
	if err != nil {
		return s.handleErr(ctx, err, "/admin/announcements", "Error creating announcement")
	}
	s.Logger.Info("announcement created", map[string]interface{}{"announcement_id": a.ID}, p)
	return s.redirect(ctx, "/admin/announcements", flashSuccess, "Announcement created successfully")
}

func (s *server) editAnnouncementPage(ctx echo.Context) error {
	id, err := paramID(ctx, "id", "announcement")
	if err != nil {
		return s.handleErr(ctx, err, "/admin/announcements", "")
	}
	a, err := s.AnnouncementSvc.Get(ctx.Request().Context(), id)
	if err != nil {
		return s.handleErr(ctx, err, "/admin/announcements", "")
	}
	return s.render(ctx, http.StatusOK, "admin_announcement_form", echo.Map{"announcement": a})
}

func (s *server) editAnnouncement(ctx echo.Context) error {
	id, err := paramID(ctx, "id", "announcement")
	if err != nil {
		return s.handleErr(ctx, err, "/admin/announcements", "")
	}
	var data announcement.Form
	if err = ctx.Bind(&data); err != nil {
		return err
	}
	p := mustPrincipal(ctx)
	if _, err = s.AnnouncementSvc.Edit(ctx.Request().Context(), p, id, data); err != nil {
		return s.handleErr(ctx, err, "/admin/announcements", "Error updating announcement")
	}
	s.Logger.Info("announcement updated", map[string]interface{}{"announcement_id": id}, p)
	return s.redirect(ctx, "/admin/announcements", flashSuccess, "Announcement updated successfully")
}

func (s *server) deleteAnnouncement(ctx echo.Context) error {
	id, err := paramID(ctx, "id", "announcement")
	if err != nil {
		return s.handleErr(ctx, err, "/admin/announcements", "")
	}
	p := mustPrincipal(ctx)
	if err = s.AnnouncementSvc.Delete(ctx.Request().Context(), p, id); err != nil {
		return s.handleErr(ctx, err, "/admin/announcements", "Error deleting announcement")
	}
	s.Logger.Info("announcement deleted", map[string]interface{}{"announcement_id": id}, p)
	return s.redirect(ctx, "/admin/announcements", flashSuccess, "Announcement deleted successfully")
}

func (s *server) adminFeedback(ctx echo.Context) error {
	rating, _ := strconv.Atoi(ctx.QueryParam("rating")) // 0 (any) when absent or malformed
	list, err := s.FeedbackSvc.ListAll(ctx.Request().Context(), mustPrincipal(ctx), rating)
	if err != nil {
		return s.handleErr(ctx, err, "/admin/dashboard", "")
	}
	var ratingFilter interface{}
	if rating >= 1 && rating <= 5 {
		ratingFilter = rating
	}
	return s.render(ctx, http.StatusOK, "admin_feedback", echo.Map{
		"feedback":      orEmpty(list),
		"rating_filter": ratingFilter,
	})
}

func (s *server) adminNotificationsPage(ctx echo.Context) error {
	students, err := s.UserSvc.QueryStudents(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return s.render(ctx, http.StatusOK, "admin_notifications", echo.Map{"students": orEmpty(students)})
}

func (s *server) sendNotification(ctx echo.Context) error {
	var data notification.Send
	if err := ctx.Bind(&data); err != nil {
		return err
	}
	data.Clean()

	p := mustPrincipal(ctx)
	reqCtx := ctx.Request().Context()
	if data.IsBroadcast() {
		count, err := s.NotifSvc.Broadcast(reqCtx, p, data.Message)
		if err != nil {
			return s.handleErr(ctx, err, "/admin/notifications", "Error sending notification")
		}
		s.metrics.notified("broadcast", count)
		s.Logger.Info("notification sent to all students", map[string]interface{}{"recipients": count}, p)
		return s.redirect(ctx, "/admin/notifications", flashSuccess, fmt.Sprintf("Notification sent to all %d students", count))
	}

	if _, err := s.NotifSvc.SendToStudent(reqCtx, p, data.StudentID, data.Message); err != nil {
		return s.handleErr(ctx, err, "/admin/notifications", "Error sending notification")
	}
	s.metrics.notified("targeted", 1)
	s.Logger.Info("notification sent to student", map[string]interface{}{"student_id": data.StudentID}, p)
	return s.redirect(ctx, "/admin/notifications", flashSuccess, "Notification sent successfully")
}
