package echoapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/studentportal/core"
	"github.com/trezcool/studentportal/core/assignment"
	"github.com/trezcool/studentportal/core/feedback"
	"github.com/trezcool/studentportal/core/user"
)

func Test_adminDashboard(t *testing.T) {
	app := setup(t)
	ann := app.createUser(t, "Ann", "ann@x.com", user.RoleStudent)
	app.createUser(t, "Bob", "bob@x.com", user.RoleStudent)
	admin := app.createUser(t, "Admin", "admin@x.com", user.RoleAdmin)

	ctx := context.Background()
	annCookie := app.login(t, "ann@x.com")
	require.Equal(t, http.StatusSeeOther, app.upload(t, "one.pdf", pdfContent, annCookie).Code)
	require.Equal(t, http.StatusSeeOther, app.upload(t, "two.pdf", pdfContent, annCookie).Code)
	list, err := app.svcs.AssignmentSvc.ListFor(ctx, ann.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	_, err = app.svcs.AssignmentSvc.Grade(ctx, admin.Principal(), list[0].ID, assignment.GradeForm{Grade: "B"})
	require.NoError(t, err)
	_, err = app.svcs.AnnouncementSvc.Create(ctx, admin.Principal(), announcementForm("Exams", "Next week"))
	require.NoError(t, err)
	_, err = app.svcs.FeedbackSvc.Submit(ctx, ann.Principal(), feedback.Form{Subject: "Labs", Message: "More please", Rating: 4})
	require.NoError(t, err)

	rec := app.get("/admin/dashboard", app.login(t, "admin@x.com"))
	require.Equal(t, http.StatusOK, rec.Code)
	var res struct {
		Stats             adminStats        `json:"stats"`
		RecentAssignments []assignmentRow `json:"recent_assignments"`
		RecentFeedback    []feedbackRow   `json:"recent_feedback"`
	}
	decode(t, rec, &res)
	assert.Equal(t, adminStats{
		TotalStudents:       2,
		TotalAssignments:    2,
		TotalAnnouncements:  1,
		TotalFeedback:       1,
		UngradedAssignments: 1,
	}, res.Stats)
	require.Len(t, res.RecentAssignments, 2)
	assert.Equal(t, "Ann", res.RecentAssignments[0].OwnerName)
	require.Len(t, res.RecentFeedback, 1)
	assert.Equal(t, "Ann", res.RecentFeedback[0].AuthorName)
}

type assignmentRow struct {
	ID        int64  `json:"id"`
	OwnerName string `json:"owner_name"`
}

type feedbackRow struct {
	Rating     int    `json:"rating"`
	AuthorName string `json:"author_name"`
}

func Test_adminStudents(t *testing.T) {
	app := setup(t)
	ann := app.createUser(t, "Ann", "ann@x.com", user.RoleStudent)
	admin := app.createUser(t, "Admin", "admin@x.com", user.RoleAdmin)
	c := app.login(t, "admin@x.com")

	rec := app.get("/admin/students", c)
	require.Equal(t, http.StatusOK, rec.Code)
	var res struct {
		Students []struct {
			Email string `json:"email"`
		} `json:"students"`
	}
	decode(t, rec, &res)
	require.Len(t, res.Students, 1)
	assert.Equal(t, "ann@x.com", res.Students[0].Email)

	rec = app.get("/admin/student/"+strconv.FormatInt(ann.ID, 10), c)
	require.Equal(t, http.StatusOK, rec.Code)

	for _, id := range []string{strconv.FormatInt(admin.ID, 10), "999", "abc"} {
		rec = app.get("/admin/student/"+id, c)
		assert.Equal(t, http.StatusFound, rec.Code, id)
		assert.Equal(t, "/admin/students", rec.Header().Get("Location"))
	}
	assert.Equal(t, []Flash{{Level: flashDanger, Message: "Student not found"}}, redirectFlashes(t, rec))
}

func Test_sendNotification(t *testing.T) {
	app := setup(t)
	ann := app.createUser(t, "Ann", "ann@x.com", user.RoleStudent)
	bob := app.createUser(t, "Bob", "bob@x.com", user.RoleStudent)
	admin := app.createUser(t, "Admin", "admin@x.com", user.RoleAdmin)
	c := app.login(t, "admin@x.com")

	unread := func(id int64) int {
		n, err := app.svcs.NotifSvc.UnreadCount(context.Background(), id)
		require.NoError(t, err)
		return n
	}

	t.Run("broadcast", func(t *testing.T) {
		rec := app.postForm("/admin/notifications", url.Values{"message": {"Campus closed"}, "recipient_type": {"all"}}, c)
		require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
		assert.Equal(t, []Flash{{Level: flashSuccess, Message: "Notification sent to all 2 students"}}, redirectFlashes(t, rec))
		assert.Equal(t, 1, unread(ann.ID))
		assert.Equal(t, 1, unread(bob.ID))
		assert.Zero(t, unread(admin.ID))
		assert.Equal(t, []string{core.EventNotificationBroadcast}, app.svcs.Events.Kinds())
	})

	t.Run("targeted", func(t *testing.T) {
		rec := app.postForm("/admin/notifications", url.Values{
			"message": {"See me"}, "recipient_type": {"student"}, "student_id": {strconv.FormatInt(ann.ID, 10)},
		}, c)
		require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
		assert.Equal(t, []Flash{{Level: flashSuccess, Message: "Notification sent successfully"}}, redirectFlashes(t, rec))
		assert.Equal(t, 2, unread(ann.ID))
		assert.Equal(t, 1, unread(bob.ID))
	})

	t.Run("unknown student", func(t *testing.T) {
		rec := app.postForm("/admin/notifications", url.Values{
			"message": {"See me"}, "recipient_type": {"student"}, "student_id": {strconv.FormatInt(admin.ID, 10)},
		}, c)
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, []Flash{{Level: flashDanger, Message: "Student not found"}}, redirectFlashes(t, rec))
		assert.Zero(t, unread(admin.ID))
	})

	t.Run("blank message", func(t *testing.T) {
		rec := app.postForm("/admin/notifications", url.Values{"message": {"  "}}, c)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var errs map[string]string
		decode(t, rec, &errs)
		assert.Equal(t, map[string]string{"message": "Message is required"}, errs)
	})
}

func Test_announcements(t *testing.T) {
	app := setup(t)
	app.createUser(t, "Ann", "ann@x.com", user.RoleStudent)
	app.createUser(t, "Admin", "admin@x.com", user.RoleAdmin)
	admin := app.login(t, "admin@x.com")
	ann := app.login(t, "ann@x.com")

	type listing struct {
		Announcements []struct {
			ID        int64   `json:"id"`
			Title     string  `json:"title"`
			Message   string  `json:"message"`
			UpdatedAt *string `json:"updated_at"`
		} `json:"announcements"`
	}
	search := func(query string) listing {
		rec := app.get("/announcements?search="+url.QueryEscape(query), ann)
		require.Equal(t, http.StatusOK, rec.Code)
		var res listing
		decode(t, rec, &res)
		return res
	}

	rec := app.postForm("/admin/announcement/create", url.Values{"title": {"Midterm Exams"}, "message": {"Room 101"}}, admin)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, []Flash{{Level: flashSuccess, Message: "Announcement created successfully"}}, redirectFlashes(t, rec))
	rec = app.postForm("/admin/announcement/create", url.Values{"title": {"Library"}, "message": {"Open 100% of the time"}}, admin)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	t.Run("students cannot manage announcements", func(t *testing.T) {
		rec := app.postForm("/admin/announcement/create", url.Values{"title": {"Hack"}, "message": {"x"}}, ann)
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Len(t, search("").Announcements, 2)
	})

	t.Run("validation", func(t *testing.T) {
		rec := app.postForm("/admin/announcement/create", url.Values{"title": {""}, "message": {"x"}}, admin)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var errs map[string]string
		decode(t, rec, &errs)
		assert.Equal(t, map[string]string{"title": "title is required"}, errs)
	})

	t.Run("search", func(t *testing.T) {
		assert.Len(t, search("").Announcements, 2)
		res := search("EXAM")
		require.Len(t, res.Announcements, 1)
		assert.Equal(t, "Midterm Exams", res.Announcements[0].Title)
		res = search("room")
		require.Len(t, res.Announcements, 1)
		assert.Len(t, search("100%").Announcements, 1)
		assert.Len(t, search("%").Announcements, 1)
		assert.Empty(t, search("nothing here").Announcements)
	})

	id := strconv.FormatInt(search("library").Announcements[0].ID, 10)

	t.Run("edit", func(t *testing.T) {
		rec := app.get("/admin/announcement/edit/"+id, admin)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = app.postForm("/admin/announcement/edit/"+id, url.Values{"title": {"Library hours"}, "message": {"8 to 8"}}, admin)
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, []Flash{{Level: flashSuccess, Message: "Announcement updated successfully"}}, redirectFlashes(t, rec))

		res := search("library")
		require.Len(t, res.Announcements, 1)
		assert.Equal(t, "Library hours", res.Announcements[0].Title)
		assert.NotNil(t, res.Announcements[0].UpdatedAt)

		rec = app.postForm("/admin/announcement/edit/999", url.Values{"title": {"x"}, "message": {"y"}}, admin)
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, []Flash{{Level: flashDanger, Message: "Announcement not found"}}, redirectFlashes(t, rec))
	})

	t.Run("delete", func(t *testing.T) {
		rec := app.get("/admin/announcement/delete/"+id, admin)
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, []Flash{{Level: flashSuccess, Message: "Announcement deleted successfully"}}, redirectFlashes(t, rec))
		assert.Len(t, search("").Announcements, 1)

		rec = app.get("/admin/announcement/delete/"+id, admin)
		assert.Equal(t, http.StatusFound, rec.Code)
	})
}

func Test_feedback(t *testing.T) {
	app := setup(t)
	app.createUser(t, "Ann", "ann@x.com", user.RoleStudent)
	app.createUser(t, "Bob", "bob@x.com", user.RoleStudent)
	app.createUser(t, "Admin", "admin@x.com", user.RoleAdmin)
	ann := app.login(t, "ann@x.com")
	bob := app.login(t, "bob@x.com")

	form := func(subject, rating string) url.Values {
		return url.Values{"subject": {subject}, "message": {"Some thoughts"}, "rating": {rating}}
	}

	tests := []struct {
		name     string
		data     url.Values
		wantErrs map[string]string
	}{
		{name: "rating too low", data: form("Labs", "0"), wantErrs: map[string]string{"rating": "rating is required"}},
		{name: "rating too high", data: form("Labs", "6"), wantErrs: map[string]string{"rating": "rating must be 5 or less"}},
		{name: "subject required", data: form("", "3"), wantErrs: map[string]string{"subject": "subject is required"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.postForm("/feedback", tt.data, ann)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			var errs map[string]string
			decode(t, rec, &errs)
			assert.Equal(t, tt.wantErrs, errs)
		})
	}

	rec := app.postForm("/feedback", form("Labs", "5"), ann)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, []Flash{{Level: flashSuccess, Message: "Feedback submitted successfully"}}, redirectFlashes(t, rec))
	require.Equal(t, http.StatusSeeOther, app.postForm("/feedback", form("Library", "2"), bob).Code)

	t.Run("students see their own", func(t *testing.T) {
		rec := app.get("/feedback", ann)
		require.Equal(t, http.StatusOK, rec.Code)
		var res struct {
			Feedback []feedbackRow `json:"feedback"`
		}
		decode(t, rec, &res)
		require.Len(t, res.Feedback, 1)
		assert.Equal(t, 5, res.Feedback[0].Rating)
	})

	t.Run("admin filter", func(t *testing.T) {
		c := app.login(t, "admin@x.com")
		tests := []struct {
			query      string
			wantLen    int
			wantFilter interface{}
		}{
			{query: "", wantLen: 2, wantFilter: nil},
			{query: "?rating=2", wantLen: 1, wantFilter: float64(2)},
			{query: "?rating=4", wantLen: 0, wantFilter: float64(4)},
			{query: "?rating=abc", wantLen: 2, wantFilter: nil},
		}
		for _, tt := range tests {
			rec := app.get("/admin/feedback"+tt.query, c)
			require.Equal(t, http.StatusOK, rec.Code)
			var res struct {
				Feedback     []feedbackRow `json:"feedback"`
				RatingFilter interface{}     `json:"rating_filter"`
			}
			decode(t, rec, &res)
			assert.Len(t, res.Feedback, tt.wantLen, tt.query)
			assert.Equal(t, tt.wantFilter, res.RatingFilter, tt.query)
		}
	})
}
