package assignment

import (
	"io"
	"time"

	"github.com/trezcool/studentportal/core"
)

type State string

const (
	StateSubmitted State = "submitted"
	StateGraded    State = "graded"
)

// Grading is set as a whole when an admin grades an assignment.
type Grading struct {
	Grade      string    `json:"grade"`
	Comments   string    `json:"comments"`
	GradedBy   int64     `json:"graded_by"`
	GraderName string    `json:"grader_name,omitempty"`
	GradedAt   time.Time `json:"graded_at"` // UTC
}

type Assignment struct {
	ID         int64     `json:"id"`
	OwnerID    int64     `json:"owner_id"`
	OwnerName  string    `json:"owner_name,omitempty"`
	Filename   string    `json:"filename"`
	UploadedAt time.Time `json:"uploaded_at"` // UTC
	Grading    *Grading  `json:"grading,omitempty"`
}

func (a Assignment) State() State {
	if a.Grading != nil {
		return StateGraded
	}
	return StateSubmitted
}

// Upload is an artifact received from a student.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

type GradeForm struct {
	Grade    string `json:"grade" form:"grade" validate:"required,max=10"`
	Comments string `json:"comments" form:"comments"`
}

func (gf *GradeForm) Clean() {
	gf.Grade = core.CleanString(gf.Grade)
	gf.Comments = core.CleanString(gf.Comments)
}

type QueryFilter struct {
	OwnerID  int64 // 0 matches every owner
	Ungraded bool
	Limit    int
}
