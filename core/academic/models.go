package academic

import (
	"context"
	"time"

	"github.com/trezcool/academia/core"
)

var (
	// errors
	ErrGroupNotFound     = core.NewError(core.KindGroupNotFound, "group does not exist")
	ErrGroupExists       = core.NewError(core.KindGroupAlreadyExists, "group already exists")
	ErrNotTeacher        = core.NewError(core.KindRoleMismatch, "user (teacher) does not have role teacher")
	ErrNotStudent        = core.NewError(core.KindRoleMismatch, "user (student) does not have role user")
	ErrStudentNotInGroup = core.NewError(core.KindStudentNotInGroup, "student does not exist in the group")
	ErrLessonNotFound    = core.NewError(core.KindLessonNotFound, "lesson does not exist")
	ErrLessonExists      = core.NewError(core.KindLessonAlreadyExists, "lesson already exists in the group")
	ErrInvalidGradeValue = core.NewError(core.KindInvalidGradeValue, "incorrect grade: must be one of pass, fail")
)

type GradeValue string

const (
	GradePass GradeValue = "PASS"
	GradeFail GradeValue = "FAIL"
)

// ParseGradeValue maps "pass" & "fail" (case-insensitive) to a GradeValue.
func ParseGradeValue(s string) (GradeValue, error) {
	switch core.CleanString(s, true /* lower */) {
	case "pass":
		return GradePass, nil
	case "fail":
		return GradeFail, nil
	default:
		return "", ErrInvalidGradeValue
	}
}

type (
	Group struct {
		Num        int   `json:"group_num"`
		TeacherID  *int  `json:"teacher_id"`
		StudentIDs []int `json:"users_id"`
		JournalID  *int  `json:"-"`
	}

	// GroupSummary is the Group list projection.
	GroupSummary struct {
		Group
		Lessons []string `json:"lessons"`
	}

	// GroupDetail is a Group with its Journal's lessons.
	GroupDetail struct {
		Group
		Lessons []Lesson `json:"lessons"`
	}

	Journal struct {
		ID       int `json:"id"`
		GroupNum int `json:"group_num"`
	}

	Lesson struct {
		ID        int       `json:"id"`
		JournalID int       `json:"journal_id"`
		GroupNum  int       `json:"group_num"`
		Name      string    `json:"name"`
		CreatedAt time.Time `json:"created_at"` // UTC
		Tasks     []Task    `json:"tasks,omitempty"`
		Grades    []Grade   `json:"grades,omitempty"`
	}

	Task struct {
		ID       int    `json:"id"`
		LessonID int    `json:"lesson_id"`
		Name     string `json:"name"`
	}

	Grade struct {
		ID        int        `json:"id"`
		LessonID  int        `json:"lesson_id"`
		StudentID int        `json:"student_id"`
		Value     GradeValue `json:"grade"`
		GradedBy  int        `json:"graded_by"`
		CreatedAt time.Time  `json:"created_at"` // UTC
	}

	// GradeFilter matches grades on the non-zero fields.
	GradeFilter struct {
		LessonID  int
		StudentID int
	}
)

func (g Group) HasStudent(id int) bool {
	for _, sid := range g.StudentIDs {
		if sid == id {
			return true
		}
	}
	return false
}

type (
	GroupRepository interface {
		// CreateGroup returns ErrGroupExists if the group number is taken.
		CreateGroup(ctx context.Context, grp Group) (Group, error)
		// GetGroup returns ErrGroupNotFound if absent.
		GetGroup(ctx context.Context, num int) (Group, error)
		QueryGroups(ctx context.Context) ([]Group, error)
		// SetGroupTeacher sets (or clears, when teacherID is nil) the group's teacher.
		SetGroupTeacher(ctx context.Context, num int, teacherID *int) error
		AddGroupStudent(ctx context.Context, num, studentID int) error
		// RemoveGroupStudent returns ErrStudentNotInGroup if studentID is not a member.
		RemoveGroupStudent(ctx context.Context, num, studentID int) error
		// DeleteGroup deletes the group with its journal, lessons, tasks & grades.
		DeleteGroup(ctx context.Context, num int) error
		CreateJournal(ctx context.Context, groupNum int) (Journal, error)
	}

	LessonRepository interface {
		// CreateLesson returns ErrLessonExists if the name is taken in the journal.
		CreateLesson(ctx context.Context, lsn Lesson) (Lesson, error)
		// GetLesson returns ErrLessonNotFound if absent.
		GetLesson(ctx context.Context, id int) (Lesson, error)
		LessonNameExists(ctx context.Context, journalID int, name string) (bool, error)
		QueryLessons(ctx context.Context, journalID int) ([]Lesson, error)
		CreateTask(ctx context.Context, task Task) (Task, error)
		QueryTasks(ctx context.Context, lessonID int) ([]Task, error)
	}

	GradeRepository interface {
		CreateGrade(ctx context.Context, grd Grade) (Grade, error)
		QueryGrades(ctx context.Context, filter GradeFilter) ([]Grade, error)
	}
)
