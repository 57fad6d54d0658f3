package academic

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/auth"
	"github.com/trezcool/academia/core/user"
)

var NowFunc = time.Now // mockable

type (
	Deps struct {
		DB      core.Transactor
		Users   user.Repository
		Groups  GroupRepository
		Lessons LessonRepository
		Grades  GradeRepository
	}

	// Graph is the mutation & query surface over groups, journals, lessons, tasks and grades.
	// every operation receives the resolved caller and runs in one transaction.
	Graph struct {
		db      core.Transactor
		users   user.Repository
		groups  GroupRepository
		lessons LessonRepository
		grades  GradeRepository
	}
)

func NewGraph(deps Deps) *Graph {
	return &Graph{
		db:      deps.DB,
		users:   deps.Users,
		groups:  deps.Groups,
		lessons: deps.Lessons,
		grades:  deps.Grades,
	}
}

// run checks that caller may perform op, then runs fn in a transaction.
func (g *Graph) run(ctx context.Context, caller user.User, op auth.Operation, fn func(ctx context.Context) error) error {
	if err := auth.Permits(caller, op); err != nil {
		return err
	}
	return g.db.WithinTx(ctx, fn)
}

func (g *Graph) getUser(ctx context.Context, id int) (user.User, error) {
	usr, err := g.users.GetUserByID(ctx, id)
	return usr, errors.Wrap(err, "finding user by ID")
}

func (g *Graph) getGroup(ctx context.Context, num int) (Group, error) {
	grp, err := g.groups.GetGroup(ctx, num)
	return grp, errors.Wrap(err, "finding group")
}

func (g *Graph) getLesson(ctx context.Context, id int) (Lesson, error) {
	lsn, err := g.lessons.GetLesson(ctx, id)
	return lsn, errors.Wrap(err, "finding lesson")
}

func (g *Graph) CreateGroup(ctx context.Context, caller user.User, num int) (Group, error) {
	var grp Group
	err := g.run(ctx, caller, auth.OpCreateGroup, func(ctx context.Context) error {
		_, err := g.groups.GetGroup(ctx, num)
		if err == nil {
			return ErrGroupExists
		}
		if errors.Cause(err) != ErrGroupNotFound {
			return errors.Wrap(err, "finding group")
		}

		grp, err = g.groups.CreateGroup(ctx, Group{Num: num})
		return errors.Wrap(err, "creating group")
	})
	return grp, err
}

// DeleteGroup deletes a group with everything it owns; its students become group-less.
func (g *Graph) DeleteGroup(ctx context.Context, caller user.User, num int) error {
	return g.run(ctx, caller, auth.OpDeleteGroup, func(ctx context.Context) error {
		grp, err := g.getGroup(ctx, num)
		if err != nil {
			return err
		}
		for _, sid := range grp.StudentIDs {
			if err = g.users.SetUserGroup(ctx, sid, nil); err != nil && errors.Cause(err) != user.ErrNotFound {
				return errors.Wrap(err, "clearing student group")
			}
		}
		return errors.Wrap(g.groups.DeleteGroup(ctx, num), "deleting group")
	})
}

// AssignTeacher sets the group's teacher, replacing any previous one.
func (g *Graph) AssignTeacher(ctx context.Context, caller user.User, num, teacherID int) (Group, error) {
	var grp Group
	err := g.run(ctx, caller, auth.OpAssignTeacher, func(ctx context.Context) error {
		teacher, err := g.getUser(ctx, teacherID)
		if err != nil {
			return err
		}
		if grp, err = g.getGroup(ctx, num); err != nil {
			return err
		}
		if !teacher.IsTeacher() {
			return ErrNotTeacher
		}

		if err = g.groups.SetGroupTeacher(ctx, num, &teacher.ID); err != nil {
			return errors.Wrap(err, "setting group teacher")
		}
		grp.TeacherID = core.IntPtr(teacher.ID)
		return nil
	})
	return grp, err
}

// EnrollStudent adds the student to the group, transferring them out of any previous group.
// both the group's member set and the student's group are updated.
func (g *Graph) EnrollStudent(ctx context.Context, caller user.User, num, studentID int) (Group, error) {
	var grp Group
	err := g.run(ctx, caller, auth.OpEnrollStudent, func(ctx context.Context) error {
		student, err := g.getUser(ctx, studentID)
		if err != nil {
			return err
		}
		if grp, err = g.getGroup(ctx, num); err != nil {
			return err
		}
		if !student.IsStudent() {
			return ErrNotStudent
		}

		if prev := student.GroupNum; prev != nil && *prev != num {
			err = g.groups.RemoveGroupStudent(ctx, *prev, student.ID)
			// tolerate a stale back-reference
			if err != nil && errors.Cause(err) != ErrStudentNotInGroup && errors.Cause(err) != ErrGroupNotFound {
				return errors.Wrap(err, "removing student from previous group")
			}
		}
		if !grp.HasStudent(student.ID) {
			if err = g.groups.AddGroupStudent(ctx, num, student.ID); err != nil {
				return errors.Wrap(err, "adding student to group")
			}
			grp.StudentIDs = append(grp.StudentIDs, student.ID)
		}
		return errors.Wrap(g.users.SetUserGroup(ctx, student.ID, &num), "setting student group")
	})
	return grp, err
}

func (g *Graph) UnenrollStudent(ctx context.Context, caller user.User, num, studentID int) error {
	return g.run(ctx, caller, auth.OpUnenrollStudent, func(ctx context.Context) error {
		grp, err := g.getGroup(ctx, num)
		if err != nil {
			return err
		}
		if !grp.HasStudent(studentID) {
			return ErrStudentNotInGroup
		}

		if err = g.groups.RemoveGroupStudent(ctx, num, studentID); err != nil {
			return errors.Wrap(err, "removing student from group")
		}
		err = g.users.SetUserGroup(ctx, studentID, nil)
		if err != nil && errors.Cause(err) != user.ErrNotFound {
			return errors.Wrap(err, "clearing student group")
		}
		return nil
	})
}

// CreateLesson adds a lesson to the group's journal, creating the journal on first use.
// lesson names are unique per journal.
func (g *Graph) CreateLesson(ctx context.Context, caller user.User, num int, name string) (Lesson, error) {
	var lsn Lesson
	name = core.CleanString(name)
	err := g.run(ctx, caller, auth.OpCreateLesson, func(ctx context.Context) error {
		grp, err := g.getGroup(ctx, num)
		if err != nil {
			return err
		}

		var journalID int
		if grp.JournalID != nil {
			journalID = *grp.JournalID
			exists, err := g.lessons.LessonNameExists(ctx, journalID, name)
			if err != nil {
				return errors.Wrap(err, "checking lesson name")
			}
			if exists {
				return ErrLessonExists
			}
		} else {
			jrnl, err := g.groups.CreateJournal(ctx, num)
			if err != nil {
				return errors.Wrap(err, "creating journal")
			}
			journalID = jrnl.ID
		}

		lsn, err = g.lessons.CreateLesson(ctx, Lesson{
			JournalID: journalID,
			GroupNum:  num,
			Name:      name,
			CreatedAt: NowFunc().UTC(),
		})
		return errors.Wrap(err, "creating lesson")
	})
	return lsn, err
}

func (g *Graph) CreateTask(ctx context.Context, caller user.User, lessonID int, name string) (Task, error) {
	var task Task
	err := g.run(ctx, caller, auth.OpCreateTask, func(ctx context.Context) error {
		lsn, err := g.getLesson(ctx, lessonID)
		if err != nil {
			return err
		}
		task, err = g.lessons.CreateTask(ctx, Task{LessonID: lsn.ID, Name: core.CleanString(name)})
		return errors.Wrap(err, "creating task")
	})
	return task, err
}

// RecordGrade grades a student enrolled in the lesson's group. nothing is stored on failure.
func (g *Graph) RecordGrade(ctx context.Context, caller user.User, lessonID, studentID int, value string) (Grade, error) {
	var grd Grade
	err := g.run(ctx, caller, auth.OpRecordGrade, func(ctx context.Context) error {
		lsn, err := g.getLesson(ctx, lessonID)
		if err != nil {
			return err
		}
		student, err := g.getUser(ctx, studentID)
		if err != nil {
			return err
		}
		grp, err := g.getGroup(ctx, lsn.GroupNum)
		if err != nil {
			return err
		}
		if !grp.HasStudent(student.ID) {
			return ErrStudentNotInGroup
		}
		gradeVal, err := ParseGradeValue(value)
		if err != nil {
			return err
		}

		grd, err = g.grades.CreateGrade(ctx, Grade{
			LessonID:  lsn.ID,
			StudentID: student.ID,
			Value:     gradeVal,
			GradedBy:  caller.ID,
			CreatedAt: NowFunc().UTC(),
		})
		return errors.Wrap(err, "creating grade")
	})
	return grd, err
}

func (g *Graph) lessonNames(ctx context.Context, grp Group) ([]string, error) {
	names := []string{}
	if grp.JournalID == nil {
		return names, nil
	}
	lessons, err := g.lessons.QueryLessons(ctx, *grp.JournalID)
	if err != nil {
		return nil, errors.Wrap(err, "querying lessons")
	}
	for _, lsn := range lessons {
		names = append(names, lsn.Name)
	}
	return names, nil
}

func (g *Graph) ListGroups(ctx context.Context, caller user.User) ([]GroupSummary, error) {
	var summaries []GroupSummary
	err := g.run(ctx, caller, auth.OpListGroups, func(ctx context.Context) error {
		groups, err := g.groups.QueryGroups(ctx)
		if err != nil {
			return errors.Wrap(err, "querying groups")
		}
		summaries = make([]GroupSummary, 0, len(groups))
		for _, grp := range groups {
			names, err := g.lessonNames(ctx, grp)
			if err != nil {
				return err
			}
			summaries = append(summaries, GroupSummary{Group: grp, Lessons: names})
		}
		return nil
	})
	return summaries, err
}

func (g *Graph) ListUsers(ctx context.Context, caller user.User, ordering []core.DBOrdering) ([]user.User, error) {
	var users []user.User
	err := g.run(ctx, caller, auth.OpListUsers, func(ctx context.Context) error {
		var err error
		users, err = g.users.QueryUsers(ctx, ordering)
		return errors.Wrap(err, "querying users")
	})
	return users, err
}

func (g *Graph) GetGroup(ctx context.Context, caller user.User, num int) (GroupDetail, error) {
	var detail GroupDetail
	err := g.run(ctx, caller, auth.OpGetGroup, func(ctx context.Context) error {
		grp, err := g.getGroup(ctx, num)
		if err != nil {
			return err
		}
		detail = GroupDetail{Group: grp, Lessons: []Lesson{}}
		if grp.JournalID != nil {
			if detail.Lessons, err = g.lessons.QueryLessons(ctx, *grp.JournalID); err != nil {
				return errors.Wrap(err, "querying lessons")
			}
		}
		return nil
	})
	return detail, err
}

// GetLesson returns the lesson with its tasks and grades.
func (g *Graph) GetLesson(ctx context.Context, caller user.User, lessonID int) (Lesson, error) {
	var lsn Lesson
	err := g.run(ctx, caller, auth.OpGetLesson, func(ctx context.Context) error {
		var err error
		if lsn, err = g.getLesson(ctx, lessonID); err != nil {
			return err
		}
		if lsn.Tasks, err = g.lessons.QueryTasks(ctx, lsn.ID); err != nil {
			return errors.Wrap(err, "querying tasks")
		}
		lsn.Grades, err = g.grades.QueryGrades(ctx, GradeFilter{LessonID: lsn.ID})
		return errors.Wrap(err, "querying grades")
	})
	return lsn, err
}
