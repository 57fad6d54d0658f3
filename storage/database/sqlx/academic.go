package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/academic"
)

type (
	groupRow struct {
		Num       int      `db:"num"`
		TeacherID null.Int `db:"teacher_id"`
		JournalID null.Int `db:"journal_id"`
	}

	memberRow struct {
		GroupNum int `db:"group_num"`
		UserID   int `db:"user_id"`
	}

	lessonRow struct {
		ID        int       `db:"id"`
		JournalID int       `db:"journal_id"`
		GroupNum  int       `db:"group_num"`
		Name      string    `db:"name"`
		CreatedAt time.Time `db:"created_at"`
	}

	taskRow struct {
		ID       int    `db:"id"`
		LessonID int    `db:"lesson_id"`
		Name     string `db:"name"`
	}

	gradeRow struct {
		ID        int       `db:"id"`
		LessonID  int       `db:"lesson_id"`
		StudentID int       `db:"student_id"`
		Value     string    `db:"value"`
		GradedBy  null.Int  `db:"graded_by"`
		CreatedAt time.Time `db:"created_at"`
	}
)

func (r groupRow) toGroup(studentIDs []int) academic.Group {
	grp := academic.Group{Num: r.Num, StudentIDs: studentIDs}
	if grp.StudentIDs == nil {
		grp.StudentIDs = []int{}
	}
	if r.TeacherID.Valid {
		grp.TeacherID = core.IntPtr(r.TeacherID.Int)
	}
	if r.JournalID.Valid {
		grp.JournalID = core.IntPtr(r.JournalID.Int)
	}
	return grp
}

func (r lessonRow) toLesson() academic.Lesson {
	return academic.Lesson{
		ID:        r.ID,
		JournalID: r.JournalID,
		GroupNum:  r.GroupNum,
		Name:      r.Name,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func (r gradeRow) toGrade() academic.Grade {
	return academic.Grade{
		ID:        r.ID,
		LessonID:  r.LessonID,
		StudentID: r.StudentID,
		Value:     academic.GradeValue(r.Value),
		GradedBy:  r.GradedBy.Int,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

const selectGroups = `SELECT g.num, g.teacher_id, j.id AS journal_id
	FROM academic_groups g LEFT JOIN journals j ON j.group_num = g.num`

type groupRepository struct {
	db *sqlx.DB
}

var _ academic.GroupRepository = (*groupRepository)(nil) // interface compliance check

func NewGroupRepository(db *sqlx.DB) academic.GroupRepository {
	return &groupRepository{db: db}
}

func (repo *groupRepository) members(ctx context.Context, where string, args ...interface{}) (map[int][]int, error) {
	var rows []memberRow
	q := "SELECT group_num, user_id FROM group_students " + where + " ORDER BY user_id"
	if err := getExec(ctx, repo.db).SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting group students")
	}
	members := make(map[int][]int)
	for _, row := range rows {
		members[row.GroupNum] = append(members[row.GroupNum], row.UserID)
	}
	return members, nil
}

func (repo *groupRepository) CreateGroup(ctx context.Context, grp academic.Group) (academic.Group, error) {
	q := "INSERT INTO academic_groups (num, teacher_id) VALUES ($1, $2)"
	if _, err := getExec(ctx, repo.db).ExecContext(ctx, q, grp.Num, null.IntFromPtr(grp.TeacherID)); err != nil {
		if constraint, ok := uniqueConstraint(err); ok && constraint == "academic_groups_pkey" {
			return academic.Group{}, academic.ErrGroupExists
		}
		return academic.Group{}, errors.Wrap(err, "inserting group")
	}
	return academic.Group{Num: grp.Num, TeacherID: grp.TeacherID, StudentIDs: []int{}}, nil
}

func (repo *groupRepository) GetGroup(ctx context.Context, num int) (academic.Group, error) {
	var row groupRow
	if err := getExec(ctx, repo.db).GetContext(ctx, &row, selectGroups+" WHERE g.num = $1", num); err != nil {
		if err == sql.ErrNoRows {
			return academic.Group{}, academic.ErrGroupNotFound
		}
		return academic.Group{}, errors.Wrap(err, "selecting group")
	}
	members, err := repo.members(ctx, "WHERE group_num = $1", num)
	if err != nil {
		return academic.Group{}, err
	}
	return row.toGroup(members[num]), nil
}

func (repo *groupRepository) QueryGroups(ctx context.Context) ([]academic.Group, error) {
	var rows []groupRow
	if err := getExec(ctx, repo.db).SelectContext(ctx, &rows, selectGroups+" ORDER BY g.num"); err != nil {
		return nil, errors.Wrap(err, "selecting groups")
	}
	members, err := repo.members(ctx, "")
	if err != nil {
		return nil, err
	}
	groups := make([]academic.Group, 0, len(rows))
	for _, row := range rows {
		groups = append(groups, row.toGroup(members[row.Num]))
	}
	return groups, nil
}

func (repo *groupRepository) execOn(ctx context.Context, notFound error, msg, q string, args ...interface{}) error {
	res, err := getExec(ctx, repo.db).ExecContext(ctx, q, args...)
	if err != nil {
		return errors.Wrap(err, msg)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func (repo *groupRepository) SetGroupTeacher(ctx context.Context, num int, teacherID *int) error {
	q := "UPDATE academic_groups SET teacher_id = $2 WHERE num = $1"
	return repo.execOn(ctx, academic.ErrGroupNotFound, "setting group teacher", q, num, null.IntFromPtr(teacherID))
}

func (repo *groupRepository) AddGroupStudent(ctx context.Context, num, studentID int) error {
	if _, err := repo.GetGroup(ctx, num); err != nil {
		return err
	}
	q := "INSERT INTO group_students (group_num, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING"
	_, err := getExec(ctx, repo.db).ExecContext(ctx, q, num, studentID)
	return errors.Wrap(err, "inserting group student")
}

func (repo *groupRepository) RemoveGroupStudent(ctx context.Context, num, studentID int) error {
	if _, err := repo.GetGroup(ctx, num); err != nil {
		return err
	}
	q := "DELETE FROM group_students WHERE group_num = $1 AND user_id = $2"
	return repo.execOn(ctx, academic.ErrStudentNotInGroup, "deleting group student", q, num, studentID)
}

// DeleteGroup deletes the group; its journal, lessons, tasks, grades & memberships cascade.
func (repo *groupRepository) DeleteGroup(ctx context.Context, num int) error {
	q := "DELETE FROM academic_groups WHERE num = $1"
	return repo.execOn(ctx, academic.ErrGroupNotFound, "deleting group", q, num)
}

func (repo *groupRepository) CreateJournal(ctx context.Context, groupNum int) (academic.Journal, error) {
	jrnl := academic.Journal{GroupNum: groupNum}
	q := `INSERT INTO journals (group_num) VALUES ($1)
		ON CONFLICT (group_num) DO UPDATE SET group_num = EXCLUDED.group_num RETURNING id`
	if err := getExec(ctx, repo.db).QueryRowxContext(ctx, q, groupNum).Scan(&jrnl.ID); err != nil {
		return academic.Journal{}, errors.Wrap(err, "inserting journal")
	}
	return jrnl, nil
}

type lessonRepository struct {
	db *sqlx.DB
}

var _ academic.LessonRepository = (*lessonRepository)(nil) // interface compliance check

func NewLessonRepository(db *sqlx.DB) academic.LessonRepository {
	return &lessonRepository{db: db}
}

const selectLessons = `SELECT l.id, l.journal_id, j.group_num, l.name, l.created_at
	FROM lessons l JOIN journals j ON j.id = l.journal_id`

func (repo *lessonRepository) CreateLesson(ctx context.Context, lsn academic.Lesson) (academic.Lesson, error) {
	q := "INSERT INTO lessons (journal_id, name, created_at) VALUES ($1, $2, $3) RETURNING id"
	err := getExec(ctx, repo.db).QueryRowxContext(ctx, q, lsn.JournalID, lsn.Name, lsn.CreatedAt.UTC()).Scan(&lsn.ID)
	if err != nil {
		if constraint, ok := uniqueConstraint(err); ok && constraint == "lessons_journal_id_name_key" {
			return academic.Lesson{}, academic.ErrLessonExists
		}
		return academic.Lesson{}, errors.Wrap(err, "inserting lesson")
	}
	return lsn, nil
}

func (repo *lessonRepository) GetLesson(ctx context.Context, id int) (academic.Lesson, error) {
	var row lessonRow
	if err := getExec(ctx, repo.db).GetContext(ctx, &row, selectLessons+" WHERE l.id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return academic.Lesson{}, academic.ErrLessonNotFound
		}
		return academic.Lesson{}, errors.Wrap(err, "selecting lesson")
	}
	return row.toLesson(), nil
}

func (repo *lessonRepository) LessonNameExists(ctx context.Context, journalID int, name string) (bool, error) {
	var exists bool
	q := "SELECT EXISTS (SELECT 1 FROM lessons WHERE journal_id = $1 AND name = $2)"
	if err := getExec(ctx, repo.db).GetContext(ctx, &exists, q, journalID, name); err != nil {
		return false, errors.Wrap(err, "checking lesson name")
	}
	return exists, nil
}

func (repo *lessonRepository) QueryLessons(ctx context.Context, journalID int) ([]academic.Lesson, error) {
	var rows []lessonRow
	if err := getExec(ctx, repo.db).SelectContext(ctx, &rows, selectLessons+" WHERE l.journal_id = $1 ORDER BY l.id", journalID); err != nil {
		return nil, errors.Wrap(err, "selecting lessons")
	}
	lessons := make([]academic.Lesson, 0, len(rows))
	for _, row := range rows {
		lessons = append(lessons, row.toLesson())
	}
	return lessons, nil
}

func (repo *lessonRepository) CreateTask(ctx context.Context, task academic.Task) (academic.Task, error) {
	q := "INSERT INTO tasks (lesson_id, name) VALUES ($1, $2) RETURNING id"
	if err := getExec(ctx, repo.db).QueryRowxContext(ctx, q, task.LessonID, task.Name).Scan(&task.ID); err != nil {
		return academic.Task{}, errors.Wrap(err, "inserting task")
	}
	return task, nil
}

func (repo *lessonRepository) QueryTasks(ctx context.Context, lessonID int) ([]academic.Task, error) {
	var rows []taskRow
	q := "SELECT id, lesson_id, name FROM tasks WHERE lesson_id = $1 ORDER BY id"
	if err := getExec(ctx, repo.db).SelectContext(ctx, &rows, q, lessonID); err != nil {
		return nil, errors.Wrap(err, "selecting tasks")
	}
	tasks := make([]academic.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, academic.Task{ID: row.ID, LessonID: row.LessonID, Name: row.Name})
	}
	return tasks, nil
}

type gradeRepository struct {
	db *sqlx.DB
}

var _ academic.GradeRepository = (*gradeRepository)(nil) // interface compliance check

func NewGradeRepository(db *sqlx.DB) academic.GradeRepository {
	return &gradeRepository{db: db}
}

func (repo *gradeRepository) CreateGrade(ctx context.Context, grd academic.Grade) (academic.Grade, error) {
	q := `INSERT INTO grades (lesson_id, student_id, value, graded_by, created_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`
	gradedBy := null.NewInt(grd.GradedBy, grd.GradedBy != 0)
	err := getExec(ctx, repo.db).
		QueryRowxContext(ctx, q, grd.LessonID, grd.StudentID, string(grd.Value), gradedBy, grd.CreatedAt.UTC()).
		Scan(&grd.ID)
	if err != nil {
		return academic.Grade{}, errors.Wrap(err, "inserting grade")
	}
	return grd, nil
}

func (repo *gradeRepository) QueryGrades(ctx context.Context, filter academic.GradeFilter) ([]academic.Grade, error) {
	var rows []gradeRow
	q := `SELECT id, lesson_id, student_id, value, graded_by, created_at FROM grades
		WHERE ($1 = 0 OR lesson_id = $1) AND ($2 = 0 OR student_id = $2) ORDER BY id`
	if err := getExec(ctx, repo.db).SelectContext(ctx, &rows, q, filter.LessonID, filter.StudentID); err != nil {
		return nil, errors.Wrap(err, "selecting grades")
	}
	grades := make([]academic.Grade, 0, len(rows))
	for _, row := range rows {
		grades = append(grades, row.toGrade())
	}
	return grades, nil
}
