package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/academia/core/academic"
)

type groupRepository struct {
	db *DB
}

var _ academic.GroupRepository = (*groupRepository)(nil) // interface compliance check

func NewGroupRepository(db *DB) academic.GroupRepository {
	return &groupRepository{db: db}
}

func (repo *groupRepository) CreateGroup(ctx context.Context, grp academic.Group) (academic.Group, error) {
	defer repo.db.lock(ctx)()

	if _, ok := repo.db.t.groups[grp.Num]; ok {
		return academic.Group{}, academic.ErrGroupExists
	}
	grp = copyGroup(grp)
	repo.db.t.groups[grp.Num] = grp
	return copyGroup(grp), nil
}

func (repo *groupRepository) GetGroup(ctx context.Context, num int) (academic.Group, error) {
	defer repo.db.lock(ctx)()

	if grp, ok := repo.db.t.groups[num]; ok {
		return copyGroup(grp), nil
	}
	return academic.Group{}, academic.ErrGroupNotFound
}

func (repo *groupRepository) QueryGroups(ctx context.Context) ([]academic.Group, error) {
	defer repo.db.lock(ctx)()

	groups := make([]academic.Group, 0, len(repo.db.t.groups))
	for _, grp := range repo.db.t.groups {
		groups = append(groups, copyGroup(grp))
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Num < groups[j].Num })
	return groups, nil
}

func (repo *groupRepository) SetGroupTeacher(ctx context.Context, num int, teacherID *int) error {
	defer repo.db.lock(ctx)()

	grp, ok := repo.db.t.groups[num]
	if !ok {
		return academic.ErrGroupNotFound
	}
	grp.TeacherID = copyIntPtr(teacherID)
	repo.db.t.groups[num] = grp
	return nil
}

func (repo *groupRepository) AddGroupStudent(ctx context.Context, num, studentID int) error {
	defer repo.db.lock(ctx)()

	grp, ok := repo.db.t.groups[num]
	if !ok {
		return academic.ErrGroupNotFound
	}
	if !grp.HasStudent(studentID) {
		grp.StudentIDs = append(grp.StudentIDs, studentID)
		repo.db.t.groups[num] = grp
	}
	return nil
}

func (repo *groupRepository) RemoveGroupStudent(ctx context.Context, num, studentID int) error {
	defer repo.db.lock(ctx)()

	grp, ok := repo.db.t.groups[num]
	if !ok {
		return academic.ErrGroupNotFound
	}
	if !grp.HasStudent(studentID) {
		return academic.ErrStudentNotInGroup
	}
	grp.StudentIDs = removeInt(grp.StudentIDs, studentID)
	repo.db.t.groups[num] = grp
	return nil
}

func (repo *groupRepository) DeleteGroup(ctx context.Context, num int) error {
	defer repo.db.lock(ctx)()

	grp, ok := repo.db.t.groups[num]
	if !ok {
		return academic.ErrGroupNotFound
	}
	if grp.JournalID != nil {
		for lid, lsn := range repo.db.t.lessons {
			if lsn.JournalID != *grp.JournalID {
				continue
			}
			for tid, task := range repo.db.t.tasks {
				if task.LessonID == lid {
					delete(repo.db.t.tasks, tid)
				}
			}
			for gid, grd := range repo.db.t.grades {
				if grd.LessonID == lid {
					delete(repo.db.t.grades, gid)
				}
			}
			delete(repo.db.t.lessons, lid)
		}
		delete(repo.db.t.journals, *grp.JournalID)
	}
	delete(repo.db.t.groups, num)
	return nil
}

func (repo *groupRepository) CreateJournal(ctx context.Context, groupNum int) (academic.Journal, error) {
	defer repo.db.lock(ctx)()

	grp, ok := repo.db.t.groups[groupNum]
	if !ok {
		return academic.Journal{}, academic.ErrGroupNotFound
	}
	if grp.JournalID != nil {
		return repo.db.t.journals[*grp.JournalID], nil
	}

	jrnl := academic.Journal{ID: repo.db.t.nextPK("journals"), GroupNum: groupNum}
	repo.db.t.journals[jrnl.ID] = jrnl
	grp.JournalID = &jrnl.ID
	repo.db.t.groups[groupNum] = grp
	return jrnl, nil
}

type lessonRepository struct {
	db *DB
}

var _ academic.LessonRepository = (*lessonRepository)(nil) // interface compliance check

func NewLessonRepository(db *DB) academic.LessonRepository {
	return &lessonRepository{db: db}
}

func (repo *lessonRepository) nameExists(journalID int, name string) bool {
	for _, lsn := range repo.db.t.lessons {
		if lsn.JournalID == journalID && lsn.Name == name {
			return true
		}
	}
	return false
}

func (repo *lessonRepository) CreateLesson(ctx context.Context, lsn academic.Lesson) (academic.Lesson, error) {
	defer repo.db.lock(ctx)()

	if repo.nameExists(lsn.JournalID, lsn.Name) {
		return academic.Lesson{}, academic.ErrLessonExists
	}
	lsn.ID = repo.db.t.nextPK("lessons")
	lsn.Tasks, lsn.Grades = nil, nil
	repo.db.t.lessons[lsn.ID] = lsn
	return lsn, nil
}

func (repo *lessonRepository) GetLesson(ctx context.Context, id int) (academic.Lesson, error) {
	defer repo.db.lock(ctx)()

	if lsn, ok := repo.db.t.lessons[id]; ok {
		return lsn, nil
	}
	return academic.Lesson{}, academic.ErrLessonNotFound
}

func (repo *lessonRepository) LessonNameExists(ctx context.Context, journalID int, name string) (bool, error) {
	defer repo.db.lock(ctx)()
	return repo.nameExists(journalID, name), nil
}

func (repo *lessonRepository) QueryLessons(ctx context.Context, journalID int) ([]academic.Lesson, error) {
	defer repo.db.lock(ctx)()

	lessons := make([]academic.Lesson, 0)
	for _, lsn := range repo.db.t.lessons {
		if lsn.JournalID == journalID {
			lessons = append(lessons, lsn)
		}
	}
	sort.Slice(lessons, func(i, j int) bool { return lessons[i].ID < lessons[j].ID })
	return lessons, nil
}

func (repo *lessonRepository) CreateTask(ctx context.Context, task academic.Task) (academic.Task, error) {
	defer repo.db.lock(ctx)()

	if _, ok := repo.db.t.lessons[task.LessonID]; !ok {
		return academic.Task{}, academic.ErrLessonNotFound
	}
	task.ID = repo.db.t.nextPK("tasks")
	repo.db.t.tasks[task.ID] = task
	return task, nil
}

func (repo *lessonRepository) QueryTasks(ctx context.Context, lessonID int) ([]academic.Task, error) {
	defer repo.db.lock(ctx)()

	tasks := make([]academic.Task, 0)
	for _, task := range repo.db.t.tasks {
		if task.LessonID == lessonID {
			tasks = append(tasks, task)
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

type gradeRepository struct {
	db *DB
}

var _ academic.GradeRepository = (*gradeRepository)(nil) // interface compliance check

func NewGradeRepository(db *DB) academic.GradeRepository {
	return &gradeRepository{db: db}
}

func (repo *gradeRepository) CreateGrade(ctx context.Context, grd academic.Grade) (academic.Grade, error) {
	defer repo.db.lock(ctx)()

	if _, ok := repo.db.t.lessons[grd.LessonID]; !ok {
		return academic.Grade{}, academic.ErrLessonNotFound
	}
	grd.ID = repo.db.t.nextPK("grades")
	repo.db.t.grades[grd.ID] = grd
	return grd, nil
}

func (repo *gradeRepository) QueryGrades(ctx context.Context, filter academic.GradeFilter) ([]academic.Grade, error) {
	defer repo.db.lock(ctx)()

	grades := make([]academic.Grade, 0)
	for _, grd := range repo.db.t.grades {
		if filter.LessonID != 0 && grd.LessonID != filter.LessonID {
			continue
		}
		if filter.StudentID != 0 && grd.StudentID != filter.StudentID {
			continue
		}
		grades = append(grades, grd)
	}
	sort.Slice(grades, func(i, j int) bool { return grades[i].ID < grades[j].ID })
	return grades, nil
}

func removeInt(s []int, v int) []int {
	res := s[:0:0]
	for _, i := range s {
		if i != v {
			res = append(res, i)
		}
	}
	return res
}
