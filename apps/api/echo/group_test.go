package echoapi_test

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/academic"
	"github.com/trezcool/academia/core/user"
)

func Test_groupApi(t *testing.T) {
	app := setup(t)
	_, adminToken := app.createUser(t, "admin", user.RoleAdmin)
	teacher, teacherToken := app.createUser(t, "teacher", user.RoleTeacher)
	stud, studToken := app.createUser(t, "student")
	outsider, _ := app.createUser(t, "outsider")

	var lessonID int

	steps := []struct {
		httpTest
		check func(t *testing.T, body []byte)
	}{
		// groups
		{httpTest: httpTest{name: "create: auth required", method: http.MethodPost, path: "/api/auth/groups/101", wantCode: http.StatusBadRequest}},
		{httpTest: httpTest{name: "create: teacher forbidden", method: http.MethodPost, path: "/api/auth/groups/101", token: teacherToken, wantCode: http.StatusForbidden, wantData: errForbidden}},
		{httpTest: httpTest{name: "create: invalid num", method: http.MethodPost, path: "/api/auth/groups/abc", token: adminToken, wantCode: http.StatusBadRequest, wantData: []byte(`{"error": "invalid groupNum"}`)}},
		{
			httpTest: httpTest{name: "create", method: http.MethodPost, path: "/api/auth/groups/101", token: adminToken, wantCode: http.StatusCreated},
			check: func(t *testing.T, body []byte) {
				var grp academic.Group
				unmarshallObj(t, body, &grp)
				assert.Equal(t, 101, grp.Num)
				assert.Nil(t, grp.TeacherID)
				assert.Empty(t, grp.StudentIDs)
			},
		},
		{
			httpTest: httpTest{
				name: "create: duplicate", method: http.MethodPost, path: "/api/auth/groups/101", token: adminToken,
				wantCode: http.StatusConflict, wantData: kindErr(core.KindGroupAlreadyExists, "group already exists"),
			},
		},
		{httpTest: httpTest{name: "create another", method: http.MethodPost, path: "/api/auth/groups/102", token: adminToken, wantCode: http.StatusCreated}},

		// teacher
		{
			httpTest: httpTest{
				name: "assign teacher: not a teacher", method: http.MethodPost, path: fmt.Sprintf("/api/auth/groups/101/%d", stud.ID), token: adminToken,
				wantCode: http.StatusBadRequest, wantData: kindErr(core.KindRoleMismatch, "user (teacher) does not have role teacher"),
			},
		},
		{
			httpTest: httpTest{
				name: "assign teacher: unknown group", method: http.MethodPost, path: fmt.Sprintf("/api/auth/groups/999/%d", teacher.ID), token: adminToken,
				wantCode: http.StatusNotFound, wantData: kindErr(core.KindGroupNotFound, "group does not exist"),
			},
		},
		{
			httpTest: httpTest{name: "assign teacher", method: http.MethodPost, path: fmt.Sprintf("/api/auth/groups/101/%d", teacher.ID), token: adminToken, wantCode: http.StatusOK},
			check: func(t *testing.T, body []byte) {
				var grp academic.Group
				unmarshallObj(t, body, &grp)
				if assert.NotNil(t, grp.TeacherID) {
					assert.Equal(t, teacher.ID, *grp.TeacherID)
				}
			},
		},

		// students
		{
			httpTest: httpTest{name: "enroll: admin forbidden", method: http.MethodPost, path: fmt.Sprintf("/api/auth/groups/students/101/%d", stud.ID), token: adminToken,
				wantCode: http.StatusForbidden, wantData: errForbidden},
		},
		{
			httpTest: httpTest{
				name: "enroll: not a student", method: http.MethodPost, path: fmt.Sprintf("/api/auth/groups/students/101/%d", teacher.ID), token: teacherToken,
				wantCode: http.StatusBadRequest, wantData: kindErr(core.KindRoleMismatch, "user (student) does not have role user"),
			},
		},
		{
			httpTest: httpTest{
				name: "enroll: unknown user", method: http.MethodPost, path: "/api/auth/groups/students/101/999", token: teacherToken,
				wantCode: http.StatusNotFound, wantData: kindErr(core.KindUserNotFound, "user not found"),
			},
		},
		{httpTest: httpTest{name: "enroll in 102", method: http.MethodPost, path: fmt.Sprintf("/api/auth/groups/students/102/%d", stud.ID), token: teacherToken, wantCode: http.StatusOK}},
		{
			httpTest: httpTest{name: "enroll transfers to 101", method: http.MethodPost, path: fmt.Sprintf("/api/auth/groups/students/101/%d", stud.ID), token: teacherToken, wantCode: http.StatusOK},
			check: func(t *testing.T, body []byte) {
				var grp academic.Group
				unmarshallObj(t, body, &grp)
				assert.Equal(t, []int{stud.ID}, grp.StudentIDs)
			},
		},
		{
			httpTest: httpTest{name: "previous group lost the student", path: "/api/auth/groups/102", token: studToken, wantCode: http.StatusOK},
			check: func(t *testing.T, body []byte) {
				var grp academic.GroupDetail
				unmarshallObj(t, body, &grp)
				assert.Empty(t, grp.StudentIDs)
			},
		},
		{
			httpTest: httpTest{name: "student back-reference", path: "/api/auth/users/getUserInfo", token: studToken, wantCode: http.StatusOK},
			check: func(t *testing.T, body []byte) {
				var usr user.User
				unmarshallObj(t, body, &usr)
				if assert.NotNil(t, usr.GroupNum) {
					assert.Equal(t, 101, *usr.GroupNum)
				}
			},
		},

		// lessons
		{
			httpTest: httpTest{
				name: "lesson: name required", method: http.MethodPost, path: "/api/auth/groups/101/lesson", token: teacherToken, body: []byte(`{"name": "  "}`),
				wantCode: http.StatusBadRequest, wantData: []byte(`{"name": "this field is required"}`),
			},
		},
		{
			httpTest: httpTest{
				name: "lesson: unknown group", method: http.MethodPost, path: "/api/auth/groups/999/lesson", token: teacherToken, body: []byte(`{"name": "Algebra"}`),
				wantCode: http.StatusNotFound, wantData: kindErr(core.KindGroupNotFound, "group does not exist"),
			},
		},
		{
			httpTest: httpTest{name: "lesson", method: http.MethodPost, path: "/api/auth/groups/101/lesson", token: teacherToken, body: []byte(`{"name": "Algebra"}`), wantCode: http.StatusCreated},
			check: func(t *testing.T, body []byte) {
				var lsn academic.Lesson
				unmarshallObj(t, body, &lsn)
				assert.NotZero(t, lsn.ID)
				assert.Equal(t, 101, lsn.GroupNum)
				assert.Equal(t, "Algebra", lsn.Name)
				lessonID = lsn.ID
			},
		},
		{
			httpTest: httpTest{
				name: "lesson: duplicate", method: http.MethodPost, path: "/api/auth/groups/101/lesson", token: teacherToken, body: []byte(`{"name": "Algebra"}`),
				wantCode: http.StatusConflict, wantData: kindErr(core.KindLessonAlreadyExists, "lesson already exists in the group"),
			},
		},
		{httpTest: httpTest{name: "same lesson name in another group", method: http.MethodPost, path: "/api/auth/groups/102/lesson", token: teacherToken, body: []byte(`{"name": "Algebra"}`), wantCode: http.StatusCreated}},

		// tasks
		{
			httpTest: httpTest{
				name: "task: unknown lesson", method: http.MethodPost, path: "/api/auth/groups/lessons/999", token: teacherToken, body: []byte(`{"name": "Ex. 1"}`),
				wantCode: http.StatusNotFound, wantData: kindErr(core.KindLessonNotFound, "lesson does not exist"),
			},
		},
		{httpTest: httpTest{name: "task", method: http.MethodPost, path: "/api/auth/groups/lessons/{lesson}", token: teacherToken, body: []byte(`{"name": "Ex. 1"}`), wantCode: http.StatusCreated}},

		// grades
		{
			httpTest: httpTest{
				name: "rate: student required", method: http.MethodPost, path: "/api/auth/groups/rate/{lesson}", token: teacherToken, body: []byte(`{"grade": "pass"}`),
				wantCode: http.StatusBadRequest, wantData: []byte(`{"student": "this field is required"}`),
			},
		},
		{
			httpTest: httpTest{
				name: "rate: invalid value", method: http.MethodPost, path: "/api/auth/groups/rate/{lesson}", token: teacherToken,
				body:     []byte(fmt.Sprintf(`{"student": %d, "grade": "excellent"}`, stud.ID)),
				wantCode: http.StatusBadRequest, wantData: kindErr(core.KindInvalidGradeValue, "incorrect grade: must be one of pass, fail"),
			},
		},
		{
			httpTest: httpTest{
				name: "rate: student not in group", method: http.MethodPost, path: "/api/auth/groups/rate/{lesson}", token: teacherToken,
				body:     []byte(fmt.Sprintf(`{"student": %d, "grade": "pass"}`, outsider.ID)),
				wantCode: http.StatusBadRequest, wantData: kindErr(core.KindStudentNotInGroup, "student does not exist in the group"),
			},
		},
		{
			httpTest: httpTest{
				name: "rate", method: http.MethodPost, path: "/api/auth/groups/rate/{lesson}", token: teacherToken,
				body: []byte(fmt.Sprintf(`{"student": %d, "grade": " Pass "}`, stud.ID)), wantCode: http.StatusCreated,
			},
			check: func(t *testing.T, body []byte) {
				var grd academic.Grade
				unmarshallObj(t, body, &grd)
				assert.Equal(t, academic.GradePass, grd.Value)
				assert.Equal(t, stud.ID, grd.StudentID)
				assert.Equal(t, teacher.ID, grd.GradedBy)
			},
		},

		// reads
		{
			httpTest: httpTest{name: "lesson detail", path: "/api/auth/groups/lessons/{lesson}", token: studToken, wantCode: http.StatusOK},
			check: func(t *testing.T, body []byte) {
				var lsn academic.Lesson
				unmarshallObj(t, body, &lsn)
				if assert.Len(t, lsn.Tasks, 1) {
					assert.Equal(t, "Ex. 1", lsn.Tasks[0].Name)
				}
				assert.Len(t, lsn.Grades, 1)
			},
		},
		{
			httpTest: httpTest{name: "list groups", path: "/api/auth/groups", token: studToken, wantCode: http.StatusOK},
			check: func(t *testing.T, body []byte) {
				var groups []academic.GroupSummary
				unmarshallObj(t, body, &groups)
				if assert.Len(t, groups, 2) {
					for _, grp := range groups {
						assert.Equal(t, []string{"Algebra"}, grp.Lessons)
					}
				}
			},
		},

		// unenroll & delete
		{httpTest: httpTest{name: "unenroll", method: http.MethodDelete, path: fmt.Sprintf("/api/auth/groups/students/101/%d", stud.ID), token: teacherToken, wantCode: http.StatusNoContent}},
		{
			httpTest: httpTest{
				name: "unenroll: not a member", method: http.MethodDelete, path: fmt.Sprintf("/api/auth/groups/students/101/%d", stud.ID), token: teacherToken,
				wantCode: http.StatusBadRequest, wantData: kindErr(core.KindStudentNotInGroup, "student does not exist in the group"),
			},
		},
		{httpTest: httpTest{name: "delete: teacher forbidden", method: http.MethodDelete, path: "/api/auth/groups/101", token: teacherToken, wantCode: http.StatusForbidden, wantData: errForbidden}},
		{httpTest: httpTest{name: "delete", method: http.MethodDelete, path: "/api/auth/groups/101", token: adminToken, wantCode: http.StatusNoContent}},
		{
			httpTest: httpTest{
				name: "deleted group is gone", path: "/api/auth/groups/101", token: adminToken,
				wantCode: http.StatusNotFound, wantData: kindErr(core.KindGroupNotFound, "group does not exist"),
			},
		},
		{
			httpTest: httpTest{
				name: "its lessons are gone", path: "/api/auth/groups/lessons/{lesson}", token: adminToken,
				wantCode: http.StatusNotFound, wantData: kindErr(core.KindLessonNotFound, "lesson does not exist"),
			},
		},
	}
	for _, tt := range steps {
		t.Run(tt.name, func(t *testing.T) {
			tt.path = replaceLesson(tt.path, lessonID)
			rec := app.do(tt.httpTest)
			checkCodeAndData(t, tt.httpTest, rec)
			if tt.check != nil && rec.Code == tt.wantCode {
				tt.check(t, rec.Body.Bytes())
			}
		})
	}
}

// replaceLesson fills the "{lesson}" placeholder of path with the lesson ID created earlier.
func replaceLesson(path string, lessonID int) string {
	return strings.Replace(path, "{lesson}", strconv.Itoa(lessonID), 1)
}
