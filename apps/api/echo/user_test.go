package echoapi_test

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/auth"
	"github.com/trezcool/academia/core/user"
)

var errForbidden = kindErr(core.KindForbidden, "permission denied")

func usernames(users []user.User) []string {
	names := make([]string, 0, len(users))
	for _, usr := range users {
		names = append(names, usr.Username)
	}
	return names
}

func Test_userApi_query(t *testing.T) {
	app := setup(t)
	_, adminToken := app.createUser(t, "admin", user.RoleAdmin)
	_, teacherToken := app.createUser(t, "teacher", user.RoleTeacher)
	_, studentToken := app.createUser(t, "student")

	tests := []struct {
		httpTest
		wantUsernames []string
	}{
		{httpTest: httpTest{name: "Auth required", path: "/api/auth/users", wantCode: http.StatusBadRequest}},
		{httpTest: httpTest{name: "student forbidden", path: "/api/auth/users", token: studentToken, wantCode: http.StatusForbidden, wantData: errForbidden}},
		{
			httpTest:      httpTest{name: "teacher", path: "/api/auth/users", token: teacherToken, wantCode: http.StatusOK},
			wantUsernames: []string{"admin", "teacher", "student"},
		},
		{
			httpTest:      httpTest{name: "order by -username", path: "/api/auth/users?ordering=-username", token: adminToken, wantCode: http.StatusOK},
			wantUsernames: []string{"teacher", "student", "admin"},
		},
		{
			httpTest:      httpTest{name: "unknown ordering field is ignored", path: "/api/auth/users?ordering=password_hash", token: adminToken, wantCode: http.StatusOK},
			wantUsernames: []string{"admin", "teacher", "student"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(tt.httpTest)
			checkCodeAndData(t, tt.httpTest, rec)

			if tt.wantCode == http.StatusOK {
				var users []user.User
				unmarshallObj(t, rec.Body.Bytes(), &users)
				assert.Equal(t, tt.wantUsernames, usernames(users))
			}
		})
	}
}

func Test_userApi_retrieveSelf(t *testing.T) {
	app := setup(t)
	usr, token := app.createUser(t, "student")

	req, rec := newAuthRequest(http.MethodGet, "/api/auth/users/getUserInfo", token)
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var got user.User
	unmarshallObj(t, rec.Body.Bytes(), &got)
	assert.Equal(t, usr.ID, got.ID)
	assert.Equal(t, usr.Username, got.Username)
	assert.False(t, got.LastVisit.IsZero())
	assert.NotContains(t, rec.Body.String(), "password")
}

func Test_userApi_update(t *testing.T) {
	app := setup(t)
	_, adminToken := app.createUser(t, "admin", user.RoleAdmin)
	stud1, stud1Token := app.createUser(t, "student1")
	stud2, _ := app.createUser(t, "student2")

	path := func(id int) string { return "/api/auth/users/" + strconv.Itoa(id) }

	tests := []struct {
		httpTest
		wantUsername string
		wantEmail    string
	}{
		{httpTest: httpTest{name: "invalid id", path: "/api/auth/users/abc", token: stud1Token, wantCode: http.StatusBadRequest, wantData: []byte(`{"error": "invalid id"}`)}},
		{httpTest: httpTest{name: "student cannot edit others", path: path(stud2.ID), token: stud1Token, wantCode: http.StatusForbidden, wantData: errForbidden}},
		{
			httpTest: httpTest{
				name: "admin: unknown user", path: path(999), token: adminToken, body: []byte(`{}`),
				wantCode: http.StatusNotFound, wantData: kindErr(core.KindUserNotFound, "user not found"),
			},
		},
		{
			httpTest: httpTest{
				name: "username taken", path: path(stud1.ID), token: stud1Token, body: []byte(`{"username": "student2"}`),
				wantCode: http.StatusBadRequest, wantData: []byte(`{"username": "a user with this username already exists"}`),
			},
		},
		{
			httpTest: httpTest{
				name: "invalid email", path: path(stud1.ID), token: stud1Token, body: []byte(`{"email": "nope"}`),
				wantCode: http.StatusBadRequest, wantData: []byte(`{"email": "email must be a valid email address"}`),
			},
		},
		{
			httpTest: httpTest{name: "self", path: path(stud1.ID), token: stud1Token, body: []byte(`{"email": " S1@Test.com "}`), wantCode: http.StatusOK},
			wantUsername: "student1", wantEmail: "s1@test.com",
		},
		{
			httpTest: httpTest{name: "admin edits anyone", path: path(stud2.ID), token: adminToken, body: []byte(`{"username": "renamed"}`), wantCode: http.StatusOK},
			wantUsername: "renamed", wantEmail: stud2.Email,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodPut
			rec := app.do(tt.httpTest)
			checkCodeAndData(t, tt.httpTest, rec)

			if tt.wantCode == http.StatusOK {
				var got user.User
				unmarshallObj(t, rec.Body.Bytes(), &got)
				assert.Equal(t, tt.wantUsername, got.Username)
				assert.Equal(t, tt.wantEmail, got.Email)
			}
		})
	}

	t.Run("password change", func(t *testing.T) {
		tt := httpTest{method: http.MethodPut, path: path(stud1.ID), token: stud1Token, body: []byte(`{"password": "n3w-Secret"}`), wantCode: http.StatusOK}
		checkCodeAndData(t, tt, app.do(tt))

		_, err := app.store.AuthService(ttl).Login(context.Background(), "student1", "n3w-Secret")
		assert.NoError(t, err)
	})
}

func Test_userApi_destroy(t *testing.T) {
	app := setup(t)
	admin, adminToken := app.createUser(t, "admin", user.RoleAdmin)
	_, teacherToken := app.createUser(t, "teacher", user.RoleTeacher)
	stud, studToken := app.createUser(t, "student")

	path := func(id int) string { return "/api/auth/users/" + strconv.Itoa(id) }

	tests := []httpTest{
		{name: "teacher forbidden", path: path(stud.ID), token: teacherToken, wantCode: http.StatusForbidden, wantData: errForbidden},
		{name: "cannot delete self", path: path(admin.ID), token: adminToken, wantCode: http.StatusForbidden, wantData: errForbidden},
		{
			name: "unknown user", path: path(999), token: adminToken,
			wantCode: http.StatusNotFound, wantData: kindErr(core.KindUserNotFound, "user not found"),
		},
		{name: "ok", path: path(stud.ID), token: adminToken, wantCode: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodDelete
			checkCodeAndData(t, tt, app.do(tt))
		})
	}

	t.Run("tokens of deleted users are gone", func(t *testing.T) {
		tt := httpTest{
			path: "/api/auth/users/getUserInfo", token: studToken,
			wantCode: http.StatusUnauthorized, wantData: kindErr(core.KindTokenNotFound, "token not found"),
		}
		checkCodeAndData(t, tt, app.do(tt))
	})
}

func Test_userApi_sweepTokens(t *testing.T) {
	app := setup(t)
	_, adminToken := app.createUser(t, "admin", user.RoleAdmin)
	_, teacherToken := app.createUser(t, "teacher", user.RoleTeacher)

	// an old session, expired for an hour
	auth.NowFunc = func() time.Time { return time.Now().Add(-2 * ttl) }
	_, err := app.store.AuthService(ttl).Login(context.Background(), "teacher", pwd)
	auth.NowFunc = time.Now
	if err != nil {
		t.Fatalf("Login() failed: %v", err)
	}

	tests := []httpTest{
		{name: "teacher forbidden", token: teacherToken, wantCode: http.StatusForbidden, wantData: errForbidden},
		{name: "expired tokens swept", token: adminToken, wantCode: http.StatusOK, wantData: []byte(`{"deleted": 1}`)},
		{name: "nothing left to sweep", token: adminToken, wantCode: http.StatusOK, wantData: []byte(`{"deleted": 0}`)},
		{name: "live sessions survive", path: "/api/auth/users/getUserInfo", token: teacherToken, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.path == "" {
				tt.method = http.MethodDelete
				tt.path = "/api/auth/users/tokens"
			}
			checkCodeAndData(t, tt, app.do(tt))
		})
	}
}
