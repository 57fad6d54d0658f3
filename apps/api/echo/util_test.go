package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	echoapi "github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/testutil"
)

const (
	ttl = time.Hour
	pwd = "s3cr3t-Pwd"
)

type testApp struct {
	*echoapi.Server
	store  *testutil.Store
	logger *testutil.Logger
}

func setup(t *testing.T) testApp {
	conf := &core.Config{AppName: "Academia", TestMode: true}
	conf.Auth.TokenTTL = ttl

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	store := testutil.NewStore()
	authSvc := store.AuthService(ttl)
	logger := new(testutil.Logger)

	srv := echoapi.NewServer(echoapi.ServerDeps{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		UserSvc:        store.UserService(),
		AuthSvc:        authSvc,
		Guard:          store.Guard(authSvc),
		Graph:          store.Graph(),
		DisableReqLogs: true,
	})
	return testApp{Server: srv, store: store, logger: logger}
}

// createUser stores a user and returns it with a fresh access token.
func (app testApp) createUser(t *testing.T, uname string, roles ...string) (user.User, string) {
	usr := testutil.CreateUser(t, app.store.Users, uname, uname+"@test.com", pwd, roles...)
	sess, err := app.store.AuthService(ttl).Login(context.Background(), uname, pwd)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr, sess.AccessToken
}

type httpErr struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func (app testApp) do(tt httpTest) *httptest.ResponseRecorder {
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
	app.ServeHTTP(rec, req)
	return rec
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func unmarshallObj(t *testing.T, data []byte, obj interface{}) {
	if err := json.Unmarshal(data, obj); err != nil {
		t.Fatalf("unmarshallObj() failed: %v; data %s", err, data)
	}
}

func kindErr(kind core.ErrorKind, msg string) []byte {
	data, _ := json.Marshal(httpErr{Error: msg, Kind: string(kind)})
	return data
}

// checkCodeAndData checks the status code and, when wantData is set, the JSON body.
func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
	if tt.wantData != nil {
		assert.JSONEq(t, string(tt.wantData), rec.Body.String())
	}
}
