package echoapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/invasionlatina/backend/core"
	"github.com/invasionlatina/backend/core/user"
	"github.com/invasionlatina/backend/testutil"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

func setup(t *testing.T, conf ...*core.Config) (*Server, *testutil.Env) {
	env := testutil.NewEnv(t, conf...)
	s := NewServer(
		ServerDeps{
			Conf:           env.Conf,
			Logger:         env.Logger,
			Validate:       env.Validate,
			Translator:     env.Translator,
			UserSvc:        env.Users,
			EventSvc:       env.Events,
			SettingsSvc:    env.Settings,
			SongSvc:        env.Songs,
			LoyaltySvc:     env.Loyalty,
			BookingSvc:     env.Bookings,
			TicketSvc:      env.Tickets,
			DisableReqLogs: true,
		},
	)
	return s, env
}

type httpErr struct {
	Error string `json:"error"`
}

type httpDenied struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
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

func (tt httpTest) run(t *testing.T, s *Server) *httptest.ResponseRecorder {
	t.Helper()

	req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
	s.ServeHTTP(rec, req)
	checkCodeAndData(t, tt, rec)
	return rec
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

func getToken(t *testing.T, s *Server, usr user.User) string {
	token, err := s.auth.GenerateToken(s.auth.UserClaims(usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func unmarchall(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()

	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("unmarchall() failed: %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

// checkCodeAndData compares the response with tt. A zero wantCode means 200; a nil wantData is not checked.
func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()

	wantCode := tt.wantCode
	if wantCode == 0 {
		wantCode = http.StatusOK
	}
	if rec.Code != wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
