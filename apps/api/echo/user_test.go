package echoapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invasionlatina/backend/core/user"
)

func TestUserAPI_register(t *testing.T) {
	s, env := setup(t)
	env.CreateUser(t, "Maria", "maria@test.be", "", user.RoleUser)

	tests := []httpTest{
		{
			name:     "empty body",
			method:   http.MethodPost,
			path:     "/api/users/register",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{
				"name": "this field is required",
				"email": "this field is required",
				"password": "this field is required",
				"password_confirm": "this field is required"
			}`),
		},
		{
			name:     "weak password",
			method:   http.MethodPost,
			path:     "/api/users/register",
			body:     []byte(`{"name":"Carlos","email":"carlos@test.be","password":"12345678","password_confirm":"12345678"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"password":"password cannot be entirely numeric"}`),
		},
		{
			name:     "email taken",
			method:   http.MethodPost,
			path:     "/api/users/register",
			body:     []byte(`{"name":"Maria","email":" MARIA@test.be","password":"salsa2026!","password_confirm":"salsa2026!"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"email":"a user with this email already exists"}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.run(t, s)
		})
	}

	rec := httpTest{
		method:   http.MethodPost,
		path:     "/api/users/register",
		body:     []byte(`{"name":" Carlos ","email":"Carlos@Test.be","phone":"+32470000000","password":"bachata2026","password_confirm":"bachata2026"}`),
		wantCode: http.StatusCreated,
	}.run(t, s)

	var resp LoginResponse
	unmarchall(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "Carlos", resp.User.Name)
	assert.Equal(t, "carlos@test.be", resp.User.Email)
	assert.Equal(t, user.RoleUser, resp.User.Role)
	assert.True(t, resp.User.IsActive)

	// the token is usable right away
	rec = httpTest{path: "/api/users/me", token: resp.Token}.run(t, s)
	var me user.User
	unmarchall(t, rec, &me)
	assert.Equal(t, resp.User.ID, me.ID)

	sent := env.Mail.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "welcome", sent[0].TemplateName)
}

func TestUserAPI_login(t *testing.T) {
	s, env := setup(t)
	maria := env.CreateUser(t, "Maria", "maria@test.be", "salsa2026!", user.RoleUser)
	gone := env.CreateUser(t, "Gone", "gone@test.be", "salsa2026!", user.RoleUser)
	gone.IsActive = false
	_, err := env.UserRepo.UpdateUser(context.Background(), gone)
	require.NoError(t, err)

	tests := []httpTest{
		{
			name:     "missing fields",
			method:   http.MethodPost,
			path:     "/api/users/login",
			body:     []byte(`{"email":"maria"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"email":"email must be a valid email address","password":"this field is required"}`),
		},
		{
			name:     "unknown email",
			method:   http.MethodPost,
			path:     "/api/users/login",
			body:     []byte(`{"email":"nobody@test.be","password":"salsa2026!"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "Email ou mot de passe incorrect"}),
		},
		{
			name:     "wrong password",
			method:   http.MethodPost,
			path:     "/api/users/login",
			body:     []byte(`{"email":"maria@test.be","password":"salsa2025!"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "Email ou mot de passe incorrect"}),
		},
		{
			name:     "deactivated",
			method:   http.MethodPost,
			path:     "/api/users/login",
			body:     []byte(`{"email":"gone@test.be","password":"salsa2026!"}`),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "Compte désactivé"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.run(t, s)
		})
	}

	rec := httpTest{
		method: http.MethodPost,
		path:   "/api/users/login",
		body:   []byte(`{"email":" Maria@test.be ","password":"salsa2026!"}`),
	}.run(t, s)
	var resp LoginResponse
	unmarchall(t, rec, &resp)
	assert.Equal(t, maria.ID, resp.User.ID)
	require.NotNil(t, resp.User.LastLogin)

	// refresh
	rec = httpTest{method: http.MethodPost, path: "/api/users/token-refresh", token: resp.Token}.run(t, s)
	var refreshed struct {
		Token string `json:"token"`
	}
	unmarchall(t, rec, &refreshed)
	assert.NotEmpty(t, refreshed.Token)
}

func TestUserAPI_tokenRefresh(t *testing.T) {
	s, env := setup(t)
	maria := env.CreateUser(t, "Maria", "maria@test.be", "", user.RoleUser)

	// issued long ago: the refresh window is over
	claims := s.auth.UserClaims(maria, time.Now().Add(-5*time.Hour).Unix())
	token, err := s.auth.GenerateToken(claims)
	require.NoError(t, err)

	httpTest{
		method:   http.MethodPost,
		path:     "/api/users/token-refresh",
		token:    token,
		wantCode: http.StatusForbidden,
		wantData: marchallObj(t, httpErr{Error: "refresh has expired"}),
	}.run(t, s)

	httpTest{
		method:   http.MethodPost,
		path:     "/api/users/token-refresh",
		wantCode: http.StatusUnauthorized,
		wantData: marchallObj(t, errMissingToken),
	}.run(t, s)
}

func TestUserAPI_pushToken(t *testing.T) {
	s, env := setup(t)
	maria := env.CreateUser(t, "Maria", "maria@test.be", "", user.RoleUser)
	token := getToken(t, s, maria)

	httpTest{
		method:   http.MethodPut,
		path:     "/api/users/push-token",
		token:    token,
		body:     []byte(`{"push_token":"  "}`),
		wantCode: http.StatusBadRequest,
		wantData: []byte(`{"push_token":"this field is required"}`),
	}.run(t, s)

	httpTest{
		method:   http.MethodPut,
		path:     "/api/users/push-token",
		token:    token,
		body:     []byte(`{"push_token":"ExponentPushToken[maria]"}`),
		wantData: marchallObj(t, SuccessResponse{Success: "Token enregistré"}),
	}.run(t, s)

	usr, err := env.Users.GetByID(context.Background(), maria.ID)
	require.NoError(t, err)
	assert.Equal(t, "ExponentPushToken[maria]", usr.PushToken)
}

func TestUserAPI_admin(t *testing.T) {
	s, env := setup(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	adm := env.CreateUser(t, "Boss", "boss@test.be", "", user.RoleAdmin, base)
	dj := env.CreateUser(t, "DJ Flow", "flow@test.be", "", user.RoleDJ, base.Add(time.Hour))
	maria := env.CreateUser(t, "Maria", "maria@test.be", "", user.RoleUser, base.Add(2*time.Hour))
	admToken := getToken(t, s, adm)

	forbidden := []httpTest{
		{name: "query", path: "/api/users"},
		{name: "roles", path: "/api/users/roles"},
		{name: "set role", method: http.MethodPut, path: "/api/users/" + maria.ID + "/role", body: []byte(`{"role":"dj"}`)},
	}
	for _, tt := range forbidden {
		t.Run(tt.name+" forbidden", func(t *testing.T) {
			tt.token = getToken(t, s, dj)
			tt.wantCode = http.StatusForbidden
			tt.wantData = marchallObj(t, httpErr{Error: "permission denied"})
			tt.run(t, s)
		})
	}

	ids := func(rec []user.User) []string {
		var out []string
		for _, usr := range rec {
			out = append(out, usr.ID)
		}
		return out
	}
	queryTests := []struct {
		name string
		path string
		want []string
	}{
		{"newest first", "/api/users", []string{maria.ID, dj.ID, adm.ID}},
		{"ordering", "/api/users?ordering=name", []string{adm.ID, dj.ID, maria.ID}},
		{"by role", "/api/users?role=dj&role=admin", []string{dj.ID, adm.ID}},
		{"search", "/api/users?search=MARIA", []string{maria.ID}},
	}
	for _, tt := range queryTests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httpTest{path: tt.path, token: admToken}.run(t, s)
			var users []user.User
			unmarchall(t, rec, &users)
			assert.Equal(t, tt.want, ids(users))
		})
	}

	httpTest{path: "/api/users/roles", token: admToken, wantData: marchallObj(t, user.Roles)}.run(t, s)

	httpTest{
		method:   http.MethodPut,
		path:     "/api/users/" + maria.ID + "/role",
		token:    admToken,
		body:     []byte(`{"role":"bouncer"}`),
		wantCode: http.StatusBadRequest,
		wantData: []byte(`{"role":"invalid role"}`),
	}.run(t, s)
	httpTest{
		method:   http.MethodPut,
		path:     "/api/users/" + adm.ID + "/role",
		token:    admToken,
		body:     []byte(`{"role":"user"}`),
		wantCode: http.StatusForbidden,
	}.run(t, s)
	httpTest{
		method:   http.MethodPut,
		path:     "/api/users/unknown/role",
		token:    admToken,
		body:     []byte(`{"role":"staff"}`),
		wantCode: http.StatusNotFound,
	}.run(t, s)

	rec := httpTest{
		method: http.MethodPut,
		path:   "/api/users/" + maria.ID + "/role",
		token:  admToken,
		body:   []byte(`{"role":" STAFF "}`),
	}.run(t, s)
	var usr user.User
	unmarchall(t, rec, &usr)
	assert.Equal(t, user.RoleStaff, usr.Role)
}
