package echoapi

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invasionlatina/backend/core/event"
	"github.com/invasionlatina/backend/core/song"
	"github.com/invasionlatina/backend/core/user"
	apptest "github.com/invasionlatina/backend/testutil"
)

var atVenue = fmt.Sprintf(`"latitude":%v,"longitude":%v`, apptest.VenueLatitude, apptest.VenueLongitude)

func songBody(title, artist string) []byte {
	return []byte(fmt.Sprintf(`{"title":%q,"artist":%q,%s}`, title, artist, atVenue))
}

// startNight opens the song board on a live event.
func startNight(t *testing.T, env *apptest.Env) event.Event {
	t.Helper()

	evt := env.CreateEvent(t, "Reggaeton Night", time.Now().Add(time.Hour), event.StatusUpcoming)
	_, evt, err := env.Settings.StartEvent(context.Background(), evt.ID, "admin@test.be")
	require.NoError(t, err)
	return evt
}

func TestSongAPI_submit(t *testing.T) {
	s, env := setup(t)
	maria := env.CreateUser(t, "Maria", "maria@test.be", "", user.RoleUser)
	carlos := env.CreateUser(t, "Carlos", "carlos@test.be", "", user.RoleUser)
	dj := env.CreateUser(t, "DJ Flow", "flow@test.be", "", user.RoleDJ)

	// closed board
	httpTest{
		method:   http.MethodPost,
		path:     "/api/songs/requests",
		token:    getToken(t, s, maria),
		body:     songBody("Despacito", "Luis Fonsi"),
		wantCode: http.StatusForbidden,
		wantData: marchallObj(t, httpDenied{
			Error:  "Les demandes de chansons sont désactivées pour le moment. Revenez pendant l'événement!",
			Reason: "requests_disabled",
		}),
	}.run(t, s)

	evt := startNight(t, env)

	tests := []httpTest{
		{
			name:     "no token",
			body:     songBody("Despacito", "Luis Fonsi"),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "blank fields",
			token:    getToken(t, s, maria),
			body:     []byte(`{"title":"  ","artist":""}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"title":"this field is required","artist":"this field is required"}`),
		},
		{
			name:     "bad latitude",
			token:    getToken(t, s, maria),
			body:     []byte(`{"title":"Tusa","artist":"Karol G","latitude":95,"longitude":4.36}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"latitude":"latitude must be 90 or less"}`),
		},
		{
			name:     "no location",
			token:    getToken(t, s, maria),
			body:     []byte(`{"title":"Tusa","artist":"Karol G"}`),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpDenied{
				Error:  "Activez votre localisation pour demander une chanson",
				Reason: "location_required",
			}),
		},
		{
			name:     "too far",
			token:    getToken(t, s, maria),
			body:     []byte(`{"title":"Tusa","artist":"Karol G","latitude":50.8467,"longitude":4.3525}`),
			wantCode: http.StatusForbidden,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodPost
			tt.path = "/api/songs/requests"
			tt.run(t, s)
		})
	}

	rec := httpTest{
		method:   http.MethodPost,
		path:     "/api/songs/requests",
		token:    getToken(t, s, maria),
		body:     songBody("Despacito", "Luis Fonsi"),
		wantCode: http.StatusOK,
	}.run(t, s)
	var created song.SubmitResult
	unmarchall(t, rec, &created)
	assert.True(t, created.Created)
	assert.Equal(t, 1, created.TimesRequested)
	assert.Equal(t, "Demande envoyée!", created.Message)

	// same song, different spelling
	rec = httpTest{
		method: http.MethodPost,
		path:   "/api/songs/requests",
		token:  getToken(t, s, carlos),
		body:   songBody(" despacito ", "LUIS FONSI"),
	}.run(t, s)
	var appended song.SubmitResult
	unmarchall(t, rec, &appended)
	assert.Equal(t, song.SubmitResult{
		RequestID:      created.RequestID,
		TimesRequested: 2,
		Message:        "Demande ajoutée! 'Despacito' a maintenant 2 demandes! 🔥",
	}, appended)

	// DJs skip the geofence
	httpTest{
		method:   http.MethodPost,
		path:     "/api/songs/requests",
		token:    getToken(t, s, dj),
		body:     []byte(`{"title":"Gasolina","artist":"Daddy Yankee"}`),
		wantCode: http.StatusOK,
	}.run(t, s)

	req, err := env.Songs.Get(context.Background(), created.RequestID)
	require.NoError(t, err)
	assert.Equal(t, evt.ID, req.EventID)
	assert.Equal(t, 2, req.Votes)

	assert.Equal(t, 2.0, testutil.ToFloat64(s.deps.Metrics.songRequests.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.deps.Metrics.songRequests.WithLabelValues("appended")))
}

func TestSongAPI_vote(t *testing.T) {
	s, env := setup(t)
	maria := env.CreateUser(t, "Maria", "maria@test.be", "", user.RoleUser)
	carlos := env.CreateUser(t, "Carlos", "carlos@test.be", "", user.RoleUser)
	startNight(t, env)

	rec := httpTest{
		method:   http.MethodPost,
		path:     "/api/songs/requests",
		token:    getToken(t, s, maria),
		body:     songBody("Bichota", "Karol G"),
		wantCode: http.StatusOK,
	}.run(t, s)
	var res song.SubmitResult
	unmarchall(t, rec, &res)
	path := "/api/songs/requests/" + res.RequestID + "/votes"

	httpTest{
		method:   http.MethodPost,
		path:     path,
		token:    getToken(t, s, maria),
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, httpErr{Error: "Vous avez déjà voté pour cette chanson"}),
	}.run(t, s)
	httpTest{
		method:   http.MethodPost,
		path:     "/api/songs/requests/unknown/votes",
		token:    getToken(t, s, carlos),
		wantCode: http.StatusNotFound,
		wantData: marchallObj(t, httpErr{Error: "Demande non trouvée"}),
	}.run(t, s)

	rec = httpTest{method: http.MethodPost, path: path, token: getToken(t, s, carlos)}.run(t, s)
	var view song.View
	unmarchall(t, rec, &view)
	assert.Equal(t, 2, view.Votes)
	assert.Equal(t, 1, view.TimesRequested)
	assert.False(t, view.CanVote)
	assert.True(t, view.CanRequest)

	assert.Equal(t, 1.0, testutil.ToFloat64(s.deps.Metrics.songVotes))
}

func TestSongAPI_moderate(t *testing.T) {
	s, env := setup(t)
	maria := env.CreateUser(t, "Maria", "maria@test.be", "", user.RoleUser)
	dj := env.CreateUser(t, "DJ Flow", "flow@test.be", "", user.RoleDJ)
	startNight(t, env)
	djToken := getToken(t, s, dj)

	rec := httpTest{
		method:   http.MethodPost,
		path:     "/api/songs/requests",
		token:    getToken(t, s, maria),
		body:     songBody("Provenza", "Karol G"),
		wantCode: http.StatusOK,
	}.run(t, s)
	var res song.SubmitResult
	unmarchall(t, rec, &res)
	path := "/api/songs/requests/" + res.RequestID

	tests := []httpTest{
		{
			name:     "not privileged",
			token:    getToken(t, s, maria),
			body:     []byte(`{"status":"played"}`),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "back to pending",
			token:    djToken,
			body:     []byte(`{"status":"pending"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"status":"a request cannot be moved back to pending"}`),
		},
		{
			name:     "no reason",
			token:    djToken,
			body:     []byte(`{"status":"rejected"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"rejection_reason":"this field is required"}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodPatch
			tt.path = path
			tt.run(t, s)
		})
	}

	rec = httpTest{method: http.MethodPatch, path: path, token: djToken, body: []byte(`{"status":"played"}`)}.run(t, s)
	var req song.Request
	unmarchall(t, rec, &req)
	assert.Equal(t, song.StatusPlayed, req.Status)
	assert.NotNil(t, req.PlayedAt)

	httpTest{
		method:   http.MethodPatch,
		path:     path,
		token:    djToken,
		body:     []byte(`{"status":"rejected","rejection_reason":"not_appropriate"}`),
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, httpErr{Error: "Cette demande a déjà été traitée"}),
	}.run(t, s)

	// played songs can be voted no more
	httpTest{
		method:   http.MethodPost,
		path:     path + "/votes",
		token:    djToken,
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, httpErr{Error: "Impossible de voter pour cette demande"}),
	}.run(t, s)

	assert.Equal(t, 1.0, testutil.ToFloat64(s.deps.Metrics.moderations.WithLabelValues("played")))

	httpTest{method: http.MethodDelete, path: path, token: getToken(t, s, maria), wantCode: http.StatusForbidden}.run(t, s)
	httpTest{
		method:   http.MethodDelete,
		path:     path,
		token:    djToken,
		wantData: marchallObj(t, map[string]string{"message": "Demande supprimée"}),
	}.run(t, s)
	httpTest{method: http.MethodDelete, path: path, token: djToken, wantCode: http.StatusNotFound}.run(t, s)
}

func TestSongAPI_lists(t *testing.T) {
	s, env := setup(t)
	maria := env.CreateUser(t, "Maria", "maria@test.be", "", user.RoleUser)
	carlos := env.CreateUser(t, "Carlos", "carlos@test.be", "", user.RoleUser)
	dj := env.CreateUser(t, "DJ Flow", "flow@test.be", "", user.RoleDJ)
	evt := startNight(t, env)
	mariaToken := getToken(t, s, maria)
	djToken := getToken(t, s, dj)

	now := time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)
	for i, title := range []string{"Tusa", "Provenza"} {
		apptest.FreezeTime(t, now.Add(time.Duration(i)*time.Minute))
		httpTest{
			method:   http.MethodPost,
			path:     "/api/songs/requests",
			token:    mariaToken,
			body:     songBody(title, "Karol G"),
			wantCode: http.StatusOK,
		}.run(t, s)
	}
	apptest.FreezeTime(t, now.Add(5*time.Minute))
	httpTest{
		method:   http.MethodPost,
		path:     "/api/songs/requests",
		token:    getToken(t, s, carlos),
		body:     songBody("Danza Kuduro", "Don Omar"),
		wantCode: http.StatusOK,
	}.run(t, s)

	titles := func(views []song.View) []string {
		var out []string
		for _, v := range views {
			out = append(out, v.SongTitle)
		}
		return out
	}

	rec := httpTest{path: "/api/songs/requests", token: mariaToken}.run(t, s)
	var views []song.View
	unmarchall(t, rec, &views)
	assert.Equal(t, []string{"Danza Kuduro", "Provenza", "Tusa"}, titles(views))
	assert.True(t, views[0].CanVote)
	assert.False(t, views[1].CanVote)

	rec = httpTest{path: "/api/songs/requests/mine", token: mariaToken}.run(t, s)
	views = nil
	unmarchall(t, rec, &views)
	assert.Equal(t, []string{"Provenza", "Tusa"}, titles(views))

	_, err := env.Songs.Moderate(context.Background(), views[0].ID, song.Moderation{Status: song.StatusPlayed})
	require.NoError(t, err)

	rec = httpTest{path: "/api/songs/requests?status=played&event_id=" + evt.ID, token: mariaToken}.run(t, s)
	views = nil
	unmarchall(t, rec, &views)
	assert.Equal(t, []string{"Provenza"}, titles(views))

	httpTest{
		path:     "/api/songs/requests?status=skipped",
		token:    mariaToken,
		wantCode: http.StatusBadRequest,
		wantData: []byte(`{"status":"invalid status"}`),
	}.run(t, s)

	httpTest{path: "/api/songs/stats", token: mariaToken, wantCode: http.StatusForbidden}.run(t, s)
	httpTest{
		path:  "/api/songs/stats",
		token: djToken,
		wantData: marchallList(t, song.EventStats{
			EventID:   evt.ID,
			EventName: "Reggaeton Night",
			Pending:   2,
			Played:    1,
			Total:     3,
		}),
	}.run(t, s)

	httpTest{method: http.MethodDelete, path: "/api/songs/requests", token: mariaToken, wantCode: http.StatusForbidden}.run(t, s)
	httpTest{
		method:   http.MethodDelete,
		path:     "/api/songs/requests",
		token:    djToken,
		wantData: []byte(`{"deleted":3}`),
	}.run(t, s)
	httpTest{path: "/api/songs/requests", token: mariaToken, wantData: marchallList(t)}.run(t, s)
}

func TestSongAPI_status(t *testing.T) {
	s, env := setup(t)
	maria := env.CreateUser(t, "Maria", "maria@test.be", "", user.RoleUser)
	dj := env.CreateUser(t, "DJ Flow", "flow@test.be", "", user.RoleDJ)
	startNight(t, env)

	tests := []httpTest{
		{
			name:  "at venue",
			path:  fmt.Sprintf("/api/songs/status?latitude=%v&longitude=%v", apptest.VenueLatitude, apptest.VenueLongitude),
			token: getToken(t, s, maria),
			wantData: marchallObj(t, song.AccessStatus{
				Enabled: true,
				Allowed: true,
				Message: "Les demandes de chansons sont ouvertes!",
			}),
		},
		{
			name:  "no position",
			path:  "/api/songs/status?latitude=abc",
			token: getToken(t, s, maria),
			wantData: marchallObj(t, song.AccessStatus{
				Enabled: true,
				Reason:  "location_required",
				Message: "Activez votre localisation pour demander une chanson",
			}),
		},
		{
			name:  "dj anywhere",
			path:  "/api/songs/status",
			token: getToken(t, s, dj),
			wantData: marchallObj(t, song.AccessStatus{
				Enabled: true,
				Allowed: true,
				Message: "Les demandes de chansons sont ouvertes!",
			}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.run(t, s)
		})
	}
}
