package echoapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invasionlatina/backend/core/booking"
	"github.com/invasionlatina/backend/core/event"
	"github.com/invasionlatina/backend/core/user"
)

func TestBookingAPI(t *testing.T) {
	s, env := setup(t)
	maria := env.CreateUser(t, "Maria", "maria@test.be", "", user.RoleUser)
	carlos := env.CreateUser(t, "Carlos", "carlos@test.be", "", user.RoleUser)
	adm := env.CreateUser(t, "Boss", "boss@test.be", "", user.RoleAdmin)
	mariaToken := getToken(t, s, maria)
	admToken := getToken(t, s, adm)
	evt := env.CreateEvent(t, "Bachata Night", time.Date(2026, 5, 2, 23, 0, 0, 0, time.UTC), event.StatusUpcoming)

	httpTest{
		method:   http.MethodPost,
		path:     "/api/vip/bookings",
		token:    mariaToken,
		body:     []byte(`{"zone":"rooftop","package":"gold","guest_count":60}`),
		wantCode: http.StatusBadRequest,
		wantData: []byte(`{
			"event_id": "this field is required",
			"zone": "invalid zone",
			"guest_count": "guest_count must be 50 or less"
		}`),
	}.run(t, s)
	httpTest{
		method:   http.MethodPost,
		path:     "/api/vip/bookings",
		token:    mariaToken,
		body:     []byte(`{"event_id":"unknown","zone":"terrace","package":"silver"}`),
		wantCode: http.StatusNotFound,
		wantData: marchallObj(t, httpErr{Error: "Événement non trouvé"}),
	}.run(t, s)

	rec := httpTest{
		method:   http.MethodPost,
		path:     "/api/vip/bookings",
		token:    mariaToken,
		body:     []byte(`{"event_id":"` + evt.ID + `","zone":"VIP_AREA","package":"gold","guest_count":8,"total_price":450}`),
		wantCode: http.StatusCreated,
	}.run(t, s)
	var b booking.Booking
	unmarchall(t, rec, &b)
	assert.Equal(t, booking.StatusPending, b.Status)
	assert.Equal(t, booking.ZoneVIPArea, b.Zone)
	assert.Equal(t, "Maria", b.CustomerName)
	assert.Equal(t, "Bachata Night", b.EventName)
	assert.Len(t, env.Notify.WhatsAppMessages(), 1)

	rec = httpTest{path: "/api/vip/bookings/mine", token: mariaToken}.run(t, s)
	var mine []booking.Booking
	unmarchall(t, rec, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, b.ID, mine[0].ID)
	httpTest{path: "/api/vip/bookings/mine", token: getToken(t, s, carlos), wantData: marchallList(t)}.run(t, s)

	// owners only
	httpTest{
		method:   http.MethodDelete,
		path:     "/api/vip/bookings/" + b.ID,
		token:    getToken(t, s, carlos),
		wantCode: http.StatusForbidden,
		wantData: marchallObj(t, httpDenied{Error: "Vous ne pouvez annuler que vos propres réservations", Reason: "not_owner"}),
	}.run(t, s)

	adminOnly := []httpTest{
		{name: "query", path: "/api/vip/bookings"},
		{name: "set status", method: http.MethodPut, path: "/api/vip/bookings/" + b.ID, body: []byte(`{"status":"confirmed"}`)},
		{name: "destroy", method: http.MethodDelete, path: "/api/vip/bookings/" + b.ID + "/admin"},
		{name: "clear", method: http.MethodDelete, path: "/api/vip/bookings"},
	}
	for _, tt := range adminOnly {
		t.Run(tt.name, func(t *testing.T) {
			tt.token = mariaToken
			tt.wantCode = http.StatusForbidden
			tt.wantData = marchallObj(t, httpErr{Error: "permission denied"})
			tt.run(t, s)
		})
	}

	httpTest{
		method:   http.MethodPut,
		path:     "/api/vip/bookings/" + b.ID,
		token:    admToken,
		body:     []byte(`{"status":"paid"}`),
		wantCode: http.StatusBadRequest,
		wantData: []byte(`{"status":"invalid booking status"}`),
	}.run(t, s)
	rec = httpTest{
		method: http.MethodPut,
		path:   "/api/vip/bookings/" + b.ID,
		token:  admToken,
		body:   []byte(`{"status":"CONFIRMED"}`),
	}.run(t, s)
	unmarchall(t, rec, &b)
	assert.Equal(t, booking.StatusConfirmed, b.Status)

	rec = httpTest{method: http.MethodDelete, path: "/api/vip/bookings/" + b.ID, token: mariaToken}.run(t, s)
	unmarchall(t, rec, &b)
	assert.Equal(t, booking.StatusCancelled, b.Status)
	httpTest{
		method:   http.MethodDelete,
		path:     "/api/vip/bookings/" + b.ID,
		token:    mariaToken,
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, httpErr{Error: "Cette réservation est déjà annulée"}),
	}.run(t, s)

	rec = httpTest{path: "/api/vip/bookings", token: admToken}.run(t, s)
	var all []booking.Booking
	unmarchall(t, rec, &all)
	require.Len(t, all, 1)

	httpTest{method: http.MethodDelete, path: "/api/vip/bookings/" + b.ID + "/admin", token: admToken, wantCode: http.StatusNoContent}.run(t, s)
	httpTest{
		method:   http.MethodDelete,
		path:     "/api/vip/bookings/" + b.ID + "/admin",
		token:    admToken,
		wantCode: http.StatusNotFound,
		wantData: marchallObj(t, httpErr{Error: "Réservation non trouvée"}),
	}.run(t, s)
	httpTest{method: http.MethodDelete, path: "/api/vip/bookings", token: admToken, wantData: []byte(`{"deleted":0}`)}.run(t, s)
}
