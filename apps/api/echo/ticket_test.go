package echoapi

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invasionlatina/backend/core/event"
	"github.com/invasionlatina/backend/core/ticket"
	"github.com/invasionlatina/backend/core/user"
)

const categoriesBody = `{"categories":[
	{"category":"standard","name":"Entrée","price":15,"available_seats":100},
	{"category":"vip","name":"VIP","price":40,"available_seats":1}
]}`

func TestTicketAPI_categories(t *testing.T) {
	s, env := setup(t)
	maria := env.CreateUser(t, "Maria", "maria@test.be", "", user.RoleUser)
	adm := env.CreateUser(t, "Boss", "boss@test.be", "", user.RoleAdmin)
	evt := env.CreateEvent(t, "Salsa Night", time.Now().Add(72*time.Hour), event.StatusUpcoming)
	path := "/api/events/" + evt.ID + "/tickets"

	httpTest{path: path, wantData: []byte(`[]`)}.run(t, s)
	httpTest{method: http.MethodPut, path: path, body: []byte(categoriesBody), wantCode: http.StatusUnauthorized}.run(t, s)
	httpTest{
		method:   http.MethodPut,
		path:     path,
		token:    getToken(t, s, maria),
		body:     []byte(categoriesBody),
		wantCode: http.StatusForbidden,
	}.run(t, s)
	httpTest{
		method:   http.MethodPut,
		path:     path,
		token:    getToken(t, s, adm),
		body:     []byte(`{"categories":[{"category":"backstage","name":"Backstage"}]}`),
		wantCode: http.StatusBadRequest,
	}.run(t, s)
	httpTest{method: http.MethodPut, path: path, token: getToken(t, s, adm), body: []byte(categoriesBody)}.run(t, s)

	want := []ticket.Category{
		{EventID: evt.ID, Category: ticket.CategoryStandard, Name: "Entrée", Price: 15, AvailableSeats: 100},
		{EventID: evt.ID, Category: ticket.CategoryVIP, Name: "VIP", Price: 40, AvailableSeats: 1},
	}
	httpTest{path: path, wantData: marchallObj(t, want)}.run(t, s)
	httpTest{path: "/api/events/unknown/tickets", wantCode: http.StatusNotFound}.run(t, s)
}

func TestTicketAPI_purchaseAndValidate(t *testing.T) {
	s, env := setup(t)
	maria := env.CreateUser(t, "Maria", "maria@test.be", "", user.RoleUser)
	door := env.CreateUser(t, "Door", "door@test.be", "", user.RoleStaff)
	adm := env.CreateUser(t, "Boss", "boss@test.be", "", user.RoleAdmin)
	mariaToken := getToken(t, s, maria)
	doorToken := getToken(t, s, door)
	evt := env.CreateEvent(t, "Salsa Night", time.Now().Add(72*time.Hour), event.StatusUpcoming)
	httpTest{
		method: http.MethodPut,
		path:   "/api/events/" + evt.ID + "/tickets",
		token:  getToken(t, s, adm),
		body:   []byte(categoriesBody),
	}.run(t, s)

	purchase := func(category string, quantity int, method string) []byte {
		return []byte(fmt.Sprintf(`{"event_id":%q,"ticket_category":%q,"quantity":%d,"payment_method_id":%q}`,
			evt.ID, category, quantity, method))
	}

	tests := []httpTest{
		{
			name:     "no payment method",
			body:     []byte(fmt.Sprintf(`{"event_id":%q,"ticket_category":"vip"}`, evt.ID)),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"payment_method_id":"this field is required"}`),
		},
		{
			name:     "too many",
			body:     purchase("vip", 2, "pm_card_visa"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "Plus assez de billets disponibles"}),
		},
		{
			name:     "declined",
			body:     purchase("vip", 1, "pm_card_declined"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "Paiement refusé"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodPost
			tt.path = "/api/tickets/purchase"
			tt.token = mariaToken
			tt.run(t, s)
		})
	}

	rec := httpTest{
		method:   http.MethodPost,
		path:     "/api/tickets/purchase",
		token:    mariaToken,
		body:     purchase("vip", 1, "pm_card_visa"),
		wantCode: http.StatusCreated,
	}.run(t, s)
	var res ticket.PurchaseResult
	unmarchall(t, rec, &res)
	require.Len(t, res.Tickets, 1)
	assert.Equal(t, 4, res.PointsEarned)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.deps.Metrics.tickets.WithLabelValues("vip")))
	code := res.Tickets[0].Code

	rec = httpTest{path: "/api/tickets/mine", token: mariaToken}.run(t, s)
	var mine []ticket.Ticket
	unmarchall(t, rec, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, code, mine[0].Code)

	validatePath := "/api/tickets/" + code + "/validate"
	httpTest{method: http.MethodPost, path: validatePath, token: mariaToken, wantCode: http.StatusForbidden}.run(t, s)
	rec = httpTest{method: http.MethodPost, path: validatePath, token: doorToken}.run(t, s)
	var v ticket.ValidationResult
	unmarchall(t, rec, &v)
	assert.Equal(t, ticket.StatusUsed, v.Ticket.Status)
	assert.Equal(t, door.ID, v.Ticket.ValidatedBy)

	httpTest{
		method:   http.MethodPost,
		path:     validatePath,
		token:    doorToken,
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, httpErr{Error: "Billet déjà utilisé ou invalide"}),
	}.run(t, s)
	httpTest{
		method:   http.MethodPost,
		path:     "/api/tickets/IL00000000/validate",
		token:    doorToken,
		wantCode: http.StatusNotFound,
		wantData: marchallObj(t, httpErr{Error: "Billet non trouvé"}),
	}.run(t, s)
}
