package engineers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engineerhub/engineerhub/internal/shared"
)

func fakeSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Cookie") == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithUserID(r.Context(), testCreatorID)))
	})
}

func newTestRouter(repo *memRepo) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/engineers", NewHandler(nil, NewService(repo), fakeSession).MountRoutes)
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Cookie", "session=test")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestCreateEngineerEndpoint(t *testing.T) {
	repo := &memRepo{}
	h := newTestRouter(repo)

	rr := do(t, h, http.MethodPost, "/api/engineers",
		`{"name":"Ada","surname":"Lovelace","city":"London","contactNumber":"555-0101"}`, true)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var got Engineer
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "Ada", got.Name)
	assert.Equal(t, "555-0101", got.ContactNumber)
	assert.Equal(t, testCreatorID, got.CreatedBy)
	assert.NotEmpty(t, got.ID)
}

func TestCreateEngineerMissingFields(t *testing.T) {
	h := newTestRouter(&memRepo{})

	for _, body := range []string{
		`{"name":"Ada","surname":"Lovelace","city":"London"}`,
		`{"name":"  ","surname":"Lovelace","city":"London","contactNumber":"1"}`,
		`{}`,
	} {
		rr := do(t, h, http.MethodPost, "/api/engineers", body, true)
		require.Equal(t, http.StatusBadRequest, rr.Code, body)
		assert.Contains(t, rr.Body.String(), MsgMissingFields, body)
	}
}

func TestCreateEngineerMalformedBody(t *testing.T) {
	rr := do(t, newTestRouter(&memRepo{}), http.MethodPost, "/api/engineers", `{"name":`, true)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestEngineersRequireSession(t *testing.T) {
	h := newTestRouter(&memRepo{})

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/api/engineers", "", false).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/api/engineers", `{}`, false).Code)
}

func TestListEngineersEndpoint(t *testing.T) {
	repo := &memRepo{}
	h := newTestRouter(repo)
	for _, name := range []string{"Ada", "Grace"} {
		body := `{"name":"` + name + `","surname":"S","city":"C","contactNumber":"1"}`
		require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/engineers", body, true).Code)
	}

	rr := do(t, h, http.MethodGet, "/api/engineers?limit=1", "", true)
	require.Equal(t, http.StatusOK, rr.Code)
	var list []Engineer
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Grace", list[0].Name)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/engineers?limit=abc", "", true).Code)
}
