package authz

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffhive/staffhive/internal/shared"
)

func testGuard(store Store) Middleware {
	return Middleware{
		Service: NewService(store, nil),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func requestWithUser(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/candidates", nil)
	sess := &shared.Session{}
	if userID != "" {
		sess.SetUser(userID)
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func TestRequirePermissionAllowsAndSetsCaller(t *testing.T) {
	store := &fakeStore{perms: map[int64][]string{42: {"candidate.view"}}}
	guard := testGuard(store)

	var callerID int64
	handler := guard.RequirePermission("candidate.view")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callerID = CallerID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, requestWithUser("42"))

	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, int64(42), callerID)
}

func TestRequirePermissionDeniesWithoutLeakingDetail(t *testing.T) {
	store := &fakeStore{perms: map[int64][]string{42: {"job.view"}}}
	guard := testGuard(store)

	handler := guard.RequirePermission("candidate.delete")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, requestWithUser("42"))

	require.Equal(t, http.StatusForbidden, res.Code)
	assert.NotContains(t, res.Body.String(), "candidate.delete")
}

func TestGuardRejectsUnauthenticated(t *testing.T) {
	guard := testGuard(&fakeStore{})

	handler := guard.RequirePermission("candidate.view")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	// No session at all.
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/candidates", nil))
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	// Session present but anonymous.
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, requestWithUser(""))
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	// Unparseable user id counts as missing identity.
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, requestWithUser("not-a-number"))
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestGuardMapsLookupFailureToOpaqueInternal(t *testing.T) {
	store := &fakeStore{permsErr: assertErr{}}
	guard := testGuard(store)

	handler := guard.RequirePermission("candidate.view")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, requestWithUser("42"))

	require.Equal(t, http.StatusInternalServerError, res.Code)
	assert.NotContains(t, strings.ToLower(res.Body.String()), "store exploded")
}

type assertErr struct{}

func (assertErr) Error() string { return "store exploded" }

func TestRequireRole(t *testing.T) {
	store := &fakeStore{roles: map[int64][]RoleGrant{
		42: {{RoleID: 1, Name: "Finance Manager", HierarchyLevel: 3}},
	}}
	guard := testGuard(store)

	ok := guard.RequireRole("Finance Manager")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	res := httptest.NewRecorder()
	ok.ServeHTTP(res, requestWithUser("42"))
	assert.Equal(t, http.StatusOK, res.Code)

	denied := guard.RequireRole("Business VP")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	res = httptest.NewRecorder()
	denied.ServeHTTP(res, requestWithUser("42"))
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestRequireMinimumRole(t *testing.T) {
	store := &fakeStore{
		roles: map[int64][]RoleGrant{
			42: {{RoleID: 1, Name: "Recruitment Director", HierarchyLevel: 2}},
		},
		levels: map[string]int{"Recruitment Manager": 3},
	}
	guard := testGuard(store)

	handler := guard.RequireMinimumRole("Recruitment Manager")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, requestWithUser("42"))
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestRequireAnyRole(t *testing.T) {
	store := &fakeStore{roles: map[int64][]RoleGrant{
		42: {{RoleID: 1, Name: "Research Lead", HierarchyLevel: 4}},
	}}
	guard := testGuard(store)

	handler := guard.RequireAnyRole("Finance Manager", "Research Lead")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, requestWithUser("42"))
	assert.Equal(t, http.StatusOK, res.Code)
}
