package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/staffhive/staffhive/internal/shared"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", fmt.Errorf("role 7: %w", shared.ErrNotFound), http.StatusNotFound},
		{"conflict", fmt.Errorf("%w: role already exists", shared.ErrConflict), http.StatusConflict},
		{"cycle", fmt.Errorf("%w: role cannot be its own parent", shared.ErrCycle), http.StatusConflict},
		{"unauthenticated", shared.ErrUnauthenticated, http.StatusUnauthorized},
		{"invalid credentials", shared.ErrInvalidCredentials, http.StatusUnauthorized},
		{"forbidden", shared.ErrForbidden, http.StatusForbidden},
		{"unclassified", errors.New("pool exhausted"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := httptest.NewRecorder()
			RespondError(res, tc.err)
			assert.Equal(t, tc.status, res.Code)
		})
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	res := httptest.NewRecorder()
	RespondError(res, errors.New("pool exhausted"))

	assert.NotContains(t, res.Body.String(), "pool exhausted")
}
