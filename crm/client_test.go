package crm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Options{BaseURL: srv.URL})
	require.NoError(t, err)
	return c
}

func TestClientReadRetriesOnServerError(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"valid":true,"data":{"ok":true}}`))
	})
	c.retry.Initial = 0

	resp, err := c.Read(context.Background(), "/contacts/search", Envelope{Token: "t", OrganizationID: "org"}, map[string]any{"q": "jane"})
	require.NoError(t, err)
	require.True(t, resp.Valid)
	require.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestClientReadClassifiesAuthenticationError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.Read(context.Background(), "/contacts/search", Envelope{Token: "expired", OrganizationID: "org"}, nil)
	require.Error(t, err)
	require.Equal(t, ClassAuthentication, ClassOf(err))
}

func TestClientMutateSuppressesDuplicateFingerprint(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"valid":true,"data":{"id":"c1"}}`))
	})

	env := Envelope{Token: "t", OrganizationID: "org"}
	payload := map[string]any{"name": "Jane Doe"}

	_, err := c.Mutate(context.Background(), "/contacts", env, payload)
	require.NoError(t, err)

	_, err = c.Mutate(context.Background(), "/contacts", env, payload)
	require.ErrorIs(t, err, ErrDuplicateMutation)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestClientMutateDistinctPayloadsNotDeduped(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"valid":true}`))
	})
	env := Envelope{Token: "t", OrganizationID: "org"}

	_, err := c.Mutate(context.Background(), "/contacts", env, map[string]any{"name": "Jane"})
	require.NoError(t, err)
	_, err = c.Mutate(context.Background(), "/contacts", env, map[string]any{"name": "John"})
	require.NoError(t, err)
	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}
