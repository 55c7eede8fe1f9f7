package client

import (
	"brokerage/pkg/model"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisitClient_ScheduleSendsCallerAndKey(t *testing.T) {
	var gotCaller, gotKey string
	var gotBody model.ScheduleVisitInput
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/visits/schedule", r.URL.Path)
		gotCaller = r.Header.Get(callerHeader)
		gotKey = r.Header.Get(idempotencyHeader)
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"v1","property_id":10,"customer_id":5,"status":"WAITING_CONFIRMATION"}}`))
	}))
	defer srv.Close()

	at := time.Date(2030, 6, 2, 9, 0, 0, 0, time.UTC)
	visit, err := NewVisitClient(srv.URL).As(5).Schedule(context.Background(), 10, at, "key-1")

	require.NoError(t, err)
	assert.Equal(t, "5", gotCaller)
	assert.Equal(t, "key-1", gotKey)
	assert.Equal(t, int64(10), gotBody.PropertyID)
	assert.True(t, gotBody.VisitDateTime.Equal(at))
	assert.Equal(t, "v1", visit.ID)
	assert.Equal(t, model.StatusWaitingConfirmation, visit.Status)
}

func TestVisitClient_ErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"Visit already claimed by another broker","code":"CONFLICT"}`))
	}))
	defer srv.Close()

	_, err := NewVisitClient(srv.URL).As(3).Assume(context.Background(), "v1")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "CONFLICT", apiErr.Code)
	assert.Equal(t, "Visit already claimed by another broker", apiErr.Message)
}

func TestVisitClient_RemoveExpectsNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Empty(t, r.Header.Get(callerHeader))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	assert.NoError(t, NewVisitClient(srv.URL).Remove(context.Background(), "v1"))
}

func TestWaitForHealthy_GivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewHttpClient(srv.URL).WaitForHealthy(context.Background(), 600*time.Millisecond)
	assert.Error(t, err)
}
