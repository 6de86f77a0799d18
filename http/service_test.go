package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/txn-kv-store/metric"
)

type stateFunc func() (interface{}, error)

func (f stateFunc) State() (interface{}, error) { return f() }

func serve(s *Service, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestStateEndpoint(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := NewService(logger, "127.0.0.1:0", stateFunc(func() (interface{}, error) {
		return map[string]int64{"last_txn_id": 7}, nil
	}))

	w := serve(s, http.MethodGet, "/state")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"last_txn_id":7}`, w.Body.String())

	assert.Equal(t, http.StatusMethodNotAllowed, serve(s, http.MethodPost, "/state").Code)
	assert.Equal(t, http.StatusNotFound, serve(s, http.MethodGet, "/key/x").Code)
}

func TestStateUnavailable(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := NewService(logger, "127.0.0.1:0", stateFunc(func() (interface{}, error) {
		return nil, errors.New("store is busy")
	}))

	w := serve(s, http.MethodGet, "/state")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "store is busy")
}

func TestMetricsAndHealth(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := NewService(logger, "127.0.0.1:0", stateFunc(func() (interface{}, error) { return nil, nil }))
	metric.UnrecognizedMessages.Inc()

	w := serve(s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "txnkv_network_unrecognized_messages_total")

	w = serve(s, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok\n", w.Body.String())
}

func TestServiceListens(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := NewService(logger, "127.0.0.1:0", stateFunc(func() (interface{}, error) { return "up", nil }))
	require.NoError(t, s.Start())
	defer s.Close()

	resp, err := http.Get("http://" + s.Addr().String() + "/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
