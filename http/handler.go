package http

import (
	"encoding/json"
	"io"
	"net/http"
	"time"
)

func (s *Service) handleState(w http.ResponseWriter, r *http.Request) {
	state, err := s.state.State()
	if err != nil {
		s.log.Warnf("State unavailable: %s", err)
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(state); err != nil {
		s.log.Errorf("Unable to encode state: %s", err)
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	io.WriteString(w, "ok\n")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (s *Service) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sr, r)
		s.log.Debugf("%s %s status=%d dur=%s remote=%s", r.Method, r.URL.Path, sr.status, time.Since(start), r.RemoteAddr)
	})
}
