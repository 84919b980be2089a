package httpserver

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
)

type Server struct {
	Mux *mux.Router
}

func New() *Server {
	return &Server{Mux: mux.NewRouter()}
}

// NewInstrumented returns a server that logs every request and counts it by route template.
func NewInstrumented(counter *prometheus.CounterVec) *Server {
	s := New()
	s.Mux.Use(Recover, Logging, Metrics(counter))
	return s
}
