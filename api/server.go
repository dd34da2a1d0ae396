// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package api exposes the node's ambient HTTP surface: a Prometheus
// /metrics endpoint and a /healthz liveness probe. The account/vote/
// block RPC surface a full wallet-facing API would need stays out of
// scope; this package only carries what operators and orchestrators
// (load balancers, Kubernetes probes, a Prometheus scrape target) need
// to supervise a running node.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ledgerlattice/corenode/api/utils"
	"github.com/ledgerlattice/corenode/metrics"
)

// HealthChecker reports whether the node is in a state that should
// receive traffic. Implemented by whatever component owns node
// liveness (typically the cmd/ledgercore run loop); kept as a small
// interface here so this package doesn't depend on the node wiring.
type HealthChecker interface {
	Healthy() bool
}

// Server wires the ambient endpoints onto a mux.Router.
type Server struct {
	health HealthChecker
}

// New builds a Server reporting liveness via health.
func New(health HealthChecker) *Server {
	return &Server{health: health}
}

// Router builds the mux.Router serving /metrics and /healthz.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.PathPrefix("/metrics").Handler(metrics.Handler())
	router.Path("/healthz").HandlerFunc(utils.WrapHandlerFunc(s.handleHealthz))
	return router
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) error {
	if !s.health.Healthy() {
		return utils.HTTPError(nil, http.StatusServiceUnavailable)
	}
	w.WriteHeader(http.StatusOK)
	return nil
}
