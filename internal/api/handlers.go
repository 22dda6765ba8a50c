package api

import (
	"net/http"

	"github.com/deltascan/deltascan-agent/internal/http/response"
)

// handleReset unconditionally starts a fresh observation window. The
// scanner calls this after completing a full rescan.
func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.tracker.Reset()
	s.logger.Info("tracker reset")
	w.WriteHeader(http.StatusOK)
}

// handleStats reports the tracker state without mutating it.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	state, added, removed := s.tracker.Stats()
	response.OK(w, StatsResponse{State: state, New: added, Removed: removed}, s.logger)
}

// handleDrainNew pops up to size paths from the new set. The scanner
// should call this repeatedly until done is true.
func (s *Server) handleDrainNew(w http.ResponseWriter, r *http.Request) {
	size, ok := s.decodeDrainSize(w, r)
	if !ok {
		return
	}

	paths, done, state := s.tracker.DrainNew(size)
	response.OK(w, DrainResponse{State: state, Tag: "New", Paths: paths, Done: done}, s.logger)
}

// handleDrainRemoved pops up to size paths from the removed set.
func (s *Server) handleDrainRemoved(w http.ResponseWriter, r *http.Request) {
	size, ok := s.decodeDrainSize(w, r)
	if !ok {
		return
	}

	paths, done, state := s.tracker.DrainRemoved(size)
	response.OK(w, DrainResponse{State: state, Tag: "Removed", Paths: paths, Done: done}, s.logger)
}

// decodeDrainSize parses the request body and clamps size to
// [0, maxDrainSize]. A malformed body writes a 400 and returns ok=false.
func (s *Server) decodeDrainSize(w http.ResponseWriter, r *http.Request) (size int, ok bool) {
	var req drainRequest
	if err := response.Decode(r, &req); err != nil {
		s.logger.Debug("malformed drain request", "error", err)
		response.BadRequest(w, "invalid request body", s.logger)
		return 0, false
	}

	size = req.Size
	if size < 0 {
		size = 0
	}
	if size > maxDrainSize {
		size = maxDrainSize
	}

	return size, true
}
