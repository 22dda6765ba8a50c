package api

import (
	"encoding/json/v2"

	"github.com/deltascan/deltascan-agent/internal/tracker"
)

// maxDrainSize caps how many paths one drain call may return. Requests
// asking for more are clamped, not rejected.
const maxDrainSize = 1000

// drainRequest is the body of the drain endpoints.
type drainRequest struct {
	Size int `json:"size"`
}

// statsCounts carries the set sizes inside the Ok stats variant.
type statsCounts struct {
	Removed int `json:"removed"`
	New     int `json:"new"`
}

// StatsResponse is the /stats body. On the wire it is a tagged union:
// {"Ok":{"removed":N,"new":N}} in the Ok state, or the bare strings
// "TooManyChanges" / "ChangesErroneousDropped" for the sentinel states.
type StatsResponse struct {
	State   tracker.State
	New     int
	Removed int
}

// MarshalJSON implements the tagged-union encoding.
func (r StatsResponse) MarshalJSON() ([]byte, error) {
	if r.State != tracker.StateOk {
		return json.Marshal(r.State.String())
	}
	return json.Marshal(struct {
		Ok statsCounts `json:"Ok"`
	}{Ok: statsCounts{Removed: r.Removed, New: r.New}})
}

// drainPage is one page of drained paths. done is true iff the set was
// empty after this drain.
type drainPage struct {
	Paths []string `json:"paths"`
	Done  bool     `json:"done"`
}

// DrainResponse is the body of both drain endpoints. tag is "New" or
// "Removed" depending on which set was drained; the sentinel states
// encode as bare strings, same as StatsResponse.
type DrainResponse struct {
	State tracker.State
	Tag   string
	Paths []string
	Done  bool
}

// MarshalJSON implements the tagged-union encoding.
func (r DrainResponse) MarshalJSON() ([]byte, error) {
	if r.State != tracker.StateOk {
		return json.Marshal(r.State.String())
	}

	paths := r.Paths
	if paths == nil {
		paths = []string{}
	}
	page := drainPage{Paths: paths, Done: r.Done}

	if r.Tag == "Removed" {
		return json.Marshal(struct {
			Removed drainPage `json:"Removed"`
		}{Removed: page})
	}
	return json.Marshal(struct {
		New drainPage `json:"New"`
	}{New: page})
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status string `json:"status"`
}
