package server

import (
	"encoding/json"
	"net/http"
)

type healthResponse struct {
	Status    string       `json:"status"`
	State     string       `json:"state"`
	Clients   int          `json:"clients"`
	LastBuild *buildHealth `json:"last_build,omitempty"`
}

type buildHealth struct {
	Success   bool     `json:"success"`
	Initial   bool     `json:"initial"`
	ElapsedMs int64    `json:"elapsed_ms"`
	Files     []string `json:"files,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "ok",
		State:   "idle",
		Clients: s.opts.Registry.Count(),
	}

	if s.opts.Builds != nil {
		resp.State = s.opts.Builds.State().String()
		if last := s.opts.Builds.LastResult(); last != nil {
			resp.LastBuild = &buildHealth{
				Success:   last.Success,
				Initial:   last.Initial,
				ElapsedMs: last.Elapsed.Milliseconds(),
				Files:     last.ServedFiles,
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to write health response")
	}
}
