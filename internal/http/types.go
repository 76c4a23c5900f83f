package http

import "github.com/fyrsmithlabs/specd/internal/pipeline"

// OptimizeRequest is the request body for POST /api/v1/optimize. The
// response body is the pipeline outcome itself.
type OptimizeRequest struct {
	Intent  string            `json:"intent"`
	Options *pipeline.Options `json:"options,omitempty"`
}

// HealthResponse is the body served on GET /health.
type HealthResponse struct {
	Status        string        `json:"status"`
	Version       string        `json:"version"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	Pipeline      StatsResponse `json:"pipeline"`
	Counts        HealthCounts  `json:"counts"`
}

// HealthCounts contains count information for the loaded catalogs and
// the steering index. SteeringNotes is -1 when no store is attached or
// the notes directory cannot be read.
type HealthCounts struct {
	Techniques    int `json:"techniques"`
	Sources       int `json:"sources"`
	SteeringNotes int `json:"steering_notes"`
}

// StatsResponse is the response body for GET /api/v1/stats and the
// pipeline section of GET /health.
type StatsResponse struct {
	Requests      uint64  `json:"requests"`
	Failures      uint64  `json:"failures"`
	DegradedRuns  uint64  `json:"degraded_runs"`
	AvgDurationMS float64 `json:"avg_duration_ms"`
}

func statsResponse(snap pipeline.StatsSnapshot) StatsResponse {
	return StatsResponse{
		Requests:      snap.Requests,
		Failures:      snap.Failures,
		DegradedRuns:  snap.DegradedRuns,
		AvgDurationMS: snap.AvgDurationMS,
	}
}

// TechniquesResponse is the response body for GET /api/v1/techniques.
type TechniquesResponse struct {
	Techniques []TechniqueBody `json:"techniques"`
	Count      int             `json:"count"`
}

// TechniqueBody is one catalog entry with its backing sources.
type TechniqueBody struct {
	Key            string         `json:"key"`
	Name           string         `json:"name"`
	Triggers       []string       `json:"triggers"`
	BaseSavings    float64        `json:"base_savings"`
	Recommendation string         `json:"recommendation"`
	Citations      []CitationBody `json:"citations,omitempty"`
}

// CitationBody is one published source backing a technique.
type CitationBody struct {
	Key         string   `json:"key"`
	Title       string   `json:"title"`
	Authors     []string `json:"authors"`
	Year        int      `json:"year"`
	Publication string   `json:"publication"`
	Finding     string   `json:"finding"`
}
