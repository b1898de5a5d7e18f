package analyzer

import (
	"trackmeta/internal/consensus"
	"trackmeta/internal/features"
)

// State names one step of an analysis. Progress labels use these values.
type State string

const (
	StateExtracting State = "extracting_features"
	StateClassifying State = "classifying"
	StateLyrics      State = "enriching_lyrics"
	StateMerging     State = "merging"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Progress percentages reported on entering each state.
const (
	progressExtracting  = 5
	progressClassifying = 40
	progressLyrics      = 70
	progressMerging     = 90
	progressDone        = 100
)

// Layer counts recorded in the sidecar.
const (
	layersBase   = 2
	layersLyrics = 3
)

// Tech is the technical sidecar stamped on every result.
type Tech struct {
	RequestID           string           `json:"request_id"`
	Confidence          float64          `json:"confidence"`
	AnalysisTimeSeconds float64          `json:"analysis_time"`
	BudgetSeconds       float64          `json:"budget_seconds"`
	BudgetMet           bool             `json:"target_met"`
	LayerCount          int              `json:"analysis_layers"`
	Sources             []string         `json:"llm_sources"`
	SimilarArtists      []string         `json:"similar_artists"`
	Method              consensus.Method `json:"method"`
	Mode                consensus.Mode   `json:"mode"`
	VoteCount           int              `json:"vote_count"`
	AgreementRate       float64          `json:"agreement_rate"`
	DegradedGroups      []string         `json:"degraded_groups,omitempty"`
	LyricsSkipped       string           `json:"lyrics_skipped,omitempty"`
	Cached              bool             `json:"cached,omitempty"`
}

// TrackMetadata is the merged output of one analysis.
type TrackMetadata struct {
	consensus.Fields
	BPM       float64            `json:"bpm"`
	Key       string             `json:"key,omitempty"`
	Mode      string             `json:"mode,omitempty"`
	Duration  float64            `json:"duration"`
	Structure features.Structure `json:"structure"`
	Language  string             `json:"language"`
	Themes    []string           `json:"themes,omitempty"`
	Explicit  bool               `json:"explicit"`
	Lyrics    string             `json:"lyrics,omitempty"`
	Tech      Tech               `json:"_tech_meta"`
}
