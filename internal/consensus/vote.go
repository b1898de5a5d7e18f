package consensus

import (
	"strings"
)

// Unknown is the sentinel genre a backend reports when it cannot decide.
const Unknown = "Unknown"

// None marks an absent vocal attribute.
const None = "none"

// Mode selects the backend set.
type Mode string

const (
	ModeFast     Mode = "fast"
	ModeThorough Mode = "thorough"
)

// ParseMode maps user input to a Mode. Unknown values select thorough.
func ParseMode(value string) Mode {
	if strings.EqualFold(strings.TrimSpace(value), string(ModeFast)) {
		return ModeFast
	}
	return ModeThorough
}

// Method records how a Result was produced.
type Method string

const (
	MethodConsensus Method = "consensus"
	MethodSingle    Method = "single"
	MethodFallback  Method = "fallback"
)

// VocalStyle describes the lead vocal, or "none" throughout for instrumentals.
type VocalStyle struct {
	Gender        string `json:"gender"`
	Timbre        string `json:"timbre"`
	Delivery      string `json:"delivery"`
	EmotionalTone string `json:"emotionalTone"`
}

// NoVocals is the vocal style of an instrumental track.
func NoVocals() VocalStyle {
	return VocalStyle{Gender: None, Timbre: None, Delivery: None, EmotionalTone: None}
}

// Fields holds the descriptive metadata shared by votes and results.
type Fields struct {
	MainGenre         string     `json:"mainGenre"`
	AdditionalGenres  []string   `json:"additionalGenres"`
	Moods             []string   `json:"moods"`
	MainInstrument    string     `json:"mainInstrument"`
	Instrumentation   []string   `json:"instrumentation"`
	VocalStyle        VocalStyle `json:"vocalStyle"`
	Keywords          []string   `json:"keywords"`
	UseCases          []string   `json:"useCases"`
	TrackDescription  string     `json:"trackDescription"`
	MoodVibe          string     `json:"moodVibe"`
	EnergyLevel       string     `json:"energyLevel"`
	MusicalEra        string     `json:"musicalEra"`
	ProductionQuality string     `json:"productionQuality"`
	Dynamics          string     `json:"dynamics"`
	TargetAudience    string     `json:"targetAudience"`
	SimilarArtists    []string   `json:"similarArtists"`
	Confidence        float64    `json:"confidence"`
}

// Vote is one backend's opinion. A Vote with Err set failed and is excluded
// from voting. Votes are not modified after creation.
type Vote struct {
	Provider string `json:"provider"`
	Fields
	// ConfidenceReported is false when the backend omitted confidence.
	ConfidenceReported bool  `json:"-"`
	Attempts           int   `json:"attempts,omitempty"`
	Err                error `json:"-"`
}

// Valid reports whether the vote can take part in the tally.
func (v Vote) Valid() bool { return v.Err == nil }

// Result is the classification handed to the analyzer.
type Result struct {
	Fields
	Method        Method   `json:"method"`
	Sources       []string `json:"sources"`
	VoteCount     int      `json:"voteCount"`
	AgreementRate float64  `json:"agreementRate"`
}

// Hints are optional cues passed to every backend alongside the features.
type Hints struct {
	GenreHints []string
	MoodHints  []string
	Title      string
	Artist     string
	TagGenre   string
}

// Empty reports whether no hint is set.
func (h Hints) Empty() bool {
	return len(h.GenreHints) == 0 && len(h.MoodHints) == 0 && h.Title == "" && h.Artist == "" && h.TagGenre == ""
}

// FromVote wraps a single vote as a Result without altering any field. A
// vote that omitted confidence gets the same default Tally assumes.
func FromVote(v Vote) Result {
	if !v.ConfidenceReported {
		v.Confidence = defaultSelfConf
	}
	return Result{
		Fields:        v.Fields,
		Method:        MethodSingle,
		Sources:       []string{v.Provider},
		VoteCount:     1,
		AgreementRate: 1,
	}
}
