package features

// Rhythm describes tempo and beat stability.
type Rhythm struct {
	Tempo             float64 `json:"tempo"`
	BeatCount         int     `json:"beat_count"`
	BeatRegularity    float64 `json:"beat_regularity"`
	OnsetStrengthMean float64 `json:"onset_strength_mean"`
	OnsetStrengthStd  float64 `json:"onset_strength_std"`
}

// Harmonic describes pitch-class content and the harmonic/percussive balance.
type Harmonic struct {
	ChromaMean              [12]float64 `json:"chroma_mean"`
	ChromaStd               [12]float64 `json:"chroma_std"`
	TonnetzMean             [6]float64  `json:"tonnetz_mean"`
	HarmonicChangeRate      float64     `json:"harmonic_change_rate"`
	HarmonicPercussiveRatio float64     `json:"harmonic_percussive_ratio"`
	Key                     string      `json:"key"`
	Mode                    string      `json:"mode"`
}

// Spectral describes the shape of the magnitude spectrum.
type Spectral struct {
	CentroidMean  float64     `json:"centroid_mean"`
	CentroidStd   float64     `json:"centroid_std"`
	BandwidthMean float64     `json:"bandwidth_mean"`
	RolloffMean   float64     `json:"rolloff_mean"`
	FlatnessMean  float64     `json:"flatness_mean"`
	ContrastMean  [7]float64  `json:"contrast_mean"`
	MelMean       [20]float64 `json:"mel_mean"`
}

// Timbre holds cepstral descriptors.
type Timbre struct {
	MFCCMean      [20]float64 `json:"mfcc_mean"`
	MFCCDeltaMean [20]float64 `json:"mfcc_delta_mean"`
}

// Energy describes loudness and noisiness.
type Energy struct {
	RMSMean      float64    `json:"rms_mean"`
	RMSStd       float64    `json:"rms_std"`
	DynamicRange float64    `json:"dynamic_range"`
	ZCRMean      float64    `json:"zcr_mean"`
	BandEnergies [5]float64 `json:"band_energies"`
}

// Structure describes coarse song sections.
type Structure struct {
	SegmentCount     int       `json:"segment_count"`
	SegmentDurations []float64 `json:"segment_durations"`
	AvgSegmentLength float64   `json:"avg_segment_length"`
}

// Meta records what was analyzed.
type Meta struct {
	DurationSeconds       float64  `json:"duration_seconds"`
	SampleRate            int      `json:"sample_rate"`
	SourceDurationSeconds float64  `json:"source_duration_seconds"`
	OffsetSeconds         float64  `json:"offset_seconds"`
	DegradedGroups        []string `json:"degraded_groups,omitempty"`
}

// Bundle is the complete descriptor set for one track. A Bundle is built
// once per analysis and must not be modified afterwards.
type Bundle struct {
	Rhythm    Rhythm    `json:"rhythm"`
	Harmonic  Harmonic  `json:"harmonic"`
	Spectral  Spectral  `json:"spectral"`
	Timbre    Timbre    `json:"timbre"`
	Energy    Energy    `json:"energy"`
	Structure Structure `json:"structure"`
	Meta      Meta      `json:"meta"`
}

// Empty reports whether the bundle carries no analyzed audio.
func (b Bundle) Empty() bool {
	return b.Meta.DurationSeconds == 0 && b.Meta.SampleRate == 0
}

// Degraded reports whether the named group fell back to zero values.
func (b Bundle) Degraded(group string) bool {
	for _, g := range b.Meta.DegradedGroups {
		if g == group {
			return true
		}
	}
	return false
}

// Group names used in Meta.DegradedGroups.
const (
	GroupRhythm    = "rhythm"
	GroupHarmonic  = "harmonic"
	GroupSpectral  = "spectral"
	GroupTimbre    = "timbre"
	GroupEnergy    = "energy"
	GroupStructure = "structure"
)
