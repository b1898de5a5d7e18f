package fallback

import "math"

// Inputs are the bundle measurements the rule table reads.
type Inputs struct {
	Tempo     float64
	RMS       float64
	ZCR       float64
	Centroid  float64
	Flatness  float64
	HPRatio   float64
	Duration  float64
	DynRange  float64
	Key, Mode string
}

// Outcome is the classification a rule assigns.
type Outcome struct {
	Genre      string
	Moods      []string
	Energy     string
	Vibe       string
	Confidence float64
}

// Rule matches tracks whose tempo lies in [MinTempo, MaxTempo) and satisfy
// When. A nil When matches every track in the band.
type Rule struct {
	Name     string
	MinTempo float64
	MaxTempo float64
	When     func(Inputs) bool
	Outcome  Outcome
}

func (r Rule) matches(in Inputs) bool {
	if in.Tempo < r.MinTempo || in.Tempo >= r.MaxTempo {
		return false
	}
	return r.When == nil || r.When(in)
}

var inf = math.Inf(1)

// Rules is evaluated top to bottom; the first match wins. Each tempo band
// ends with a catch-all so every tempo resolves inside its band.
var Rules = []Rule{
	{
		Name: "classical", MinTempo: 0, MaxTempo: 80,
		When:    func(in Inputs) bool { return in.HPRatio > 3 && in.Centroid < 1500 },
		Outcome: Outcome{"Classical", []string{"Elegant", "Reflective", "Dramatic"}, "Low", "Expressive acoustic performance with rich harmonic movement.", 0.6},
	},
	{
		Name: "ambient", MinTempo: 0, MaxTempo: 80,
		When:    func(in Inputs) bool { return in.ZCR < 0.05 && in.Flatness < 0.2 },
		Outcome: Outcome{"Ambient", []string{"Calm", "Ethereal", "Meditative"}, "Low", "Slow, spacious ambient textures with minimal rhythmic elements.", 0.6},
	},
	{
		Name: "slow-heavy", MinTempo: 0, MaxTempo: 80,
		When:    func(in Inputs) bool { return in.RMS > 0.15 },
		Outcome: Outcome{"Dubstep", []string{"Heavy", "Dark", "Aggressive"}, "High", "Heavy, slow-tempo bass music with aggressive wobble bass.", 0.55},
	},
	{
		Name: "downtempo", MinTempo: 0, MaxTempo: 80,
		Outcome: Outcome{"Downtempo", []string{"Relaxed", "Chill", "Groovy"}, "Low", "Laid-back downtempo groove with relaxed atmosphere.", 0.55},
	},
	{
		Name: "acoustic", MinTempo: 80, MaxTempo: 118,
		When:    func(in Inputs) bool { return in.HPRatio > 2.5 && in.Centroid < 2000 && in.ZCR < 0.08 },
		Outcome: Outcome{"Acoustic", []string{"Warm", "Intimate", "Heartfelt"}, "Medium", "Organic acoustic arrangement with natural, unprocessed tone.", 0.55},
	},
	{
		Name: "lofi", MinTempo: 80, MaxTempo: 105,
		When:    func(in Inputs) bool { return in.Flatness < 0.3 && in.RMS < 0.12 },
		Outcome: Outcome{"Lo-Fi", []string{"Nostalgic", "Mellow", "Relaxed"}, "Low", "Dusty, nostalgic lo-fi beat with warm textures.", 0.6},
	},
	{
		Name: "hip-hop", MinTempo: 80, MaxTempo: 105,
		When:    func(in Inputs) bool { return in.RMS > 0.15 },
		Outcome: Outcome{"Hip Hop", []string{"Confident", "Urban", "Rhythmic"}, "Medium", "Punchy hip-hop beat with strong kick and snare groove.", 0.6},
	},
	{
		Name: "rnb", MinTempo: 80, MaxTempo: 105,
		Outcome: Outcome{"R&B", []string{"Smooth", "Romantic", "Soulful"}, "Medium", "Smooth R&B flow with soulful instrumentation.", 0.55},
	},
	{
		Name: "rock", MinTempo: 105, MaxTempo: 118,
		When:    func(in Inputs) bool { return in.ZCR > 0.1 },
		Outcome: Outcome{"Rock", []string{"Energetic", "Raw", "Driving"}, "High", "Driving rock rhythm with energetic guitar textures.", 0.6},
	},
	{
		Name: "moombahton", MinTempo: 105, MaxTempo: 118,
		When:    func(in Inputs) bool { return in.Flatness > 0.4 },
		Outcome: Outcome{"Moombahton", []string{"Danceable", "Tropical", "Fun"}, "High", "Rhythmic moombahton beat with reggaeton influence.", 0.55},
	},
	{
		Name: "pop", MinTempo: 105, MaxTempo: 118,
		Outcome: Outcome{"Pop", []string{"Catchy", "Upbeat", "Radio-Ready"}, "Medium", "Modern pop arrangement with accessible melody and rhythm.", 0.55},
	},
	{
		Name: "deep-house", MinTempo: 118, MaxTempo: 128,
		When:    func(in Inputs) bool { return in.Flatness < 0.35 && in.Centroid < 3000 },
		Outcome: Outcome{"Deep House", []string{"Deep", "Hypnotic", "Sophisticated"}, "Medium", "Warm, deep house groove with soulful elements.", 0.65},
	},
	{
		Name: "electro-house", MinTempo: 118, MaxTempo: 128,
		When:    func(in Inputs) bool { return in.Flatness > 0.5 },
		Outcome: Outcome{"Electro House", []string{"Aggressive", "Dirty", "Party"}, "High", "Dirty electro basslines with punchy drums.", 0.6},
	},
	{
		Name: "house", MinTempo: 118, MaxTempo: 128,
		Outcome: Outcome{"House", []string{"Groovy", "Uplifting", "Club"}, "High", "Classic house four-on-the-floor beat with uplifting energy.", 0.65},
	},
	{
		Name: "trance", MinTempo: 128, MaxTempo: 145,
		When:    func(in Inputs) bool { return in.Flatness > 0.55 },
		Outcome: Outcome{"Trance", []string{"Euphoric", "Soaring", "Epic"}, "Very High", "Euphoric trance energy with big supersaw chords.", 0.6},
	},
	{
		Name: "techno", MinTempo: 128, MaxTempo: 145,
		When:    func(in Inputs) bool { return in.RMS > 0.18 && in.Centroid < 4000 },
		Outcome: Outcome{"Techno", []string{"Dark", "Industrial", "Driving"}, "High", "Driving, mechanical techno rhythm with repetitive elements.", 0.65},
	},
	{
		Name: "edm", MinTempo: 128, MaxTempo: 145,
		Outcome: Outcome{"EDM", []string{"Festival", "Energetic", "Big Room"}, "High", "Festival-ready EDM sound with high energy drops.", 0.6},
	},
	{
		Name: "fast-dubstep", MinTempo: 145, MaxTempo: 165,
		When:    func(in Inputs) bool { return in.RMS > 0.2 },
		Outcome: Outcome{"Dubstep", []string{"Aggressive", "Heavy", "Chaotic"}, "Very High", "High-tempo dubstep energy with aggressive bass design.", 0.6},
	},
	{
		Name: "trap", MinTempo: 145, MaxTempo: 165,
		Outcome: Outcome{"Trap", []string{"Hype", "Dark", "Urban"}, "High", "Fast trap hi-hats with deep 808 bass.", 0.6},
	},
	{
		Name: "drum-and-bass", MinTempo: 165, MaxTempo: inf,
		Outcome: Outcome{"Drum & Bass", []string{"Fast", "Intense", "Liquid"}, "Very High", "Fast-paced drum & bass breakbeats with high energy.", 0.6},
	},
}

// defaultOutcome covers inputs no rule matches (negative or NaN tempo).
var defaultOutcome = Outcome{"Pop", []string{"Happy", "Bright"}, "Medium", "Upbeat and accessible pop soundscape.", 0.5}

type family struct {
	mainInstrument   string
	instrumentation  []string
	additionalGenres []string
}

func familyFor(genre string) family {
	switch genre {
	case "Electronic", "House", "Techno", "Trance", "EDM", "Dubstep", "Trap", "Drum & Bass",
		"Deep House", "Electro House", "Moombahton", "Downtempo", "Ambient":
		return family{"Synthesizer", []string{"Synthesizer", "Drum Machine", "Bass Synth", "FX"}, []string{"Electronic", "Club"}}
	case "Rock", "Metal", "Punk":
		return family{"Electric Guitar", []string{"Electric Guitar", "Bass Guitar", "Drum Kit", "Vocals"}, []string{"Alternative"}}
	case "Hip Hop", "R&B", "Lo-Fi":
		return family{"Sampler", []string{"Sampler", "Drum Machine", "Synthesizer"}, []string{"Urban"}}
	case "Classical":
		return family{"Piano", []string{"Piano", "Strings", "Woodwinds"}, []string{"Orchestral"}}
	case "Acoustic":
		return family{"Acoustic Guitar", []string{"Acoustic Guitar", "Percussion", "Vocals"}, []string{"Folk"}}
	default:
		return family{"Vocals", []string{"Vocals", "Synthesizer", "Drum Kit"}, []string{"Commercial"}}
	}
}
