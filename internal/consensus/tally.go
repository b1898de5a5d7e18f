package consensus

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// List caps applied after voting.
const (
	maxAdditionalGenres = 3
	maxMoods            = 5
	maxInstrumentation  = 8
	maxKeywords         = 15
	maxUseCases         = 5
	maxSimilarArtists   = 5

	strictAgreement = 2
	defaultSelfConf = 0.8
)

// Tally merges valid votes into a Result. Errored votes are ignored. With
// no valid votes the Result has MainGenre Unknown and callers must fall back.
func Tally(votes []Vote) Result {
	valid := make([]Vote, 0, len(votes))
	for _, v := range votes {
		if v.Valid() {
			valid = append(valid, v)
		}
	}
	var r Result
	r.Method = MethodConsensus
	r.VoteCount = len(valid)
	r.Sources = make([]string, 0, len(valid))
	for _, v := range valid {
		r.Sources = append(r.Sources, v.Provider)
	}

	r.MainGenre = plurality(collect(valid, func(v Vote) string { return v.MainGenre }), Unknown)
	r.AdditionalGenres = listVote(valid, func(v Vote) []string { return v.AdditionalGenres }, maxAdditionalGenres)
	r.Moods = listVote(valid, func(v Vote) []string { return v.Moods }, maxMoods)
	r.Instrumentation = listVote(valid, func(v Vote) []string { return v.Instrumentation }, maxInstrumentation)
	r.Keywords = listVote(valid, func(v Vote) []string { return v.Keywords }, maxKeywords)
	r.UseCases = listVote(valid, func(v Vote) []string { return v.UseCases }, maxUseCases)
	r.SimilarArtists = listVote(valid, func(v Vote) []string { return v.SimilarArtists }, maxSimilarArtists)

	r.MainInstrument = plurality(collect(valid, func(v Vote) string { return v.MainInstrument }), "")
	if r.MainInstrument == "" {
		r.MainInstrument = "Various"
		if len(r.Instrumentation) > 0 {
			r.MainInstrument = r.Instrumentation[0]
		}
	}
	r.VocalStyle = voteVocalStyle(valid)

	r.MoodVibe = plurality(collect(valid, func(v Vote) string { return v.MoodVibe }), "")
	if r.MoodVibe == "" {
		if len(r.Moods) > 0 {
			r.MoodVibe = r.Moods[0] + " atmosphere with " + r.MainGenre + " elements."
		} else {
			r.MoodVibe = "Dynamic musical composition."
		}
	}
	r.EnergyLevel = plurality(collect(valid, func(v Vote) string { return v.EnergyLevel }), "Medium")
	r.MusicalEra = plurality(collect(valid, func(v Vote) string { return v.MusicalEra }), "Modern")
	r.ProductionQuality = plurality(collect(valid, func(v Vote) string { return v.ProductionQuality }), "Studio Polished")
	r.Dynamics = plurality(collect(valid, func(v Vote) string { return v.Dynamics }), "Medium")
	r.TargetAudience = plurality(collect(valid, func(v Vote) string { return v.TargetAudience }), "General")
	r.TrackDescription = longest(collect(valid, func(v Vote) string { return v.TrackDescription }))
	if r.TrackDescription == "" {
		r.TrackDescription = "No description available."
	}

	r.AgreementRate = agreement(valid, r.MainGenre)
	r.Confidence = math.Round((0.4*r.AgreementRate+0.6*meanConfidence(valid))*100) / 100
	return r
}

func collect(votes []Vote, get func(Vote) string) []string {
	out := make([]string, 0, len(votes))
	for _, v := range votes {
		out = append(out, get(v))
	}
	return out
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// display returns the first spelling seen for a value, title-cased when the
// backend sent it all lower case.
func display(value string) string {
	value = strings.TrimSpace(value)
	if value != strings.ToLower(value) || !strings.ContainsFunc(value, unicode.IsLetter) {
		return value
	}
	return cases.Title(language.English).String(value)
}

// plurality picks the most common normalised value. Ties go to the value seen
// first. Blank values do not vote.
func plurality(values []string, fallback string) string {
	counts := make(map[string]int)
	first := make(map[string]string)
	var order []string
	for _, raw := range values {
		key := normalize(raw)
		if key == "" {
			continue
		}
		if _, seen := first[key]; !seen {
			first[key] = raw
			order = append(order, key)
		}
		counts[key]++
	}
	best := ""
	for _, key := range order {
		if best == "" || counts[key] > counts[best] {
			best = key
		}
	}
	if best == "" {
		return fallback
	}
	return display(first[best])
}

// listVote keeps items named by at least strictAgreement votes, relaxing to
// one vote when the strict pass is empty. Items are ordered by vote count,
// then first appearance, and capped at limit.
func listVote(votes []Vote, get func(Vote) []string, limit int) []string {
	type item struct {
		display string
		count   int
		order   int
	}
	items := make(map[string]*item)
	for _, v := range votes {
		seen := make(map[string]bool)
		for _, raw := range get(v) {
			key := normalize(raw)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			if it, ok := items[key]; ok {
				it.count++
				continue
			}
			items[key] = &item{display: display(raw), count: 1, order: len(items)}
		}
	}
	ranked := make([]*item, 0, len(items))
	for _, it := range items {
		ranked = append(ranked, it)
	}
	slices.SortFunc(ranked, func(a, b *item) int {
		if c := cmp.Compare(b.count, a.count); c != 0 {
			return c
		}
		return cmp.Compare(a.order, b.order)
	})

	for _, threshold := range []int{strictAgreement, 1} {
		out := make([]string, 0, limit)
		for _, it := range ranked {
			if it.count >= threshold && len(out) < limit {
				out = append(out, it.display)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return []string{}
}

// voteVocalStyle resolves gender first, ignoring "none". An instrumental
// verdict forces the other attributes to "none"; otherwise each attribute is
// a plurality over non-"none" answers.
func voteVocalStyle(votes []Vote) VocalStyle {
	style := NoVocals()
	genders := make([]string, 0, len(votes))
	for _, v := range votes {
		if g := normalize(v.VocalStyle.Gender); g != "" && g != None {
			genders = append(genders, v.VocalStyle.Gender)
		}
	}
	style.Gender = plurality(genders, None)
	if normalize(style.Gender) == "instrumental" || style.Gender == None {
		return style
	}
	attr := func(get func(VocalStyle) string) string {
		values := make([]string, 0, len(votes))
		for _, v := range votes {
			if val := normalize(get(v.VocalStyle)); val != "" && val != None {
				values = append(values, get(v.VocalStyle))
			}
		}
		return plurality(values, None)
	}
	style.Timbre = attr(func(s VocalStyle) string { return s.Timbre })
	style.Delivery = attr(func(s VocalStyle) string { return s.Delivery })
	style.EmotionalTone = attr(func(s VocalStyle) string { return s.EmotionalTone })
	return style
}

func longest(values []string) string {
	best := ""
	for _, v := range values {
		if len(strings.TrimSpace(v)) > len(best) {
			best = strings.TrimSpace(v)
		}
	}
	return best
}

func agreement(votes []Vote, winner string) float64 {
	if len(votes) == 0 {
		return 0
	}
	target := normalize(winner)
	agree := 0
	for _, v := range votes {
		if normalize(v.MainGenre) == target {
			agree++
		}
	}
	return float64(agree) / float64(len(votes))
}

func meanConfidence(votes []Vote) float64 {
	var sum float64
	n := 0
	for _, v := range votes {
		if v.ConfidenceReported {
			sum += v.Confidence
			n++
		}
	}
	if n == 0 {
		return defaultSelfConf
	}
	return sum / float64(n)
}
