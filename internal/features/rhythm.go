package features

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	minBPM        = 30.0
	maxBPM        = 300.0
	priorBPM      = 120.0
	priorOctaves  = 1.0
	beatTightness = 100.0
)

func computeRhythm(spec *spectrogram) (Rhythm, error) {
	if spec.frames() < 2 {
		return Rhythm{}, errors.New("too few frames for onset detection")
	}
	env := onsetEnvelope(spec.melDB)
	var r Rhythm
	r.OnsetStrengthMean, r.OnsetStrengthStd = stat.PopMeanStdDev(env, nil)

	fr := spec.frameRate()
	r.Tempo = estimateTempo(env, fr)
	if r.Tempo <= 0 {
		return r, nil
	}
	beats := trackBeats(env, fr, r.Tempo)
	r.BeatCount = len(beats)
	if len(beats) > 2 {
		intervals := make([]float64, len(beats)-1)
		for i := 1; i < len(beats); i++ {
			intervals[i-1] = float64(beats[i]-beats[i-1]) / fr
		}
		_, r.BeatRegularity = stat.PopMeanStdDev(intervals, nil)
	}
	return r, nil
}

// onsetEnvelope is the mean positive log-mel flux per frame.
func onsetEnvelope(melDB [][]float64) []float64 {
	env := make([]float64, len(melDB))
	for t := 1; t < len(melDB); t++ {
		var sum float64
		for b, v := range melDB[t] {
			if d := v - melDB[t-1][b]; d > 0 {
				sum += d
			}
		}
		env[t] = sum / float64(len(melDB[t]))
	}
	return env
}

// estimateTempo picks the autocorrelation lag with the strongest response
// after weighting by a log-normal prior centred on priorBPM.
func estimateTempo(env []float64, frameRate float64) float64 {
	mean := stat.Mean(env, nil)
	centered := make([]float64, len(env))
	for i, v := range env {
		centered[i] = v - mean
	}
	minLag := max(1, int(math.Floor(60*frameRate/maxBPM)))
	maxLag := min(len(env)-1, int(math.Ceil(60*frameRate/minBPM)))
	bestLag, bestScore := 0, 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		var ac float64
		for i := lag; i < len(centered); i++ {
			ac += centered[i] * centered[i-lag]
		}
		if ac <= 0 {
			continue
		}
		bpm := 60 * frameRate / float64(lag)
		z := math.Log2(bpm/priorBPM) / priorOctaves
		score := ac * math.Exp(-0.5*z*z)
		if score > bestScore {
			bestLag, bestScore = lag, score
		}
	}
	if bestLag == 0 {
		return 0
	}
	return math.Round(60*frameRate/float64(bestLag)*10) / 10
}

// trackBeats runs the dynamic-programming beat tracker: each frame's score is
// its onset strength plus the best predecessor score, penalised by how far the
// gap strays from the tempo period.
func trackBeats(env []float64, frameRate, tempo float64) []int {
	period := 60 * frameRate / tempo
	_, std := stat.PopMeanStdDev(env, nil)
	if std <= 0 || period < 1 {
		return nil
	}
	local := make([]float64, len(env))
	for i, v := range env {
		local[i] = v / std
	}

	cum := make([]float64, len(env))
	back := make([]int, len(env))
	for t := range env {
		back[t] = -1
		best := math.Inf(-1)
		lo := t - int(math.Round(2*period))
		hi := t - int(math.Round(period/2))
		for tau := max(lo, 0); tau <= hi; tau++ {
			gap := math.Log(float64(t-tau) / period)
			score := cum[tau] - beatTightness*gap*gap
			if score > best {
				best, back[t] = score, tau
			}
		}
		if back[t] >= 0 {
			cum[t] = local[t] + best
		} else {
			cum[t] = local[t]
		}
	}

	tailStart := max(0, len(cum)-int(math.Ceil(period)))
	last := tailStart + floats.MaxIdx(cum[tailStart:])
	var beats []int
	for t := last; t >= 0; t = back[t] {
		beats = append(beats, t)
	}
	for i, j := 0, len(beats)-1; i < j; i, j = i+1, j-1 {
		beats[i], beats[j] = beats[j], beats[i]
	}
	return trimWeakBeats(beats, local)
}

// trimWeakBeats drops leading and trailing beats whose onset is below half
// the RMS of onsets at beat positions.
func trimWeakBeats(beats []int, local []float64) []int {
	if len(beats) == 0 {
		return beats
	}
	var sq float64
	for _, b := range beats {
		sq += local[b] * local[b]
	}
	threshold := 0.5 * math.Sqrt(sq/float64(len(beats)))
	start, end := 0, len(beats)
	for start < end && local[beats[start]] < threshold {
		start++
	}
	for end > start && local[beats[end-1]] < threshold {
		end--
	}
	return beats[start:end]
}
