package features

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

const (
	hpssKernel   = 17
	chromaMinHz  = 32.7
	tuningA4Hz   = 440.0
	maskEpsilon  = 1e-10
	ratioEpsilon = 1e-6
)

var pitchNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Krumhansl-Kessler key profiles, tonic first.
var (
	majorProfile = [12]float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
	minorProfile = [12]float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}
)

func computeHarmonic(spec *spectrogram) (Harmonic, error) {
	if spec.frames() == 0 {
		return Harmonic{}, errors.New("empty spectrogram")
	}
	harmonic, percussive := hpss(spec.mag)

	var h Harmonic
	var hEnergy, pEnergy float64
	var cells int
	for t := range harmonic {
		for k := range harmonic[t] {
			hEnergy += harmonic[t][k] * harmonic[t][k]
			pEnergy += percussive[t][k] * percussive[t][k]
			cells++
		}
	}
	if cells > 0 {
		h.HarmonicPercussiveRatio = (hEnergy / float64(cells)) / (pEnergy/float64(cells) + ratioEpsilon)
	}

	chroma := chromagram(harmonic, spec.freqs)
	copy(h.ChromaMean[:], columnMeans(chroma, 12))
	copy(h.ChromaStd[:], columnStds(chroma, 12))
	copy(h.TonnetzMean[:], columnMeans(tonnetz(chroma), 6))
	h.HarmonicChangeRate = chromaChangeRate(chroma)
	h.Key, h.Mode = estimateKey(h.ChromaMean)
	return h, nil
}

// hpss separates a magnitude spectrogram with median filters along time
// (harmonic) and frequency (percussive) and applies soft Wiener masks.
func hpss(mag [][]float64) ([][]float64, [][]float64) {
	frames := len(mag)
	bins := len(mag[0])
	half := hpssKernel / 2
	buf := make([]float64, 0, hpssKernel)

	harmonic := make([][]float64, frames)
	percussive := make([][]float64, frames)
	for t := 0; t < frames; t++ {
		harmonic[t] = make([]float64, bins)
		percussive[t] = make([]float64, bins)
	}
	for t := 0; t < frames; t++ {
		for k := 0; k < bins; k++ {
			buf = buf[:0]
			for dt := -half; dt <= half; dt++ {
				if i := t + dt; i >= 0 && i < frames {
					buf = append(buf, mag[i][k])
				}
			}
			hMed := median(buf)

			buf = buf[:0]
			for dk := -half; dk <= half; dk++ {
				if j := k + dk; j >= 0 && j < bins {
					buf = append(buf, mag[t][j])
				}
			}
			pMed := median(buf)

			h2, p2 := hMed*hMed, pMed*pMed
			denom := h2 + p2 + maskEpsilon
			harmonic[t][k] = mag[t][k] * h2 / denom
			percussive[t][k] = mag[t][k] * p2 / denom
		}
	}
	return harmonic, percussive
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid]
	}
	return (values[mid-1] + values[mid]) / 2
}

// chromagram folds spectral power into 12 pitch classes and normalises each
// frame by its maximum.
func chromagram(mag [][]float64, freqs []float64) [][]float64 {
	classes := make([]int, len(freqs))
	for k, f := range freqs {
		classes[k] = -1
		if f < chromaMinHz {
			continue
		}
		midi := 12*math.Log2(f/tuningA4Hz) + 69
		pc := int(math.Round(midi)) % 12
		if pc < 0 {
			pc += 12
		}
		classes[k] = pc
	}
	out := make([][]float64, len(mag))
	for t, frame := range mag {
		row := make([]float64, 12)
		for k, v := range frame {
			if pc := classes[k]; pc >= 0 {
				row[pc] += v * v
			}
		}
		peak := 0.0
		for _, v := range row {
			peak = math.Max(peak, v)
		}
		if peak > 0 {
			for i := range row {
				row[i] /= peak
			}
		}
		out[t] = row
	}
	return out
}

// tonnetz projects L1-normalised chroma onto the circles of fifths, minor
// thirds and major thirds.
func tonnetz(chroma [][]float64) [][]float64 {
	var phi [6][12]float64
	for pc := 0; pc < 12; pc++ {
		p := float64(pc)
		phi[0][pc] = math.Sin(p * 7 * math.Pi / 6)
		phi[1][pc] = math.Cos(p * 7 * math.Pi / 6)
		phi[2][pc] = math.Sin(p * 3 * math.Pi / 2)
		phi[3][pc] = math.Cos(p * 3 * math.Pi / 2)
		phi[4][pc] = 0.5 * math.Sin(p*2*math.Pi/3)
		phi[5][pc] = 0.5 * math.Cos(p*2*math.Pi/3)
	}
	out := make([][]float64, len(chroma))
	for t, row := range chroma {
		var total float64
		for _, v := range row {
			total += math.Abs(v)
		}
		vec := make([]float64, 6)
		if total > 0 {
			for d := 0; d < 6; d++ {
				for pc, v := range row {
					vec[d] += phi[d][pc] * v / total
				}
			}
		}
		out[t] = vec
	}
	return out
}

func chromaChangeRate(chroma [][]float64) float64 {
	if len(chroma) < 2 {
		return 0
	}
	diffs := make([]float64, 0, (len(chroma)-1)*12)
	for t := 1; t < len(chroma); t++ {
		for pc := 0; pc < 12; pc++ {
			diffs = append(diffs, math.Abs(chroma[t][pc]-chroma[t-1][pc]))
		}
	}
	return stat.Mean(diffs, nil)
}

// estimateKey correlates the mean chroma with every rotation of the major and
// minor profiles. Silent or flat chroma yields C Major.
func estimateKey(chroma [12]float64) (string, string) {
	flat := true
	for _, v := range chroma[1:] {
		if v != chroma[0] {
			flat = false
			break
		}
	}
	if flat {
		return "C", "Major"
	}
	bestKey, bestMode, bestCorr := 0, "Major", math.Inf(-1)
	rotated := make([]float64, 12)
	for tonic := 0; tonic < 12; tonic++ {
		for i := 0; i < 12; i++ {
			rotated[i] = chroma[(tonic+i)%12]
		}
		if c := stat.Correlation(rotated, majorProfile[:], nil); c > bestCorr {
			bestKey, bestMode, bestCorr = tonic, "Major", c
		}
		if c := stat.Correlation(rotated, minorProfile[:], nil); c > bestCorr {
			bestKey, bestMode, bestCorr = tonic, "Minor", c
		}
	}
	return pitchNames[bestKey], bestMode
}
