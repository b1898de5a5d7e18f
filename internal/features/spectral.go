package features

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

const (
	rolloffPercent   = 0.85
	contrastFMin     = 200.0
	contrastBands    = 6
	contrastQuantile = 0.02
)

func computeSpectral(spec *spectrogram) (Spectral, error) {
	n := spec.frames()
	if n == 0 {
		return Spectral{}, errors.New("empty spectrogram")
	}
	centroid := make([]float64, n)
	bandwidth := make([]float64, n)
	rolloff := make([]float64, n)
	flatness := make([]float64, n)
	for t := 0; t < n; t++ {
		centroid[t], bandwidth[t] = centroidAndBandwidth(spec.mag[t], spec.freqs)
		rolloff[t] = rolloffFrequency(spec.mag[t], spec.freqs)
		flatness[t] = spectralFlatness(spec.power[t])
	}

	var s Spectral
	s.CentroidMean, s.CentroidStd = stat.PopMeanStdDev(centroid, nil)
	s.BandwidthMean = stat.Mean(bandwidth, nil)
	s.RolloffMean = stat.Mean(rolloff, nil)
	s.FlatnessMean = stat.Mean(flatness, nil)
	copy(s.ContrastMean[:], spectralContrast(spec))
	copy(s.MelMean[:], columnMeans(spec.melDB, len(s.MelMean)))
	return s, nil
}

func centroidAndBandwidth(mag, freqs []float64) (float64, float64) {
	var total, weighted float64
	for k, m := range mag {
		total += m
		weighted += m * freqs[k]
	}
	if total <= 0 {
		return 0, 0
	}
	centroid := weighted / total
	var spread float64
	for k, m := range mag {
		d := freqs[k] - centroid
		spread += m * d * d
	}
	return centroid, math.Sqrt(spread / total)
}

func rolloffFrequency(mag, freqs []float64) float64 {
	var total float64
	for _, m := range mag {
		total += m
	}
	if total <= 0 {
		return 0
	}
	threshold := rolloffPercent * total
	var cum float64
	for k, m := range mag {
		cum += m
		if cum >= threshold {
			return freqs[k]
		}
	}
	return freqs[len(freqs)-1]
}

// spectralFlatness is the ratio of geometric to arithmetic mean power.
func spectralFlatness(power []float64) float64 {
	if len(power) == 0 {
		return 0
	}
	var logSum, sum float64
	for _, p := range power {
		p = math.Max(p, amin)
		logSum += math.Log(p)
		sum += p
	}
	n := float64(len(power))
	return math.Exp(logSum/n) / (sum / n)
}

// spectralContrast returns peak-minus-valley dB per octave band starting at
// contrastFMin, plus the band above the last octave edge.
func spectralContrast(spec *spectrogram) []float64 {
	nyquist := float64(spec.sampleRate) / 2
	edges := make([]float64, contrastBands+2)
	edges[0] = 0
	for i := 1; i <= contrastBands; i++ {
		edges[i] = contrastFMin * math.Pow(2, float64(i-1))
	}
	edges[contrastBands+1] = nyquist

	out := make([]float64, contrastBands+1)
	values := make([]float64, 0, len(spec.freqs))
	for b := 0; b <= contrastBands; b++ {
		lo, hi := edges[b], math.Min(edges[b+1], nyquist)
		var sum float64
		for t := 0; t < spec.frames(); t++ {
			values = values[:0]
			for k, f := range spec.freqs {
				if f >= lo && f <= hi {
					values = append(values, spec.power[t][k])
				}
			}
			if len(values) == 0 {
				continue
			}
			sort.Float64s(values)
			q := max(1, int(math.Round(contrastQuantile*float64(len(values)))))
			var valley, peak float64
			for i := 0; i < q; i++ {
				valley += values[i]
				peak += values[len(values)-1-i]
			}
			valley /= float64(q)
			peak /= float64(q)
			sum += 10*math.Log10(math.Max(peak, amin)) - 10*math.Log10(math.Max(valley, amin))
		}
		out[b] = sum / float64(spec.frames())
	}
	return out
}
