package features

import "errors"

const (
	mfccCount  = 20
	deltaWidth = 9
)

func computeTimbre(spec *spectrogram) (Timbre, error) {
	if spec.frames() == 0 {
		return Timbre{}, errors.New("empty spectrogram")
	}
	mfcc := make([][]float64, spec.frames())
	for t, frame := range spec.melDB {
		mfcc[t] = dct2(frame, mfccCount)
	}
	var tb Timbre
	copy(tb.MFCCMean[:], columnMeans(mfcc, mfccCount))
	copy(tb.MFCCDeltaMean[:], columnMeans(deltas(mfcc, deltaWidth), mfccCount))
	return tb, nil
}

// deltas estimates the local slope of each coefficient with a least-squares
// regression over width frames, clamping at the edges.
func deltas(m [][]float64, width int) [][]float64 {
	half := width / 2
	var denom float64
	for n := 1; n <= half; n++ {
		denom += float64(2 * n * n)
	}
	last := len(m) - 1
	out := make([][]float64, len(m))
	for t := range m {
		row := make([]float64, len(m[t]))
		for n := 1; n <= half; n++ {
			next := m[min(t+n, last)]
			prev := m[max(t-n, 0)]
			for d := range row {
				row[d] += float64(n) * (next[d] - prev[d])
			}
		}
		for d := range row {
			row[d] /= denom
		}
		out[t] = row
	}
	return out
}
