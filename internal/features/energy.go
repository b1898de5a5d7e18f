package features

import (
	"errors"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Mel band ranges summarised into BandEnergies: sub-bass, bass, mids,
// upper mids, highs.
var bandRanges = [5][2]int{{0, 25}, {25, 60}, {60, 100}, {100, 110}, {110, 128}}

func computeEnergy(samples []float64, spec *spectrogram) (Energy, error) {
	frames := frameSignal(samples, frameSize, hopLength)
	if len(frames) == 0 {
		return Energy{}, errors.New("no frames")
	}
	rms := make([]float64, len(frames))
	zcr := make([]float64, len(frames))
	for i, frame := range frames {
		var sum float64
		crossings := 0
		for j, v := range frame {
			sum += v * v
			if j > 0 && (v >= 0) != (frame[j-1] >= 0) {
				crossings++
			}
		}
		rms[i] = sqrt(sum / float64(frameSize))
		zcr[i] = float64(crossings) / float64(frameSize)
	}

	var e Energy
	e.RMSMean, e.RMSStd = stat.PopMeanStdDev(rms, nil)
	e.DynamicRange = floats.Max(rms) - floats.Min(rms)
	e.ZCRMean = stat.Mean(zcr, nil)

	bandMeans := columnMeans(spec.melDB, melBands)
	for i, r := range bandRanges {
		e.BandEnergies[i] = stat.Mean(bandMeans[r[0]:r[1]], nil)
	}
	return e, nil
}
