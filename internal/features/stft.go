package features

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	frameSize = 2048
	hopLength = 512
	melBands  = 128
	topDB     = 80.0
	amin      = 1e-10
)

// spectrogram is the shared time-frequency view every group reads from.
type spectrogram struct {
	sampleRate int
	// mag and power are indexed [frame][bin], bins 0..frameSize/2.
	mag   [][]float64
	power [][]float64
	freqs []float64
	// melDB is the 128-band log-mel spectrogram, [frame][band].
	melDB [][]float64
}

func (s *spectrogram) frames() int { return len(s.mag) }

func (s *spectrogram) frameRate() float64 {
	return float64(s.sampleRate) / hopLength
}

func newSpectrogram(samples []float64, sampleRate int) *spectrogram {
	mag := stft(samples, frameSize, hopLength)
	power := make([][]float64, len(mag))
	for i, row := range mag {
		p := make([]float64, len(row))
		for k, v := range row {
			p[k] = v * v
		}
		power[i] = p
	}
	freqs := make([]float64, frameSize/2+1)
	for k := range freqs {
		freqs[k] = float64(k) * float64(sampleRate) / frameSize
	}
	fb := melFilterbank(sampleRate, frameSize, melBands)
	return &spectrogram{
		sampleRate: sampleRate,
		mag:        mag,
		power:      power,
		freqs:      freqs,
		melDB:      powerToDB(applyFilterbank(fb, power)),
	}
}

// stft returns magnitude frames of a centered, Hann-windowed transform.
func stft(x []float64, n, hop int) [][]float64 {
	pad := n / 2
	padded := make([]float64, len(x)+2*pad)
	copy(padded[pad:], x)

	frames := 1
	if len(padded) > n {
		frames = 1 + (len(padded)-n)/hop
	}
	win := hann(n)
	fft := fourier.NewFFT(n)
	buf := make([]float64, n)
	coeff := make([]complex128, n/2+1)
	out := make([][]float64, frames)
	for i := 0; i < frames; i++ {
		start := i * hop
		for k := 0; k < n; k++ {
			if start+k < len(padded) {
				buf[k] = padded[start+k] * win[k]
			} else {
				buf[k] = 0
			}
		}
		coeff = fft.Coefficients(coeff, buf)
		row := make([]float64, len(coeff))
		for k, c := range coeff {
			row[k] = cmplx.Abs(c)
		}
		out[i] = row
	}
	return out
}

func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n)))
	}
	return w
}

func hzToMel(f float64) float64 { return 2595 * math.Log10(1+f/700) }

func melToHz(m float64) float64 { return 700 * (math.Pow(10, m/2595) - 1) }

// melFilterbank builds area-normalised triangular filters spanning 0 Hz to Nyquist.
func melFilterbank(sampleRate, n, bands int) [][]float64 {
	bins := n/2 + 1
	maxMel := hzToMel(float64(sampleRate) / 2)
	edges := make([]float64, bands+2)
	for i := range edges {
		edges[i] = melToHz(maxMel * float64(i) / float64(bands+1))
	}
	fb := make([][]float64, bands)
	for b := 0; b < bands; b++ {
		lo, center, hi := edges[b], edges[b+1], edges[b+2]
		norm := 2 / (hi - lo)
		row := make([]float64, bins)
		for k := 0; k < bins; k++ {
			f := float64(k) * float64(sampleRate) / float64(n)
			var w float64
			switch {
			case f > lo && f <= center:
				w = (f - lo) / (center - lo)
			case f > center && f < hi:
				w = (hi - f) / (hi - center)
			}
			row[k] = w * norm
		}
		fb[b] = row
	}
	return fb
}

func applyFilterbank(fb [][]float64, power [][]float64) [][]float64 {
	out := make([][]float64, len(power))
	for t, frame := range power {
		row := make([]float64, len(fb))
		for b, filter := range fb {
			var sum float64
			for k, w := range filter {
				if w != 0 {
					sum += w * frame[k]
				}
			}
			row[b] = sum
		}
		out[t] = row
	}
	return out
}

// powerToDB converts power to decibels relative to the global maximum and
// floors the result topDB below the peak.
func powerToDB(power [][]float64) [][]float64 {
	ref := amin
	for _, row := range power {
		for _, v := range row {
			ref = math.Max(ref, v)
		}
	}
	refDB := 10 * math.Log10(ref)
	floor := -topDB
	out := make([][]float64, len(power))
	for t, row := range power {
		db := make([]float64, len(row))
		for b, v := range row {
			db[b] = math.Max(10*math.Log10(math.Max(v, amin))-refDB, floor)
		}
		out[t] = db
	}
	return out
}

// dct2 is an orthonormal DCT-II truncated to the first n coefficients.
func dct2(x []float64, n int) []float64 {
	size := len(x)
	out := make([]float64, n)
	if size == 0 {
		return out
	}
	for k := 0; k < n && k < size; k++ {
		var sum float64
		for i, v := range x {
			sum += v * math.Cos(math.Pi/float64(size)*(float64(i)+0.5)*float64(k))
		}
		scale := math.Sqrt(2 / float64(size))
		if k == 0 {
			scale = math.Sqrt(1 / float64(size))
		}
		out[k] = sum * scale
	}
	return out
}

// frameSignal splits x into centered frames matching the STFT layout.
func frameSignal(x []float64, n, hop int) [][]float64 {
	pad := n / 2
	padded := make([]float64, len(x)+2*pad)
	copy(padded[pad:], x)
	frames := 1
	if len(padded) > n {
		frames = 1 + (len(padded)-n)/hop
	}
	out := make([][]float64, frames)
	for i := range out {
		start := i * hop
		end := min(start+n, len(padded))
		out[i] = padded[start:end]
	}
	return out
}

// columnMeans averages a [frame][dim] matrix over frames.
func columnMeans(m [][]float64, dims int) []float64 {
	out := make([]float64, dims)
	if len(m) == 0 {
		return out
	}
	for _, row := range m {
		for d := 0; d < dims && d < len(row); d++ {
			out[d] += row[d]
		}
	}
	for d := range out {
		out[d] /= float64(len(m))
	}
	return out
}

// columnStds returns the population standard deviation of each column.
func columnStds(m [][]float64, dims int) []float64 {
	means := columnMeans(m, dims)
	out := make([]float64, dims)
	if len(m) == 0 {
		return out
	}
	for _, row := range m {
		for d := 0; d < dims && d < len(row); d++ {
			diff := row[d] - means[d]
			out[d] += diff * diff
		}
	}
	for d := range out {
		out[d] = math.Sqrt(out[d] / float64(len(m)))
	}
	return out
}

func sqrt(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}
