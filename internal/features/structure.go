package features

import (
	"math"
)

const (
	segmentTarget = 5
	blockSeconds  = 0.5
)

// computeStructure clusters pooled chroma blocks into segmentTarget
// contiguous sections. Inputs too short to hold several blocks per section,
// and atonal inputs, report no structure.
func computeStructure(spec *spectrogram, durationSeconds float64) (Structure, error) {
	empty := Structure{SegmentDurations: []float64{}}
	if spec.frames() == 0 {
		return empty, nil
	}
	chroma := chromagram(spec.mag, spec.freqs)
	blockFrames := max(1, int(math.Round(blockSeconds*spec.frameRate())))
	blocks := poolBlocks(chroma, blockFrames)
	if len(blocks) < 4*segmentTarget || allZero(blocks) {
		return empty, nil
	}

	affinity := recurrence(blocks)
	bounds := clusterContiguous(affinity, segmentTarget)

	blockDur := float64(blockFrames) / spec.frameRate()
	durations := make([]float64, len(bounds))
	var total float64
	for i, b := range bounds {
		start := float64(b[0]) * blockDur
		end := float64(b[1]) * blockDur
		if i == len(bounds)-1 && durationSeconds > start {
			end = durationSeconds
		}
		durations[i] = roundTo(end-start, 2)
		total += durations[i]
	}
	return Structure{
		SegmentCount:     len(durations),
		SegmentDurations: durations,
		AvgSegmentLength: roundTo(total/float64(len(durations)), 2),
	}, nil
}

func poolBlocks(chroma [][]float64, size int) [][]float64 {
	var out [][]float64
	for start := 0; start < len(chroma); start += size {
		end := min(start+size, len(chroma))
		out = append(out, columnMeans(chroma[start:end], 12))
	}
	return out
}

func allZero(m [][]float64) bool {
	for _, row := range m {
		for _, v := range row {
			if v != 0 {
				return false
			}
		}
	}
	return true
}

// recurrence returns the cosine-similarity matrix between blocks.
func recurrence(blocks [][]float64) [][]float64 {
	norms := make([]float64, len(blocks))
	for i, b := range blocks {
		var sq float64
		for _, v := range b {
			sq += v * v
		}
		norms[i] = math.Sqrt(sq)
	}
	out := make([][]float64, len(blocks))
	for i := range blocks {
		out[i] = make([]float64, len(blocks))
	}
	for i := range blocks {
		for j := i; j < len(blocks); j++ {
			var sim float64
			if norms[i] > 0 && norms[j] > 0 {
				var dot float64
				for d := range blocks[i] {
					dot += blocks[i][d] * blocks[j][d]
				}
				sim = dot / (norms[i] * norms[j])
			}
			out[i][j], out[j][i] = sim, sim
		}
	}
	return out
}

// clusterContiguous performs temporally constrained agglomerative clustering:
// starting from one segment per block, it repeatedly merges the adjacent pair
// with the highest mean cross-affinity until k segments remain. Bounds are
// half-open block ranges.
func clusterContiguous(affinity [][]float64, k int) [][2]int {
	segs := make([][2]int, len(affinity))
	for i := range segs {
		segs[i] = [2]int{i, i + 1}
	}
	link := func(a, b [2]int) float64 {
		var sum float64
		for i := a[0]; i < a[1]; i++ {
			for j := b[0]; j < b[1]; j++ {
				sum += affinity[i][j]
			}
		}
		return sum / float64((a[1]-a[0])*(b[1]-b[0]))
	}
	scores := make([]float64, len(segs)-1)
	for i := range scores {
		scores[i] = link(segs[i], segs[i+1])
	}
	for len(segs) > k {
		best := 0
		for i := 1; i < len(scores); i++ {
			if scores[i] > scores[best] {
				best = i
			}
		}
		merged := [2]int{segs[best][0], segs[best+1][1]}
		segs = append(segs[:best], append([][2]int{merged}, segs[best+2:]...)...)
		scores = append(scores[:best], scores[best+1:]...)
		if best > 0 {
			scores[best-1] = link(segs[best-1], segs[best])
		}
		if best < len(scores) {
			scores[best] = link(segs[best], segs[best+1])
		}
	}
	return segs
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
