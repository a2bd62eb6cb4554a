package service

import (
	"math"
	"math/rand/v2"
	"strings"
)

const minTemperature = 1e-6

// SegmentConfig controls the chunk-boundary optimizer.
type SegmentConfig struct {
	MaxTokens          int
	MinTokens          int
	Iterations         int
	InitialTemperature float64
	CoolingRate        float64
	// Seed fixes the random source; zero draws a fresh seed per call.
	Seed uint64
}

// DefaultSegmentConfig provides sane defaults for segmentation.
func DefaultSegmentConfig() SegmentConfig {
	return SegmentConfig{
		MaxTokens:          500,
		MinTokens:          400,
		Iterations:         5000,
		InitialTemperature: 1.0,
		CoolingRate:        0.0002,
	}
}

// SectionText is one contiguous group of sentences joined with single spaces.
type SectionText struct {
	Section string
	Text    string
	Tokens  int
}

// SegmentResult is the outcome of segmenting one section.
type SegmentResult struct {
	Groups []SectionText
	// Cost is the cost of the returned partition.
	Cost float64
	// AnnealedCost is the best cost found by the search, before undersized groups are merged.
	AnnealedCost float64
	// BestCosts records the best-so-far cost at the start and after every improvement.
	BestCosts []float64
}

// Segmenter partitions a section's sentences into size-bounded chunks by
// simulated annealing over cut points.
type Segmenter struct {
	cfg SegmentConfig
}

// NewSegmenter creates a Segmenter, filling unset fields from the defaults.
func NewSegmenter(cfg SegmentConfig) *Segmenter {
	def := DefaultSegmentConfig()
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.MinTokens < 0 || cfg.MinTokens > cfg.MaxTokens {
		cfg.MinTokens = min(def.MinTokens, cfg.MaxTokens)
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = def.Iterations
	}
	if cfg.InitialTemperature <= 0 {
		cfg.InitialTemperature = def.InitialTemperature
	}
	if cfg.CoolingRate <= 0 || cfg.CoolingRate >= 1 {
		cfg.CoolingRate = def.CoolingRate
	}
	return &Segmenter{cfg: cfg}
}

// Config returns the effective configuration.
func (s *Segmenter) Config() SegmentConfig {
	return s.cfg
}

// Segment partitions sentences into groups tagged with sectionName.
// Every sentence appears in exactly one group, in order.
func (s *Segmenter) Segment(sectionName string, sentences []string) SegmentResult {
	n := len(sentences)
	if n == 0 {
		return SegmentResult{}
	}

	sizes := make([]int, n)
	for i, sent := range sentences {
		sizes[i] = wordCount(sent)
	}
	p := newPartitioner(sizes, s.cfg.MinTokens, s.cfg.MaxTokens)

	cuts := p.greedy()
	best, bestCost, trajectory := s.anneal(p, cuts)

	repaired := p.mergeUndersized(best)

	return SegmentResult{
		Groups:       buildGroups(sectionName, sentences, sizes, repaired),
		Cost:         p.cost(repaired),
		AnnealedCost: bestCost,
		BestCosts:    trajectory,
	}
}

func (s *Segmenter) anneal(p *partitioner, initial []int) ([]int, float64, []float64) {
	rng := s.newRand()

	current := initial
	currentCost := p.cost(current)
	best := append([]int(nil), current...)
	bestCost := currentCost
	trajectory := []float64{bestCost}

	if len(current) == 0 {
		return best, bestCost, trajectory
	}

	temperature := s.cfg.InitialTemperature
	for it := 0; it < s.cfg.Iterations; it++ {
		candidate := p.neighbor(current, rng)
		candidateCost := p.cost(candidate)

		if candidateCost < currentCost || rng.Float64() < math.Exp((currentCost-candidateCost)/temperature) {
			current = candidate
			currentCost = candidateCost
		}
		if currentCost < bestCost {
			best = append(best[:0], current...)
			bestCost = currentCost
			trajectory = append(trajectory, bestCost)
		}

		temperature = math.Max(temperature*(1-s.cfg.CoolingRate), minTemperature)
	}

	return best, bestCost, trajectory
}

func (s *Segmenter) newRand() *rand.Rand {
	seed := s.cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// partitioner evaluates cut sets over a fixed sequence of sentence sizes.
// A cut at index c starts a new group at sentence c, so valid cuts lie in [1, n-1].
type partitioner struct {
	sizes  []int
	prefix []int
	min    int
	max    int
}

func newPartitioner(sizes []int, minTokens, maxTokens int) *partitioner {
	prefix := make([]int, len(sizes)+1)
	for i, sz := range sizes {
		prefix[i+1] = prefix[i] + sz
	}
	return &partitioner{sizes: sizes, prefix: prefix, min: minTokens, max: maxTokens}
}

// greedy cuts whenever the running sum would exceed the maximum.
func (p *partitioner) greedy() []int {
	var cuts []int
	running := 0
	for i, sz := range p.sizes {
		if i > 0 && running+sz > p.max {
			cuts = append(cuts, i)
			running = sz
			continue
		}
		running += sz
	}
	return cuts
}

func (p *partitioner) segmentSizes(cuts []int) []int {
	out := make([]int, 0, len(cuts)+1)
	start := 0
	for _, c := range cuts {
		out = append(out, p.prefix[c]-p.prefix[start])
		start = c
	}
	return append(out, p.prefix[len(p.sizes)]-p.prefix[start])
}

func (p *partitioner) cost(cuts []int) float64 {
	sizes := p.segmentSizes(cuts)

	var penalty float64
	for _, sz := range sizes {
		if sz < p.min {
			penalty += 2 * float64(p.min-sz)
		} else if sz > p.max {
			penalty += 2 * float64(sz-p.max)
		}
	}
	if len(sizes) > 1 {
		penalty += 0.5 * variance(sizes)
	}
	return penalty
}

// neighbor shifts one cut by one position. Moves that leave the valid range
// or reach an adjacent cut return an unchanged copy.
func (p *partitioner) neighbor(cuts []int, rng *rand.Rand) []int {
	next := append([]int(nil), cuts...)
	if len(next) == 0 {
		return next
	}

	i := rng.IntN(len(next))
	shifted := next[i] + 1
	if rng.IntN(2) == 0 {
		shifted = next[i] - 1
	}

	lo, hi := 1, len(p.sizes)-1
	if i > 0 {
		lo = next[i-1] + 1
	}
	if i < len(next)-1 {
		hi = next[i+1] - 1
	}
	if shifted < lo || shifted > hi {
		return next
	}

	next[i] = shifted
	return next
}

// mergeUndersized folds every group below the minimum into its smaller
// neighbor, so an undersized group survives only when it is the whole section.
func (p *partitioner) mergeUndersized(cuts []int) []int {
	out := append([]int(nil), cuts...)
	for len(out) > 0 {
		sizes := p.segmentSizes(out)
		idx := -1
		for i, sz := range sizes {
			if sz < p.min {
				idx = i
				break
			}
		}
		if idx < 0 {
			break
		}

		// Group idx is bounded by cut idx-1 on the left and cut idx on the right.
		switch {
		case idx == 0:
			out = removeAt(out, 0)
		case idx == len(sizes)-1:
			out = removeAt(out, idx-1)
		case sizes[idx-1] <= sizes[idx+1]:
			out = removeAt(out, idx-1)
		default:
			out = removeAt(out, idx)
		}
	}
	return out
}

func buildGroups(section string, sentences []string, sizes []int, cuts []int) []SectionText {
	groups := make([]SectionText, 0, len(cuts)+1)
	start := 0
	bounds := append(append([]int(nil), cuts...), len(sentences))
	for _, end := range bounds {
		tokens := 0
		for _, sz := range sizes[start:end] {
			tokens += sz
		}
		groups = append(groups, SectionText{
			Section: section,
			Text:    strings.Join(sentences[start:end], " "),
			Tokens:  tokens,
		})
		start = end
	}
	return groups
}

func removeAt(s []int, i int) []int {
	return append(s[:i], s[i+1:]...)
}

// variance is the population variance.
func variance(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += float64(v)
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := float64(v) - mean
		sq += d * d
	}
	return sq / float64(len(values))
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}
