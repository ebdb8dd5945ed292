package catalog

import (
	"slices"
)

const (
	DefaultPriceWeight       = 1000
	DefaultDescriptionWeight = 1
)

// Weights configures the completeness score:
// score = Description*len(description) + Price (when a value is present).
type Weights struct {
	Price       int
	Description int
}

func DefaultWeights() Weights {
	return Weights{Price: DefaultPriceWeight, Description: DefaultDescriptionWeight}
}

// Conflict marks a code whose duplicates carried different prices. The
// survivor is still chosen by score; the conflict is for human review.
type Conflict struct {
	Code     string             `json:"code" yaml:"code"`
	Values   []Amount           `json:"values" yaml:"values"`
	Survivor CandidateProcedure `json:"survivor" yaml:"survivor"`
}

type MergeResult struct {
	Catalog   *ProcedureCatalog
	Conflicts []Conflict
	// Input counts every candidate handed in, Dropped those without a valid code.
	Input   int
	Dropped int
}

type Merger struct {
	weights Weights
}

func NewMerger(w Weights) *Merger {
	if w.Price == 0 && w.Description == 0 {
		w = DefaultWeights()
	}
	return &Merger{weights: w}
}

// Score is the completeness score of a candidate.
func (m *Merger) Score(c CandidateProcedure) int {
	score := m.weights.Description * descriptionLength(c.Description)
	if c.HasValue() {
		score += m.weights.Price
	}
	return score
}

// outranks reports whether c should replace cur as survivor. With a
// positive price weight a priced candidate beats an unpriced one whatever
// the description lengths; otherwise the higher score wins.
func (m *Merger) outranks(c, cur CandidateProcedure) bool {
	if m.weights.Price > 0 && c.HasValue() != cur.HasValue() {
		return c.HasValue()
	}
	return m.Score(c) > m.Score(cur)
}

// Merge reduces candidates to one survivor per code. The highest score
// wins, a priced candidate always outranking an unpriced one; equal
// scores keep the candidate seen first.
func (m *Merger) Merge(cands []CandidateProcedure) MergeResult {
	res := MergeResult{Input: len(cands)}

	survivors := make(map[string]CandidateProcedure, len(cands))
	values := make(map[string][]Amount)

	for _, c := range cands {
		code, ok := NormalizeCode(c.Code)
		if !ok {
			res.Dropped++
			continue
		}
		c.Code = code
		c.Description = NormalizeDescription(c.Description)

		if c.Value != nil && !slices.Contains(values[code], *c.Value) {
			values[code] = append(values[code], *c.Value)
		}

		if cur, seen := survivors[code]; seen && !m.outranks(c, cur) {
			continue
		}
		survivors[code] = c
	}

	for code, vs := range values {
		if len(vs) < 2 {
			continue
		}
		sorted := slices.Clone(vs)
		slices.Sort(sorted)
		res.Conflicts = append(res.Conflicts, Conflict{Code: code, Values: sorted, Survivor: survivors[code]})
	}
	slices.SortFunc(res.Conflicts, func(a, b Conflict) int { return CompareCodes(a.Code, b.Code) })

	res.Catalog = &ProcedureCatalog{entries: survivors}
	return res
}

// Merge runs a Merger with the default weights.
func Merge(cands []CandidateProcedure) MergeResult {
	return NewMerger(DefaultWeights()).Merge(cands)
}
