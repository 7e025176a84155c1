package embedding

import (
	"math"
	"sort"
	"strings"
)

// Neighbor is one result of a nearest-neighbor query.
type Neighbor struct {
	Word       string  `json:"word"`
	Similarity float64 `json:"similarity"`
}

// CosineSimilarity computes dot(a,b) / (|a|*|b|).
//
// Degenerate inputs mean "no relation" and return 0: a nil or empty
// vector, vectors of different lengths, or a vector with zero norm. The
// result is never NaN.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	return cosine(a, magnitude(a), b, magnitude(b))
}

// cosine uses precomputed norms; the table caches one per word.
func cosine(a []float32, am float64, b []float32, bm float64) float64 {
	if am == 0 || bm == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	s := dot / (am * bm)
	if math.IsNaN(s) {
		return 0
	}
	return s
}

// NormalizeWord lower-cases and trims a query word.
func NormalizeWord(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}

// Similarity returns the cosine similarity between two words after
// normalizing both. ok is false, with a score of 0, when either word is out
// of vocabulary.
func (t *Table) Similarity(a, b string) (score float64, ok bool) {
	i, okA := t.index[NormalizeWord(a)]
	j, okB := t.index[NormalizeWord(b)]
	if !okA || !okB {
		return 0, false
	}
	return cosine(t.vectors[i], t.norms[i], t.vectors[j], t.norms[j]), true
}

// NearestNeighbors returns up to topN words most similar to word, highest
// similarity first. The query is lower-cased and trimmed; the query word
// itself is never part of the result. An out-of-vocabulary word yields an
// empty slice.
//
// Every word in the table is scored (O(V*d)). Words with equal scores keep
// their vocabulary order.
func (t *Table) NearestNeighbors(word string, topN int) []Neighbor {
	q, ok := t.index[NormalizeWord(word)]
	if !ok || topN <= 0 {
		return []Neighbor{}
	}

	type scored struct {
		pos   int
		score float64
	}
	scores := make([]scored, 0, len(t.words)-1)
	query, qm := t.vectors[q], t.norms[q]
	for j := range t.vectors {
		if j == q {
			continue
		}
		scores = append(scores, scored{pos: j, score: cosine(query, qm, t.vectors[j], t.norms[j])})
	}

	sort.SliceStable(scores, func(a, b int) bool {
		return scores[a].score > scores[b].score
	})

	if topN > len(scores) {
		topN = len(scores)
	}
	out := make([]Neighbor, topN)
	for n := 0; n < topN; n++ {
		out[n] = Neighbor{Word: t.words[scores[n].pos], Similarity: scores[n].score}
	}
	return out
}
