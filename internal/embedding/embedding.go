// Package embedding loads GloVe word-vector tables and answers similarity
// queries over them.
package embedding

// Embedding represents the vector of a single word.
type Embedding struct {
	Word   string
	Vector []float32 // e.g. 300 components for glove.6B.300d
}

// Dimensions returns the dimensionality of the embedding.
func (e Embedding) Dimensions() int {
	return len(e.Vector)
}

// Norm returns the Euclidean length of the vector.
func (e Embedding) Norm() float64 {
	return magnitude(e.Vector)
}
