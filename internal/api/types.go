package api

// EmbeddingOut is the body of GET /embedding/{word}. Embedding is null when
// the word is not in the vocabulary.
type EmbeddingOut struct {
	Word      string    `json:"word"`
	Embedding []float32 `json:"embeddings"`
	Found     bool      `json:"found"`
}

// NeighborOut is one element of the GET /nearest-neighbors/{word} body.
type NeighborOut struct {
	Word       string  `json:"word"`
	Similarity float64 `json:"similarity"`
}

// SimilarityOut is the body of GET /similarity.
type SimilarityOut struct {
	A          string  `json:"a"`
	B          string  `json:"b"`
	Similarity float64 `json:"similarity"`
	Found      bool    `json:"found"`
}

// RootOut is the body of GET /.
type RootOut struct {
	Message string `json:"message"`
	Ready   bool   `json:"ready"`
}

// HealthOut is the body of GET /healthz.
type HealthOut struct {
	Status     string `json:"status"`
	Words      int    `json:"words"`
	Dimensions int    `json:"dimensions"`
	Source     string `json:"source,omitempty"`
	RSSBytes   uint64 `json:"rss_bytes,omitempty"`
	CPUs       int    `json:"cpus,omitempty"`
	UptimeSecs int64  `json:"uptime_secs"`
}

// ErrorOut is the body of every non-2xx response.
type ErrorOut struct {
	Detail string `json:"detail"`
}
