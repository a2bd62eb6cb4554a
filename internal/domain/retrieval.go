package domain

// RetrievalResult is one ranked hit from the vector index.
type RetrievalResult struct {
	ChunkID string  `json:"chunk_id"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	Rank    int     `json:"rank"`
}

// Texts returns the contents of the results in rank order.
func Texts(results []RetrievalResult) []string {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Content
	}
	return texts
}
