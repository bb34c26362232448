package model

// Chunk is one embedded slice of a knowledge article. ChunkIndex values for an
// article form a contiguous 0..N-1 sequence; (ArticleID, ChunkIndex) is unique.
type Chunk struct {
	ArticleID  int64     `json:"article_id"`
	ChunkIndex int       `json:"chunk_index"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"embedding"`
	Ctime      int64     `json:"ctime"`
}
