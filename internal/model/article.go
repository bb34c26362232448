package model

type Article struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	AuthorID  int64  `json:"author_id,omitempty"`
	ViewCount int64  `json:"view_count"`
	Active    bool   `json:"active"`
	Ctime     int64  `json:"ctime"`
	Mtime     int64  `json:"mtime"`
}
