package models

// UnknownSize marks a result whose size the indexer did not report.
const UnknownSize int64 = -1

// SearchResult is the normalized record every torrent provider returns.
type SearchResult struct {
	Title    string `json:"title"`
	Link     string `json:"link"` // magnet URI or download URL
	Hash     string `json:"hash"` // info hash, empty when unknown
	Seeders  int    `json:"seeders"`
	Leechers int    `json:"leechers"`
	Size     int64  `json:"size"` // bytes, UnknownSize when unknown
}
