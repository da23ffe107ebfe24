package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"

	"medialib/models"
)

const ytsDefaultBaseURL = "https://yts.mx"

// YTSProvider searches the YTS movie catalogue JSON API.
type YTSProvider struct {
	opts Options
}

func NewYTSProvider(opts Options) *YTSProvider {
	if opts.BaseURL == "" {
		opts.BaseURL = ytsDefaultBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	opts.HTTPClient = defaultHTTPClient(opts.HTTPClient)
	return &YTSProvider{opts: opts}
}

func (y *YTSProvider) Name() string { return "YTS" }

func (y *YTSProvider) Capabilities() Capabilities {
	return Capabilities{CanBacklog: true, SupportsMovies: true, Public: true, Kind: KindTorrent}
}

type ytsResponse struct {
	Status        string `json:"status"`
	StatusMessage string `json:"status_message"`
	Data          struct {
		MovieCount int        `json:"movie_count"`
		Movies     []ytsMovie `json:"movies"`
	} `json:"data"`
}

type ytsMovie struct {
	TitleLong string       `json:"title_long"`
	Torrents  []ytsTorrent `json:"torrents"`
}

type ytsTorrent struct {
	URL       string `json:"url"`
	Hash      string `json:"hash"`
	Quality   string `json:"quality"`
	Type      string `json:"type"`
	Seeds     int    `json:"seeds"`
	Peers     int    `json:"peers"`
	SizeBytes int64  `json:"size_bytes"`
}

func (y *YTSProvider) Search(ctx context.Context, search SearchStrings) ([]models.SearchResult, error) {
	var results []models.SearchResult
	for mode, queries := range search {
		for _, query := range queries {
			params := url.Values{}
			params.Set("query_term", NormalizeQuery(query))
			params.Set("limit", "50")
			params.Set("sort_by", "date_added")
			apiURL := fmt.Sprintf("%s/api/v2/list_movies.json?%s", y.opts.BaseURL, params.Encode())

			log.Printf("[yts] %s search: q=%q", mode, query)
			body, err := fetch(ctx, y.opts.HTTPClient, "yts", apiURL)
			if err != nil {
				return nil, err
			}
			items, err := parseYTSResponse(body)
			if err != nil {
				return nil, err
			}
			results = append(results, filterBySwarm(items, mode, y.opts.MinSeeders, y.opts.MinLeechers)...)
		}
	}
	return results, nil
}

func parseYTSResponse(body []byte) ([]models.SearchResult, error) {
	var resp ytsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode yts response: %w", err)
	}
	if resp.Status != "" && resp.Status != "ok" {
		return nil, fmt.Errorf("yts returned status %q: %s", resp.Status, resp.StatusMessage)
	}

	var results []models.SearchResult
	for _, movie := range resp.Data.Movies {
		for _, torrent := range movie.Torrents {
			if torrent.Hash == "" {
				continue
			}
			title := movie.TitleLong
			if torrent.Quality != "" {
				title = fmt.Sprintf("%s [%s]", title, torrent.Quality)
			}
			if torrent.Type != "" {
				title = fmt.Sprintf("%s [%s]", title, torrent.Type)
			}
			size := torrent.SizeBytes
			if size <= 0 {
				size = models.UnknownSize
			}
			results = append(results, models.SearchResult{
				Title:    title,
				Link:     BuildMagnet(torrent.Hash, title, defaultTrackers),
				Hash:     strings.ToLower(torrent.Hash),
				Seeders:  clampCount(torrent.Seeds),
				Leechers: clampCount(torrent.Peers),
				Size:     size,
			})
		}
	}
	return results, nil
}
