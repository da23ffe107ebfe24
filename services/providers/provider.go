package providers

import (
	"context"
	"net/http"
	"strings"

	"medialib/models"
)

// Kind is the transport a provider's results are fetched with.
type Kind string

const (
	KindTorrent Kind = "torrent"
	KindNZB     Kind = "nzb"
)

// Capabilities are the static flags the search pipeline and the conformance
// suite consult before calling a provider.
type Capabilities struct {
	CanDaily       bool `json:"canDaily"`       // serves an RSS/latest feed
	CanBacklog     bool `json:"canBacklog"`     // answers episode and season searches
	SupportsMovies bool `json:"supportsMovies"`
	Public         bool `json:"public"`         // usable without an account
	Kind           Kind `json:"kind"`
}

// Mode selects which kind of search a set of strings is meant for.
type Mode string

const (
	ModeRSS     Mode = "RSS"
	ModeEpisode Mode = "Episode"
	ModeSeason  Mode = "Season"
	ModeMovie   Mode = "Movie"
)

// Modes lists every search mode.
var Modes = []Mode{ModeRSS, ModeEpisode, ModeSeason, ModeMovie}

// ParseMode matches raw case-insensitively against Modes.
func ParseMode(raw string) (Mode, bool) {
	for _, m := range Modes {
		if strings.EqualFold(strings.TrimSpace(raw), string(m)) {
			return m, true
		}
	}
	return "", false
}

// SearchStrings maps a mode to the queries to run in that mode.
type SearchStrings map[Mode][]string

// Merge returns a copy of s with every mode present in other replaced.
func (s SearchStrings) Merge(other SearchStrings) SearchStrings {
	out := make(SearchStrings, len(s)+len(other))
	for mode, queries := range s {
		out[mode] = append([]string(nil), queries...)
	}
	for mode, queries := range other {
		out[mode] = append([]string(nil), queries...)
	}
	return out
}

// Provider is a torrent or NZB indexer.
//
//go:generate mockgen -destination=mock_provider_test.go -package=providers . Provider
type Provider interface {
	Name() string
	Capabilities() Capabilities
	Search(ctx context.Context, search SearchStrings) ([]models.SearchResult, error)
}

// cacheParamsProvider is implemented by providers whose RSS feed needs a
// query other than the empty string.
type cacheParamsProvider interface {
	CacheSearchParams() SearchStrings
}

// Options configures a provider instance.
type Options struct {
	BaseURL     string // empty uses the provider default
	APIKey      string
	HTTPClient  *http.Client
	MinSeeders  int
	MinLeechers int
}
