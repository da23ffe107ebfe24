// Package conformance checks that registered torrent providers search and
// parse results into well-formed records.
package conformance

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/asaskevich/govalidator"

	"medialib/models"
	"medialib/services/providers"
)

// Check names one conformance check.
type Check string

const (
	CheckRSS     Check = "rss"
	CheckEpisode Check = "episode"
	CheckSeason  Check = "season"
	CheckMovie   Check = "movie"
	CheckCache   Check = "cache"
	CheckResult  Check = "result"
)

// Disabled lists checks skipped per provider name.
var Disabled = map[string][]Check{
	// nyaa's unfiltered feed is too large to be useful as an rss test
	"Nyaa": {CheckRSS},
	// movie-only catalogue
	"YTS": {CheckEpisode, CheckSeason},
}

// Overrides replace the default search strings per provider name.
var Overrides = map[string]providers.SearchStrings{
	"Nyaa": {providers.ModeEpisode: {"Fairy Tail S2"}, providers.ModeSeason: {"Fairy Tail S2"}},
	"YTS":  {providers.ModeEpisode: {"Black Panther 2018"}},
}

var defaultSearchStrings = providers.SearchStrings{
	providers.ModeRSS:     {""},
	providers.ModeEpisode: {"The 100 S07E08"},
	providers.ModeSeason:  {"Game of Thrones S08"},
	providers.ModeMovie:   {"Black Panther 2018"},
}

var magnetPattern = regexp.MustCompile(`^magnet:\?xt=urn:btih:\w{32,40}(:?&dn=[\w. %+-]+)*(:?&tr=(:?tcp|https?|udp)[\w%. +-]+)*`)

// Eligible reports whether a provider gets a generated test case: it must
// answer backlog searches, return torrents and need no account.
func Eligible(caps providers.Capabilities) bool {
	return caps.CanBacklog && caps.Kind == providers.KindTorrent && caps.Public
}

// IsDisabled reports whether check is denylisted for the named provider.
func IsDisabled(name string, check Check) bool {
	for _, c := range Disabled[name] {
		if c == check {
			return true
		}
	}
	return false
}

// SearchStrings returns the queries for mode: the defaults, then the cache's
// search params, then the per-provider overrides. cache may be nil.
func SearchStrings(p providers.Provider, cache *providers.Cache, mode providers.Mode) providers.SearchStrings {
	merged := defaultSearchStrings
	if cache != nil {
		merged = merged.Merge(cache.SearchParams())
	}
	merged = merged.Merge(Overrides[p.Name()])
	return providers.SearchStrings{mode: merged[mode]}
}

// IsMagnet reports whether link looks like a BitTorrent magnet URI.
func IsMagnet(link string) bool {
	return magnetPattern.MatchString(link)
}

// IsValidURL accepts absolute http, https and ftp URLs whose host is an IP
// address or a domain with a top-level label.
func IsValidURL(link string) bool {
	if !govalidator.IsURL(link) {
		return false
	}
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ftp":
	default:
		return false
	}
	host := u.Hostname()
	if govalidator.IsIP(host) {
		return true
	}
	return strings.Contains(host, ".") && govalidator.IsDNSName(host)
}

// ValidateResult checks a single search result for a usable title, link and counts.
func ValidateResult(r models.SearchResult) error {
	var errs []error
	if r.Title == "" {
		errs = append(errs, errors.New("empty title"))
	}
	if r.Link == "" {
		errs = append(errs, errors.New("empty link"))
	}
	switch len(r.Hash) {
	case 0, 32, 40:
	default:
		errs = append(errs, fmt.Errorf("hash %q has length %d", r.Hash, len(r.Hash)))
	}
	if r.Seeders < 0 {
		errs = append(errs, fmt.Errorf("negative seeders %d", r.Seeders))
	}
	if r.Leechers < 0 {
		errs = append(errs, fmt.Errorf("negative leechers %d", r.Leechers))
	}
	switch {
	case r.Size == 0:
		errs = append(errs, errors.New("zero size"))
	case r.Size < models.UnknownSize:
		errs = append(errs, fmt.Errorf("size %d below %d", r.Size, models.UnknownSize))
	}
	if r.Link != "" {
		if strings.HasPrefix(r.Link, "magnet") {
			if !IsMagnet(r.Link) {
				errs = append(errs, fmt.Errorf("malformed magnet %q", r.Link))
			}
		} else if !IsValidURL(r.Link) {
			errs = append(errs, fmt.Errorf("invalid url %q", r.Link))
		}
	}
	if title, link := providers.TitleAndURL(r); title == "" || link == "" {
		errs = append(errs, errors.New("title and url helper returned an empty value"))
	}
	return errors.Join(errs...)
}

// Timeout bounds each search a check performs.
var Timeout = 2 * time.Minute

// Run executes every check against p as subtests. cache backs the cache
// check and contributes its search params.
func Run(t *testing.T, p providers.Provider, cache *providers.Cache) {
	t.Helper()
	caps := p.Capabilities()

	searchCheck := func(check Check, mode providers.Mode, enabled bool) {
		t.Run(string(check), func(t *testing.T) {
			skipIfDisabled(t, p.Name(), check)
			if !enabled {
				return
			}
			results := search(t, p, SearchStrings(p, cache, mode))
			if len(results) == 0 {
				t.Fatalf("%s %s search returned no results", p.Name(), mode)
			}
		})
	}

	searchCheck(CheckRSS, providers.ModeRSS, caps.CanDaily)
	searchCheck(CheckEpisode, providers.ModeEpisode, caps.CanBacklog)
	searchCheck(CheckSeason, providers.ModeSeason, caps.CanBacklog)
	searchCheck(CheckMovie, providers.ModeMovie, caps.SupportsMovies)

	t.Run(string(CheckCache), func(t *testing.T) {
		skipIfDisabled(t, p.Name(), CheckCache)
		if !caps.CanDaily || cache == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), Timeout)
		defer cancel()
		if _, err := cache.Update(ctx); err != nil {
			t.Fatalf("%s cache update: %v", p.Name(), err)
		}
	})

	t.Run(string(CheckResult), func(t *testing.T) {
		skipIfDisabled(t, p.Name(), CheckResult)
		if !caps.CanBacklog {
			return
		}
		for _, r := range search(t, p, SearchStrings(p, cache, providers.ModeEpisode)) {
			if err := ValidateResult(r); err != nil {
				t.Errorf("%s result %q: %v", p.Name(), r.Title, err)
			}
		}
	})
}

func skipIfDisabled(t *testing.T, name string, check Check) {
	t.Helper()
	if IsDisabled(name, check) {
		t.Skipf("Test is programmatically disabled for provider %s", name)
	}
}

func search(t *testing.T, p providers.Provider, strs providers.SearchStrings) []models.SearchResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), Timeout)
	defer cancel()
	results, err := p.Search(ctx, strs)
	if err != nil {
		t.Fatalf("%s search %v: %v", p.Name(), strs, err)
	}
	return results
}
