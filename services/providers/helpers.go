package providers

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"medialib/models"
)

// defaultTrackers are appended to magnets built from a bare info hash.
var defaultTrackers = []string{
	"udp://open.demonii.com:1337/announce",
	"udp://tracker.openbittorrent.com:80",
	"udp://tracker.coppersurfer.tk:6969",
	"udp://tracker.opentrackr.org:1337/announce",
	"udp://torrent.gresille.org:80/announce",
}

var magnetHashPattern = regexp.MustCompile(`xt=urn:btih:([a-fA-F0-9]{40}|[a-zA-Z2-7]{32})`)

// BuildMagnet creates a magnet link from an info hash, display name and trackers.
func BuildMagnet(hash, title string, trackers []string) string {
	var b strings.Builder
	b.WriteString("magnet:?xt=urn:btih:")
	b.WriteString(strings.ToLower(hash))
	if title != "" {
		b.WriteString("&dn=")
		b.WriteString(url.QueryEscape(title))
	}
	for _, tr := range trackers {
		b.WriteString("&tr=")
		b.WriteString(url.QueryEscape(tr))
	}
	return b.String()
}

// InfoHashFromMagnet extracts the lower-cased info hash from a magnet link.
func InfoHashFromMagnet(link string) string {
	if !strings.HasPrefix(link, "magnet:") {
		return ""
	}
	if m := magnetHashPattern.FindStringSubmatch(link); len(m) == 2 {
		return strings.ToLower(m[1])
	}
	return ""
}

// TitleAndURL returns the release name with spaces turned into dots and the
// link with HTML entities and encoded tracker separators undone.
func TitleAndURL(r models.SearchResult) (string, string) {
	title := strings.ReplaceAll(strings.TrimSpace(r.Title), " ", ".")
	link := strings.TrimSpace(r.Link)
	link = strings.ReplaceAll(link, "&amp;", "&")
	link = strings.ReplaceAll(link, "%26tr%3D", "&tr=")
	return title, link
}

// Size returns the result size in bytes or models.UnknownSize.
func Size(r models.SearchResult) int64 {
	if r.Size <= 0 {
		return models.UnknownSize
	}
	return r.Size
}

// NormalizeQuery folds accents and collapses whitespace so that queries
// like "Amélie 2001" reach indexers that only index ASCII titles.
func NormalizeQuery(q string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, q)
	if err != nil {
		folded = q
	}
	return strings.Join(strings.Fields(folded), " ")
}

func filterBySwarm(results []models.SearchResult, mode Mode, minSeeders, minLeechers int) []models.SearchResult {
	if mode == ModeRSS || (minSeeders <= 0 && minLeechers <= 0) {
		return results
	}
	kept := results[:0]
	for _, r := range results {
		if r.Seeders < minSeeders || r.Leechers < minLeechers {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

func clampCount(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func describe(p Provider) string {
	caps := p.Capabilities()
	return fmt.Sprintf("%s(%s daily=%v backlog=%v movies=%v public=%v)", p.Name(), caps.Kind, caps.CanDaily, caps.CanBacklog, caps.SupportsMovies, caps.Public)
}
