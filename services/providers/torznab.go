package providers

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"

	"medialib/models"
)

const jackettDefaultBaseURL = "http://localhost:9117"

// JackettProvider queries Jackett's Torznab API across all configured indexers.
type JackettProvider struct {
	opts Options
}

func NewJackettProvider(opts Options) *JackettProvider {
	if opts.BaseURL == "" {
		opts.BaseURL = jackettDefaultBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	opts.HTTPClient = defaultHTTPClient(opts.HTTPClient)
	return &JackettProvider{opts: opts}
}

func (j *JackettProvider) Name() string { return "Jackett" }

func (j *JackettProvider) Capabilities() Capabilities {
	return Capabilities{CanDaily: true, CanBacklog: true, SupportsMovies: true, Kind: KindTorrent}
}

// torznabRSS represents the Torznab RSS response structure.
type torznabRSS struct {
	XMLName xml.Name       `xml:"rss"`
	Channel torznabChannel `xml:"channel"`
}

type torznabChannel struct {
	Items []torznabItem `xml:"item"`
}

type torznabItem struct {
	Title     string           `xml:"title"`
	GUID      string           `xml:"guid"`
	Link      string           `xml:"link"`
	Size      int64            `xml:"size"`
	Enclosure torznabEnclosure `xml:"enclosure"`
	Attrs     []torznabAttr    `xml:"attr"`
}

type torznabEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
}

type torznabAttr struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// torznabFunction maps a search mode to the Torznab t= parameter.
func torznabFunction(mode Mode) string {
	switch mode {
	case ModeEpisode, ModeSeason:
		return "tvsearch"
	case ModeMovie:
		return "movie"
	default:
		return "search"
	}
}

func (j *JackettProvider) Search(ctx context.Context, search SearchStrings) ([]models.SearchResult, error) {
	var results []models.SearchResult
	for mode, queries := range search {
		for _, query := range queries {
			params := url.Values{}
			params.Set("apikey", j.opts.APIKey)
			params.Set("t", torznabFunction(mode))
			params.Set("q", NormalizeQuery(query))
			apiURL := fmt.Sprintf("%s/api/v2.0/indexers/all/results/torznab/api?%s", j.opts.BaseURL, params.Encode())

			log.Printf("[jackett] %s search: q=%q", mode, query)
			body, err := fetch(ctx, j.opts.HTTPClient, "jackett", apiURL)
			if err != nil {
				return nil, err
			}
			items, err := parseTorznab(body)
			if err != nil {
				return nil, err
			}
			results = append(results, filterBySwarm(items, mode, j.opts.MinSeeders, j.opts.MinLeechers)...)
		}
	}
	return results, nil
}

// parseTorznab parses a Torznab XML response, deduplicating on info hash or download URL.
func parseTorznab(body []byte) ([]models.SearchResult, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = charset.NewReaderLabel

	var rss torznabRSS
	if err := dec.Decode(&rss); err != nil {
		return nil, fmt.Errorf("parse XML: %w", err)
	}

	var results []models.SearchResult
	seen := make(map[string]struct{})

	for _, item := range rss.Channel.Items {
		attrs := make(map[string]string, len(item.Attrs))
		for _, attr := range item.Attrs {
			attrs[attr.Name] = attr.Value
		}

		infoHash := strings.ToLower(strings.TrimSpace(attrs["infohash"]))
		if infoHash == "" {
			infoHash = InfoHashFromMagnet(item.GUID)
		}
		if infoHash == "" {
			infoHash = InfoHashFromMagnet(item.Link)
		}

		link := strings.TrimSpace(item.Link)
		if link == "" {
			link = attrs["magneturl"]
		}
		if link == "" {
			link = item.Enclosure.URL
		}
		if link == "" && infoHash != "" {
			link = BuildMagnet(infoHash, item.Title, nil)
		}
		if link == "" {
			log.Printf("[jackett] Skipping result with no magnet/infohash/torrent URL: %s", item.Title)
			continue
		}

		dedupeKey := infoHash
		if dedupeKey == "" {
			dedupeKey = link
		}
		if _, exists := seen[dedupeKey]; exists {
			continue
		}
		seen[dedupeKey] = struct{}{}

		seeders, _ := strconv.Atoi(attrs["seeders"])
		peers, _ := strconv.Atoi(attrs["peers"])
		leechers := peers - seeders
		if leechers < 0 {
			leechers = 0
		}

		size := item.Size
		if size == 0 && item.Enclosure.Length > 0 {
			size = item.Enclosure.Length
		}
		if size == 0 {
			size, _ = strconv.ParseInt(attrs["size"], 10, 64)
		}
		if size <= 0 {
			size = models.UnknownSize
		}

		results = append(results, models.SearchResult{
			Title:    strings.TrimSpace(item.Title),
			Link:     link,
			Hash:     infoHash,
			Seeders:  clampCount(seeders),
			Leechers: leechers,
			Size:     size,
		})
	}

	return results, nil
}
