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

	"github.com/docker/go-units"
	"golang.org/x/net/html/charset"

	"medialib/models"
)

const nyaaDefaultBaseURL = "https://nyaa.si"

// NyaaProvider reads the public Nyaa RSS search feed.
type NyaaProvider struct {
	opts Options
}

func NewNyaaProvider(opts Options) *NyaaProvider {
	if opts.BaseURL == "" {
		opts.BaseURL = nyaaDefaultBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	opts.HTTPClient = defaultHTTPClient(opts.HTTPClient)
	return &NyaaProvider{opts: opts}
}

func (n *NyaaProvider) Name() string { return "Nyaa" }

func (n *NyaaProvider) Capabilities() Capabilities {
	return Capabilities{CanDaily: true, CanBacklog: true, Public: true, Kind: KindTorrent}
}

type nyaaRSS struct {
	Channel struct {
		Items []nyaaItem `xml:"item"`
	} `xml:"channel"`
}

// Element names without a namespace match the nyaa: extension elements.
type nyaaItem struct {
	Title    string `xml:"title"`
	Link     string `xml:"link"`
	Seeders  string `xml:"seeders"`
	Leechers string `xml:"leechers"`
	InfoHash string `xml:"infoHash"`
	Size     string `xml:"size"`
}

func (n *NyaaProvider) Search(ctx context.Context, search SearchStrings) ([]models.SearchResult, error) {
	var results []models.SearchResult
	for mode, queries := range search {
		for _, query := range queries {
			params := url.Values{}
			params.Set("page", "rss")
			params.Set("q", NormalizeQuery(query))
			params.Set("c", "1_0")
			params.Set("f", "0")
			feedURL := fmt.Sprintf("%s/?%s", n.opts.BaseURL, params.Encode())

			if mode != ModeRSS {
				log.Printf("[nyaa] Search string: %s", query)
			}
			body, err := fetch(ctx, n.opts.HTTPClient, "nyaa", feedURL)
			if err != nil {
				return nil, err
			}
			items, err := parseNyaaFeed(body)
			if err != nil {
				return nil, err
			}
			results = append(results, filterBySwarm(items, mode, n.opts.MinSeeders, n.opts.MinLeechers)...)
		}
	}
	return results, nil
}

func parseNyaaFeed(body []byte) ([]models.SearchResult, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = charset.NewReaderLabel

	var feed nyaaRSS
	if err := dec.Decode(&feed); err != nil {
		return nil, fmt.Errorf("parse nyaa feed: %w", err)
	}

	results := make([]models.SearchResult, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		title := strings.TrimSpace(item.Title)
		link := strings.TrimSpace(item.Link)
		if title == "" || link == "" {
			continue
		}
		seeders, _ := strconv.Atoi(strings.TrimSpace(item.Seeders))
		leechers, _ := strconv.Atoi(strings.TrimSpace(item.Leechers))
		results = append(results, models.SearchResult{
			Title:    title,
			Link:     link,
			Hash:     strings.ToLower(strings.TrimSpace(item.InfoHash)),
			Seeders:  clampCount(seeders),
			Leechers: clampCount(leechers),
			Size:     parseHumanSize(item.Size),
		})
	}
	return results, nil
}

// parseHumanSize turns "1.2 GiB" or "700 MB" into bytes, UnknownSize on failure.
func parseHumanSize(raw string) int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.UnknownSize
	}
	size, err := units.RAMInBytes(raw)
	if err != nil || size <= 0 {
		return models.UnknownSize
	}
	return size
}
