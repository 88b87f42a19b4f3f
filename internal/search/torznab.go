package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"cinestream/pkg/types"
)

// Torznab queries a Jackett or Prowlarr aggregate endpoint. Only wired in
// when INDEXER_URL is configured.
type Torznab struct {
	BaseURL string // either the app base or a full .../torznab/api endpoint
	APIKey  string
	Client  *http.Client
}

// Indexers spread the interesting fields between plain child elements and
// torznab:attr name/value pairs; both are decoded and the attrs win.
type torznabFeed struct {
	Channel struct {
		Items []torznabItem `xml:"item"`
	} `xml:"channel"`
}

type torznabItem struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	Size    int64  `xml:"size"`
	Seeders int    `xml:"seeders"`
	Peers   int    `xml:"peers"`
	Attrs   []struct {
		Name  string `xml:"name,attr"`
		Value string `xml:"value,attr"`
	} `xml:"attr"`
}

func (c *Torznab) Name() string { return "Torznab" }

func (c *Torznab) Search(ctx context.Context, query string) ([]types.Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	u, err := url.Parse(c.endpoint())
	if err != nil {
		return nil, fmt.Errorf("bad indexer url: %w", err)
	}
	v := url.Values{}
	v.Set("apikey", c.APIKey)
	v.Set("t", "search")
	v.Set("q", query)
	u.RawQuery = v.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("indexer HTTP %d", resp.StatusCode)
	}

	var feed torznabFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("indexer xml: %w", err)
	}

	var out []types.Candidate
	for _, it := range feed.Channel.Items {
		seeders, leechers := it.Seeders, it.Peers
		link := it.Link
		var attrHash string
		for _, a := range it.Attrs {
			switch strings.ToLower(a.Name) {
			case "seeders":
				if n, err := strconv.Atoi(a.Value); err == nil {
					seeders = n
				}
			case "peers", "leechers":
				if n, err := strconv.Atoi(a.Value); err == nil {
					leechers = n
				}
			case "magneturl":
				if a.Value != "" {
					link = a.Value
				}
			case "infohash":
				attrHash = strings.ToLower(a.Value)
			}
		}
		ih, magnet := parseTorznabLink(link)
		if magnet == "" {
			continue
		}
		if ih == "" {
			ih = attrHash
		}
		out = append(out, types.Candidate{
			Name:     it.Title,
			InfoHash: ih,
			Magnet:   magnet,
			Seeders:  seeders,
			Leechers: leechers,
			Size:     humanSize(it.Size),
			Source:   "Torznab",
		})
	}
	return out, nil
}

// endpoint expands a bare Jackett/Prowlarr base URL to the aggregate
// torznab path; URLs that already carry a torznab path pass through.
func (c *Torznab) endpoint() string {
	base := strings.TrimRight(c.BaseURL, "/")
	l := strings.ToLower(base)
	if strings.Contains(l, "/torznab/") || strings.Contains(l, "/api/v2.0/") {
		return base
	}
	return base + "/api/v2.0/indexers/all/results/torznab/api"
}

func parseTorznabLink(link string) (string, string) {
	if !strings.HasPrefix(strings.ToLower(link), "magnet:") {
		return "", ""
	}
	var ih string
	if m := btihRe.FindStringSubmatch(link); m != nil {
		ih = strings.ToLower(m[1])
	}
	return ih, link
}

func humanSize(n int64) string {
	if n <= 0 {
		return ""
	}
	const gb = 1 << 30
	const mb = 1 << 20
	if n >= gb {
		return fmt.Sprintf("%.2f GB", float64(n)/gb)
	}
	return fmt.Sprintf("%.1f MB", float64(n)/mb)
}
