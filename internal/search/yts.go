package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"cinestream/pkg/types"
)

// magnetTrackers are baked into magnets built from a bare hash, so players
// joining from a discovery result find the swarm without DHT warmup.
var magnetTrackers = []string{
	"udp://tracker.opentrackr.org:1337/announce",
	"udp://open.stealth.si:80/announce",
	"udp://tracker.torrent.eu.org:451/announce",
	"udp://exodus.desync.com:6969/announce",
	"udp://open.demonii.com:1337/announce",
}

// BuildMagnet assembles a magnet URI from an info hash and display name.
func BuildMagnet(infoHash, name string) string {
	ih := strings.ToLower(strings.TrimSpace(infoHash))
	if ih == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString("magnet:?xt=urn:btih:")
	b.WriteString(ih)
	if n := strings.TrimSpace(name); n != "" {
		b.WriteString("&dn=")
		b.WriteString(url.QueryEscape(n))
	}
	for _, tr := range magnetTrackers {
		b.WriteString("&tr=")
		b.WriteString(url.QueryEscape(tr))
	}
	return b.String()
}

// YTS queries the yts list_movies API across mirrors, first mirror that
// answers wins. Every torrent of every matched movie becomes a candidate.
type YTS struct {
	Mirrors []string
	Client  *http.Client
}

type ytsResponse struct {
	Data struct {
		Movies []struct {
			TitleLong string `json:"title_long"`
			Torrents  []struct {
				Hash    string `json:"hash"`
				Quality string `json:"quality"`
				Type    string `json:"type"`
				Size    string `json:"size"`
				Seeds   int    `json:"seeds"`
				Peers   int    `json:"peers"`
			} `json:"torrents"`
		} `json:"movies"`
	} `json:"data"`
}

func (y *YTS) Name() string { return "YTS" }

func (y *YTS) Search(ctx context.Context, query string) ([]types.Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	client := y.Client
	if client == nil {
		client = http.DefaultClient
	}

	var lastErr error
	for _, mirror := range y.Mirrors {
		u := mirror + "/api/v2/list_movies.json?query_term=" + url.QueryEscape(query) + "&limit=20&sort_by=seeds"
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("yts mirror %s: HTTP %d", mirror, resp.StatusCode)
			continue
		}
		var body ytsResponse
		err = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		var out []types.Candidate
		for _, m := range body.Data.Movies {
			for _, t := range m.Torrents {
				if t.Hash == "" {
					continue
				}
				out = append(out, types.Candidate{
					Name:     fmt.Sprintf("%s [%s] [%s]", m.TitleLong, t.Quality, t.Type),
					InfoHash: strings.ToLower(t.Hash),
					Magnet:   BuildMagnet(t.Hash, m.TitleLong),
					Seeders:  t.Seeds,
					Leechers: t.Peers,
					Size:     t.Size,
					Source:   "YTS",
				})
			}
		}
		return out, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no yts mirrors configured")
	}
	return nil, lastErr
}
