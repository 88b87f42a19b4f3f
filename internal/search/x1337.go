package search

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"cinestream/pkg/types"
)

const x1337UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"

// The listing markup is stable across mirrors: one table row per torrent,
// the second name-cell anchor pointing at /torrent/<id>/<slug>/.
var (
	x1337RowRe    = regexp.MustCompile(`(?is)<tr>(.*?)</tr>`)
	x1337NameRe   = regexp.MustCompile(`(?is)<a\s+href="(/torrent/(\d+)/[^"]*)"[^>]*>(.*?)</a>`)
	x1337SeedsRe  = regexp.MustCompile(`(?is)<td[^>]*class="[^"]*seeds[^"]*"[^>]*>\s*([0-9,]+)`)
	x1337LeechRe  = regexp.MustCompile(`(?is)<td[^>]*class="[^"]*leeches[^"]*"[^>]*>\s*([0-9,]+)`)
	x1337SizeRe   = regexp.MustCompile(`(?is)<td[^>]*class="[^"]*size[^"]*"[^>]*>\s*([0-9.,]+\s*[KMGT]i?B)`)
	x1337MagnetRe = regexp.MustCompile(`magnet:\?xt=urn:btih:[a-zA-Z0-9]{32,40}[^\s"'<>]*`)
	x1337TagRe    = regexp.MustCompile(`<[^>]+>`)
	btihRe        = regexp.MustCompile(`(?i)btih:([a-z0-9]{40})`)
)

// X1337 scrapes 1337x listing and detail pages. Listing rows carry name,
// seeders, leechers and size; the magnet requires one detail fetch per
// candidate, so only the top few rows are resolved.
type X1337 struct {
	Mirrors []string
	Client  *http.Client

	// MaxMagnetFetch caps detail page fetches per query. Zero means 6.
	MaxMagnetFetch int
}

type x1337Row struct {
	path     string
	name     string
	seeders  int
	leechers int
	size     string
}

func (x *X1337) Name() string { return "1337x" }

func (x *X1337) Search(ctx context.Context, query string) ([]types.Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	maxFetch := x.MaxMagnetFetch
	if maxFetch <= 0 {
		maxFetch = 6
	}

	var lastErr error
	for _, mirror := range x.Mirrors {
		page, err := x.fetch(ctx, mirror+"/sort-search/"+url.PathEscape(query)+"/seeders/desc/1/")
		if err != nil {
			lastErr = err
			continue
		}
		rows := parseX1337Rows(page)
		if len(rows) == 0 {
			continue
		}
		if len(rows) > maxFetch {
			rows = rows[:maxFetch]
		}

		var out []types.Candidate
		for _, row := range rows {
			detail, err := x.fetch(ctx, mirror+row.path)
			if err != nil {
				continue
			}
			magnet := strings.TrimSpace(html.UnescapeString(x1337MagnetRe.FindString(detail)))
			if magnet == "" {
				continue
			}
			var ih string
			if m := btihRe.FindStringSubmatch(magnet); m != nil {
				ih = strings.ToLower(m[1])
			}
			out = append(out, types.Candidate{
				Name:     row.name,
				InfoHash: ih,
				Magnet:   magnet,
				Seeders:  row.seeders,
				Leechers: row.leechers,
				Size:     row.size,
				Source:   "1337x",
			})
		}
		if len(out) > 0 {
			return out, nil
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no listing rows on any mirror")
	}
	return nil, lastErr
}

func (x *X1337) fetch(ctx context.Context, u string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", x1337UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	client := x.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d from %s", resp.StatusCode, u)
	}
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func parseX1337Rows(page string) []x1337Row {
	var out []x1337Row
	seen := make(map[string]struct{})
	for _, m := range x1337RowRe.FindAllStringSubmatch(page, -1) {
		row := m[1]
		nm := x1337NameRe.FindStringSubmatch(row)
		if nm == nil {
			continue
		}
		path := strings.TrimSpace(nm[1])
		name := cleanHTMLText(nm[3])
		if path == "" || name == "" {
			continue
		}
		if _, dup := seen[path]; dup {
			continue
		}
		seen[path] = struct{}{}
		out = append(out, x1337Row{
			path:     path,
			name:     name,
			seeders:  firstInt(row, x1337SeedsRe),
			leechers: firstInt(row, x1337LeechRe),
			size:     firstText(row, x1337SizeRe),
		})
	}
	return out
}

func firstInt(s string, re *regexp.Regexp) int {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(m[1]), ",", ""))
	if err != nil {
		return 0
	}
	return n
}

func firstText(s string, re *regexp.Regexp) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func cleanHTMLText(s string) string {
	s = x1337TagRe.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}
