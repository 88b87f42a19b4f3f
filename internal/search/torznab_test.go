package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const torznabFeedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:torznab="http://torznab.com/schemas/2015/feed">
  <channel>
    <item>
      <title>Sintel.2010.1080p.BluRay</title>
      <link>magnet:?xt=urn:btih:08ada5a7a6183aae1e09d831df6748d566095a10&amp;dn=Sintel</link>
      <size>1288490188</size>
      <seeders>75</seeders>
      <peers>12</peers>
    </item>
    <item>
      <title>Not.A.Magnet</title>
      <link>https://indexer.example/download/123.torrent</link>
      <size>100</size>
      <seeders>1</seeders>
      <peers>0</peers>
    </item>
    <item>
      <title>Sintel.2010.720p.WEB</title>
      <link>https://indexer.example/download/456.torrent</link>
      <size>734003200</size>
      <torznab:attr name="magneturl" value="magnet:?xt=urn:btih:aabbccddeeff00112233445566778899aabbccdd&amp;dn=Sintel720" />
      <torznab:attr name="seeders" value="44" />
      <torznab:attr name="peers" value="9" />
      <torznab:attr name="infohash" value="AABBCCDDEEFF00112233445566778899AABBCCDD" />
    </item>
  </channel>
</rss>`

func TestTorznabSearch(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		if !strings.HasSuffix(r.URL.Path, "/torznab/api") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(torznabFeedXML))
	}))
	defer srv.Close()

	c := &Torznab{BaseURL: srv.URL, APIKey: "secret", Client: srv.Client()}
	got, err := c.Search(context.Background(), "sintel")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !strings.Contains(gotQuery, "apikey=secret") || !strings.Contains(gotQuery, "t=search") {
		t.Fatalf("query: %s", gotQuery)
	}
	// The .torrent-only item with no magneturl attr is skipped.
	if len(got) != 2 {
		t.Fatalf("got %d candidates", len(got))
	}
	c0 := got[0]
	if c0.InfoHash != "08ada5a7a6183aae1e09d831df6748d566095a10" {
		t.Errorf("hash: %q", c0.InfoHash)
	}
	if c0.Size != "1.20 GB" {
		t.Errorf("size label: %q", c0.Size)
	}
	if c0.Seeders != 75 || c0.Leechers != 12 || c0.Source != "Torznab" {
		t.Errorf("fields: %+v", c0)
	}
	// The third item carries everything in torznab:attr pairs.
	c1 := got[1]
	if c1.InfoHash != "aabbccddeeff00112233445566778899aabbccdd" {
		t.Errorf("attr hash: %q", c1.InfoHash)
	}
	if !strings.HasPrefix(c1.Magnet, "magnet:?xt=urn:btih:aabbccddeeff") {
		t.Errorf("attr magnet: %q", c1.Magnet)
	}
	if c1.Seeders != 44 || c1.Leechers != 9 {
		t.Errorf("attr fields: %+v", c1)
	}
}

func TestTorznabEndpointExpansion(t *testing.T) {
	c := &Torznab{BaseURL: "http://prowlarr:9696"}
	if got := c.endpoint(); got != "http://prowlarr:9696/api/v2.0/indexers/all/results/torznab/api" {
		t.Fatalf("expanded endpoint: %q", got)
	}
	full := "http://jackett:9117/api/v2.0/indexers/all/results/torznab/api"
	c = &Torznab{BaseURL: full}
	if got := c.endpoint(); got != full {
		t.Fatalf("full endpoint rewritten: %q", got)
	}
}

func TestHumanSize(t *testing.T) {
	if got := humanSize(0); got != "" {
		t.Errorf("zero: %q", got)
	}
	if got := humanSize(700 << 20); got != "700.0 MB" {
		t.Errorf("mb: %q", got)
	}
	if got := humanSize(3 << 30); got != "3.00 GB" {
		t.Errorf("gb: %q", got)
	}
}
