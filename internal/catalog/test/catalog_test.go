package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	catalog "github.com/kingBirds/games-website/internal/catalog"
)

const feedBody = `[
	{"id":"g1","title":"Dragon Flight","description":"Fly a dragon","instructions":"Tap to fly","url":"https://example.com/g1","category":"Action","tags":"Dragon, Flying ,Arcade","thumb":"https://example.com/g1.jpg","width":"960","height":"640"},
	{"id":"g2","title":"Blocky","description":"Stack blocks","instructions":"Click","url":"https://example.com/g2","category":"Puzzle","tags":"","thumb":"https://example.com/g2.jpg","width":"not-a-number","height":""}
]`

func testClient(handler http.HandlerFunc) (*catalog.Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	client := catalog.NewClient(2 * time.Second)
	client.BaseURL = srv.URL
	return client, srv
}

func TestFetchSliceConvertsEntries(t *testing.T) {
	client, srv := testClient(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(feedBody))
	})
	defer srv.Close()

	games := client.FetchSlice(context.Background(), "Action", 20, "newest")
	if len(games) != 2 {
		t.Fatalf("Expected 2 games, got %d", len(games))
	}

	g := games[0]
	if g.ID != "g1" || g.Title != "Dragon Flight" {
		t.Errorf("Identity fields not mapped: %+v", g)
	}
	if g.GameURL != "https://example.com/g1" || g.Thumbnail != "https://example.com/g1.jpg" {
		t.Errorf("URL fields not mapped: %+v", g)
	}
	if len(g.Categories) != 1 || g.Categories[0] != "action" {
		t.Errorf("Category should be lower-cased: %v", g.Categories)
	}
	if len(g.Tags) != 3 || g.Tags[0] != "dragon" || g.Tags[1] != "flying" || g.Tags[2] != "arcade" {
		t.Errorf("Tags should be split, trimmed, lower-cased: %v", g.Tags)
	}
	if g.Width != 960 || g.Height != 640 {
		t.Errorf("Numeric dimensions should be parsed: %dx%d", g.Width, g.Height)
	}

	g = games[1]
	if g.Width != 800 || g.Height != 600 {
		t.Errorf("Non-numeric dimensions should default to 800x600: %dx%d", g.Width, g.Height)
	}
	if len(g.Tags) != 0 {
		t.Errorf("Empty tag string should yield no tags: %v", g.Tags)
	}
}

func TestFetchSliceClampsAmount(t *testing.T) {
	var gotAmount string
	client, srv := testClient(func(w http.ResponseWriter, r *http.Request) {
		gotAmount = r.URL.Query().Get("amount")
		w.Write([]byte("[]"))
	})
	defer srv.Close()

	client.FetchSlice(context.Background(), "All", 500, "newest")
	if gotAmount != "100" {
		t.Errorf("Amount should be clamped to 100, got %s", gotAmount)
	}
}

func TestFetchSliceErrorsYieldEmptySlice(t *testing.T) {
	client, srv := testClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	defer srv.Close()

	if games := client.FetchSlice(context.Background(), "Action", 10, "newest"); len(games) != 0 {
		t.Errorf("Non-2xx should yield empty slice, got %d games", len(games))
	}

	badJSON, srv2 := testClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	})
	defer srv2.Close()

	if games := badJSON.FetchSlice(context.Background(), "Action", 10, "newest"); len(games) != 0 {
		t.Errorf("Malformed JSON should yield empty slice, got %d games", len(games))
	}

	unreachable := catalog.NewClient(200 * time.Millisecond)
	unreachable.BaseURL = "http://127.0.0.1:1"
	if games := unreachable.FetchSlice(context.Background(), "Action", 10, "newest"); len(games) != 0 {
		t.Errorf("Network failure should yield empty slice, got %d games", len(games))
	}
}

func TestFetchByIDScansPopularitySlices(t *testing.T) {
	requests := []string{}
	client, srv := testClient(func(w http.ResponseWriter, r *http.Request) {
		popularity := r.URL.Query().Get("popularity")
		requests = append(requests, popularity)
		if popularity == "mostplayed" {
			w.Write([]byte(`[{"id":"wanted","title":"Wanted Game","description":"","instructions":"","url":"u","category":"Action","tags":"a","thumb":"t","width":"800","height":"600"}]`))
			return
		}
		w.Write([]byte("[]"))
	})
	defer srv.Close()

	game := client.FetchByID(context.Background(), "wanted")
	if game == nil || game.ID != "wanted" {
		t.Fatalf("Expected to find game in mostplayed slice, got %+v", game)
	}
	if len(requests) != 2 || requests[0] != "newest" || requests[1] != "mostplayed" {
		t.Errorf("Expected newest then mostplayed scans, got %v", requests)
	}

	if game := client.FetchByID(context.Background(), "missing"); game != nil {
		t.Errorf("Unknown id should return nil, got %+v", game)
	}
}
