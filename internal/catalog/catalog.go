// Package catalog is the thin client for the GameMonetize feed. Every fetch
// failure collapses to an empty slice so the refresh cycle and the read
// fallback paths can keep going without error plumbing.
package catalog

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	constants "github.com/kingBirds/games-website/internal/constants"
	models "github.com/kingBirds/games-website/internal/models"
	util "github.com/kingBirds/games-website/internal/util"
	"github.com/samber/lo"
)

const DefaultBaseURL = "https://rss.gamemonetize.com/rssfeed.php"

// apiGame is the raw feed entry. Everything arrives as strings, including
// width and height.
type apiGame struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Instructions string `json:"instructions"`
	URL          string `json:"url"`
	Category     string `json:"category"`
	Tags         string `json:"tags"`
	Thumb        string `json:"thumb"`
	Width        string `json:"width"`
	Height       string `json:"height"`
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		BaseURL: DefaultBaseURL,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// FetchSlice requests one category/popularity slice from the feed. The amount
// is clamped to the upstream hard cap. On any failure it logs and returns an
// empty slice; callers treat "no results" and "fetch failed" identically.
func (c *Client) FetchSlice(ctx context.Context, category string, amount int, popularity string) []models.GameRecord {
	if amount <= 0 {
		amount = constants.DefaultQueryLimit
	}
	if amount > constants.MaxGamesPerSlice {
		amount = constants.MaxGamesPerSlice
	}

	params := url.Values{}
	params.Set("format", "json")
	params.Set("category", category)
	params.Set("type", "html5")
	params.Set("popularity", popularity)
	params.Set("company", "All")
	params.Set("amount", strconv.Itoa(amount))
	feedURL := c.BaseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		util.LogWarn("Failed to build catalog request for %s (%s): %v", category, popularity, err)
		return []models.GameRecord{}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "GameWebsite/1.0")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		util.LogWarn("Catalog fetch failed for %s (%s): %v", category, popularity, err)
		return []models.GameRecord{}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		util.LogWarn("Catalog fetch for %s (%s) returned status %d", category, popularity, resp.StatusCode)
		return []models.GameRecord{}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		util.LogWarn("Failed to read catalog response for %s (%s): %v", category, popularity, err)
		return []models.GameRecord{}
	}

	var raw []apiGame
	if err := json.Unmarshal(body, &raw); err != nil {
		util.LogWarn("Invalid catalog JSON for %s (%s): %v", category, popularity, err)
		return []models.GameRecord{}
	}

	games := lo.Map(raw, func(g apiGame, _ int) models.GameRecord {
		return convertAPIGame(g)
	})
	util.LogInfo("Fetched %d games for %s (%s)", len(games), category, popularity)
	return games
}

// FetchByID scans the large "All" slices in decreasing order of usefulness
// until the game turns up. Individual lookups are not worth a full refresh.
func (c *Client) FetchByID(ctx context.Context, id string) *models.GameRecord {
	orders := []string{constants.PopularityNewest, constants.PopularityMostPlayed, constants.PopularityHotGames}
	for _, popularity := range orders {
		games := c.FetchSlice(ctx, constants.CategoryAll, constants.MaxGamesPerSlice, popularity)
		if game, found := lo.Find(games, func(g models.GameRecord) bool { return g.ID == id }); found {
			return &game
		}
	}
	return nil
}

func convertAPIGame(g apiGame) models.GameRecord {
	tags := lo.FilterMap(strings.Split(g.Tags, ","), func(tag string, _ int) (string, bool) {
		tag = strings.ToLower(strings.TrimSpace(tag))
		return tag, tag != ""
	})

	return models.GameRecord{
		ID:           g.ID,
		Title:        g.Title,
		Description:  g.Description,
		Instructions: g.Instructions,
		Thumbnail:    g.Thumb,
		GameURL:      g.URL,
		Categories:   []string{strings.ToLower(g.Category)},
		Tags:         tags,
		Width:        atoiOrDefault(g.Width, constants.DefaultGameWidth),
		Height:       atoiOrDefault(g.Height, constants.DefaultGameHeight),
	}
}

func atoiOrDefault(val string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
