// Package crex scrapes live cricket state from crex.com.
//
// The selectors intentionally follow the site's markup one-to-one; when the
// site changes, this package is the only place that needs to move.
package crex

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	logx "crexbot/pkg/logx"
)

type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = "https://crex.com"
	}
	if strings.TrimSpace(c.UserAgent) == "" {
		c.UserAgent = "Mozilla/5.0"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return c
}

type Client struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

func New(cfg Config, log logx.Logger) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

func (c *Client) BaseURL() string { return c.cfg.BaseURL }

func (c *Client) get(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return doc, nil
}

// LiveMatches fetches all currently live matches from the landing page.
// Matches that have not started yet are filtered out.
func (c *Client) LiveMatches(ctx context.Context) ([]LiveMatch, error) {
	doc, err := c.get(ctx, c.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("live matches: %w", err)
	}
	matches := parseLiveMatches(doc, c.cfg.BaseURL)
	c.log.Debug("live matches parsed", logx.Int("count", len(matches)))
	return matches, nil
}

// MatchSummary fetches score, rates, match state and the full ball-event
// sequence for one match page.
func (c *Client) MatchSummary(ctx context.Context, url string) (*MatchSnapshot, error) {
	doc, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("match summary: %w", err)
	}
	return parseMatchSummary(doc), nil
}

// PlayerStats fetches current batting/bowling figures and the striker.
func (c *Client) PlayerStats(ctx context.Context, url string) (*PlayerStats, error) {
	doc, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("player stats: %w", err)
	}
	return parsePlayerStats(doc), nil
}

// MatchOdds fetches win probabilities, team odds and over projections.
func (c *Client) MatchOdds(ctx context.Context, url string) (*OddsSnapshot, error) {
	doc, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("match odds: %w", err)
	}
	return parseMatchOdds(doc), nil
}
