// Package scraper reads listings from a rendered search page with a headless browser.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"listing-search/models"
	"listing-search/utils"
)

// LocationPlaceholder in a start URL is replaced with the escaped query location.
const LocationPlaceholder = "{location}"

// ErrNoStartURL is returned when the source is used without a start URL.
var ErrNoStartURL = errors.New("browser source: start URL not configured")

// Config holds the browser source settings.
type Config struct {
	StartURL        string
	ChromeBin       string
	MaxPages        int
	ListingsPerPage int
	MaxConcurrency  int
	RateLimitMs     int
	MaxRetries      int
}

// BrowserSource scrapes listing cards from a search results page, follows
// pagination, and visits detail pages for descriptions.
type BrowserSource struct {
	cfg    Config
	logger *utils.Logger
	retry  *utils.RetryConfig
}

// card is what the page script extracts from one listing card.
type card struct {
	Title    string `json:"title"`
	Price    string `json:"price"`
	Location string `json:"location"`
	Rating   string `json:"rating"`
	Beds     string `json:"beds"`
	Image    string `json:"image"`
	URL      string `json:"url"`
}

// New creates a ready-to-use BrowserSource.
func New(cfg Config, logger *utils.Logger) *BrowserSource {
	if cfg.MaxPages < 1 {
		cfg.MaxPages = 1
	}
	if cfg.ListingsPerPage < 1 {
		cfg.ListingsPerPage = 20
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &BrowserSource{
		cfg:    cfg,
		logger: logger,
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
	}
}

func (s *BrowserSource) Name() string { return "browser" }

func (s *BrowserSource) Shape() models.SourceShape { return models.ShapeLegacy }

// FetchListings drives pagination and detail-page enrichment and returns
// legacy-shape records.
func (s *BrowserSource) FetchListings(ctx context.Context, q models.Query) ([]models.RawRecord, error) {
	startURL, err := SearchURL(s.cfg.StartURL, q.Location)
	if err != nil {
		return nil, err
	}

	chromeBin := findChromeBinary(s.cfg.ChromeBin)
	s.logger.Info("[browser] Starting scrape of %s (binary: %s)", startURL, chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...any) {}))
	defer cancelBrowser()

	limit := q.Limit
	seen := utils.NewKeySet()
	visited := utils.NewKeySet()
	var records []models.RawRecord
	var urls []string

	pageURL := startURL
	for page := 1; page <= s.cfg.MaxPages; page++ {
		visited.Add(pageURL)
		cards, nextURL, err := s.scrapePage(browserCtx, pageURL, page)
		if err != nil {
			if len(records) == 0 {
				return nil, fmt.Errorf("browser source: page %d: %w", page, err)
			}
			s.logger.Warn("[browser] Page %d failed, keeping %d records: %v", page, len(records), err)
			break
		}

		for _, c := range cards {
			rec, ok := cardRecord(c)
			if !ok || !seen.Add(c.URL) {
				continue
			}
			records = append(records, rec)
			urls = append(urls, c.URL)
		}
		s.logger.Info("[browser] Page %d done, %d records so far", page, len(records))

		if !followNext(visited, nextURL) || (limit > 0 && len(records) >= limit) {
			break
		}
		pageURL = nextURL

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(s.cfg.RateLimitMs) * time.Millisecond):
		}
	}

	if limit > 0 && len(records) > limit {
		records, urls = records[:limit], urls[:limit]
	}

	s.enrich(browserCtx, records, urls)
	s.logger.Info("[browser] Scrape complete, %d records from %d pages", len(records), visited.Size())
	return records, nil
}

// followNext reports whether pagination should move on to next. A link back
// to a page already visited ends the walk.
func followNext(visited *utils.KeySet, next string) bool {
	return next != "" && !visited.Contains(next)
}

// scrapePage loads one results page and extracts its cards and next-page link.
func (s *BrowserSource) scrapePage(browserCtx context.Context, pageURL string, pageNum int) ([]card, string, error) {
	var cards []card
	var nextURL string

	err := s.retry.DoContext(browserCtx, fmt.Sprintf("scrape-page-%d", pageNum), func() error {
		ctx, cancel := chromedp.NewContext(browserCtx)
		defer cancel()

		ctx, cancelTimeout := context.WithTimeout(ctx, 90*time.Second)
		defer cancelTimeout()

		return chromedp.Run(ctx,
			chromedp.Navigate(pageURL),
			chromedp.Sleep(4*time.Second),
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(2*time.Second),
			chromedp.Evaluate(cardScript(s.cfg.ListingsPerPage), &cards),
			chromedp.Evaluate(nextPageScript, &nextURL),
		)
	})
	if err != nil {
		return nil, "", err
	}

	s.logger.Debug("[browser] Page %d found %d cards", pageNum, len(cards))
	return cards, nextURL, nil
}

// enrich fills in descriptions from detail pages. records[i] belongs to urls[i];
// each job writes only its own record.
func (s *BrowserSource) enrich(browserCtx context.Context, records []models.RawRecord, urls []string) {
	pool := utils.NewWorkerPool(s.cfg.MaxConcurrency, s.cfg.RateLimitMs)
	for i := range records {
		rec, detailURL := records[i], urls[i]
		pool.Submit(func() {
			desc, err := s.scrapeDescription(browserCtx, detailURL)
			if err != nil {
				s.logger.Warn("[browser] Detail page failed for %s: %v", detailURL, err)
				return
			}
			if desc != "" {
				rec["description"] = desc
			}
		})
	}
	pool.Wait()
}

func (s *BrowserSource) scrapeDescription(browserCtx context.Context, detailURL string) (string, error) {
	var desc string
	err := s.retry.DoContext(browserCtx, "detail-page", func() error {
		ctx, cancel := chromedp.NewContext(browserCtx)
		defer cancel()

		ctx, cancelTimeout := context.WithTimeout(ctx, 60*time.Second)
		defer cancelTimeout()

		return chromedp.Run(ctx,
			chromedp.Navigate(detailURL),
			chromedp.Sleep(3*time.Second),
			chromedp.Evaluate(descriptionScript, &desc),
		)
	})
	return strings.TrimSpace(desc), err
}

// SearchURL substitutes location into the start URL template. A template
// without the placeholder gets the location as a "location" query parameter.
func SearchURL(template, location string) (string, error) {
	if strings.TrimSpace(template) == "" {
		return "", ErrNoStartURL
	}
	location = strings.TrimSpace(location)
	if strings.Contains(template, LocationPlaceholder) {
		return strings.ReplaceAll(template, LocationPlaceholder, url.PathEscape(location)), nil
	}

	u, err := url.Parse(template)
	if err != nil {
		return "", fmt.Errorf("browser source: parse start URL: %w", err)
	}
	if location != "" {
		params := u.Query()
		params.Set("location", location)
		u.RawQuery = params.Encode()
	}
	return u.String(), nil
}

// cardRecord maps a scraped card onto a legacy-shape record. Cards without a
// usable detail URL are skipped.
func cardRecord(c card) (models.RawRecord, bool) {
	id := ListingIDFromURL(c.URL)
	if id == "" {
		return nil, false
	}

	rec := models.RawRecord{
		"id":       id,
		"title":    clean(c.Title),
		"price":    clean(c.Price),
		"location": clean(c.Location),
		"url":      c.URL,
	}
	if city, state, ok := strings.Cut(clean(c.Location), ","); ok {
		rec["city"] = strings.TrimSpace(city)
		rec["state"] = strings.TrimSpace(state)
	} else if loc := clean(c.Location); loc != "" {
		rec["city"] = loc
	}
	if r := clean(c.Rating); r != "" {
		rec["rating"] = r
	}
	if b := clean(c.Beds); b != "" {
		rec["beds"] = b
	}
	if img := strings.TrimSpace(c.Image); img != "" {
		rec["image"] = img
	}
	return rec, true
}

// clean drops the "N/A" markers the page script uses for missing text.
func clean(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "N/A") {
		return ""
	}
	return s
}

// ListingIDFromURL derives a stable listing id from a detail page URL: the
// segment after "rooms", "listing(s)" or "property/properties", or else the
// last path segment.
func ListingIDFromURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Path == "" {
		return ""
	}

	var segments []string
	for _, seg := range strings.Split(u.Path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	if len(segments) == 0 {
		return ""
	}
	for i, seg := range segments[:len(segments)-1] {
		switch strings.ToLower(seg) {
		case "rooms", "listing", "listings", "property", "properties":
			return segments[i+1]
		}
	}
	return segments[len(segments)-1]
}

// findChromeBinary locates a Chrome/Chromium binary, preferring configured.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

func cardScript(limit int) string {
	return `
		(function() {
			var limit = ` + strconv.Itoa(limit) + `;
			var selectors = [
				'[data-testid="card-container"]',
				'[data-testid="listing-card"]',
				'[itemprop="itemListElement"]',
				'article'
			];
			var cards = [];
			for (var si = 0; si < selectors.length; si++) {
				cards = document.querySelectorAll(selectors[si]);
				if (cards.length > 0) break;
			}

			function text(card, sels) {
				for (var i = 0; i < sels.length; i++) {
					var el = card.querySelector(sels[i]);
					if (el && el.innerText) return el.innerText.trim();
				}
				return '';
			}

			var results = [];
			for (var i = 0; i < cards.length && results.length < limit; i++) {
				var card = cards[i];
				var link = card.querySelector('a[href]');
				if (!link) continue;

				var price = text(card, ['[data-testid="price"]', '[class*="price"]']);
				var priceMatch = price.match(/(\$|€|£)\s*[\d,]+/);
				var rating = text(card, ['[aria-label*="rating"]', '[class*="rating"]']);
				var ratingMatch = rating.match(/(\d\.\d+)/);
				var img = card.querySelector('img');

				results.push({
					title:    text(card, ['[data-testid="listing-card-title"]', 'h2', 'h3']) || 'N/A',
					price:    priceMatch ? priceMatch[0] : (price || 'N/A'),
					location: text(card, ['[data-testid="listing-card-subtitle"]', 'address', '[class*="location"]']) || 'N/A',
					rating:   ratingMatch ? ratingMatch[1] : '',
					beds:     text(card, ['[data-testid="beds"]', '[class*="bed"]']),
					image:    img ? (img.currentSrc || img.src || '') : '',
					url:      link.href
				});
			}
			return results;
		})()
	`
}

const nextPageScript = `
	(function() {
		var candidates = [
			document.querySelector('a[aria-label="Next"]'),
			document.querySelector('[data-testid="pagination-next-button"]'),
			document.querySelector('a[rel="next"]')
		];
		for (var i = 0; i < candidates.length; i++) {
			if (candidates[i] && candidates[i].href) return candidates[i].href;
		}
		return '';
	})()
`

const descriptionScript = `
	(function() {
		var sels = ['[data-section-id="DESCRIPTION_DEFAULT"] span', '[data-testid="description"]', 'main p'];
		for (var i = 0; i < sels.length; i++) {
			var el = document.querySelector(sels[i]);
			if (el && el.innerText.length > 30) return el.innerText.trim().substring(0, 500);
		}
		return '';
	})()
`
