package wggesucht

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"rent-radar/config"
	"rent-radar/models"
	"rent-radar/utils"
)

const baseURL = "https://www.wg-gesucht.de"

// extractJS returns one object per offer card on a result page.
const extractJS = `
	(function() {
		var results = [];
		var ads = document.querySelectorAll('div.offer_list_item');
		for (var i = 0; i < ads.length; i++) {
			var ad = ads[i];
			var titleEl = ad.querySelector('h3.truncate_title');
			var rent = '', size = '';
			var bolds = ad.querySelectorAll('b');
			for (var j = 0; j < bolds.length; j++) {
				var t = (bolds[j].innerText || '').trim();
				if (!rent && t.indexOf('€') !== -1) rent = t;
				if (!size && t.indexOf('m²') !== -1) size = t;
			}
			results.push({
				id:    ad.getAttribute('data-id') || '',
				title: titleEl ? titleEl.innerText.trim() : 'Unknown',
				rent:  rent,
				size:  size
			});
		}
		return results;
	})()
`

type card struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Rent  string `json:"rent"`
	Size  string `json:"size"`
}

// Scraper collects room offers from WG-Gesucht result pages.
type Scraper struct {
	cfg    *config.Config
	logger *utils.Logger
	pool   *utils.WorkerPool
	seen   *utils.SeenSet
	retry  *utils.RetryConfig

	mu       sync.Mutex
	listings []*models.RawListing
}

// New creates a ready-to-use WG-Gesucht Scraper.
func New(cfg *config.Config, logger *utils.Logger) *Scraper {
	return &Scraper{
		cfg:    cfg,
		logger: logger,
		pool:   utils.NewWorkerPool(cfg.MaxConcurrency, cfg.RateLimitMs),
		seen:   utils.NewSeenSet(),
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
	}
}

// PageURL returns the result page URL for a city; page 0 is the landing page.
func PageURL(city config.City, page int) string {
	u := fmt.Sprintf("%s/wg-zimmer-in-%s.%d.0.1.0.html", baseURL, city.Name, city.ID)
	if page == 0 {
		return u
	}
	return fmt.Sprintf("%s?offer_filter=1&city_id=%d&noDeact=1&categories%%5B0%%5D=0&pagination=1&pu=%d",
		u, city.ID, page)
}

// Fetch scrapes every configured city concurrently and returns the unique
// listings found.
func (s *Scraper) Fetch(ctx context.Context) ([]*models.RawListing, error) {
	s.logger.Info("[wggesucht] Starting scrape of %d cities, up to %d pages each",
		len(s.cfg.LiveCities), s.cfg.PagesPerCity)

	chromeBin := s.cfg.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	s.logger.Info("[wggesucht] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	// start the browser once so city tabs share it
	if err := chromedp.Run(browserCtx); err != nil {
		return nil, fmt.Errorf("wggesucht: start browser: %w", err)
	}

	for _, city := range s.cfg.LiveCities {
		city := city
		s.pool.Submit(func() {
			n := s.scrapeCity(browserCtx, city)
			s.logger.Info("[wggesucht] %s done: %d listings", city.Name, n)
		})
	}
	s.pool.Wait()

	if err := ctx.Err(); err != nil {
		return s.listings, fmt.Errorf("wggesucht: %w", err)
	}
	if len(s.listings) == 0 {
		return nil, errors.New("wggesucht: no listings collected")
	}

	s.logger.Info("[wggesucht] Scrape complete, %d unique listings", len(s.listings))
	return s.listings, nil
}

// scrapeCity walks result pages until one is empty or fails.
func (s *Scraper) scrapeCity(browserCtx context.Context, city config.City) int {
	collected := 0
	for page := 0; page < s.cfg.PagesPerCity; page++ {
		url := PageURL(city, page)
		s.logger.Info("[wggesucht] Scanning %s page %d", city.Name, page)

		cards, err := s.scrapePage(browserCtx, url, fmt.Sprintf("%s-page-%d", city.Name, page))
		if err != nil {
			s.logger.Warn("[wggesucht] %s page %d failed, moving on: %v", city.Name, page, err)
			break
		}
		if len(cards) == 0 {
			s.logger.Info("[wggesucht] No ads on %s page %d", city.Name, page)
			break
		}

		added := s.collect(city, cards)
		collected += added
		s.logger.Debug("[wggesucht] %s page %d: %d cards, %d new", city.Name, page, len(cards), added)

		if !sleepCtx(browserCtx, politeDelay()) {
			break
		}
	}
	return collected
}

func (s *Scraper) scrapePage(browserCtx context.Context, url, op string) ([]card, error) {
	var cards []card
	err := s.retry.Do(browserCtx, op, func() error {
		ctx, cancel := chromedp.NewContext(browserCtx)
		defer cancel()

		ctx, cancelTimeout := context.WithTimeout(ctx, 60*time.Second)
		defer cancelTimeout()

		cards = nil
		if err := chromedp.Run(ctx,
			chromedp.Navigate(url),
			chromedp.WaitReady("body", chromedp.ByQuery),
			chromedp.Sleep(2*time.Second),
			chromedp.Evaluate(extractJS, &cards),
		); err != nil {
			return fmt.Errorf("chromedp page scrape: %w", err)
		}
		return nil
	})
	return cards, err
}

// collect keeps cards that carry both rent and size and an unseen id.
func (s *Scraper) collect(city config.City, cards []card) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, c := range cards {
		if c.Rent == "" || c.Size == "" {
			continue
		}
		if c.ID != "" && !s.seen.Add(c.ID) {
			continue
		}
		s.listings = append(s.listings, &models.RawListing{
			ID:      c.ID,
			City:    city.Name,
			Title:   strings.TrimSpace(c.Title),
			RentRaw: c.Rent,
			SizeRaw: c.Size,
		})
		added++
	}
	return added
}

func politeDelay() time.Duration {
	return 2*time.Second + time.Duration(rand.Int63n(int64(2*time.Second)))
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// findChromeBinary locates a Chrome/Chromium binary.
func findChromeBinary() string {
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
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
