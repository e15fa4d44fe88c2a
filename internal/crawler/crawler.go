package crawler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"site-assistant/internal/logger"
	"site-assistant/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
	"github.com/chromedp/chromedp"
	colly "github.com/gocolly/colly/v2"
	"golang.org/x/net/html/charset"
)

var httpTransport = &http.Transport{
	DisableCompression: false,
}

// Config holds the settings for one crawl run.
type Config struct {
	StartURL       string
	MaxPages       int
	AllowedDomains []string
	Delay          time.Duration
	Timeout        time.Duration

	// Optional JS rendering for the initial page.
	RenderJS      bool
	RenderTimeout time.Duration
}

// normalizeURL converts a URL to canonical form for duplicate detection.
func normalizeURL(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	parsed.Fragment = ""

	path := parsed.Path
	if path == "" {
		path = "/"
	} else if path != "/" {
		path = strings.TrimSuffix(path, "/")
		if path == "" {
			path = "/"
		}
	}
	parsed.Path = path

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)

	if parsed.Port() == "80" && parsed.Scheme == "http" {
		host, _, _ := strings.Cut(parsed.Host, ":")
		parsed.Host = host
	}
	if parsed.Port() == "443" && parsed.Scheme == "https" {
		host, _, _ := strings.Cut(parsed.Host, ":")
		parsed.Host = host
	}

	return parsed.String(), nil
}

// CrawlSite walks a site starting from cfg.StartURL and returns one
// document per page with usable text content.
func CrawlSite(cfg Config) ([]models.Document, error) {
	parsedURL, err := url.Parse(cfg.StartURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme == "" {
		parsedURL.Scheme = "https"
		cfg.StartURL = parsedURL.String()
	}

	startURL, err := normalizeURL(cfg.StartURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL format: %w", err)
	}

	allowedDomains := cfg.AllowedDomains
	if len(allowedDomains) == 0 {
		hostname := parsedURL.Hostname()
		if hostname != "" {
			clean := strings.TrimPrefix(strings.ToLower(hostname), "www.")
			allowedDomains = []string{clean, "www." + clean}
		}
	}

	c := colly.NewCollector(
		colly.Async(true),
		colly.MaxDepth(3),
		colly.AllowedDomains(allowedDomains...),
	)
	c.WithTransport(httpTransport)

	if cfg.Timeout > 0 {
		c.SetRequestTimeout(cfg.Timeout)
	} else {
		c.SetRequestTimeout(60 * time.Second)
	}

	c.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

	delay := cfg.Delay
	if delay <= 0 {
		delay = 2 * time.Second
	}
	c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       delay,
		RandomDelay: delay / 2,
	})

	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 100
	}

	var (
		docsMu sync.Mutex
		docs   []models.Document
	)
	processed := sync.Map{}
	queued := sync.Map{}
	var startErr error
	var startErrMu sync.Mutex

	// Browser-like headers avoid bot-protection 403s.
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
		r.Headers.Set("Accept-Encoding", "gzip, deflate, br")
		r.Headers.Set("Connection", "keep-alive")
		r.Headers.Set("Upgrade-Insecure-Requests", "1")
		r.Headers.Set("Sec-Fetch-Dest", "document")
		r.Headers.Set("Sec-Fetch-Mode", "navigate")
		r.Headers.Set("Sec-Fetch-Site", "none")

		if u, err := url.Parse(r.URL.String()); err == nil {
			r.Headers.Set("Referer", fmt.Sprintf("%s://%s/", u.Scheme, u.Host))
		}
	})

	c.OnResponse(func(r *colly.Response) {
		contentType := r.Headers.Get("Content-Type")
		if contentType != "" && !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "application/xhtml+xml") {
			return
		}

		// Go's transport handles gzip transparently; brotli needs a manual pass.
		var bodyReader io.Reader = bytes.NewReader(r.Body)
		if strings.Contains(r.Headers.Get("Content-Encoding"), "br") {
			if decompressed, err := io.ReadAll(brotli.NewReader(bodyReader)); err == nil {
				r.Body = decompressed
				bodyReader = bytes.NewReader(decompressed)
			}
		}

		// Decode whatever charset the page declares into UTF-8.
		if len(r.Body) > 0 {
			if utf8Reader, err := charset.NewReader(bodyReader, contentType); err == nil {
				if decoded, readErr := io.ReadAll(utf8Reader); readErr == nil && len(decoded) > 0 {
					r.Body = decoded
				}
			}
		}
	})

	c.OnHTML("html", func(e *colly.HTMLElement) {
		docsMu.Lock()
		defer docsMu.Unlock()

		if len(docs) >= maxPages {
			return
		}

		pageURL, err := normalizeURL(e.Request.URL.String())
		if err != nil {
			return
		}
		if _, exists := processed.LoadOrStore(pageURL, true); exists {
			return
		}

		dom := e.DOM
		title := strings.TrimSpace(dom.Find("title").Text())
		text := CleanText(extractMainContent(dom))
		if len(strings.Fields(text)) < 10 {
			logger.Debug("skipping thin page", "url", pageURL)
			return
		}

		docs = append(docs, models.Document{
			URL:       pageURL,
			Title:     title,
			Text:      text,
			FetchedAt: time.Now().UTC(),
		})
		logger.Info("page crawled", "url", pageURL, "chars", len(text), "total_pages", len(docs))

		if len(docs) >= maxPages {
			return
		}

		linkCount := 0
		dom.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			if linkCount >= 25 || len(docs) >= maxPages {
				return
			}
			href, ok := s.Attr("href")
			if !ok || href == "" {
				return
			}
			hrefLower := strings.ToLower(href)
			if strings.HasPrefix(href, "#") ||
				strings.HasPrefix(hrefLower, "javascript:") ||
				strings.HasPrefix(hrefLower, "mailto:") ||
				strings.HasPrefix(hrefLower, "tel:") {
				return
			}

			absolute := e.Request.AbsoluteURL(href)
			if absolute == "" {
				return
			}
			normalized, err := normalizeURL(absolute)
			if err != nil {
				return
			}
			if _, exists := queued.LoadOrStore(normalized, true); exists {
				return
			}
			if _, exists := processed.Load(normalized); exists {
				return
			}
			if !isURLAllowed(normalized, allowedDomains) {
				return
			}
			linkCount++
			c.Visit(normalized)
		})
	})

	c.OnError(func(r *colly.Response, err error) {
		requestURL := r.Request.URL.String()
		normalized, _ := normalizeURL(requestURL)
		status := r.StatusCode

		if strings.Contains(err.Error(), "already visited") {
			return
		}

		logger.Warn("page fetch failed", "url", requestURL, "status", status, "error", err)

		if normalized != startURL {
			return
		}
		startErrMu.Lock()
		defer startErrMu.Unlock()
		if startErr != nil {
			return
		}
		switch {
		case status == 403:
			startErr = fmt.Errorf("access forbidden (403): the site blocked the crawler")
		case status == 429:
			startErr = fmt.Errorf("rate limited (429): too many requests")
		case status >= 500:
			startErr = fmt.Errorf("server error (%d) fetching start URL", status)
		case status != 0:
			startErr = fmt.Errorf("HTTP error (%d): %w", status, err)
		default:
			startErr = fmt.Errorf("failed to fetch start URL %s: %w", startURL, err)
		}
	})

	queued.Store(startURL, true)

	// Some sites only render their content client-side. Prerender the start
	// page with a headless browser when asked to.
	if cfg.RenderJS {
		renderTimeout := cfg.RenderTimeout
		if renderTimeout <= 0 {
			renderTimeout = 45 * time.Second
		}
		if html, renderErr := renderPageHTML(startURL, renderTimeout); renderErr == nil && html != "" {
			if doc, parseErr := goquery.NewDocumentFromReader(strings.NewReader(html)); parseErr == nil {
				title := strings.TrimSpace(doc.Find("title").Text())
				text := CleanText(extractMainContent(doc.Selection))
				if len(strings.Fields(text)) >= 10 {
					processed.Store(startURL, true)
					docsMu.Lock()
					docs = append(docs, models.Document{
						URL:       startURL,
						Title:     title,
						Text:      text,
						FetchedAt: time.Now().UTC(),
					})
					docsMu.Unlock()
				}
			}
		} else if renderErr != nil {
			logger.Warn("js render failed, falling back to static fetch", "url", startURL, "error", renderErr)
		}
	}

	logger.Info("starting crawl", "start_url", startURL, "max_pages", maxPages)
	if err := c.Visit(startURL); err != nil && !strings.Contains(err.Error(), "already visited") {
		return nil, fmt.Errorf("failed to start crawl: %w", err)
	}
	c.Wait()

	docsMu.Lock()
	defer docsMu.Unlock()
	if len(docs) == 0 {
		startErrMu.Lock()
		defer startErrMu.Unlock()
		if startErr != nil {
			return nil, startErr
		}
		return nil, fmt.Errorf("crawl of %s produced no usable pages", startURL)
	}

	logger.Info("crawl complete", "pages", len(docs))
	return docs, nil
}

// renderPageHTML loads the page in headless Chrome and returns the
// rendered DOM.
func renderPageHTML(pageURL string, timeout time.Duration) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	defer cancelAlloc()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	ctx, cancelTimeout := context.WithTimeout(ctx, timeout)
	defer cancelTimeout()

	var html string
	err := chromedp.Run(ctx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", err
	}
	return html, nil
}

func isURLAllowed(urlStr string, allowedDomains []string) bool {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}

	if len(allowedDomains) > 0 {
		hostname := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
		allowed := false
		for _, domain := range allowedDomains {
			domain = strings.TrimPrefix(strings.ToLower(domain), "www.")
			if hostname == domain || strings.HasSuffix(hostname, "."+domain) {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	excludedPatterns := []string{
		"/wp-json/", "/api/", "/ajax/",
		".pdf", ".jpg", ".jpeg", ".png", ".gif", ".svg", ".css", ".js", ".xml", ".zip",
		"/feed/", "/rss/", "/atom/",
		"/search?", "/?s=",
		"/wp-admin/", "/wp-includes/",
	}
	pathLower := strings.ToLower(parsed.Path)
	queryLower := strings.ToLower(parsed.RawQuery)
	for _, pattern := range excludedPatterns {
		if strings.Contains(pathLower, pattern) || strings.Contains(queryLower, pattern) {
			return false
		}
	}
	return true
}
