package services

import (
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// ScraperService fetches article pages and strips them down to readable
// text. It is deliberately dumb: no headless browser, no readability
// heuristics beyond dropping script/style/nav blocks.
type ScraperService struct {
	httpClient *http.Client
}

func NewScraperService() *ScraperService {
	return &ScraperService{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

const maxArticleBytes = 10 * 1024 * 1024 // 10MB page cap

var (
	scriptPattern  = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	stylePattern   = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptBlock  = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	chromePattern  = regexp.MustCompile(`(?is)<(nav|header|footer|aside|form)[^>]*>.*?</(nav|header|footer|aside|form)>`)
	commentPattern = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockEndTag    = regexp.MustCompile(`(?i)</(p|div|h[1-6]|li|tr|blockquote|section|article)>`)
	brTag          = regexp.MustCompile(`(?i)<br\s*/?>`)
	titlePattern   = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
)

// FetchArticle downloads the page at url and returns its title and body
// text. Non-HTML responses are rejected.
func (s *ScraperService) FetchArticle(url string) (title, text string, err error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return "", "", fmt.Errorf("invalid article URL: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch article: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", fmt.Errorf("article fetch returned status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "application/xhtml") {
		return "", "", fmt.Errorf("unsupported content type for article: %s", contentType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxArticleBytes))
	if err != nil {
		return "", "", fmt.Errorf("failed to read article body: %w", err)
	}

	page := string(body)

	if m := titlePattern.FindStringSubmatch(page); len(m) > 1 {
		title = strings.TrimSpace(html.UnescapeString(m[1]))
	}

	text = stripArticleHTML(page)
	if text == "" {
		return "", "", fmt.Errorf("no readable text found at %s", url)
	}

	return title, text, nil
}

func stripArticleHTML(page string) string {
	s := commentPattern.ReplaceAllString(page, "")
	s = scriptPattern.ReplaceAllString(s, "")
	s = stylePattern.ReplaceAllString(s, "")
	s = noscriptBlock.ReplaceAllString(s, "")
	s = chromePattern.ReplaceAllString(s, "")

	// Block boundaries become newlines before the tags go away
	s = blockEndTag.ReplaceAllString(s, "\n")
	s = brTag.ReplaceAllString(s, "\n")
	s = xmlTagPattern.ReplaceAllString(s, " ")

	s = html.UnescapeString(s)

	return normalizeExtractedText(s)
}
