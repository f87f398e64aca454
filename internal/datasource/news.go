package datasource

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/seenimoa/investa/internal/infra"
	"github.com/seenimoa/investa/pkg/models"
)

// DefaultNewsFeedURL searches Google News RSS. %s receives the escaped query.
const DefaultNewsFeedURL = "https://news.google.com/rss/search?q=%s&hl=en-US&gl=US&ceid=US:en"

// RSSNews implements NewsSearch over an RSS search endpoint.
type RSSNews struct {
	feedURL string
	limiter *infra.RateLimiter
	parser  *gofeed.Parser
}

// NewsOption configures an RSSNews source.
type NewsOption func(*RSSNews)

// WithNewsHTTPClient sets the client used to download feeds.
func WithNewsHTTPClient(c *http.Client) NewsOption {
	return func(n *RSSNews) { n.parser.Client = c }
}

// WithNewsRateLimiter throttles feed downloads.
func WithNewsRateLimiter(rl *infra.RateLimiter) NewsOption {
	return func(n *RSSNews) { n.limiter = rl }
}

// NewRSSNews creates a news search source. feedURL must contain one %s verb;
// an empty feedURL uses DefaultNewsFeedURL.
func NewRSSNews(feedURL string, opts ...NewsOption) *RSSNews {
	if feedURL == "" {
		feedURL = DefaultNewsFeedURL
	}
	parser := gofeed.NewParser()
	parser.Client = infra.NewHTTPClient(30 * time.Second)

	n := &RSSNews{
		feedURL: feedURL,
		limiter: infra.NewRateLimiter(2, 1),
		parser:  parser,
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Name returns the data source name.
func (n *RSSNews) Name() string { return "RSS News Search" }

// Search returns the first limit feed items for keyword, in feed order.
func (n *RSSNews) Search(ctx context.Context, keyword string, limit int) ([]models.NewsItem, error) {
	if limit <= 0 || limit > models.MaxNewsItems {
		limit = models.MaxNewsItems
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf(n.feedURL, url.QueryEscape(keyword))
	feed, err := n.parser.ParseURLWithContext(endpoint, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse RSS %s: %w", keyword, err)
	}

	items := make([]models.NewsItem, 0, limit)
	for _, it := range feed.Items {
		if len(items) == limit {
			break
		}
		item := toNewsItem(it)
		if item.Empty() {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// toNewsItem maps a feed entry. Search feeds append " - Source" to titles;
// it is split off when the entry carries no author.
func toNewsItem(it *gofeed.Item) models.NewsItem {
	item := models.NewsItem{
		Title: strings.TrimSpace(it.Title),
		URL:   it.Link,
		Body:  cleanHTML(it.Description),
	}
	switch {
	case it.PublishedParsed != nil:
		item.Date = it.PublishedParsed.UTC().Format(time.RFC3339)
	case it.Published != "":
		item.Date = it.Published
	}

	if it.Author != nil && it.Author.Name != "" {
		item.Source = it.Author.Name
	} else if i := strings.LastIndex(item.Title, " - "); i > 0 {
		item.Source = strings.TrimSpace(item.Title[i+3:])
		item.Title = strings.TrimSpace(item.Title[:i])
	}

	// Bodies that only repeat the headline add nothing.
	raw := strings.TrimSpace(it.Title)
	switch item.Body {
	case item.Title, raw, item.Title + " " + item.Source, raw + " " + item.Source:
		item.Body = ""
	}
	return item
}

// cleanHTML strips HTML tags from a string using goquery.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
