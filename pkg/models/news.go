package models

// MaxNewsItems caps the number of news items requested per ticker.
const MaxNewsItems = 5

// NewsItem represents one news search hit. Only Title is always set.
type NewsItem struct {
	Title  string `json:"title"`
	Date   string `json:"date,omitempty"`
	URL    string `json:"url,omitempty"`
	Source string `json:"source,omitempty"`
	Body   string `json:"body,omitempty"`
}

// Empty reports whether the item has no displayable field.
func (n NewsItem) Empty() bool {
	return n.Title == "" && n.Date == "" && n.URL == "" && n.Source == "" && n.Body == ""
}
