package hackernews

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/spigell/job-autopilot/internal/platforms"
)

type searchResponse struct {
	Hits []struct {
		ObjectID string `json:"objectID"`
		Title    string `json:"title"`
	} `json:"hits"`
}

type item struct {
	ID        int64     `json:"id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Children  []item    `json:"children"`
}

// comment is a top-level reply reduced to plain text.
type comment struct {
	ID       string
	Text     string
	PostedAt time.Time
}

func (a *Adapter) latestThreadID(ctx context.Context) (string, error) {
	q := url.Values{}
	q.Set("tags", "story,author_whoishiring")
	q.Set("query", "who is hiring")
	q.Set("hitsPerPage", "10")

	var resp searchResponse
	if err := platforms.GetJSON(ctx, a.client, a.baseURL+"/search_by_date", q, nil, &resp); err != nil {
		return "", err
	}

	for _, hit := range resp.Hits {
		if strings.Contains(strings.ToLower(hit.Title), "who is hiring") {
			return hit.ObjectID, nil
		}
	}
	return "", errors.New("no hiring thread found")
}

func (a *Adapter) comments(ctx context.Context, threadID string) ([]comment, error) {
	var thread item
	if err := platforms.GetJSON(ctx, a.client, fmt.Sprintf("%s/items/%s", a.baseURL, threadID), nil, nil, &thread); err != nil {
		return nil, err
	}

	out := make([]comment, 0, len(thread.Children))
	for _, child := range thread.Children {
		if child.Author == "" || strings.TrimSpace(child.Text) == "" {
			// deleted or flagged
			continue
		}
		text, err := plainText(child.Text)
		if err != nil || text == "" {
			continue
		}
		out = append(out, comment{ID: strconv.FormatInt(child.ID, 10), Text: text, PostedAt: child.CreatedAt})
	}
	return out, nil
}

// plainText flattens comment HTML, keeping paragraph breaks.
func plainText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<div>" + html + "</div>"))
	if err != nil {
		return "", err
	}
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		s.PrependHtml("\n")
	})
	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && strings.TrimSpace(s.Text()) != href {
			s.SetText(href)
		}
	})

	lines := strings.Split(doc.Text(), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n"), nil
}
