package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
)

var ErrCatalogUnavailable = errors.New("catalog: unavailable")

// ErrCatalogStructure marks a page that was fetched but does not look like a
// directory listing. Retrying will not help.
var ErrCatalogStructure = errors.New("catalog: unexpected page structure")

const (
	DefaultSearchURL = "https://savannah.gnu.org/search/?type_of_search=soft&words=*&type=1&max_rows={rows}"
	DefaultRows      = 1000
	DefaultTimeout   = 60 * time.Second

	rowsPlaceholder = "{rows}"
	maxBodyBytes    = 32 << 20
)

var projectHrefPattern = regexp.MustCompile(`\.\./projects/([^/?#]+)`)

// projectIDPattern is the forge's project slug. Ids become git arguments and
// directory names, so anything else is refused.
var projectIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._+-]*$`)

// ValidID reports whether id is a usable project slug.
func ValidID(id string) bool {
	return projectIDPattern.MatchString(id)
}

// Reader fetches and parses the directory search page.
type Reader struct {
	SearchURL string
	Rows      int
	Client    *http.Client
}

// NewReader returns a Reader with default page size and an HTTP client
// bounded by timeout.
func NewReader(searchURL string, rows int, timeout time.Duration) *Reader {
	if strings.TrimSpace(searchURL) == "" {
		searchURL = DefaultSearchURL
	}
	if rows <= 0 {
		rows = DefaultRows
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Reader{
		SearchURL: searchURL,
		Rows:      rows,
		Client:    &http.Client{Timeout: timeout},
	}
}

// URL resolves the search URL for the configured row count.
func (r *Reader) URL() string {
	return strings.ReplaceAll(r.SearchURL, rowsPlaceholder, strconv.Itoa(r.Rows))
}

// Fetch downloads and parses the directory listing.
func (r *Reader) Fetch(ctx context.Context) (*Catalog, error) {
	target := r.URL()
	log.Info().Str("url", target).Msg("fetching project list")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrCatalogUnavailable, err)
	}
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d from %s", ErrCatalogUnavailable, resp.StatusCode, target)
	}

	cat, err := Parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	log.Info().Int("projects", cat.Len()).Msg("fetched project list")
	return cat, nil
}

// Parse extracts projects from a directory page body.
func Parse(body io.Reader) (*Catalog, error) {
	doc, err := html.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %w", ErrCatalogUnavailable, err)
	}

	table := findFirst(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "table" && hasClass(n, "box")
	})
	if table == nil {
		return nil, fmt.Errorf("%w: %w: no project table", ErrCatalogUnavailable, ErrCatalogStructure)
	}

	cat := New()
	walk(table, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.Data != "tr" {
			return true
		}
		if !hasClass(n, "boxitem") && !hasClass(n, "boxitemalt") {
			return true
		}
		link := findFirst(n, func(c *html.Node) bool {
			return c.Type == html.ElementNode && c.Data == "a"
		})
		if link == nil {
			return false
		}
		match := projectHrefPattern.FindStringSubmatch(attr(link, "href"))
		if match == nil {
			log.Debug().Str("href", attr(link, "href")).Msg("skipping row without project link")
			return false
		}
		id := strings.TrimSpace(match[1])
		if !ValidID(id) {
			log.Warn().Str("href", attr(link, "href")).Msg("skipping row with invalid project id")
			return false
		}
		if !cat.Add(id, strings.TrimSpace(textContent(link))) {
			log.Warn().Str("project", id).Msg("duplicate project row ignored")
		}
		return false
	})
	return cat, nil
}

// walk visits n and its descendants depth-first. fn returns false to skip
// the children of the node it was given.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	var found *html.Node
	walk(n, func(c *html.Node) bool {
		if found != nil {
			return false
		}
		if match(c) {
			found = c
			return false
		}
		return true
	})
	return found
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return b.String()
}
