package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/oshokin/julia-updater/internal/domain/release"
)

var errMarkerNotFound = errors.New("version marker element not found")

// VersionSource resolves the current stable version.
type VersionSource interface {
	ResolveVersion(ctx context.Context) (release.Version, error)
}

// HTMLVersionSource scrapes the stable version out of a downloads page.
type HTMLVersionSource struct {
	fetch    *fetcher
	pageURL  string
	markerID string
	timeout  time.Duration
}

// NewHTMLVersionSource reads the text of the element with id markerID on pageURL.
// A nil client uses a default one; timeout bounds the whole request.
func NewHTMLVersionSource(client *http.Client, pageURL, markerID string, timeout time.Duration) *HTMLVersionSource {
	return &HTMLVersionSource{
		fetch:    newFetcher(client),
		pageURL:  pageURL,
		markerID: markerID,
		timeout:  timeout,
	}
}

// ResolveVersion fetches the page and parses the first v<major>.<minor>.<patch> in the marker element.
func (s *HTMLVersionSource) ResolveVersion(ctx context.Context) (release.Version, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	response, err := s.fetch.get(ctx, s.pageURL)
	if response != nil {
		defer func() {
			_ = response.Body.Close()
		}()
	}

	if err != nil {
		return release.Version{}, err
	}

	doc, err := html.Parse(&transferReader{r: io.LimitReader(response.Body, maxPageSize)})
	if err != nil {
		return release.Version{}, fmt.Errorf("parse %s: %w", s.pageURL, err)
	}

	marker := findElementByID(doc, s.markerID)
	if marker == nil {
		return release.Version{}, fmt.Errorf("#%s on %s: %w", s.markerID, s.pageURL, errMarkerNotFound)
	}

	return release.ParseVersion(textContent(marker))
}

// findElementByID walks the tree depth-first and returns the first element with the given id.
func findElementByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		for _, attr := range n.Attr {
			if attr.Namespace == "" && attr.Key == "id" && attr.Val == id {
				return n
			}
		}
	}

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findElementByID(child, id); found != nil {
			return found
		}
	}

	return nil
}

// textContent concatenates every text node below n.
func textContent(n *html.Node) string {
	var builder strings.Builder

	var walk func(*html.Node)

	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			builder.WriteString(node.Data)
		}

		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}

	walk(n)

	return builder.String()
}

// resolveKind separates transport failures from page content problems.
func resolveKind(err error) Kind {
	if errors.Is(err, errMarkerNotFound) || errors.Is(err, release.ErrVersionNotFound) {
		return KindParse
	}

	if transferKind(err) == KindRemote {
		return KindRemote
	}

	return KindParse
}
