// Package metadata reads event title and schedule from an HKIE event page.
package metadata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"

	"github.com/alexsbc303/CPD-Cert/pkg/errors"
	"github.com/alexsbc303/CPD-Cert/pkg/logging"
)

// Element ids used by the HKIE event detail pages.
const (
	TitleElementID   = "ctl00_ContentPlaceHolder1_ContentName"
	DetailsElementID = "ctl00_ContentPlaceHolder1_dtv"
)

// Placeholders used when an element is missing or empty.
const (
	UnknownTitle   = "Unknown Event"
	UnknownDetails = "Unknown Details"
)

// maxPageSize caps how much of a response body is parsed.
const maxPageSize = 4 << 20

// Event is the metadata extracted from one page.
type Event struct {
	Title   string `json:"title" yaml:"title"`
	Details string `json:"details" yaml:"details"`
	URL     string `json:"url,omitempty" yaml:"url,omitempty"`
	// Found reports which elements were present on the page.
	TitleFound   bool `json:"titleFound" yaml:"titleFound"`
	DetailsFound bool `json:"detailsFound" yaml:"detailsFound"`
}

// Parse extracts the event title and details from an HTML document.
// Missing elements fall back to UnknownTitle and UnknownDetails.
func Parse(r io.Reader) (Event, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return Event{}, fmt.Errorf("failed to parse event page: %w", err)
	}

	ev := Event{Title: UnknownTitle, Details: UnknownDetails}
	if n := findByID(doc, TitleElementID); n != nil {
		if text := textContent(n); text != "" {
			ev.Title = text
			ev.TitleFound = true
		}
	}
	if n := findByID(doc, DetailsElementID); n != nil {
		if text := textContent(n); text != "" {
			ev.Details = text
			ev.DetailsFound = true
		}
	}
	return ev, nil
}

// Fetch downloads url and parses it. A nil client uses http.DefaultClient.
// Transport failures and non-2xx responses are CollaboratorErrors with
// stage "fetch".
func Fetch(ctx context.Context, client *http.Client, url string) (Event, error) {
	if client == nil {
		client = http.DefaultClient
	}
	logger := logging.FromContext(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Event{}, errors.NewCollaboratorError("fetch", 0, err)
	}
	req.Header.Set("User-Agent", "cpdcert")

	resp, err := client.Do(req)
	if err != nil {
		return Event{}, errors.NewCollaboratorError("fetch", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Event{}, errors.NewCollaboratorError("fetch", 0,
			fmt.Errorf("GET %s: unexpected status %s", url, resp.Status))
	}

	ev, err := Parse(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return Event{}, errors.NewCollaboratorError("fetch", 0, err)
	}
	ev.URL = url

	logger.Debug().
		Str("url", url).
		Bool("title_found", ev.TitleFound).
		Bool("details_found", ev.DetailsFound).
		Msg("Fetched event metadata")
	if !ev.TitleFound || !ev.DetailsFound {
		logger.Warn().Str("url", url).Msg("Event page is missing title or details")
	}
	return ev, nil
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		for _, a := range n.Attr {
			if a.Key == "id" && a.Val == id {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

// textContent joins the trimmed text nodes under n with single spaces.
// Script and style contents are skipped.
func textContent(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if s := strings.Join(strings.Fields(n.Data), " "); s != "" {
				parts = append(parts, s)
			}
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}
