package acquire

import (
	"bytes"
	"encoding/xml"
	"io"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
)

// Listing modes
const (
	ListingAuto   = "auto"
	ListingHTML   = "html"
	ListingWebDAV = "webdav"
)

// multistatus is the subset of a WebDAV PROPFIND reply we read
type multistatus struct {
	XMLName   xml.Name `xml:"DAV: multistatus"`
	Responses []struct {
		Href string `xml:"DAV: href"`
	} `xml:"DAV: response"`
}

// parseHTMLListing returns every <a href> in document order
func parseHTMLListing(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var hrefs []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, a := range n.Attr {
				if a.Key == "href" {
					hrefs = append(hrefs, a.Val)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return hrefs, nil
}

// parseWebDAVListing returns every response href of a multistatus body
func parseWebDAVListing(r io.Reader) ([]string, error) {
	var ms multistatus
	if err := xml.NewDecoder(r).Decode(&ms); err != nil {
		return nil, err
	}
	hrefs := make([]string, 0, len(ms.Responses))
	for _, resp := range ms.Responses {
		hrefs = append(hrefs, strings.TrimSpace(resp.Href))
	}
	return hrefs, nil
}

// looksLikeWebDAV sniffs a body for an XML multistatus document
func looksLikeWebDAV(body []byte) bool {
	head := bytes.TrimSpace(body)
	if len(head) > 512 {
		head = head[:512]
	}
	lower := bytes.ToLower(head)
	return bytes.HasPrefix(lower, []byte("<?xml")) && bytes.Contains(bytes.ToLower(body), []byte("multistatus"))
}

// parseListing decodes body according to mode and reduces each href to
// its trailing path segment. Parent links and empty segments are dropped.
func parseListing(mode string, body []byte) ([]string, error) {
	if mode == ListingAuto {
		mode = ListingHTML
		if looksLikeWebDAV(body) {
			mode = ListingWebDAV
		}
	}

	var (
		hrefs []string
		err   error
	)
	switch mode {
	case ListingWebDAV:
		hrefs, err = parseWebDAVListing(bytes.NewReader(body))
	default:
		hrefs, err = parseHTMLListing(bytes.NewReader(body))
	}
	if err != nil {
		return nil, err
	}

	segments := make([]string, 0, len(hrefs))
	for _, h := range hrefs {
		if s := trailingSegment(h); s != "" {
			segments = append(segments, s)
		}
	}
	return segments, nil
}

// trailingSegment returns the last path component of an href, unescaped
func trailingSegment(href string) string {
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	if u, err := url.Parse(href); err == nil && u.Path != "" {
		href = u.Path
	} else if unescaped, err := url.PathUnescape(href); err == nil {
		href = unescaped
	}

	href = strings.TrimRight(href, "/")
	if href == "" {
		return ""
	}
	seg := path.Base(href)
	if seg == "." || seg == ".." || seg == "/" {
		return ""
	}
	return seg
}
