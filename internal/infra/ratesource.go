package infra

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/net/html"
)

// ErrRateNotFound is returned when no extraction strategy yields a plausible rate.
var ErrRateNotFound = errors.New("ratesource: no plausible rate in page")

// maxPageBytes caps how much of the page is read.
const maxPageBytes = 4 << 20

// RateClient fetches the official rate page and extracts the USD rate.
type RateClient struct {
	url        string
	floor      decimal.Decimal
	httpClient *http.Client
}

// RateClientConfig holds the tunables of the rate source.
type RateClientConfig struct {
	URL     string
	Timeout time.Duration
	// Floor rejects mis-parsed small numbers; a value must be strictly greater.
	Floor decimal.Decimal
	// InsecureTLS skips certificate verification. The official source has
	// served incomplete chains before.
	InsecureTLS bool
}

func NewRateClient(cfg RateClientConfig) *RateClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return &RateClient{
		url:        cfg.URL,
		floor:      cfg.Floor,
		httpClient: &http.Client{Timeout: cfg.Timeout, Transport: transport},
	}
}

// Source returns the URL the client reads from.
func (c *RateClient) Source() string { return c.url }

// Fetch downloads the page and runs ExtractRate over it.
func (c *RateClient) Fetch(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ratesource: create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; bodega-rate/1.0)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ratesource: source unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("ratesource: source returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return decimal.Zero, fmt.Errorf("ratesource: read body: %w", err)
	}

	rate, _, err := ExtractRate(body, c.floor)
	return rate, err
}

// ── Extraction ────────────────────────────────────────────────────────────────

// Strategy names, reported for logging.
const (
	StrategyAnchor = "anchor"
	StrategyStrong = "strong"
	StrategyRegex  = "regex"
)

const localeDecimal = `\d{1,3}(?:\.\d{3})+,\d{2,8}|\d{2,},\d{2,8}`

// bodyRate matches comma-decimal numbers such as "36,5012" or "1.234,56";
// strongRate requires the whole text to be one.
var (
	bodyRate   = regexp.MustCompile(localeDecimal)
	strongRate = regexp.MustCompile(`^(?:` + localeDecimal + `)$`)
)

// ExtractRate tries, in order: the <strong> inside div#dolar, any <strong>
// whose text reads as a number, and a scan of the raw body. The first value
// strictly greater than floor wins.
func ExtractRate(body []byte, floor decimal.Decimal) (decimal.Decimal, string, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err == nil {
		if n := findByID(doc, "div", "dolar"); n != nil {
			if s := firstElement(n, "strong"); s != nil {
				if v, ok := parseLocaleNumber(textOf(s)); ok && v.GreaterThan(floor) {
					return v, StrategyAnchor, nil
				}
			}
		}

		var (
			found decimal.Decimal
			ok    bool
		)
		walk(doc, func(n *html.Node) bool {
			if n.Type != html.ElementNode || n.Data != "strong" {
				return true
			}
			txt := strings.TrimSpace(textOf(n))
			if !strongRate.MatchString(txt) {
				return true
			}
			if v, parsed := parseLocaleNumber(txt); parsed && v.GreaterThan(floor) {
				found, ok = v, true
				return false
			}
			return true
		})
		if ok {
			return found, StrategyStrong, nil
		}
	}

	for _, m := range bodyRate.FindAllString(string(body), -1) {
		if v, ok := parseLocaleNumber(m); ok && v.GreaterThan(floor) {
			return v, StrategyRegex, nil
		}
	}
	return decimal.Zero, "", ErrRateNotFound
}

// parseLocaleNumber reads "1.234,56" style numbers. Text without a comma is
// read as a plain decimal.
func parseLocaleNumber(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "Bs.")
	s = strings.TrimSpace(strings.TrimPrefix(s, "Bs"))
	if s == "" {
		return decimal.Zero, false
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return v, true
}

// walk visits nodes depth-first until fn returns false.
func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

func findByID(root *html.Node, tag, id string) *html.Node {
	var out *html.Node
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == tag {
			for _, a := range n.Attr {
				if a.Key == "id" && a.Val == id {
					out = n
					return false
				}
			}
		}
		return true
	})
	return out
}

func firstElement(root *html.Node, tag string) *html.Node {
	var out *html.Node
	walk(root, func(n *html.Node) bool {
		if n != root && n.Type == html.ElementNode && n.Data == tag {
			out = n
			return false
		}
		return true
	})
	return out
}

func textOf(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return b.String()
}
