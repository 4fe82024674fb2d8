package fetch

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/temoto/robotstxt"
)

const robotsTimeout = 10 * time.Second

// RobotsAllowed reports whether robots.txt on pageURL's host lets userAgent
// fetch pageURL. An unreachable robots.txt allows everything; a 5xx
// disallows everything, following the robots exclusion convention.
func RobotsAllowed(ctx context.Context, f Fetcher, pageURL, userAgent string) (bool, error) {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return false, fmt.Errorf("robots: invalid url %q", pageURL)
	}
	robotsURL := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/robots.txt"}).String()

	a := f.Fetch(ctx, robotsURL, robotsTimeout)
	if a.Status == 0 {
		// Transport failure: treat as no robots.txt.
		return true, nil
	}

	data, err := robotstxt.FromStatusAndBytes(a.Status, a.Body)
	if err != nil {
		return true, nil
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return data.TestAgent(path, userAgent), nil
}
