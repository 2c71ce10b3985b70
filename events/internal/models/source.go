package models

import (
	"net/url"
	"strings"
)

// SourceWildcard is the SQL LIKE wildcard allowed at the end of an app source filter.
const SourceWildcard = "%"

// AppSource is an app event source split into environment host, org and app.
type AppSource struct {
	Scheme string
	Host   string
	Org    string
	App    string

	// Wildcard is set for source filters whose app segment ends in SourceWildcard.
	Wildcard bool

	// Exact is set when the path holds nothing beyond {org}/{app}.
	Exact bool
}

// ParseAppSource splits an absolute URI whose path starts with {org}/{app}. Deeper
// paths, such as instance sources, are allowed and clear Exact.
func ParseAppSource(source string) (AppSource, bool) {
	u, err := url.Parse(source)
	if source == "" || err != nil || !u.IsAbs() || u.Host == "" {
		return AppSource{}, false
	}
	src, ok := splitAppPath(u, strings.Trim(u.Path, "/"))
	if !ok || strings.Contains(src.Org+src.App, SourceWildcard) {
		return AppSource{}, false
	}
	return src, true
}

// ParseAppSourceFilter parses a subscription source filter. The path must be exactly
// {org}/{app}; the app segment may end in SourceWildcard, e.g. ".../ttd/%" selects every
// app of ttd. Queries, fragments and escaped percent signs are rejected.
func ParseAppSourceFilter(filter string) (AppSource, bool) {
	if filter == "" || strings.ContainsAny(filter, "?#") {
		return AppSource{}, false
	}

	// url.Parse rejects a bare trailing %, so the wildcard is split off first.
	base, wildcard := strings.CutSuffix(filter, SourceWildcard)
	u, err := url.Parse(base)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return AppSource{}, false
	}

	path := strings.TrimPrefix(u.Path, "/")
	if wildcard {
		path += SourceWildcard
	} else {
		path = strings.TrimSuffix(path, "/")
	}
	src, ok := splitAppPath(u, path)
	if !ok || !src.Exact || strings.Contains(src.Org, SourceWildcard) {
		return AppSource{}, false
	}

	app := strings.TrimSuffix(src.App, SourceWildcard)
	if strings.Contains(app, SourceWildcard) || (!wildcard && app != src.App) {
		return AppSource{}, false
	}
	src.Wildcard = wildcard
	return src, true
}

func splitAppPath(u *url.URL, path string) (AppSource, bool) {
	segments := strings.Split(path, "/")
	if len(segments) < 2 || segments[0] == "" || segments[1] == "" {
		return AppSource{}, false
	}
	return AppSource{
		Scheme: u.Scheme,
		Host:   u.Host,
		Org:    segments[0],
		App:    segments[1],
		Exact:  len(segments) == 2,
	}, true
}

// Key is the source cut down to scheme, host and {org}/{app}.
func (s AppSource) Key() string {
	return s.Scheme + "://" + s.Host + "/" + s.Org + "/" + s.App
}

// OnDomain reports whether the host equals appsDomain or is a subdomain of it,
// ignoring case and port.
func (s AppSource) OnDomain(appsDomain string) bool {
	domain := strings.ToLower(strings.TrimPrefix(appsDomain, "."))
	if domain == "" {
		return false
	}
	host := s.Host
	if u, err := url.Parse("//" + s.Host); err == nil {
		host = u.Hostname()
	}
	host = strings.ToLower(host)
	return host == domain || strings.HasSuffix(host, "."+domain)
}
