package fetch

import (
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// bustParam is the query parameter carrying the cache-busting token.
const bustParam = "_b"

// Origins builds the ordered, de-duplicated list of candidate origins.
// The primary origin comes first, then extra origins in the given order,
// and the relative origin ("") always comes last, exactly once, even when
// the primary is empty.
func Origins(primary string, extra ...string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(extra)+2)
	for _, o := range append([]string{primary}, extra...) {
		o = normalizeOrigin(o)
		if o == "" || seen[o] {
			continue
		}
		seen[o] = true
		out = append(out, o)
	}
	return append(out, "")
}

func normalizeOrigin(o string) string {
	return strings.TrimRight(strings.TrimSpace(o), "/")
}

// joinURL joins an origin and a path with exactly one slash between them.
func joinURL(base, path string) string {
	if base == "" {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(base, "/") + path
}

// resolveURL turns an origin and path into an absolute URL. The relative
// origin resolves against siteURL.
func resolveURL(origin, siteURL, path string) (string, error) {
	if origin != "" {
		return joinURL(origin, path), nil
	}
	if siteURL == "" {
		return "", errNoRelativeBase
	}
	base, err := url.Parse(siteURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

// withBust appends the cache-busting parameter to path, replacing any
// previous token.
func withBust(path, token string) string {
	u, err := url.Parse(path)
	if err != nil {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + bustParam + "=" + token
	}
	q := u.Query()
	q.Set(bustParam, token)
	u.RawQuery = q.Encode()
	return u.String()
}

// bustCounter hands out strictly increasing millisecond tokens so that two
// retries issued within the same millisecond still look like distinct
// resources to intermediate caches.
type bustCounter struct {
	last atomic.Int64
	now  func() time.Time
}

func (b *bustCounter) next() string {
	for {
		last := b.last.Load()
		v := b.now().UnixMilli()
		if v <= last {
			v = last + 1
		}
		if b.last.CompareAndSwap(last, v) {
			return strconv.FormatInt(v, 10)
		}
	}
}
