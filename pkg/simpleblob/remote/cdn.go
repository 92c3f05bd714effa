package remote

import (
	"net/url"
	"strings"
)

// ObjectCDNURI joins a container CDN base URI and an object key into the
// absolute URI the object is served from. Each key segment is escaped; the
// separators are kept.
func ObjectCDNURI(cdnBase, key string) string {
	if cdnBase == "" {
		return ""
	}
	cdnBase = strings.TrimSuffix(cdnBase, "/")

	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}

	return cdnBase + "/" + strings.Join(segments, "/")
}
