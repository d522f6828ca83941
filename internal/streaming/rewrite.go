package streaming

import (
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/example/animewatch/internal/platform/signing"
)

// RewritePlaylist rewrites every URI in an HLS playlist to go through
// the relay, each with its own signature bound to the same viewer and
// expiry as the parent request. Relative URIs are resolved against the
// playlist's own URL first.
func RewritePlaylist(body, playlistURL, relayBase string, signer *signing.Signer, uid string, exp int64) string {
	expiry := time.Unix(exp, 0)
	lines := strings.Split(body, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trim := strings.TrimSpace(line)
		if trim == "" || strings.HasPrefix(trim, "#") {
			// Tags like EXT-X-I-FRAME-STREAM-INF and EXT-X-KEY carry
			// their target in a URI attribute.
			if strings.Contains(trim, `URI="`) {
				line = rewriteURIAttr(line, playlistURL, relayBase, signer, uid, expiry)
			}
			out = append(out, line)
			continue
		}
		out = append(out, relayedURL(relayBase, resolveRef(playlistURL, trim), signer, uid, expiry))
	}
	return strings.Join(out, "\n")
}

func relayedURL(relayBase, target string, signer *signing.Signer, uid string, expiry time.Time) string {
	signed := signer.Sign(target, uid, expiry)
	u, err := signing.BuildSignedURL(relayBase, signed)
	if err != nil {
		return target
	}
	return u
}

func rewriteURIAttr(line, playlistURL, relayBase string, signer *signing.Signer, uid string, expiry time.Time) string {
	start := strings.Index(line, `URI="`)
	if start == -1 {
		return line
	}
	start += len(`URI="`)
	end := strings.Index(line[start:], `"`)
	if end == -1 {
		return line
	}
	uri := line[start : start+end]
	resolved := resolveRef(playlistURL, uri)
	return line[:start] + relayedURL(relayBase, resolved, signer, uid, expiry) + line[start+end:]
}

func resolveRef(baseURL, ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return ref
	}
	base.RawQuery = ""
	if strings.HasPrefix(ref, "/") {
		base.Path = ref
		return base.String()
	}
	base.Path = path.Join(path.Dir(base.Path), ref)
	return base.String()
}
