package streaming

import (
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/animewatch/internal/platform/signing"
)

// Relay handles GET /hls. It verifies the signed query, fetches the
// upstream segment or playlist, and streams it back. Playlists are
// rewritten so every nested URI points back at the relay with a fresh
// signature for the same viewer and expiry.
func Relay(signer *signing.Signer, log *zap.Logger) http.HandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}
	return func(w http.ResponseWriter, r *http.Request) {
		rawURL, uid, exp, sig, err := signing.ExtractSigned(r.URL.Query())
		if err != nil {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if !signer.Verify(rawURL, uid, exp, sig) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, rawURL, nil)
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		resp, err := client.Do(req)
		if err != nil {
			log.Warn("hls relay: upstream fetch failed", zap.Error(err))
			http.Error(w, "upstream", http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()

		contentType := resp.Header.Get("Content-Type")
		if isPlaylist(contentType) {
			data, err := io.ReadAll(resp.Body)
			if err != nil {
				http.Error(w, "upstream", http.StatusBadGateway)
				return
			}
			body := RewritePlaylist(string(data), rawURL, relayURL(r), signer, uid, exp)
			w.Header().Set("Content-Type", contentType)
			w.WriteHeader(resp.StatusCode)
			_, _ = w.Write([]byte(body))
			return
		}

		for k, vals := range resp.Header {
			for _, v := range vals {
				w.Header().Add(k, v)
			}
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = io.Copy(w, resp.Body)
	}
}

func isPlaylist(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "mpegurl")
}

// relayURL reconstructs the externally visible URL of the relay
// endpoint from the incoming request.
func relayURL(r *http.Request) string {
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "http"
		if r.TLS != nil {
			scheme = "https"
		}
	}
	return scheme + "://" + r.Host + r.URL.Path
}
