// Package signing issues and checks HMAC-signed playback URLs. A
// signature binds an upstream stream URL to a single viewer and an
// expiry, so playback links cannot be shared or replayed after they
// lapse.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	paramURL = "url"
	paramExp = "exp"
	paramUID = "uid"
	paramSig = "sig"
)

type Signer struct {
	secret []byte
}

func New(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Signed carries the components of a signed playback URL.
type Signed struct {
	URL string
	Exp int64
	UID string
	Sig string
}

func (s *Signer) Sign(rawURL, userID string, exp time.Time) Signed {
	unix := exp.Unix()
	return Signed{URL: rawURL, Exp: unix, UID: userID, Sig: s.digest(rawURL, userID, unix)}
}

// Verify reports whether sig matches url/uid/exp and the expiry has
// not passed. Comparison is constant-time.
func (s *Signer) Verify(rawURL, userID string, exp int64, sig string) bool {
	if time.Now().Unix() > exp {
		return false
	}
	return hmac.Equal([]byte(sig), []byte(s.digest(rawURL, userID, exp)))
}

func (s *Signer) digest(rawURL, userID string, exp int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(rawURL))
	mac.Write([]byte{'|'})
	mac.Write([]byte(userID))
	mac.Write([]byte{'|'})
	mac.Write([]byte(strconv.FormatInt(exp, 10)))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// BuildSignedURL attaches the signed components to base as query
// parameters.
func BuildSignedURL(base string, signed Signed) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(paramURL, signed.URL)
	q.Set(paramExp, strconv.FormatInt(signed.Exp, 10))
	q.Set(paramUID, signed.UID)
	q.Set(paramSig, signed.Sig)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ExtractSigned pulls the signed components back out of a request
// query. All four parameters must be present.
func ExtractSigned(query url.Values) (rawURL, uid string, exp int64, sig string, err error) {
	rawURL = strings.TrimSpace(query.Get(paramURL))
	uid = strings.TrimSpace(query.Get(paramUID))
	expStr := strings.TrimSpace(query.Get(paramExp))
	sig = strings.TrimSpace(query.Get(paramSig))
	if rawURL == "" || uid == "" || expStr == "" || sig == "" {
		return "", "", 0, "", errors.New("missing signed params")
	}
	exp, err = strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return "", "", 0, "", err
	}
	return rawURL, uid, exp, sig, nil
}
