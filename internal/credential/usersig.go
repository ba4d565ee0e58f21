// Package credential produces login signatures for the RTC backend.
package credential

import (
	"bytes"
	"compress/zlib"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultExpire is how long a signature stays valid.
const DefaultExpire = 7 * 24 * time.Hour

var ErrNoSecret = errors.New("credential: secret key is not configured")

// Signer issues HMAC-SHA256 user signatures for one application.
type Signer struct {
	AppID  int
	Secret string
	Expire time.Duration
	now    func() time.Time
}

func NewSigner(appID int, secret string, expire time.Duration) *Signer {
	if expire <= 0 {
		expire = DefaultExpire
	}
	return &Signer{AppID: appID, Secret: secret, Expire: expire, now: time.Now}
}

// Credential implements identity.CredentialProvider.
func (s *Signer) Credential(participantID string) (string, error) {
	if s.Secret == "" {
		return "", ErrNoSecret
	}
	if participantID == "" {
		return "", errors.New("credential: participant id is empty")
	}
	now := s.now().Unix()
	expire := int64(s.Expire / time.Second)

	doc := map[string]any{
		"TLS.ver":        "2.0",
		"TLS.identifier": participantID,
		"TLS.sdkappid":   s.AppID,
		"TLS.expire":     expire,
		"TLS.time":       now,
		"TLS.sig":        s.hmac(participantID, now, expire),
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode signature: %w", err)
	}

	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return "", fmt.Errorf("compress signature: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("compress signature: %w", err)
	}
	return urlEscape(base64.StdEncoding.EncodeToString(buf.Bytes())), nil
}

func (s *Signer) hmac(participantID string, now, expire int64) string {
	content := "TLS.identifier:" + participantID + "\n" +
		"TLS.sdkappid:" + strconv.Itoa(s.AppID) + "\n" +
		"TLS.time:" + strconv.FormatInt(now, 10) + "\n" +
		"TLS.expire:" + strconv.FormatInt(expire, 10) + "\n"
	mac := hmac.New(sha256.New, []byte(s.Secret))
	mac.Write([]byte(content))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

var escaper = strings.NewReplacer("+", "*", "/", "-", "=", "_")

func urlEscape(s string) string { return escaper.Replace(s) }
