package credential

import (
	"bytes"
	"compress/zlib"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, sig string) map[string]any {
	t.Helper()
	std := strings.NewReplacer("*", "+", "-", "/", "_", "=").Replace(sig)
	compressed, err := base64.StdEncoding.DecodeString(std)
	require.NoError(t, err)
	r, err := zlib.NewReader(bytes.NewReader(compressed))
	require.NoError(t, err)
	raw, err := io.ReadAll(r)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	return doc
}

func TestSigner_Credential(t *testing.T) {
	s := NewSigner(1400000001, "secret", time.Hour)
	s.now = func() time.Time { return time.Unix(1700000000, 0) }

	sig, err := s.Credential("tutor1")
	require.NoError(t, err)
	assert.NotContains(t, sig, "+")
	assert.NotContains(t, sig, "/")
	assert.NotContains(t, sig, "=")

	doc := decode(t, sig)
	assert.Equal(t, "2.0", doc["TLS.ver"])
	assert.Equal(t, "tutor1", doc["TLS.identifier"])
	assert.EqualValues(t, 1400000001, doc["TLS.sdkappid"])
	assert.EqualValues(t, 3600, doc["TLS.expire"])
	assert.EqualValues(t, 1700000000, doc["TLS.time"])

	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte("TLS.identifier:tutor1\nTLS.sdkappid:1400000001\nTLS.time:1700000000\nTLS.expire:3600\n"))
	assert.Equal(t, base64.StdEncoding.EncodeToString(mac.Sum(nil)), doc["TLS.sig"])
}

func TestSigner_Errors(t *testing.T) {
	_, err := NewSigner(1, "", 0).Credential("tutor1")
	assert.ErrorIs(t, err, ErrNoSecret)

	_, err = NewSigner(1, "secret", 0).Credential("")
	assert.Error(t, err)
}

func TestNewSigner_DefaultExpire(t *testing.T) {
	assert.Equal(t, DefaultExpire, NewSigner(1, "s", 0).Expire)
}
