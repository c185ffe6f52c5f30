package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// secretDomain keys the HMAC that derives the signing secret from the bot token.
	secretDomain = "WebAppData"

	fieldHash       = "hash"
	fieldUser       = "user"
	fieldAuthDate   = "auth_date"
	fieldQueryID    = "query_id"
	fieldStartParam = "start_param"
)

// Identity is the user payload embedded in a session token.
type Identity struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	IsPremium    bool   `json:"is_premium,omitempty"`
	PhotoURL     string `json:"photo_url,omitempty"`
}

// InitData is a parsed session token.
type InitData struct {
	User       *Identity
	AuthDate   time.Time
	Hash       string
	QueryID    string
	StartParam string
}

// ParseInitData decodes a raw token without checking its signature.
func ParseInitData(raw string) (url.Values, *InitData, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil, fmt.Errorf("empty init data")
	}

	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse init data: %w", err)
	}

	data := &InitData{
		Hash:       values.Get(fieldHash),
		QueryID:    values.Get(fieldQueryID),
		StartParam: values.Get(fieldStartParam),
	}

	if v := values.Get(fieldAuthDate); v != "" {
		secs, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid auth_date %q: %w", v, err)
		}
		data.AuthDate = time.Unix(secs, 0)
	}

	if v := values.Get(fieldUser); v != "" {
		var user Identity
		if err := json.Unmarshal([]byte(v), &user); err != nil {
			return nil, nil, fmt.Errorf("invalid user payload: %w", err)
		}
		data.User = &user
	}

	return values, data, nil
}

// DataCheckString builds the canonical string the signature is computed over:
// every field except the hash, sorted by key, as key=value lines.
func DataCheckString(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k == fieldHash {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		for _, v := range values[k] {
			lines = append(lines, k+"="+v)
		}
	}
	return strings.Join(lines, "\n")
}

// SecretKey derives the signing secret from the bot token.
func SecretKey(botToken string) []byte {
	mac := hmac.New(sha256.New, []byte(secretDomain))
	mac.Write([]byte(botToken))
	return mac.Sum(nil)
}

// Sign returns the hex signature for values under botToken. The hash field,
// if present, is ignored.
func Sign(values url.Values, botToken string) string {
	mac := hmac.New(sha256.New, SecretKey(botToken))
	mac.Write([]byte(DataCheckString(values)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Encode signs values and returns a complete raw token. Useful for local
// clients and tests.
func Encode(values url.Values, botToken string) string {
	signed := url.Values{}
	for k, v := range values {
		if k == fieldHash {
			continue
		}
		signed[k] = append([]string(nil), v...)
	}
	signed.Set(fieldHash, Sign(signed, botToken))
	return signed.Encode()
}

// IsFresh reports whether a token issued at authDate is still within maxAge.
func IsFresh(authDate, now time.Time, maxAge time.Duration) bool {
	if authDate.IsZero() {
		return false
	}
	return now.Sub(authDate) <= maxAge
}
