package services

import (
	"net/url"
	"regexp"
	"strings"
)

// DefaultPlaceholderHosts are image hosts used as stand-ins by the clients.
var DefaultPlaceholderHosts = []string{"picsum.photos"}

var (
	httpURLPattern      = regexp.MustCompile(`https?://[^\s,;'"]+`)
	telegramFileIDShape = regexp.MustCompile(`^[A-Za-z0-9_\-]{20,}$`)
)

// AvatarPolicy decides whether an avatar URL is a real picture or a stand-in.
type AvatarPolicy struct {
	PlaceholderHosts []string
}

// NewAvatarPolicy returns a policy for hosts, falling back to the defaults.
func NewAvatarPolicy(hosts []string) AvatarPolicy {
	if len(hosts) == 0 {
		hosts = DefaultPlaceholderHosts
	}
	normalized := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			normalized = append(normalized, h)
		}
	}
	return AvatarPolicy{PlaceholderHosts: normalized}
}

// IsReal reports whether raw is an absolute http(s) link that is neither on a
// placeholder host nor a bundled static asset.
func (p AvatarPolicy) IsReal(raw string) bool {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return false
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, ph := range p.PlaceholderHosts {
		if host == ph || strings.HasSuffix(host, "."+ph) {
			return false
		}
	}
	if strings.Contains(u.Path, "/static/") {
		return false
	}
	return true
}

// IsPlaceholder is the negation of IsReal for non-empty values. An empty
// value is "absent", not a placeholder.
func (p AvatarPolicy) IsPlaceholder(raw string) bool {
	return strings.TrimSpace(raw) != "" && !p.IsReal(raw)
}

// pick returns the first real link found in v. Strings may hold several
// concatenated URLs or a bare Telegram file id; slices are scanned in order.
func (p AvatarPolicy) pick(v interface{}) (string, bool) {
	if s, ok := v.(string); ok {
		return p.pickString(s)
	}
	list, ok := toList(v)
	if !ok {
		return "", false
	}
	for _, el := range list {
		if s, ok := el.(string); ok {
			if u, ok := p.pickString(s); ok {
				return u, true
			}
		}
	}
	return "", false
}

func (p AvatarPolicy) pickString(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, m := range httpURLPattern.FindAllString(s, -1) {
		if p.IsReal(m) {
			return m, true
		}
	}
	if telegramFileIDShape.MatchString(s) {
		u := "https://t.me/i/userpic/320/" + s
		if p.IsReal(u) {
			return u, true
		}
	}
	return "", false
}

// Sanitize returns nil unless raw is a real avatar.
func (p AvatarPolicy) Sanitize(raw *string) *string {
	if raw == nil {
		return nil
	}
	if u, ok := p.pickString(*raw); ok {
		return &u
	}
	return nil
}
