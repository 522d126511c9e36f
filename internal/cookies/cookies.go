// Package cookies owns the attributes of every cookie the gateway sets, so
// that clearing a cookie always repeats the attributes used to set it.
package cookies

import (
	"net/http"
	"time"
)

const SetupPath = "/auth/setup"

type attrs struct {
	name     string
	path     string
	sameSite http.SameSite
	secure   bool
	ttl      time.Duration
}

func (s attrs) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     s.name,
		Value:    value,
		Path:     s.path,
		MaxAge:   maxAge,
		Secure:   s.secure,
		HttpOnly: true,
		SameSite: s.sameSite,
	}
}

func (s attrs) set(w http.ResponseWriter, value string) {
	http.SetCookie(w, s.cookie(value, int(s.ttl.Seconds())))
}

func (s attrs) clear(w http.ResponseWriter) {
	http.SetCookie(w, s.cookie("", -1))
}

func (s attrs) get(r *http.Request) (string, bool) {
	c, err := r.Cookie(s.name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// OnboardingCookies carries the onboarding link across GitHub's redirect
// back to the setup endpoint. It is Lax because the primary session cookie
// is Strict in production and is not sent on that cross-site navigation.
type OnboardingCookies struct {
	attrs attrs
}

func NewOnboardingCookies(name string, ttl time.Duration, production bool) *OnboardingCookies {
	return &OnboardingCookies{attrs: attrs{
		name:     name,
		path:     SetupPath,
		sameSite: http.SameSiteLaxMode,
		secure:   production,
		ttl:      ttl,
	}}
}

func (o *OnboardingCookies) Set(w http.ResponseWriter, linkID string) {
	o.attrs.set(w, linkID)
}

func (o *OnboardingCookies) Clear(w http.ResponseWriter) {
	o.attrs.clear(w)
}

func (o *OnboardingCookies) Get(r *http.Request) (string, bool) {
	return o.attrs.get(r)
}

type SessionCookies struct {
	attrs attrs
}

func NewSessionCookies(name string, ttl time.Duration, production bool) *SessionCookies {
	sameSite := http.SameSiteLaxMode
	if production {
		sameSite = http.SameSiteStrictMode
	}
	return &SessionCookies{attrs: attrs{
		name:     name,
		path:     "/",
		sameSite: sameSite,
		secure:   production,
		ttl:      ttl,
	}}
}

func (s *SessionCookies) Set(w http.ResponseWriter, sessionID string) {
	s.attrs.set(w, sessionID)
}

func (s *SessionCookies) Clear(w http.ResponseWriter) {
	s.attrs.clear(w)
}

func (s *SessionCookies) Get(r *http.Request) (string, bool) {
	return s.attrs.get(r)
}
