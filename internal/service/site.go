package service

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/dtroode/sqrl-server/internal/base64url"
)

// Site describes where the server is reachable. BaseURL is the https origin
// the login page is served from.
type Site struct {
	BaseURL         *url.URL
	BackchannelPath string
	CPSPath         string
	FriendlyName    string
}

// NewSite parses baseURL and validates the paths.
func NewSite(baseURL, backchannelPath, cpsPath, friendlyName string) (Site, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return Site{}, fmt.Errorf("failed to parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Site{}, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	for _, p := range []string{backchannelPath, cpsPath} {
		if !strings.HasPrefix(p, "/") {
			return Site{}, fmt.Errorf("path %q must start with /", p)
		}
	}
	return Site{
		BaseURL:         u,
		BackchannelPath: backchannelPath,
		CPSPath:         cpsPath,
		FriendlyName:    friendlyName,
	}, nil
}

// Qry returns the qry value pointing the client at the next nut.
func (s Site) Qry(nut string) string {
	return s.basePath() + s.BackchannelPath + "?nut=" + nut
}

// SqrlURL returns the sqrl:// link shown to the user for nut.
func (s Site) SqrlURL(nut string) string {
	q := url.Values{}
	q.Set("nut", nut)
	if s.FriendlyName != "" {
		q.Set("sfn", base64url.EncodeString(s.FriendlyName))
	}
	u := url.URL{
		Scheme:   "sqrl",
		Host:     s.BaseURL.Host,
		Path:     s.basePath() + s.BackchannelPath,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// CPSURL returns the browser url completing a client provided session.
func (s Site) CPSURL(token string) string {
	u := *s.BaseURL
	u.Path = s.basePath() + s.CPSPath
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String()
}

func (s Site) basePath() string {
	return strings.TrimSuffix(s.BaseURL.Path, "/")
}
