// pagestate.go — Cookie and storage snapshot types.
// The extension pushes the active tab's cookie jar and web storage as
// whole snapshots; the server keeps only the latest per tab.
package types

import "time"

// Cookie mirrors the fields the browser cookie store reports.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"` // seconds epoch, 0 for session cookies
	Secure   bool    `json:"secure,omitempty"`
	HTTPOnly bool    `json:"http_only,omitempty"`
	SameSite string  `json:"same_site,omitempty"`
	Session  bool    `json:"session,omitempty"`
}

// CookieSnapshot is the full cookie set visible to one tab at capture time.
type CookieSnapshot struct {
	TabID      int       `json:"tab_id"`
	URL        string    `json:"url"`
	Cookies    []Cookie  `json:"cookies"`
	CapturedAt time.Time `json:"captured_at"`
}

// StorageSnapshot is the localStorage/sessionStorage content of one tab.
type StorageSnapshot struct {
	TabID      int               `json:"tab_id"`
	URL        string            `json:"url"`
	Local      map[string]string `json:"local,omitempty"`
	Session    map[string]string `json:"session,omitempty"`
	CapturedAt time.Time         `json:"captured_at"`
}
