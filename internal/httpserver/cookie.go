package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/cartid"
)

// cookieStorage is a browser's durable storage for the active cart id. Writes
// set the response cookie and are visible to later reads of the same request.
type cookieStorage struct {
	c       *gin.Context
	cfg     CookieConfig
	written map[string]string
}

var _ cartid.Storage = (*cookieStorage)(nil)

func newCookieStorage(c *gin.Context, cfg CookieConfig) *cookieStorage {
	return &cookieStorage{c: c, cfg: cfg, written: make(map[string]string)}
}

func (s *cookieStorage) GetItem(key string) (string, bool, error) {
	if v, ok := s.written[key]; ok {
		return v, true, nil
	}
	v, err := s.c.Cookie(s.name(key))
	if err != nil || v == "" {
		return "", false, nil
	}
	return v, true, nil
}

func (s *cookieStorage) SetItem(key, value string) error {
	s.written[key] = value
	s.c.SetSameSite(http.SameSiteLaxMode)
	s.c.SetCookie(s.name(key), value, int(s.cfg.MaxAge.Seconds()), "/", "", s.cfg.Secure, true)
	return nil
}

func (s *cookieStorage) name(key string) string {
	if key == cartid.Slot {
		return s.cfg.Name
	}
	return key
}

func (h *handlers) resolver(c *gin.Context) *cartid.Resolver {
	return cartid.NewResolver(newCookieStorage(c, h.deps.Cookie))
}
