package context

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// FromGin assembles the request identity from the gin context. Values already
// on the request context win over gin keys.
func FromGin(c *gin.Context) Request {
	if c == nil || c.Request == nil {
		return Request{}
	}
	req := RequestFrom(c.Request.Context())
	if req.ID == "" {
		req.ID = strings.TrimSpace(c.GetString("request_id"))
	}
	if req.IPAddress == "" {
		req.IPAddress = c.ClientIP()
	}
	if req.UserAgent == "" {
		req.UserAgent = c.Request.UserAgent()
	}
	return req
}
