package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/escrow/internal/audit/domain"
	obsctx "github.com/smallbiznis/escrow/internal/observability/context"
)

const (
	contextUserIDKey     = "user_id"
	contextSubscriberKey = "subscriber"
)

// AuthRequired authenticates requests with a JWT bearer token. The token
// subject becomes the acting user for every offer operation.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		parts := strings.Fields(header)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		principal, err := s.verifier.Verify(parts[1])
		if err != nil {
			AbortWithError(c, err)
			return
		}

		req := obsctx.FromGin(c)
		req.ActorType = string(auditdomain.ActorTypeUser)
		req.ActorID = principal.UserID.String()
		ctx := obsctx.WithRequest(c.Request.Context(), req)

		c.Set(contextUserIDKey, principal.UserID)
		c.Set(contextSubscriberKey, principal.Subscriber)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) userID(c *gin.Context) (snowflake.ID, bool) {
	value, ok := c.Get(contextUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := value.(snowflake.ID)
	return id, ok && id != 0
}

func (s *Server) isSubscriber(c *gin.Context) bool {
	return c.GetBool(contextSubscriberKey)
}
