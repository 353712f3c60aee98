package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/themeleon/themeleon/internal/identity"
)

type quotaCheckResponse struct {
	Allowed   bool `json:"allowed"`
	Remaining int  `json:"remaining"`
}

// CheckIPLimit previews the anonymous allowance for the caller's address.
// Results are cached briefly; the cache is dropped after each generation so
// the next check reflects the spent allowance.
func (s *Server) CheckIPLimit(c *gin.Context) {
	address := identity.ClientIP(c.Request)

	if decision, ok := s.quotaCache.Get(address); ok {
		c.JSON(http.StatusOK, quotaCheckResponse{
			Allowed:   decision.Allowed,
			Remaining: decision.Remaining,
		})
		return
	}

	decision, err := s.entitlementSvc.Preview(c.Request.Context(), identity.Identity{
		Kind:    identity.KindAnonymousIP,
		Address: address,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.quotaCache.Set(address, decision)
	c.JSON(http.StatusOK, quotaCheckResponse{
		Allowed:   decision.Allowed,
		Remaining: decision.Remaining,
	})
}
