package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/themeleon/themeleon/internal/identity"
)

type createCheckoutRequest struct {
	UserID    string `json:"userId"`
	UserEmail string `json:"userEmail"`
}

type createCheckoutResponse struct {
	URL string `json:"url"`
}

// CreateCheckout opens a Stripe checkout session for the authenticated
// account. Anonymous callers cannot buy credits; there is no balance row to
// credit.
func (s *Server) CreateCheckout(c *gin.Context) {
	var req createCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		AbortWithError(c, identity.ErrUnauthenticated)
		return
	}

	id, err := s.resolver.Resolve(c.Request, req.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !id.IsAccount() {
		AbortWithError(c, identity.ErrUnauthenticated)
		return
	}

	origin := strings.TrimSpace(c.GetHeader("Origin"))
	url, err := s.checkoutSvc.CreateSession(c.Request.Context(), id.AccountID, req.UserEmail, origin)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, createCheckoutResponse{URL: url})
}
