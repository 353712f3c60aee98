package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	themedomain "github.com/themeleon/themeleon/internal/theme/domain"
	"go.uber.org/zap"
)

type generateThemeRequest struct {
	Description string `json:"description"`
	UserID      string `json:"userId"`
}

// GenerateTheme resolves the caller, checks the quota ledger and asks the
// provider for a theme. The usage row is written asynchronously by the
// recorder after a successful generation.
func (s *Server) GenerateTheme(c *gin.Context) {
	var req generateThemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	id, err := s.resolver.Resolve(c.Request, req.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if !id.IsAccount() && s.limiter.Enabled() {
		result, limitErr := s.limiter.AllowAddress(c.Request.Context(), id.Address)
		if limitErr != nil {
			// Redis being down never blocks generation; the ledger is
			// still the authority.
			s.log.Warn("rate limiter unavailable", zap.Error(limitErr))
		} else if !result.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())+1))
			c.JSON(http.StatusTooManyRequests, errorResponse{
				Error: "Too many requests. Please wait a moment and try again.",
			})
			return
		}
	}

	theme, err := s.themeSvc.Generate(c.Request.Context(), themedomain.GenerateRequest{
		Description: req.Description,
		Identity:    id,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if !id.IsAccount() {
		s.quotaCache.Invalidate(id.Address)
	}

	c.JSON(http.StatusOK, theme)
}
