package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	rewardconfigdomain "github.com/smallbiznis/rewardzway/internal/rewardconfig/domain"
)

func (s *Server) ListConfigurations(c *gin.Context) {
	resp, err := s.configSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpsertConfiguration(c *gin.Context) {
	var req rewardconfigdomain.UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.configSvc.Upsert(c.Request.Context(), rewardconfigdomain.UpsertRequest{
		Name:    strings.TrimSpace(c.Param("name")),
		Kind:    strings.TrimSpace(req.Kind),
		Ordinal: req.Ordinal,
		Value:   strings.TrimSpace(req.Value),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
