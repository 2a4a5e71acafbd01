package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	rewardclaimdomain "github.com/smallbiznis/rewardzway/internal/rewardclaim/domain"
)

type upsertClaimRequest struct {
	Criteria  string `json:"criteria"`
	Status    string `json:"status"`
	ClaimedOn string `json:"claimed_on"`
}

func (s *Server) CriteriaProgress(c *gin.Context) {
	userID, err := userIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.claimSvc.CriteriaProgress(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpsertClaim(c *gin.Context) {
	userID, err := userIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req upsertClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	claimedOn, err := parseOptionalDate(req.ClaimedOn)
	if err != nil {
		AbortWithError(c, newValidationError("claimed_on", "invalid_claimed_on", "invalid claimed_on"))
		return
	}

	resp, err := s.claimSvc.UpsertClaim(c.Request.Context(), rewardclaimdomain.UpsertClaimRequest{
		UserID:    userID,
		Criteria:  strings.TrimSpace(req.Criteria),
		Status:    strings.TrimSpace(req.Status),
		ClaimedOn: claimedOn,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
