package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	rewarddomain "github.com/smallbiznis/rewardzway/internal/reward/domain"
)

func (s *Server) AllocateReward(c *gin.Context) {
	var req rewarddomain.AllocateRewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.rewardSvc.AllocateReward(c.Request.Context(), rewarddomain.AllocateRewardRequest{
		NewUserID:      strings.TrimSpace(req.NewUserID),
		ReferredUserID: strings.TrimSpace(req.ReferredUserID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) OrderPaid(c *gin.Context) {
	userID, err := userIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.rewardSvc.OnOrderPaid(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RecordSpotReward(c *gin.Context) {
	var req rewarddomain.RecordSpotRewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.rewardSvc.RecordSpotReward(c.Request.Context(), rewarddomain.RecordSpotRewardRequest{
		ReferrerID:    strings.TrimSpace(req.ReferrerID),
		NewReferralID: strings.TrimSpace(req.NewReferralID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) AttachReferral(c *gin.Context) {
	userID, err := userIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req rewarddomain.AttachReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	mobile := strings.TrimSpace(req.ReferralMobile)
	if mobile == "" {
		AbortWithError(c, newValidationError("referral_id", "required", "referral_id is required"))
		return
	}

	resp, err := s.rewardSvc.AttachReferral(c.Request.Context(), rewarddomain.AttachReferralRequest{
		UserID:         userID,
		ReferralMobile: mobile,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) MatchingReport(c *gin.Context) {
	userID, err := userIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.rewardSvc.MatchingReport(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
