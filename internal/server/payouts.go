package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	payoutdomain "github.com/smallbiznis/rewardzway/internal/payout/domain"
	"github.com/smallbiznis/rewardzway/pkg/db/pagination"
)

type weeklyPayoutRequest struct {
	ReferenceDate string `json:"reference_date"`
}

type payoutReportRequest struct {
	UserID    string `json:"user_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (s *Server) WeeklyPayout(c *gin.Context) {
	userID, err := userIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req weeklyPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, invalidRequestError())
		return
	}
	referenceDate, err := parseOptionalDate(req.ReferenceDate)
	if err != nil {
		AbortWithError(c, newValidationError("reference_date", "invalid_reference_date", "invalid reference_date"))
		return
	}

	resp, created, err := s.payoutSvc.WeeklyPayout(c.Request.Context(), userID, referenceDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"data": resp})
}

func (s *Server) ListPayouts(c *gin.Context) {
	var query struct {
		UserID    string `form:"user_id"`
		StartDate string `form:"start_date"`
		EndDate   string `form:"end_date"`
		pagination.Pagination
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	userID, err := parseOptionalSnowflakeID(query.UserID)
	if err != nil {
		AbortWithError(c, newValidationError("user_id", "invalid_user_id", "invalid user id"))
		return
	}
	start, err := parseDate(query.StartDate)
	if err != nil {
		AbortWithError(c, newValidationError("start_date", "invalid_start_date", "invalid start_date"))
		return
	}
	end, err := parseDate(query.EndDate)
	if err != nil {
		AbortWithError(c, newValidationError("end_date", "invalid_end_date", "invalid end_date"))
		return
	}

	resp, err := s.payoutSvc.PayoutsInRange(c.Request.Context(), payoutdomain.PayoutRangeRequest{
		UserID: userID,
		Start:  start,
		End:    end,
		Page:   query.Pagination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Payouts, "page_info": resp.PageInfo})
}

func (s *Server) CustomPayoutReport(c *gin.Context) {
	var req payoutReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	userID, err := parseOptionalSnowflakeID(req.UserID)
	if err != nil {
		AbortWithError(c, newValidationError("user_id", "invalid_user_id", "invalid user id"))
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		AbortWithError(c, newValidationError("start_date", "invalid_start_date", "invalid start_date"))
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		AbortWithError(c, newValidationError("end_date", "invalid_end_date", "invalid end_date"))
		return
	}

	resp, err := s.payoutSvc.CustomPayoutReport(c.Request.Context(), payoutdomain.CustomReportRequest{
		UserID:    userID,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UserDashboard(c *gin.Context) {
	userID, err := userIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.payoutSvc.UserDashboard(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) OrgDashboard(c *gin.Context) {
	resp, err := s.payoutSvc.OrgDashboard(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
