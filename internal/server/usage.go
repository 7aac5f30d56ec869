package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	quotadomain "github.com/adscopehq/adscope/internal/quota/domain"
	"github.com/adscopehq/adscope/pkg/db/pagination"
)

type recordUsageRequest struct {
	UserID     string  `json:"user_id"`
	ReportType string  `json:"report_type"`
	AccountID  *string `json:"account_id"`
	TimeRange  *string `json:"time_range"`
	CampaignID *string `json:"campaign_id"`
}

func (s *Server) CheckUsageLimit(c *gin.Context) {
	var query struct {
		UserID string `form:"user_id"`
		Limit  *int   `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	snapshot, err := s.quotaSvc.CheckLimit(c.Request.Context(), quotadomain.CheckLimitRequest{
		UserID: strings.TrimSpace(query.UserID),
		Limit:  query.Limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// An exhausted quota is a normal answer, not a failure.
	c.JSON(http.StatusOK, gin.H{"data": snapshot})
}

func (s *Server) RecordUsage(c *gin.Context) {
	var req recordUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.quotaSvc.RecordUsage(c.Request.Context(), quotadomain.RecordUsageRequest{
		UserID:     strings.TrimSpace(req.UserID),
		ReportType: quotadomain.ReportType(strings.TrimSpace(req.ReportType)),
		AccountID:  req.AccountID,
		TimeRange:  req.TimeRange,
		CampaignID: req.CampaignID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListUsage(c *gin.Context) {
	var query struct {
		UserID    string `form:"user_id"`
		PageToken string `form:"page_token"`
		PageSize  int    `form:"page_size,default=10"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.quotaSvc.List(c.Request.Context(), quotadomain.ListUsageRequest{
		UserID: strings.TrimSpace(query.UserID),
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
