package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	reportcachedomain "github.com/adscopehq/adscope/internal/reportcache/domain"
)

type setCachedReportRequest struct {
	UserID     string `json:"user_id"`
	AccountID  string `json:"account_id"`
	TimeRange  string `json:"time_range"`
	CampaignID string `json:"campaign_id"`

	ReportContent     string          `json:"report_content"`
	ReportType        string          `json:"report_type"`
	ActiveCampaigns   *int            `json:"active_campaigns"`
	AverageRoas       *float64        `json:"average_roas"`
	RecentActivity    json.RawMessage `json:"recent_activity"`
	PerformanceCharts json.RawMessage `json:"performance_charts"`
}

func (s *Server) GetCachedReport(c *gin.Context) {
	var query struct {
		UserID     string `form:"user_id"`
		AccountID  string `form:"account_id"`
		TimeRange  string `form:"time_range"`
		CampaignID string `form:"campaign_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	view, err := s.reportCacheSvc.Get(c.Request.Context(), reportcachedomain.GetRequest{
		UserID: strings.TrimSpace(query.UserID),
		Key: reportcachedomain.Key{
			AccountID:  query.AccountID,
			TimeRange:  query.TimeRange,
			CampaignID: query.CampaignID,
		},
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": view})
}

func (s *Server) SetCachedReport(c *gin.Context) {
	var req setCachedReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	cached, err := s.reportCacheSvc.Set(c.Request.Context(), reportcachedomain.SetRequest{
		UserID: strings.TrimSpace(req.UserID),
		Key: reportcachedomain.Key{
			AccountID:  req.AccountID,
			TimeRange:  req.TimeRange,
			CampaignID: req.CampaignID,
		},
		ReportContent:     req.ReportContent,
		ReportType:        req.ReportType,
		ActiveCampaigns:   req.ActiveCampaigns,
		AverageRoas:       req.AverageRoas,
		RecentActivity:    req.RecentActivity,
		PerformanceCharts: req.PerformanceCharts,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": cached})
}

func (s *Server) ClearCachedReports(c *gin.Context) {
	var query struct {
		UserID string `form:"user_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	cleared, err := s.reportCacheSvc.ClearUser(c.Request.Context(), strings.TrimSpace(query.UserID))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": cleared})
}

func (s *Server) CleanupExpiredReports(c *gin.Context) {
	removed, err := s.reportCacheSvc.CleanupExpired(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"removed": removed}})
}
