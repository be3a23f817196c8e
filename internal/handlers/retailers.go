package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gondola/availability-service/internal/database"
)

// RetailerResponse is the wire shape of one retailer config row
type RetailerResponse struct {
	RetailerID    int    `json:"retailerId"`
	Name          string `json:"name"`
	Host          string `json:"host"`
	SalesChannels []int  `json:"salesChannels"`
	Enabled       bool   `json:"enabled"`
}

// UpsertRetailerRequest creates or updates a retailer config keyed by host
type UpsertRetailerRequest struct {
	Name          string `json:"name" binding:"required"`
	Host          string `json:"host" binding:"required"`
	SalesChannels string `json:"salesChannels,omitempty"`
	Enabled       *bool  `json:"enabled,omitempty"`
}

// ListRetailers returns every configured retailer
// GET /internal/retailers
func ListRetailers(c *gin.Context) {
	retailers, err := database.ListRetailers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list retailers"})
		return
	}

	out := make([]RetailerResponse, 0, len(retailers))
	for _, r := range retailers {
		out = append(out, RetailerResponse{
			RetailerID:    r.RetailerID,
			Name:          r.Name,
			Host:          r.Host,
			SalesChannels: r.SalesChannelList(),
			Enabled:       r.Enabled,
		})
	}
	c.JSON(http.StatusOK, gin.H{"retailers": out})
}

// UpsertRetailerConfig creates or updates one retailer config
// PUT /internal/retailers
func UpsertRetailerConfig(c *gin.Context) {
	var req UpsertRetailerRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and host are required"})
		return
	}

	host := strings.TrimSpace(req.Host)
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "host must be a full URL"})
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	channels := req.SalesChannels
	if channels == "" {
		channels = "1"
	}

	r := database.Retailer{
		Name:          req.Name,
		Host:          host,
		SalesChannels: channels,
		Enabled:       enabled,
	}
	if err := database.UpsertRetailer(c.Request.Context(), &r); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upsert retailer"})
		return
	}

	saved, err := database.GetRetailerByHost(c.Request.Context(), host)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read back retailer"})
		return
	}
	c.JSON(http.StatusOK, RetailerResponse{
		RetailerID:    saved.RetailerID,
		Name:          saved.Name,
		Host:          saved.Host,
		SalesChannels: saved.SalesChannelList(),
		Enabled:       saved.Enabled,
	})
}
