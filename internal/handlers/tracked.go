package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gondola/availability-service/internal/database"
	"github.com/gondola/availability-service/internal/text"
)

// TrackedProductResponse is the wire shape of one tracked EAN
type TrackedProductResponse struct {
	Ean         string  `json:"ean"`
	Owner       string  `json:"owner"`
	ProductName *string `json:"productName,omitempty"`
	Track       bool    `json:"track"`
}

// UpsertTrackedRequest adds or updates one tracked EAN
type UpsertTrackedRequest struct {
	Ean         string `json:"ean" binding:"required"`
	Owner       string `json:"owner" binding:"required"`
	ProductName string `json:"productName,omitempty"`
	Track       *bool  `json:"track,omitempty"`
}

// ListTracked returns the tracked product list
// GET /internal/tracked?all=true
func ListTracked(c *gin.Context) {
	onlyActive := true
	if v := c.Query("all"); v != "" {
		all, err := strconv.ParseBool(v)
		if err == nil && all {
			onlyActive = false
		}
	}

	tracked, err := database.ListTrackedProducts(c.Request.Context(), onlyActive)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list tracked products"})
		return
	}

	out := make([]TrackedProductResponse, 0, len(tracked))
	for _, t := range tracked {
		out = append(out, TrackedProductResponse{
			Ean:         t.Ean,
			Owner:       t.Owner,
			ProductName: t.ProductName,
			Track:       t.Track,
		})
	}
	c.JSON(http.StatusOK, gin.H{"tracked": out})
}

// UpsertTracked adds or updates one tracked EAN
// PUT /internal/tracked
func UpsertTracked(c *gin.Context) {
	var req UpsertTrackedRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ean and owner are required"})
		return
	}

	ean := text.NormalizeEan(req.Ean)
	if ean == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ean is not a valid barcode"})
		return
	}

	track := true
	if req.Track != nil {
		track = *req.Track
	}
	t := database.TrackedProduct{
		Ean:   ean,
		Owner: req.Owner,
		Track: track,
	}
	if req.ProductName != "" {
		t.ProductName = &req.ProductName
	}

	if err := database.UpsertTrackedProduct(c.Request.Context(), &t); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upsert tracked product"})
		return
	}
	c.JSON(http.StatusOK, TrackedProductResponse{
		Ean:         t.Ean,
		Owner:       t.Owner,
		ProductName: t.ProductName,
		Track:       t.Track,
	})
}
