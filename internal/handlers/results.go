package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gondola/availability-service/internal/database"
)

// ResultStatsResponse summarizes what has been persisted for one retailer
type ResultStatsResponse struct {
	Host                string `json:"host"`
	Products            int    `json:"products"`
	ActiveStores        int    `json:"activeStores"`
	MappedStores        int    `json:"mappedStores"`
	AvailabilityResults int    `json:"availabilityResults"`
}

// AvailabilityRow is the wire shape of one probe result
type AvailabilityRow struct {
	Ean               string    `json:"ean"`
	SkuID             string    `json:"skuId"`
	SellerID          string    `json:"sellerId"`
	StoreID           int64     `json:"storeId"`
	SalesChannel      int       `json:"salesChannel"`
	IsAvailable       bool      `json:"isAvailable"`
	Price             *float64  `json:"price,omitempty"`
	ListPrice         *float64  `json:"listPrice,omitempty"`
	AvailableQuantity *int      `json:"availableQuantity,omitempty"`
	Currency          string    `json:"currency"`
	ErrorMessage      *string   `json:"errorMessage,omitempty"`
	CheckedAt         time.Time `json:"checkedAt"`
}

// GetResultStats summarizes persisted data for one retailer
// GET /internal/results/stats?host=
func GetResultStats(c *gin.Context) {
	host := c.Query("host")
	if host == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "host query parameter is required"})
		return
	}
	ctx := c.Request.Context()

	products, err := database.CountProducts(ctx, host)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count products"})
		return
	}
	results, err := database.CountAvailabilityResults(ctx, host)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count availability results"})
		return
	}
	storeRows, err := database.ListActiveStores(ctx, host)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list stores"})
		return
	}

	mapped := 0
	for _, st := range storeRows {
		if st.VtexPickupPointID != nil {
			mapped++
		}
	}

	c.JSON(http.StatusOK, ResultStatsResponse{
		Host:                host,
		Products:            products,
		ActiveStores:        len(storeRows),
		MappedStores:        mapped,
		AvailabilityResults: results,
	})
}

// ListRecentResults returns the newest probe rows for one retailer
// GET /internal/results/recent?host=&limit=
func ListRecentResults(c *gin.Context) {
	host := c.Query("host")
	if host == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "host query parameter is required"})
		return
	}

	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	results, err := database.ListRecentAvailabilityResults(c.Request.Context(), host, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list availability results"})
		return
	}

	out := make([]AvailabilityRow, 0, len(results))
	for _, r := range results {
		out = append(out, AvailabilityRow{
			Ean:               r.Ean,
			SkuID:             r.SkuID,
			SellerID:          r.SellerID,
			StoreID:           r.StoreID,
			SalesChannel:      r.SalesChannel,
			IsAvailable:       r.IsAvailable,
			Price:             r.Price,
			ListPrice:         r.ListPrice,
			AvailableQuantity: r.AvailableQuantity,
			Currency:          r.Currency,
			ErrorMessage:      r.ErrorMessage,
			CheckedAt:         r.CheckedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"host": host, "results": out})
}
