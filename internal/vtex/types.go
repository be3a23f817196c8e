package vtex

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CategoryNode is one node of the catalog category tree
type CategoryNode struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	HasChildren bool           `json:"hasChildren"`
	URL         string         `json:"url"`
	Children    []CategoryNode `json:"children"`
}

// ProductNode is the subset of a product search result the sync consumes.
// The raw JSON is persisted separately; this struct only carries the fields
// that map to columns.
type ProductNode struct {
	ProductID     string          `json:"productId"`
	ProductName   string          `json:"productName"`
	Brand         string          `json:"brand"`
	BrandID       int64           `json:"brandId"`
	LinkText      string          `json:"linkText"`
	Link          string          `json:"link"`
	CacheID       string          `json:"cacheId"`
	ReleaseDate   json.RawMessage `json:"releaseDate"`
	CategoriesIDs []string        `json:"categoriesIds"`
	Items         []ItemNode      `json:"items"`
}

// ItemNode is one SKU inside a product search result
type ItemNode struct {
	ItemID          string       `json:"itemId"`
	Name            string       `json:"name"`
	NameComplete    string       `json:"nameComplete"`
	Ean             string       `json:"ean"`
	MeasurementUnit string       `json:"measurementUnit"`
	UnitMultiplier  json.Number  `json:"unitMultiplier"`
	Sellers         []SellerNode `json:"sellers"`
}

// SellerNode is one seller offer inside a SKU. The platform spells the offer
// key "commertialOffer".
type SellerNode struct {
	SellerID        string     `json:"sellerId"`
	SellerName      string     `json:"sellerName"`
	SellerDefault   bool       `json:"sellerDefault"`
	CommertialOffer *OfferNode `json:"commertialOffer"`
}

// OfferNode is the commercial offer block of a seller
type OfferNode struct {
	Price                float64 `json:"Price"`
	ListPrice            float64 `json:"ListPrice"`
	SpotPrice            float64 `json:"spotPrice"`
	PriceWithoutDiscount float64 `json:"PriceWithoutDiscount"`
	PriceValidUntil      string  `json:"PriceValidUntil"`
	AvailableQuantity    int     `json:"AvailableQuantity"`
}

// ParseProduct decodes one raw product node from a search response
func ParseProduct(raw json.RawMessage) (*ProductNode, error) {
	var p ProductNode
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to parse product node: %w", err)
	}
	return &p, nil
}

// ParseProductID parses an external product id, rejecting anything that is
// not a positive integer.
func ParseProductID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ParseReleaseDate accepts the two shapes the platform emits: an ISO-8601
// string or Unix milliseconds. Returns nil for anything else.
func ParseReleaseDate(raw json.RawMessage) *time.Time {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var millis int64
	if err := json.Unmarshal(raw, &millis); err == nil {
		t := time.UnixMilli(millis).UTC()
		return &t
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// ParseUnitMultiplier parses the unit multiplier, defaulting to 1 when the
// field is absent or unparseable.
func ParseUnitMultiplier(raw json.Number) float64 {
	if raw == "" {
		return 1
	}
	v, err := raw.Float64()
	if err != nil || v <= 0 {
		return 1
	}
	return v
}

// NormalizeCategoryIDs strips the wrapping slashes of categoriesIds entries
// ("/123/456/" -> [123 456]) and parses them as ints. Malformed segments are
// dropped.
func NormalizeCategoryIDs(categoriesIDs []string) []int64 {
	seen := make(map[int64]bool)
	ids := make([]int64, 0, len(categoriesIDs))
	for _, entry := range categoriesIDs {
		for _, seg := range strings.Split(strings.Trim(entry, "/"), "/") {
			if seg == "" {
				continue
			}
			id, err := strconv.ParseInt(seg, 10, 64)
			if err != nil || id <= 0 {
				continue
			}
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// PickupPointInfo is one pickup location from discovery
type PickupPointInfo struct {
	ID             string
	Name           string
	GeoCoordinates []float64 // [lon, lat]
}

// Longitude returns the first geo coordinate, if present
func (p *PickupPointInfo) Longitude() (float64, bool) {
	if len(p.GeoCoordinates) < 2 {
		return 0, false
	}
	return p.GeoCoordinates[0], true
}

// Latitude returns the second geo coordinate, if present
func (p *PickupPointInfo) Latitude() (float64, bool) {
	if len(p.GeoCoordinates) < 2 {
		return 0, false
	}
	return p.GeoCoordinates[1], true
}

// pickupPointsEnvelope is the checkout pickup-points response: a paged list
// of {distance, pickupPoint} wrappers.
type pickupPointsEnvelope struct {
	Items []struct {
		Distance    float64         `json:"distance"`
		PickupPoint pickupPointNode `json:"pickupPoint"`
	} `json:"items"`
}

type pickupPointNode struct {
	ID             string    `json:"id"`
	FriendlyName   string    `json:"friendlyName"`
	Name           string    `json:"name"`
	GeoCoordinates []float64 `json:"geoCoordinates"`
	Address        *struct {
		GeoCoordinates []float64 `json:"geoCoordinates"`
	} `json:"address"`
}

func (n *pickupPointNode) toInfo() PickupPointInfo {
	name := n.FriendlyName
	if name == "" {
		name = n.Name
	}
	coords := n.GeoCoordinates
	if len(coords) < 2 && n.Address != nil {
		coords = n.Address.GeoCoordinates
	}
	return PickupPointInfo{ID: n.ID, Name: name, GeoCoordinates: coords}
}

// parsePickupPoints accepts both response shapes the platform uses: the paged
// envelope {"items":[{"pickupPoint":{...}}]} and a bare array of points.
func parsePickupPoints(body []byte) ([]PickupPointInfo, error) {
	var envelope pickupPointsEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Items != nil {
		points := make([]PickupPointInfo, 0, len(envelope.Items))
		for _, item := range envelope.Items {
			if item.PickupPoint.ID == "" {
				continue
			}
			points = append(points, item.PickupPoint.toInfo())
		}
		return points, nil
	}

	var flat []pickupPointNode
	if err := json.Unmarshal(body, &flat); err != nil {
		return nil, fmt.Errorf("failed to parse pickup points: %w", err)
	}
	points := make([]PickupPointInfo, 0, len(flat))
	for _, n := range flat {
		if n.ID == "" {
			continue
		}
		points = append(points, n.toInfo())
	}
	return points, nil
}

// RegionSeller is one seller able to serve a region
type RegionSeller struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// regionNode is one entry of the regions response
type regionNode struct {
	ID      string         `json:"id"`
	Sellers []RegionSeller `json:"sellers"`
}

// SimulationResult is the extracted outcome of a cart simulation
type SimulationResult struct {
	Available bool
	Price     *float64
	ListPrice *float64
	Quantity  int
	Currency  string
	Raw       []byte // full response body
}

// simulationResponse mirrors the order form simulation payload
type simulationResponse struct {
	Items                []simulationItem      `json:"items"`
	LogisticsInfo        []simulationLogistics `json:"logisticsInfo"`
	StorePreferencesData *storePreferences     `json:"storePreferencesData"`
}

type simulationItem struct {
	ID           string `json:"id"`
	Quantity     int    `json:"quantity"`
	Seller       string `json:"seller"`
	SellingPrice *int64 `json:"sellingPrice"` // cents
	ListPrice    *int64 `json:"listPrice"`    // cents
	Availability string `json:"availability"`
}

type simulationLogistics struct {
	ItemIndex int             `json:"itemIndex"`
	Slas      []simulationSla `json:"slas"`
}

type simulationSla struct {
	ID                       string            `json:"id"`
	DeliveryChannel          string            `json:"deliveryChannel"`
	PickupPointID            string            `json:"pickupPointId"`
	AvailableDeliveryWindows []json.RawMessage `json:"availableDeliveryWindows"`
}

type storePreferences struct {
	CountryCode  string `json:"countryCode"`
	CurrencyCode string `json:"currencyCode"`
}

// simulationRequest is the cart body POSTed to the simulation endpoint
type simulationRequest struct {
	Items         []simulationRequestItem `json:"items"`
	Country       string                  `json:"country"`
	PostalCode    string                  `json:"postalCode"`
	LogisticsInfo []logisticsRequestInfo  `json:"logisticsInfo,omitempty"`
}

type simulationRequestItem struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
	Seller   string `json:"seller"`
}

type logisticsRequestInfo struct {
	ItemIndex               int    `json:"itemIndex"`
	SelectedSla             string `json:"selectedSla"`
	SelectedDeliveryChannel string `json:"selectedDeliveryChannel"`
	AddressID               string `json:"addressId"`
}
