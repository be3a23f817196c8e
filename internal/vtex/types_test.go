package vtex

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseProductID tests external product id validation
func TestParseProductID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int64
		ok       bool
	}{
		{"Plain id", "12345", 12345, true},
		{"Surrounding whitespace", " 678 ", 678, true},
		{"Zero rejected", "0", 0, false},
		{"Negative rejected", "-3", 0, false},
		{"Non-numeric rejected", "abc123", 0, false},
		{"Empty rejected", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := ParseProductID(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, id)
		})
	}
}

// TestParseReleaseDate tests the two date shapes the platform emits
func TestParseReleaseDate(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected *time.Time
	}{
		{
			name:     "Unix milliseconds",
			raw:      `1683720000000`,
			expected: timePtr(time.Date(2023, 5, 10, 12, 0, 0, 0, time.UTC)),
		},
		{
			name:     "RFC3339 string",
			raw:      `"2023-05-10T12:00:00Z"`,
			expected: timePtr(time.Date(2023, 5, 10, 12, 0, 0, 0, time.UTC)),
		},
		{
			name:     "Bare ISO without zone",
			raw:      `"2023-05-10T12:00:00"`,
			expected: timePtr(time.Date(2023, 5, 10, 12, 0, 0, 0, time.UTC)),
		},
		{"JSON null", `null`, nil},
		{"Empty string", `""`, nil},
		{"Garbage string", `"next tuesday"`, nil},
		{"Absent", ``, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseReleaseDate(json.RawMessage(tt.raw))
			if tt.expected == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, got.Equal(*tt.expected), "got %v, want %v", got, tt.expected)
		})
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}

// TestParseUnitMultiplier tests the fallback-to-1 behavior
func TestParseUnitMultiplier(t *testing.T) {
	tests := []struct {
		name     string
		raw      json.Number
		expected float64
	}{
		{"Fractional", json.Number("2.5"), 2.5},
		{"Integer", json.Number("3"), 3},
		{"Absent", json.Number(""), 1},
		{"Zero", json.Number("0"), 1},
		{"Negative", json.Number("-1"), 1},
		{"Garbage", json.Number("abc"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseUnitMultiplier(tt.raw))
		})
	}
}

// TestNormalizeCategoryIDs tests the slash-wrapped category path format
func TestNormalizeCategoryIDs(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []int64
	}{
		{"Single path", []string{"/123/456/"}, []int64{123, 456}},
		{"Deduped across entries", []string{"/123/", "/123/456/"}, []int64{123, 456}},
		{"Garbage segments dropped", []string{"/123/abc/456/"}, []int64{123, 456}},
		{"Negative and zero dropped", []string{"/0/-5/7/"}, []int64{7}},
		{"Empty input", nil, []int64{}},
		{"Empty entry", []string{""}, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeCategoryIDs(tt.input))
		})
	}
}

// TestParseProduct verifies the platform's "commertialOffer" spelling and the
// fields the sync reads off a search result.
func TestParseProduct(t *testing.T) {
	raw := json.RawMessage(`{
		"productId": "98765",
		"productName": "Yerba Mate Taragui 1kg",
		"brand": "Taragui",
		"brandId": 2000123,
		"linkText": "yerba-mate-taragui-1kg",
		"link": "https://www.vea.com.ar/yerba-mate-taragui-1kg/p",
		"cacheId": "sp-98765",
		"categoriesIds": ["/100/110/"],
		"items": [
			{
				"itemId": "111",
				"name": "Yerba Mate Taragui 1kg",
				"ean": "7790387011456",
				"measurementUnit": "un",
				"unitMultiplier": 1.0,
				"sellers": [
					{
						"sellerId": "1",
						"sellerName": "veaargentina",
						"sellerDefault": true,
						"commertialOffer": {
							"Price": 3500.5,
							"ListPrice": 3900,
							"AvailableQuantity": 12
						}
					}
				]
			}
		]
	}`)

	p, err := ParseProduct(raw)
	require.NoError(t, err)

	assert.Equal(t, "98765", p.ProductID)
	assert.Equal(t, "Taragui", p.Brand)
	assert.Equal(t, int64(2000123), p.BrandID)
	require.Len(t, p.Items, 1)

	item := p.Items[0]
	assert.Equal(t, "111", item.ItemID)
	assert.Equal(t, "7790387011456", item.Ean)
	require.Len(t, item.Sellers, 1)

	seller := item.Sellers[0]
	assert.Equal(t, "1", seller.SellerID)
	assert.True(t, seller.SellerDefault)
	require.NotNil(t, seller.CommertialOffer)
	assert.Equal(t, 3500.5, seller.CommertialOffer.Price)
	assert.Equal(t, 12, seller.CommertialOffer.AvailableQuantity)
}

func TestParseProductRejectsMalformed(t *testing.T) {
	_, err := ParseProduct(json.RawMessage(`{"productId": [1]}`))
	assert.Error(t, err)
}

// TestParsePickupPointsEnvelope tests the paged {"items":[...]} response shape
func TestParsePickupPointsEnvelope(t *testing.T) {
	body := []byte(`{
		"items": [
			{
				"distance": 1.2,
				"pickupPoint": {
					"id": "vea_5402",
					"friendlyName": "Vea Neuquen Centro",
					"name": "5402",
					"geoCoordinates": [-68.0591, -38.9516]
				}
			},
			{
				"distance": 3.4,
				"pickupPoint": {
					"id": "vea_5411",
					"name": "Vea Cipolletti",
					"address": {"geoCoordinates": [-67.9944, -38.9339]}
				}
			},
			{
				"distance": 9.9,
				"pickupPoint": {"id": ""}
			}
		]
	}`)

	points, err := parsePickupPoints(body)
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.Equal(t, "vea_5402", points[0].ID)
	assert.Equal(t, "Vea Neuquen Centro", points[0].Name, "friendlyName wins over name")
	lon, ok := points[0].Longitude()
	assert.True(t, ok)
	assert.Equal(t, -68.0591, lon)
	lat, ok := points[0].Latitude()
	assert.True(t, ok)
	assert.Equal(t, -38.9516, lat)

	assert.Equal(t, "Vea Cipolletti", points[1].Name)
	assert.Equal(t, []float64{-67.9944, -38.9339}, points[1].GeoCoordinates, "coordinates fall back to the address block")
}

// TestParsePickupPointsBareArray tests the flat array response shape
func TestParsePickupPointsBareArray(t *testing.T) {
	body := []byte(`[
		{"id": "jumbo_101", "friendlyName": "Jumbo Palermo", "geoCoordinates": [-58.4266, -34.5795]},
		{"id": "", "friendlyName": "ghost"}
	]`)

	points, err := parsePickupPoints(body)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "jumbo_101", points[0].ID)
}

func TestParsePickupPointsMalformed(t *testing.T) {
	_, err := parsePickupPoints([]byte(`{"items": "nope"`))
	assert.Error(t, err)
}

func TestPickupPointCoordinatesMissing(t *testing.T) {
	p := PickupPointInfo{ID: "x", GeoCoordinates: []float64{-58.4}}

	_, ok := p.Longitude()
	assert.False(t, ok)
	_, ok = p.Latitude()
	assert.False(t, ok)
}
