package vtex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	s, err := NewSession(SessionConfig{
		Host:   srv.URL,
		Retry:  fastRetry(0),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	return NewClient(s, zerolog.Nop()), srv.Close
}

// TestCategoryTree verifies the tree endpoint path and node parsing
func TestCategoryTree(t *testing.T) {
	var gotPath string
	client, closeFn := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": 100, "name": "Almacén", "hasChildren": true, "children": [
				{"id": 110, "name": "Yerbas", "hasChildren": false, "children": []}
			]},
			{"id": 200, "name": "Bebidas", "hasChildren": false, "children": []}
		]`))
	}))
	defer closeFn()

	tree, err := client.CategoryTree(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "/api/catalog_system/pub/category/tree/3", gotPath)
	require.Len(t, tree, 2)
	assert.Equal(t, int64(100), tree[0].ID)
	assert.Equal(t, "Almacén", tree[0].Name)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, int64(110), tree[0].Children[0].ID)

	_, err = client.CategoryTree(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "/api/catalog_system/pub/category/tree/50", gotPath, "non-positive depth defaults to 50")
}

// TestSearchByCategory verifies the category facet query and paging window
func TestSearchByCategory(t *testing.T) {
	var calls int32
	var gotQuery map[string][]string
	client, closeFn := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		gotQuery = r.URL.Query()
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte(`[{"productId": "1"}, {"productId": "2"}]`))
	}))
	defer closeFn()

	products, err := client.SearchByCategory(context.Background(), 100, 0, 49, 1)
	require.NoError(t, err)
	assert.Len(t, products, 2)
	assert.Equal(t, []string{"C:/100/"}, gotQuery["fq"])
	assert.Equal(t, []string{"0"}, gotQuery["_from"])
	assert.Equal(t, []string{"49"}, gotQuery["_to"])
	assert.Equal(t, []string{"1"}, gotQuery["sc"])

	// sc <= 0 omits the sales channel
	_, err = client.SearchByCategory(context.Background(), 100, 0, 49, 0)
	require.NoError(t, err)
	_, present := gotQuery["sc"]
	assert.False(t, present)

	// Inverted window never reaches the platform
	atomic.StoreInt32(&calls, 0)
	products, err = client.SearchByCategory(context.Background(), 100, 50, 49, 1)
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

// TestSearchByFulltext verifies the fulltext query used by discovery
func TestSearchByFulltext(t *testing.T) {
	var gotQuery map[string][]string
	client, closeFn := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(`[{"productId": "9"}]`))
	}))
	defer closeFn()

	products, err := client.SearchByFulltext(context.Background(), "7790387011456", 0, 49)
	require.NoError(t, err)
	assert.Len(t, products, 1)
	assert.Equal(t, []string{"7790387011456"}, gotQuery["ft"])
}

// TestSearchErrorStatus verifies that non-2xx search responses surface as
// platform errors with the status attached.
func TestSearchErrorStatus(t *testing.T) {
	client, closeFn := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "bad facet"}`))
	}))
	defer closeFn()

	_, err := client.SearchByCategory(context.Background(), 100, 0, 49, 1)
	require.Error(t, err)

	var pe *PlatformError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusBadRequest, pe.Status)
	assert.Equal(t, "SearchByCategory", pe.Context["operation"])
}

// TestPickupPointsByGeo verifies the lon;lat coordinate format
func TestPickupPointsByGeo(t *testing.T) {
	var gotQuery map[string][]string
	client, closeFn := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(`{"items": [{"pickupPoint": {"id": "vea_5402", "friendlyName": "Vea Neuquen"}}]}`))
	}))
	defer closeFn()

	points, err := client.PickupPointsByGeo(context.Background(), -68.0591, -38.9516, 1)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "vea_5402", points[0].ID)
	assert.Equal(t, []string{"-68.0591;-38.9516"}, gotQuery["geoCoordinates"])
	assert.Equal(t, []string{"1"}, gotQuery["sc"])
}

// TestPickupPointsByPostal verifies the postal fallback and country default
func TestPickupPointsByPostal(t *testing.T) {
	var gotQuery map[string][]string
	client, closeFn := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(`[{"id": "vea_8300", "name": "Vea Roca"}]`))
	}))
	defer closeFn()

	points, err := client.PickupPointsByPostal(context.Background(), "8300", "", 0)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, []string{"8300"}, gotQuery["postalCode"])
	assert.Equal(t, []string{"AR"}, gotQuery["countryCode"], "country defaults to AR")
	_, present := gotQuery["sc"]
	assert.False(t, present)
}

// TestRegionSellers verifies the per-region seller flattening
func TestRegionSellers(t *testing.T) {
	client, closeFn := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id": "v2.1", "sellers": [{"id": "1", "name": "veaargentina"}]},
			{"id": "v2.2", "sellers": [{"id": "2", "name": "veapatagonia"}]}
		]`))
	}))
	defer closeFn()

	sellers, err := client.RegionSellers(context.Background(), "8300", "", 1)
	require.NoError(t, err)
	require.Len(t, sellers, 2)
	assert.Equal(t, "1", sellers[0].ID)
	assert.Equal(t, "veapatagonia", sellers[1].Name)
}

// TestSimulatePickupAvailable verifies the full happy path: the cart body,
// the sc parameter, cents-to-unit prices, and the delivery-window quantity.
func TestSimulatePickupAvailable(t *testing.T) {
	var gotSc string
	var gotBody struct {
		Items []struct {
			ID       string `json:"id"`
			Quantity int    `json:"quantity"`
			Seller   string `json:"seller"`
		} `json:"items"`
		Country       string `json:"country"`
		PostalCode    string `json:"postalCode"`
		LogisticsInfo []struct {
			ItemIndex               int    `json:"itemIndex"`
			SelectedSla             string `json:"selectedSla"`
			SelectedDeliveryChannel string `json:"selectedDeliveryChannel"`
			AddressID               string `json:"addressId"`
		} `json:"logisticsInfo"`
	}
	client, closeFn := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSc = r.URL.Query().Get("sc")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{
			"items": [{"id": "111", "quantity": 1, "seller": "1", "sellingPrice": 125050, "listPrice": 140000, "availability": "available"}],
			"logisticsInfo": [{"itemIndex": 0, "slas": [
				{"id": "Retiro en sucursal", "deliveryChannel": "pickup-in-point", "pickupPointId": "vea_5402", "availableDeliveryWindows": [{}, {}]}
			]}],
			"storePreferencesData": {"countryCode": "ARG", "currencyCode": "ARS"}
		}`))
	}))
	defer closeFn()

	sim, err := client.SimulatePickup(context.Background(), "111", "1", 1, "", "8300", "vea_5402")
	require.NoError(t, err)

	assert.Equal(t, "1", gotSc)
	require.Len(t, gotBody.Items, 1)
	assert.Equal(t, "111", gotBody.Items[0].ID)
	assert.Equal(t, 1, gotBody.Items[0].Quantity)
	assert.Equal(t, "1", gotBody.Items[0].Seller)
	assert.Equal(t, "ARG", gotBody.Country, "country defaults to ARG")
	assert.Equal(t, "8300", gotBody.PostalCode)
	require.Len(t, gotBody.LogisticsInfo, 1)
	assert.Equal(t, "pickup-in-point", gotBody.LogisticsInfo[0].SelectedSla)
	assert.Equal(t, "pickup-in-point", gotBody.LogisticsInfo[0].SelectedDeliveryChannel)
	assert.Equal(t, "vea_5402", gotBody.LogisticsInfo[0].AddressID)

	assert.True(t, sim.Available)
	assert.Equal(t, 1250.50, *sim.Price)
	assert.Equal(t, 1400.00, *sim.ListPrice)
	assert.Equal(t, 2, sim.Quantity, "one per available delivery window")
	assert.Equal(t, "ARS", sim.Currency)
	assert.NotEmpty(t, sim.Raw)
}

// TestSimulatePickupUnavailable verifies the answered-but-out-of-stock path
func TestSimulatePickupUnavailable(t *testing.T) {
	client, closeFn := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"items": [{"id": "111", "quantity": 1, "seller": "1", "availability": "cannotBeDelivered"}],
			"storePreferencesData": {"currencyCode": "ARS"}
		}`))
	}))
	defer closeFn()

	sim, err := client.SimulatePickup(context.Background(), "111", "1", 1, "", "8300", "vea_5402")
	require.NoError(t, err)
	assert.False(t, sim.Available)
	assert.Equal(t, 0, sim.Quantity)
	assert.Equal(t, "ARS", sim.Currency)
}

// TestSimulatePickupEmptyItems verifies that an empty cart echo reads as
// unavailable, not as an error.
func TestSimulatePickupEmptyItems(t *testing.T) {
	client, closeFn := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items": [], "storePreferencesData": {"currencyCode": "ARS"}}`))
	}))
	defer closeFn()

	sim, err := client.SimulatePickup(context.Background(), "111", "1", 1, "", "8300", "vea_5402")
	require.NoError(t, err)
	assert.False(t, sim.Available)
	assert.Equal(t, "ARS", sim.Currency)
}

// TestSimulatePickupOperationNotAuthorized verifies that the 400 the platform
// answers for stores without pickup authorization reads as unavailable.
func TestSimulatePickupOperationNotAuthorized(t *testing.T) {
	body := `{"error": {"code": "operationNotAuthorized", "message": "The operation is not enabled for this trade policy"}}`
	client, closeFn := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(body))
	}))
	defer closeFn()

	sim, err := client.SimulatePickup(context.Background(), "111", "1", 1, "", "8300", "vea_5402")
	require.NoError(t, err)
	assert.False(t, sim.Available)
	assert.Equal(t, DefaultCurrency, sim.Currency)
	assert.Equal(t, body, string(sim.Raw))
}

// TestSimulatePickupBadRequest verifies that other 400s stay errors
func TestSimulatePickupBadRequest(t *testing.T) {
	client, closeFn := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"code": "ORD002", "message": "invalid sku"}}`))
	}))
	defer closeFn()

	_, err := client.SimulatePickup(context.Background(), "111", "1", 1, "", "8300", "vea_5402")
	require.Error(t, err)

	var pe *PlatformError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusBadRequest, pe.Status)
	assert.Contains(t, pe.RawBody, "ORD002")
}

// TestSimulateQuantityFallback verifies the quantity fallback when no pickup
// SLA exposes delivery windows.
func TestSimulateQuantityFallback(t *testing.T) {
	client, closeFn := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"items": [{"id": "111", "quantity": 5, "seller": "1", "availability": "available"}],
			"logisticsInfo": [{"itemIndex": 0, "slas": [{"id": "Entrega", "deliveryChannel": "delivery"}]}]
		}`))
	}))
	defer closeFn()

	sim, err := client.SimulatePickup(context.Background(), "111", "1", 1, "", "8300", "vea_5402")
	require.NoError(t, err)
	assert.True(t, sim.Available)
	assert.Equal(t, 5, sim.Quantity)
	assert.Equal(t, DefaultCurrency, sim.Currency, "missing store preferences default to ARS")
}

// TestSimulateDelivery verifies the delivery variant: quantity clamps to one
// and no logistics block is sent.
func TestSimulateDelivery(t *testing.T) {
	var gotBody map[string]json.RawMessage
	client, closeFn := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"items": [{"id": "111", "quantity": 1, "seller": "1", "availability": "available"}]}`))
	}))
	defer closeFn()

	_, err := client.SimulateDelivery(context.Background(), "111", "1", 0, "", "8300", 0)
	require.NoError(t, err)

	_, present := gotBody["logisticsInfo"]
	assert.False(t, present, "delivery simulations carry no logistics block")

	var items []map[string]any
	require.NoError(t, json.Unmarshal(gotBody["items"], &items))
	require.Len(t, items, 1)
	assert.Equal(t, float64(1), items[0]["quantity"], "non-positive quantity clamps to one")
}
