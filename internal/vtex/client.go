package vtex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"
)

// DefaultCurrency is assumed when a simulation carries no store preferences
const DefaultCurrency = "ARS"

// Country code defaults: the catalog endpoints take alpha-2, checkout alpha-3
const (
	defaultCatalogCountry  = "AR"
	defaultCheckoutCountry = "ARG"
)

// Client is a typed wrapper over the platform's public JSON endpoints. All
// operations either return a structured value or fail with a *PlatformError
// carrying the status, truncated body, and request coordinates.
type Client struct {
	session *Session
	logger  zerolog.Logger
}

// NewClient creates a platform client on top of an existing session
func NewClient(session *Session, logger zerolog.Logger) *Client {
	return &Client{
		session: session,
		logger:  logger.With().Str("component", "vtex-client").Str("host", session.Host()).Logger(),
	}
}

// Session exposes the underlying session, mainly for warm-up control
func (c *Client) Session() *Session {
	return c.session
}

// CategoryTree fetches the category tree to the given depth
func (c *Client) CategoryTree(ctx context.Context, depth int) ([]CategoryNode, error) {
	if depth <= 0 {
		depth = 50
	}
	path := fmt.Sprintf("/api/catalog_system/pub/category/tree/%d", depth)

	resp, err := c.session.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, NewPlatformError(resp.StatusCode, resp.Body, c.reqContext("CategoryTree", path))
	}

	var tree []CategoryNode
	if err := json.Unmarshal(resp.Body, &tree); err != nil {
		return nil, NewPlatformError(resp.StatusCode, resp.Body, c.parseContext("CategoryTree", path, err))
	}
	return tree, nil
}

// SearchByCategory fetches one window of products in a category. The window
// is 0-based and inclusive on both ends; sc <= 0 omits the sales channel.
// Both 200 and 206 (partial content) are success.
func (c *Client) SearchByCategory(ctx context.Context, categoryID int64, from, to, sc int) ([]json.RawMessage, error) {
	if from > to {
		return []json.RawMessage{}, nil
	}

	q := url.Values{}
	q.Set("fq", fmt.Sprintf("C:/%d/", categoryID))
	q.Set("_from", strconv.Itoa(from))
	q.Set("_to", strconv.Itoa(to))
	if sc > 0 {
		q.Set("sc", strconv.Itoa(sc))
	}
	path := "/api/catalog_system/pub/products/search?" + q.Encode()

	return c.search(ctx, "SearchByCategory", path)
}

// SearchByFulltext fetches one window of products matching a fulltext query.
// Used for EAN and brand-prefix discovery.
func (c *Client) SearchByFulltext(ctx context.Context, query string, from, to int) ([]json.RawMessage, error) {
	if from > to {
		return []json.RawMessage{}, nil
	}

	q := url.Values{}
	q.Set("ft", query)
	q.Set("_from", strconv.Itoa(from))
	q.Set("_to", strconv.Itoa(to))
	path := "/api/catalog_system/pub/products/search?" + q.Encode()

	return c.search(ctx, "SearchByFulltext", path)
}

func (c *Client) search(ctx context.Context, op, path string) ([]json.RawMessage, error) {
	resp, err := c.session.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, NewPlatformError(resp.StatusCode, resp.Body, c.reqContext(op, path))
	}

	products := make([]json.RawMessage, 0)
	if err := json.Unmarshal(resp.Body, &products); err != nil {
		return nil, NewPlatformError(resp.StatusCode, resp.Body, c.parseContext(op, path, err))
	}
	return products, nil
}

// PickupPointsByGeo discovers pickup points near a WGS84 coordinate.
// The platform takes the pair as "<lon>;<lat>".
func (c *Client) PickupPointsByGeo(ctx context.Context, lon, lat float64, sc int) ([]PickupPointInfo, error) {
	q := url.Values{}
	q.Set("geoCoordinates", formatFloat(lon)+";"+formatFloat(lat))
	if sc > 0 {
		q.Set("sc", strconv.Itoa(sc))
	}
	path := "/api/checkout/pub/pickup-points?" + q.Encode()

	return c.pickupPoints(ctx, "PickupPointsByGeo", path)
}

// PickupPointsByPostal discovers pickup points serving a postal code
func (c *Client) PickupPointsByPostal(ctx context.Context, postal, country string, sc int) ([]PickupPointInfo, error) {
	if country == "" {
		country = defaultCatalogCountry
	}
	q := url.Values{}
	q.Set("postalCode", postal)
	q.Set("countryCode", country)
	if sc > 0 {
		q.Set("sc", strconv.Itoa(sc))
	}
	path := "/api/checkout/pub/pickup-points?" + q.Encode()

	return c.pickupPoints(ctx, "PickupPointsByPostal", path)
}

func (c *Client) pickupPoints(ctx context.Context, op, path string) ([]PickupPointInfo, error) {
	resp, err := c.session.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, NewPlatformError(resp.StatusCode, resp.Body, c.reqContext(op, path))
	}

	points, err := parsePickupPoints(resp.Body)
	if err != nil {
		return nil, NewPlatformError(resp.StatusCode, resp.Body, c.parseContext(op, path, err))
	}
	return points, nil
}

// RegionSellers lists the sellers able to deliver to a postal code. Used as
// the fallback when a store has no pickup coverage.
func (c *Client) RegionSellers(ctx context.Context, postal, country string, sc int) ([]RegionSeller, error) {
	if country == "" {
		country = defaultCatalogCountry
	}
	q := url.Values{}
	q.Set("country", country)
	q.Set("postalCode", postal)
	if sc > 0 {
		q.Set("sc", strconv.Itoa(sc))
	}
	path := "/api/checkout/pub/regions?" + q.Encode()

	resp, err := c.session.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, NewPlatformError(resp.StatusCode, resp.Body, c.reqContext("RegionSellers", path))
	}

	var regions []regionNode
	if err := json.Unmarshal(resp.Body, &regions); err != nil {
		return nil, NewPlatformError(resp.StatusCode, resp.Body, c.parseContext("RegionSellers", path, err))
	}

	sellers := make([]RegionSeller, 0)
	for _, region := range regions {
		sellers = append(sellers, region.Sellers...)
	}
	return sellers, nil
}

// SimulatePickup runs a cart simulation shaped as a pickup-point reservation.
// 200/206 are parsed; a 400 whose body names operationNotAuthorized means the
// store cannot pick up that item and is reported as unavailable, not as an
// error. An empty items array likewise.
func (c *Client) SimulatePickup(ctx context.Context, sku, seller string, sc int, country, postal, pickupID string) (*SimulationResult, error) {
	if country == "" {
		country = defaultCheckoutCountry
	}
	reqBody := simulationRequest{
		Items:      []simulationRequestItem{{ID: sku, Quantity: 1, Seller: seller}},
		Country:    country,
		PostalCode: postal,
		LogisticsInfo: []logisticsRequestInfo{{
			ItemIndex:               0,
			SelectedSla:             "pickup-in-point",
			SelectedDeliveryChannel: "pickup-in-point",
			AddressID:               pickupID,
		}},
	}
	return c.simulate(ctx, "SimulatePickup", sc, reqBody)
}

// SimulateDelivery runs a plain delivery cart simulation for qty units
func (c *Client) SimulateDelivery(ctx context.Context, sku, seller string, sc int, country, postal string, qty int) (*SimulationResult, error) {
	if country == "" {
		country = defaultCheckoutCountry
	}
	if qty <= 0 {
		qty = 1
	}
	reqBody := simulationRequest{
		Items:      []simulationRequestItem{{ID: sku, Quantity: qty, Seller: seller}},
		Country:    country,
		PostalCode: postal,
	}
	return c.simulate(ctx, "SimulateDelivery", sc, reqBody)
}

func (c *Client) simulate(ctx context.Context, op string, sc int, reqBody simulationRequest) (*SimulationResult, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal simulation request: %w", err)
	}

	path := "/api/checkout/pub/orderForms/simulation"
	if sc > 0 {
		path += "?sc=" + strconv.Itoa(sc)
	}

	resp, err := c.session.Post(ctx, path, payload)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
		return c.extractSimulation(op, path, resp)
	case http.StatusBadRequest:
		if bytes.Contains(resp.Body, []byte("operationNotAuthorized")) {
			return &SimulationResult{Available: false, Currency: DefaultCurrency, Raw: resp.Body}, nil
		}
		return nil, NewPlatformError(resp.StatusCode, resp.Body, c.reqContext(op, path))
	default:
		return nil, NewPlatformError(resp.StatusCode, resp.Body, c.reqContext(op, path))
	}
}

func (c *Client) extractSimulation(op, path string, resp *Response) (*SimulationResult, error) {
	var sim simulationResponse
	if err := json.Unmarshal(resp.Body, &sim); err != nil {
		return nil, NewPlatformError(resp.StatusCode, resp.Body, c.parseContext(op, path, err))
	}

	currency := DefaultCurrency
	if sim.StorePreferencesData != nil && sim.StorePreferencesData.CurrencyCode != "" {
		currency = sim.StorePreferencesData.CurrencyCode
	}

	if len(sim.Items) == 0 {
		return &SimulationResult{Available: false, Currency: currency, Raw: resp.Body}, nil
	}

	item := sim.Items[0]
	available := item.Availability == "available"

	var price, listPrice *float64
	if item.SellingPrice != nil {
		v := float64(*item.SellingPrice) / 100
		price = &v
	}
	if item.ListPrice != nil {
		v := float64(*item.ListPrice) / 100
		listPrice = &v
	}

	quantity := 0
	if available {
		quantity = extractQuantity(&sim)
	}

	return &SimulationResult{
		Available: available,
		Price:     price,
		ListPrice: listPrice,
		Quantity:  quantity,
		Currency:  currency,
		Raw:       resp.Body,
	}, nil
}

// extractQuantity reads the stock signal out of a simulation. The platform
// has no single field for it: pickup SLAs expose delivery windows, and some
// storefronts only echo the item quantity. Missing both reads as 0.
func extractQuantity(sim *simulationResponse) int {
	for _, li := range sim.LogisticsInfo {
		for _, sla := range li.Slas {
			if sla.DeliveryChannel == "pickup-in-point" && len(sla.AvailableDeliveryWindows) > 0 {
				return len(sla.AvailableDeliveryWindows)
			}
		}
	}
	if len(sim.Items) > 0 && sim.Items[0].Quantity > 0 {
		return sim.Items[0].Quantity
	}
	return 0
}

func (c *Client) reqContext(op, path string) map[string]string {
	return map[string]string{
		"operation": op,
		"host":      c.session.Host(),
		"path":      path,
	}
}

func (c *Client) parseContext(op, path string, err error) map[string]string {
	ctx := c.reqContext(op, path)
	ctx["parse_error"] = err.Error()
	return ctx
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
