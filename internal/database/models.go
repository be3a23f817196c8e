package database

import (
	"time"
)

// Retailer represents one row of vtex_retailers_config, the operator-curated
// list of storefronts the service sweeps.
type Retailer struct {
	RetailerID    int       `json:"retailer_id"`
	Name          string    `json:"name"`
	Host          string    `json:"host"`           // canonical root URL, e.g. https://www.vea.com.ar/
	SalesChannels string    `json:"sales_channels"` // comma-separated, e.g. "1,2"
	Enabled       bool      `json:"enabled"`
	CreatedAt     time.Time `json:"created_at"`
}

// SalesChannelList parses the comma-separated sales channel column.
// Unparseable entries are dropped; an empty column yields channel 1.
func (r *Retailer) SalesChannelList() []int {
	return ParseSalesChannels(r.SalesChannels)
}

// Store represents an operator-owned physical location
type Store struct {
	ID                int64      `json:"id"`
	RetailerHost      string     `json:"retailer_host"` // FK to vtex_retailers_config.host
	Name              string     `json:"name"`
	Address           *string    `json:"address"`
	City              *string    `json:"city"`
	Province          *string    `json:"province"`
	PostalCode        *string    `json:"postal_code"`
	Latitude          *float64   `json:"latitude"`
	Longitude         *float64   `json:"longitude"`
	Bandera           *string    `json:"bandera"`  // source-system banner code
	Comercio          *string    `json:"comercio"` // source-system merchant code
	Sucursal          *string    `json:"sucursal"` // source-system branch code
	VtexPickupPointID *string    `json:"vtex_pickup_point_id"`
	LastVtexSync      *time.Time `json:"last_vtex_sync"`
	Active            bool       `json:"active"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// PickupPoint is a platform pickup location discovered during store mapping.
// The (retailer_host, pickup_point_id) pair is unique; pickup_point_id keeps
// the exact case-sensitive string the platform returned.
type PickupPoint struct {
	ID            int64     `json:"id"`
	RetailerHost  string    `json:"retailer_host"`
	PickupPointID string    `json:"pickup_point_id"`
	Name          *string   `json:"name"`
	Latitude      *float64  `json:"latitude"`
	Longitude     *float64  `json:"longitude"`
	Bandera       *string   `json:"bandera"`  // back-link to the mapped store's source triple
	Comercio      *string   `json:"comercio"`
	Sucursal      *string   `json:"sucursal"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Category is a catalog tree node, unique on (retailer_host, external_id)
type Category struct {
	ID               int64  `json:"id"`
	RetailerHost     string `json:"retailer_host"`
	ExternalID       int64  `json:"external_id"`
	Name             string `json:"name"`
	ParentExternalID *int64 `json:"parent_external_id"`
	ParentDbID       *int64 `json:"parent_db_id"` // resolved on second pass after a tree sync
}

// Product is a catalog product, unique on (retailer_host, external_id)
type Product struct {
	ID           int64      `json:"id"`
	RetailerHost string     `json:"retailer_host"`
	ExternalID   int64      `json:"external_id"`
	Name         string     `json:"name"`
	Brand        *string    `json:"brand"`
	BrandID      *int64     `json:"brand_id"`
	LinkText     *string    `json:"link_text"`
	Link         *string    `json:"link"`
	CacheID      *string    `json:"cache_id"`
	ReleaseDate  *time.Time `json:"release_date"`
	RawJSON      *string    `json:"raw_json"` // full product node as returned by search
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Sku is a sellable item of a product, unique on (retailer_host, item_id)
type Sku struct {
	ID              int64   `json:"id"`
	ProductDbID     int64   `json:"product_db_id"` // FK to products.id
	RetailerHost    string  `json:"retailer_host"`
	ItemID          string  `json:"item_id"` // platform SKU id
	Ean             *string `json:"ean"`     // indexed, non-unique
	Name            *string `json:"name"`
	MeasurementUnit *string `json:"measurement_unit"`
	UnitMultiplier  float64 `json:"unit_multiplier"` // defaults to 1
}

// Seller offers a SKU, unique on (sku_db_id, seller_id)
type Seller struct {
	ID            int64   `json:"id"`
	SkuDbID       int64   `json:"sku_db_id"` // FK to skus.id
	SellerID      string  `json:"seller_id"`
	Name          *string `json:"name"`
	SellerDefault bool    `json:"seller_default"`
}

// CommercialOffer is an append-only price snapshot for a seller
type CommercialOffer struct {
	ID                   int64      `json:"id"`
	SellerDbID           int64      `json:"seller_db_id"` // FK to sellers.id
	Price                *float64   `json:"price"`
	ListPrice            *float64   `json:"list_price"`
	SpotPrice            *float64   `json:"spot_price"`
	PriceWithoutDiscount *float64   `json:"price_without_discount"`
	ValidUntil           *time.Time `json:"valid_until"`
	AvailableQuantity    *int       `json:"available_quantity"`
	CapturedAt           time.Time  `json:"captured_at"` // UTC
}

// TrackedProduct is an EAN the operator wants monitored across retailers
type TrackedProduct struct {
	Ean         string    `json:"ean"` // primary key
	Owner       string    `json:"owner"` // e.g. "Adeco" or "Competencia"
	ProductName *string   `json:"product_name"`
	Track       bool      `json:"track"`
	CreatedAt   time.Time `json:"created_at"`
}

// AvailabilityResult is one append-only probe outcome row
type AvailabilityResult struct {
	ID                int64     `json:"id"`
	RetailerHost      string    `json:"retailer_host"`
	StoreID           int64     `json:"store_id"`
	Ean               string    `json:"ean"`
	SkuID             string    `json:"sku_id"`    // platform item id
	SellerID          string    `json:"seller_id"`
	SalesChannel      int       `json:"sales_channel"`
	IsAvailable       bool      `json:"is_available"`
	Price             *float64  `json:"price"`
	ListPrice         *float64  `json:"list_price"`
	AvailableQuantity *int      `json:"available_quantity"`
	Currency          string    `json:"currency"` // defaults to ARS
	ErrorMessage      *string   `json:"error_message"`
	RawResponse       *string   `json:"raw_response"`
	CheckedAt         time.Time `json:"checked_at"` // UTC, probe completion instant
}

// SweepLog tracks one background run (catalog sweep, discovery, mapping, probe)
type SweepLog struct {
	ID           string     `json:"id"` // swp_{uuid}
	RetailerHost string     `json:"retailer_host"`
	SweepType    string     `json:"sweep_type"` // 'catalog', 'ean', 'brand', 'stores', 'probe', 'full'
	Status       string     `json:"status"`     // 'running', 'success', 'failed'
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	Notes        *string    `json:"notes"`
}

// Sweep type constants used across orchestrators and handlers
const (
	SweepTypeCatalog = "catalog"
	SweepTypeEan     = "ean"
	SweepTypeBrand   = "brand"
	SweepTypeStores  = "stores"
	SweepTypeProbe   = "probe"
	SweepTypeFull    = "full"
)

// Sweep status values
const (
	SweepStatusRunning = "running"
	SweepStatusSuccess = "success"
	SweepStatusFailed  = "failed"
)
