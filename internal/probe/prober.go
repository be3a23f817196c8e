package probe

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/gondola/availability-service/internal/database"
	"github.com/gondola/availability-service/internal/metrics"
	"github.com/gondola/availability-service/internal/vtex"
)

// rawResultLimit bounds the response body kept on non-ok rows for forensics
const rawResultLimit = 500

// Prober turns work units into availability observations through cart
// simulations. One Prober serves one host and rides one client session.
type Prober struct {
	client   *vtex.Client
	host     string
	country  string
	recorder *metrics.Recorder
	logger   zerolog.Logger
}

// NewProber creates a prober bound to a client session
func NewProber(client *vtex.Client, host string, recorder *metrics.Recorder, logger zerolog.Logger) *Prober {
	return &Prober{
		client:   client,
		host:     host,
		country:  "ARG",
		recorder: recorder,
		logger:   logger.With().Str("component", "prober").Str("host", host).Logger(),
	}
}

// ProbePickup runs one pickup simulation and classifies the outcome. It
// never returns a Go error: any failure mode is an Error outcome.
func (p *Prober) ProbePickup(ctx context.Context, sc int, sku, seller, pickupID, postal string) ProbeOutcome {
	start := time.Now()
	sim, err := p.client.SimulatePickup(ctx, sku, seller, sc, p.country, postal, pickupID)
	outcome := Classify(sim, err)
	p.recorder.RecordProbe(p.host, outcome.Label(), time.Since(start))
	return outcome
}

// Probe runs one work unit and builds the result row to append. The raw
// simulation body is kept (truncated) on non-ok rows only.
func (p *Prober) Probe(ctx context.Context, unit database.ProbeWorkUnit, sc int) (database.AvailabilityResult, ProbeOutcome) {
	start := time.Now()
	sim, err := p.client.SimulatePickup(ctx, unit.SkuItemID, unit.SellerID, sc, p.country, unit.PostalCode, unit.PickupPointID)
	outcome := Classify(sim, err)
	p.recorder.RecordProbe(p.host, outcome.Label(), time.Since(start))

	row := BuildResult(p.host, unit, sc, outcome)
	if _, ok := outcome.(Ok); !ok && sim != nil && len(sim.Raw) > 0 {
		raw := vtex.Truncate(string(sim.Raw), rawResultLimit)
		row.RawResponse = &raw
	}

	if e, ok := outcome.(Error); ok {
		p.logger.Debug().
			Str("sku", unit.SkuItemID).
			Int64("store_id", unit.StoreID).
			Str("kind", e.Kind).
			Msg("Probe failed")
	}
	return row, outcome
}

// Classify maps a simulation result or error onto a ProbeOutcome
func Classify(sim *vtex.SimulationResult, err error) ProbeOutcome {
	if err != nil {
		var pe *vtex.PlatformError
		if errors.As(err, &pe) {
			return Error{Kind: ErrorKindPlatform, Message: pe.ErrorTag()}
		}
		return Error{Kind: ErrorKindNetwork, Message: vtex.Truncate(err.Error(), rawResultLimit)}
	}
	if !sim.Available {
		return Unavailable{Currency: sim.Currency}
	}
	return Ok{
		Price:     sim.Price,
		ListPrice: sim.ListPrice,
		Quantity:  sim.Quantity,
		Currency:  sim.Currency,
	}
}

// BuildResult maps a work unit and its outcome onto one append-only row.
// Unavailable rows carry no error message; only Error rows do.
func BuildResult(host string, unit database.ProbeWorkUnit, sc int, outcome ProbeOutcome) database.AvailabilityResult {
	r := database.AvailabilityResult{
		RetailerHost: host,
		StoreID:      unit.StoreID,
		Ean:          unit.Ean,
		SkuID:        unit.SkuItemID,
		SellerID:     unit.SellerID,
		SalesChannel: sc,
		Currency:     vtex.DefaultCurrency,
		CheckedAt:    time.Now().UTC(),
	}

	switch o := outcome.(type) {
	case Ok:
		r.IsAvailable = true
		r.Price = o.Price
		r.ListPrice = o.ListPrice
		qty := o.Quantity
		r.AvailableQuantity = &qty
		if o.Currency != "" {
			r.Currency = o.Currency
		}
	case Unavailable:
		if o.Currency != "" {
			r.Currency = o.Currency
		}
	case Error:
		msg := o.Message
		r.ErrorMessage = &msg
	}
	return r
}
