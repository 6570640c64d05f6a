package forecast

import "context"

// Source supplies raw carbon and price observations for a region. Real feeds
// (carbon-intensity APIs, settlement price datasets) live behind this seam;
// the service only ever consumes already-produced point series.
type Source interface {
	Carbon(ctx context.Context, w Window, region string) ([]RawPoint, error)
	Prices(ctx context.Context, w Window, region string) ([]RawPrice, error)
}
