// Package storefront composes the client-side core of a food-ordering
// app: auth session, cart and order history, delivery-location
// resolution, saved addresses, and the restaurant catalog. The
// presentation layer consumes these stores through their
// subscribe/read/mutate surfaces; this package only wires them
// together and enforces checkout gating.
//
// Users who need a single piece should import the specific package:
//   - github.com/quickplate/storefront/cart
//   - github.com/quickplate/storefront/location
//   - github.com/quickplate/storefront/address
package storefront

import (
	"context"
	"fmt"

	"github.com/quickplate/storefront/address"
	"github.com/quickplate/storefront/auth"
	"github.com/quickplate/storefront/cart"
	"github.com/quickplate/storefront/catalog"
	"github.com/quickplate/storefront/core"
	"github.com/quickplate/storefront/location"
	"github.com/quickplate/storefront/resilience"
	"github.com/quickplate/storefront/telemetry"
)

// Re-export configuration surface so most callers only import this package
type (
	Config  = core.Config
	Option  = core.Option
	Logger  = core.Logger
	Storage = core.Storage
)

var (
	NewConfig     = core.NewConfig
	DefaultConfig = core.DefaultConfig

	WithName             = core.WithName
	WithStorageProvider  = core.WithStorageProvider
	WithStoragePath      = core.WithStoragePath
	WithRedisURL         = core.WithRedisURL
	WithStorageNamespace = core.WithStorageNamespace
	WithIPLookupEndpoint = core.WithIPLookupEndpoint
	WithGeocoderEndpoint = core.WithGeocoderEndpoint
	WithGPSTimeout       = core.WithGPSTimeout
	WithHTTPTimeout      = core.WithHTTPTimeout
	WithTelemetry        = core.WithTelemetry
	WithOTELEndpoint     = core.WithOTELEndpoint
	WithLogLevel         = core.WithLogLevel
	WithConfigFile       = core.WithConfigFile
	WithEnvFile          = core.WithEnvFile
)

// Storefront is one application instance's stores, constructed once
// and passed to the presentation layer. Instances are isolated:
// nothing here is process-global, so tests can build as many as they
// need.
type Storefront struct {
	Config    *core.Config
	Logger    core.Logger
	Storage   core.Storage
	Telemetry core.Telemetry

	Auth      *auth.Store
	Cart      *cart.Store
	Location  *location.Resolver
	Addresses *address.Book
	Catalog   catalog.Catalog

	otelProvider *telemetry.OTelProvider
	unsubscribe  []func()
	wasSignedIn  bool
}

// New builds a fully wired storefront instance
func New(ctx context.Context, opts ...core.Option) (*Storefront, error) {
	cfg, err := core.NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	logger := core.NewProductionLogger(cfg.Name)
	logger.SetLevel(cfg.Logging.Level)

	storage, err := newStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	s := &Storefront{
		Config:  cfg,
		Logger:  logger,
		Storage: storage,
	}

	s.Telemetry = core.Telemetry(&core.NoOpTelemetry{})
	if cfg.Telemetry.Enabled {
		provider, err := telemetry.NewOTelProvider(cfg.Name, cfg.Telemetry.OTELEndpoint)
		if err != nil {
			// Telemetry is optional; a collector outage must not stop checkout
			logger.Warn("Telemetry disabled, provider init failed", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			s.Telemetry = provider
			s.otelProvider = provider
		}
	}

	retryCfg := resilience.FromResilienceConfig(cfg.Resilience)

	ipClient := location.NewIPAPIClient(location.IPAPIClientOptions{
		Endpoint:  cfg.Location.IPLookupEndpoint,
		UserAgent: cfg.Location.UserAgent,
		Timeout:   cfg.Location.HTTPTimeout,
		RetryCfg:  retryCfg,
		Logger:    logger,
	})
	geocoder := location.NewNominatimClient(location.NominatimClientOptions{
		BaseURL:   cfg.Location.GeocoderEndpoint,
		UserAgent: cfg.Location.UserAgent,
		Timeout:   cfg.Location.HTTPTimeout,
		RetryCfg:  retryCfg,
		Logger:    logger,
	})

	s.Location = location.NewResolver(location.ResolverOptions{
		IPLocator:  ipClient,
		Geocoder:   geocoder,
		GPSTimeout: cfg.Location.GPSTimeout,
		Logger:     logger,
		Telemetry:  s.Telemetry,
	})

	s.Auth, err = auth.NewStore(ctx, storage, auth.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	s.Cart, err = cart.NewStore(ctx, storage,
		cart.WithLogger(logger),
		cart.WithTelemetry(s.Telemetry),
	)
	if err != nil {
		return nil, err
	}

	s.Addresses, err = address.NewBook(ctx, storage,
		address.WithLogger(logger),
		address.WithGeocoder(geocoder),
	)
	if err != nil {
		return nil, err
	}

	s.Catalog = catalog.Default()

	// Seed the delivery location from the default saved address
	if def := s.Addresses.Default(); def != nil {
		s.Location.SetManual(def.Address)
	}

	// Signing out abandons the active cart
	s.wasSignedIn = s.Auth.SignedIn()
	s.unsubscribe = append(s.unsubscribe, s.Auth.Subscribe(func() {
		signedIn := s.Auth.SignedIn()
		if s.wasSignedIn && !signedIn {
			if err := s.Cart.Clear(context.Background()); err != nil {
				logger.Error("Failed to clear cart on sign-out", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
		s.wasSignedIn = signedIn
	}))

	logger.Info("Storefront initialized", map[string]interface{}{
		"storage":   cfg.Storage.Provider,
		"telemetry": cfg.Telemetry.Enabled,
	})
	return s, nil
}

// newStorage selects the persistence backend from configuration
func newStorage(cfg *core.Config, logger core.Logger) (core.Storage, error) {
	switch cfg.Storage.Provider {
	case "memory":
		m := core.NewMemoryStorage()
		m.SetLogger(logger)
		return m, nil
	case "file":
		f, err := core.NewFileStorage(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		f.SetLogger(logger)
		return f, nil
	case "sqlite":
		s, err := core.NewSQLiteStorage(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		s.SetLogger(logger)
		return s, nil
	case "redis":
		return core.NewRedisStorage(core.RedisStorageOptions{
			RedisURL:  cfg.Storage.RedisURL,
			Namespace: cfg.Storage.Namespace,
			Logger:    logger,
		})
	default:
		return nil, fmt.Errorf("unknown storage provider %q: %w", cfg.Storage.Provider, core.ErrInvalidConfiguration)
	}
}

// Checkout validates the gating rules and creates the order: the user
// must be signed in, the cart must not be empty, and a delivery
// address is required. When the caller leaves the address blank, the
// current resolved location and then the default saved address are
// tried before blocking.
func (s *Storefront) Checkout(ctx context.Context, details cart.CheckoutDetails) (*cart.Order, error) {
	if !s.Auth.SignedIn() {
		return nil, &core.StoreError{
			Op:   "storefront.Checkout",
			Kind: "checkout",
			Err:  core.ErrNotSignedIn,
		}
	}
	if s.Cart.TotalItems() == 0 {
		return nil, &core.StoreError{
			Op:   "storefront.Checkout",
			Kind: "checkout",
			Err:  core.ErrEmptyCart,
		}
	}

	if details.Address == "" {
		details.Address = s.deliveryAddress()
	}
	if details.Address == "" {
		return nil, &core.StoreError{
			Op:      "storefront.Checkout",
			Kind:    "checkout",
			Message: "delivery address is required to place an order",
			Err:     core.ErrAddressRequired,
		}
	}

	return s.Cart.CreateOrder(ctx, details)
}

// deliveryAddress picks the best available address: the resolved
// location unless it is the manual-entry sentinel, then the default
// saved address.
func (s *Storefront) deliveryAddress() string {
	if loc := s.Location.Current(); loc != nil && loc.Source != location.SourceFallback {
		return loc.Formatted
	}
	if def := s.Addresses.Default(); def != nil {
		return def.Address
	}
	return ""
}

// Close releases held resources (telemetry flush, storage connections)
func (s *Storefront) Close(ctx context.Context) error {
	for _, u := range s.unsubscribe {
		u()
	}

	if s.otelProvider != nil {
		if err := s.otelProvider.Shutdown(ctx); err != nil {
			return err
		}
	}
	if closer, ok := s.Storage.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
