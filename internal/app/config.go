package app

import (
	"os"
	"time"
	_ "time/tzdata"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/combo-storefront/internal/domain/pricing"
	"github.com/xenking/combo-storefront/internal/notify"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds the complete application configuration, loadable from
// environment variables (SHOP_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (SHOP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Timezone    string `default:"Asia/Dhaka" usage:"Shop timezone used for the daily order count"`
	Storage     StorageConfig
	Pricing     PricingConfig
	Guard       GuardConfig
	Catalog     CatalogConfig
	Auth        AuthConfig
	Notify      NotifyConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// StorageConfig selects and tunes the order store.
type StorageConfig struct {
	Driver   string `default:"postgres" usage:"Order store driver: postgres or memory"`
	MaxConns int32  `default:"10" usage:"Maximum PostgreSQL connections"`
	MinConns int32  `default:"0" usage:"Minimum idle PostgreSQL connections"`
}

// PricingConfig is the combo price table in whole taka.
type PricingConfig struct {
	Combo2               int64 `default:"660"  usage:"Price of the 2-piece combo"`
	Combo3               int64 `default:"999"  usage:"Price of the 3-piece combo"`
	Combo4               int64 `default:"1299" usage:"Price of the 4-piece combo"`
	Combo5               int64 `default:"1599" usage:"Price of the 5-piece combo"`
	PerUnit              int64 `default:"308"  usage:"Per-piece price of custom orders from 6 pieces"`
	FreeDeliveryMinUnits int   `default:"3"    usage:"Quantity from which delivery is free"`
	MaxQuantity          int   `default:"1000" usage:"Largest quantity a single order may carry"`
	NearFee              int64 `default:"80"   usage:"Delivery fee inside the city"`
	FarFee               int64 `default:"150"  usage:"Delivery fee outside the city"`
}

// Table converts the flat config into a pricing.Config.
func (c PricingConfig) Table() pricing.Config {
	return pricing.Config{
		FixedPrices: map[int]int64{
			2: c.Combo2,
			3: c.Combo3,
			4: c.Combo4,
			5: c.Combo5,
		},
		PerUnitPrice:         c.PerUnit,
		FreeDeliveryMinUnits: c.FreeDeliveryMinUnits,
		MaxQuantity:          c.MaxQuantity,
		NearFee:              c.NearFee,
		FarFee:               c.FarFee,
	}
}

// GuardConfig tunes the duplicate-order guard.
type GuardConfig struct {
	AllowAfterCancel bool `default:"false" usage:"Let a customer reorder once their latest order is cancelled" flag:"allow-after-cancel"`
}

// CatalogConfig restricts the product and size identifiers an order may use.
type CatalogConfig struct {
	Products []string `default:"product1,product2,product3,product4,product5,product6" usage:"Orderable product identifiers"`
	Sizes    []string `default:"M,L,XL" usage:"Orderable sizes"`
}

// AuthConfig configures admin sessions.
type AuthConfig struct {
	Secret       string        `usage:"HMAC secret for admin session tokens (SHOP_AUTH_SECRET)" flag:"auth-secret"`
	SessionTTL   time.Duration `default:"24h" usage:"Admin session lifetime"`
	CookieSecure bool          `default:"false" usage:"Mark the session cookie Secure" flag:"cookie-secure"`

	// Bootstrap credentials are upserted at startup when both are set.
	AdminUsername string `usage:"Bootstrap admin username"`
	AdminPassword string `usage:"Bootstrap admin password"`
}

// NotifyConfig configures the order-placed event sinks. A sink is enabled
// only when its destination is set.
type NotifyConfig struct {
	Timeout    time.Duration `default:"10s" usage:"Per-sink delivery timeout"`
	Currency   string        `default:"BDT" usage:"Currency reported with order events"`
	WebhookURL string        `usage:"Order sheet webhook URL" flag:"webhook-url"`
	TikTok     TikTokConfig
	Kafka      KafkaConfig
}

// TikTokConfig configures the TikTok Events API sink.
type TikTokConfig struct {
	PixelID     string `usage:"TikTok pixel code"`
	AccessToken string `usage:"TikTok Events API access token"`
	Endpoint    string `usage:"Override for the Events API URL"`
	ContentName string `default:"Drop Shoulder T-shirt" usage:"Content name reported with purchases"`
}

func (c TikTokConfig) sink() notify.TikTokConfig {
	return notify.TikTokConfig{
		PixelID:     c.PixelID,
		AccessToken: c.AccessToken,
		Endpoint:    c.Endpoint,
		ContentName: c.ContentName,
	}
}

// KafkaConfig configures the Kafka sink.
type KafkaConfig struct {
	Brokers string `usage:"Comma-separated Kafka brokers"`
	Topic   string `default:"storefront.orders.placed" usage:"Topic for order-placed events"`
}

// RateLimitConfig controls the per-client token bucket.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (the admin cookie)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHOP",
		Files:     []string{"config.yaml", "/etc/shop/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports configuration that cannot start the service.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required: set SHOP_DATABASE_URL or DATABASE_URL")
		}
	case DriverMemory:
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Auth.Secret == "" {
		return errors.New("session secret is required: set SHOP_AUTH_SECRET")
	}
	if (c.Auth.AdminUsername == "") != (c.Auth.AdminPassword == "") {
		return errors.New("bootstrap admin needs both username and password")
	}
	if err := c.Pricing.Table().Validate(); err != nil {
		return errors.Wrap(err, "pricing")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return errors.Wrapf(err, "timezone %q", c.Timezone)
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's SHOP_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
