package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rpattn/shopsync/internal/domain"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrMissingCredentials is returned when the shop or access token is absent.
var ErrMissingCredentials = errors.New("missing shop credentials")

const (
	DefaultAPIVersion = "2024-10"
	DefaultBatchSize  = 10
	// MaxBatchSize matches the Admin API limit on nodes(ids:) per query.
	MaxBatchSize         = 250
	DefaultBatchDelay    = time.Second
	DefaultMetafieldType = "single_line_text_field"
)

// Config holds everything a command needs. It is built once at start up and
// passed by value into each component.
type Config struct {
	Shop           string
	AccessToken    string
	APIVersion     string
	BatchSize      int
	BatchDelay     time.Duration
	HTTPTimeout    time.Duration
	MetafieldTypes map[domain.MetafieldKey]string
	ConfigFile     string
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		APIVersion:     DefaultAPIVersion,
		BatchSize:      DefaultBatchSize,
		BatchDelay:     DefaultBatchDelay,
		MetafieldTypes: map[domain.MetafieldKey]string{},
	}
}

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"shop":         "shop",
	"token":        "access_token",
	"api-version":  "api_version",
	"batch-size":   "batch_size",
	"batch-delay":  "batch_delay",
	"http-timeout": "http_timeout",
}

// Load reads config.yaml from configPath (optional), a .env file in the
// working directory (optional), SHOPIFY_* environment variables and the given
// flags, in increasing order of precedence.
func Load(configPath string, flags *pflag.FlagSet) (Config, error) {
	cfg := DefaultConfig()

	_ = godotenv.Load() // loads .env if present

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if strings.TrimSpace(configPath) != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.SetEnvPrefix("SHOPIFY") // SHOPIFY_SHOP, SHOPIFY_ACCESS_TOKEN, ...
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for _, key := range []string{"shop", "access_token", "api_version", "batch_size", "batch_delay", "http_timeout"} {
		_ = v.BindEnv(key)
	}

	if flags != nil {
		for flagName, key := range flagKeys {
			if f := flags.Lookup(flagName); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return cfg, fmt.Errorf("bind flag %s: %w", flagName, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
	} else {
		cfg.ConfigFile = v.ConfigFileUsed()
	}

	if v.IsSet("shop") {
		cfg.Shop = strings.TrimSpace(v.GetString("shop"))
	}
	if v.IsSet("access_token") {
		cfg.AccessToken = strings.TrimSpace(v.GetString("access_token"))
	}
	if v.IsSet("api_version") && strings.TrimSpace(v.GetString("api_version")) != "" {
		cfg.APIVersion = strings.TrimSpace(v.GetString("api_version"))
	}
	if v.IsSet("batch_size") && v.GetInt("batch_size") > 0 {
		cfg.BatchSize = v.GetInt("batch_size")
	}
	if v.IsSet("batch_delay") {
		cfg.BatchDelay = v.GetDuration("batch_delay")
	}
	if v.IsSet("http_timeout") {
		cfg.HTTPTimeout = v.GetDuration("http_timeout")
	}

	types, err := parseMetafieldTypes(v.Get("metafield_types"))
	if err != nil {
		return cfg, err
	}
	cfg.MetafieldTypes = types

	return cfg, nil
}

// parseMetafieldTypes reads the nested namespace -> key -> type mapping.
func parseMetafieldTypes(raw any) (map[domain.MetafieldKey]string, error) {
	types := map[domain.MetafieldKey]string{}
	if raw == nil {
		return types, nil
	}
	namespaces, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("metafield_types must be a mapping of namespace to keys, got %T", raw)
	}
	for namespace, entry := range namespaces {
		keys, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("metafield_types.%s must be a mapping of key to type, got %T", namespace, entry)
		}
		for key, typ := range keys {
			typeName, ok := typ.(string)
			if !ok || strings.TrimSpace(typeName) == "" {
				return nil, fmt.Errorf("metafield_types.%s.%s must be a type name", namespace, key)
			}
			types[domain.MetafieldKey{Namespace: namespace, Key: key}] = strings.TrimSpace(typeName)
		}
	}
	return types, nil
}

// Validate checks credentials. It must pass before any network call.
func (c Config) Validate() error {
	var missing []string
	if c.Shop == "" {
		missing = append(missing, "shop (--shop or SHOPIFY_SHOP)")
	}
	if c.AccessToken == "" {
		missing = append(missing, "access token (--token or SHOPIFY_ACCESS_TOKEN)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	if c.BatchSize <= 0 || c.BatchSize > MaxBatchSize {
		return fmt.Errorf("batch size must be between 1 and %d, got %d", MaxBatchSize, c.BatchSize)
	}
	if c.BatchDelay < 0 {
		return fmt.Errorf("batch delay must not be negative, got %s", c.BatchDelay)
	}
	return nil
}

// Endpoint returns the Admin GraphQL URL. Shop may be a bare store name, a
// myshopify.com domain or a full URL.
func (c Config) Endpoint() string {
	shop := strings.TrimSpace(c.Shop)
	base := shop
	if strings.HasPrefix(shop, "http://") || strings.HasPrefix(shop, "https://") {
		if u, err := url.Parse(shop); err == nil {
			base = u.Scheme + "://" + u.Host
		}
	} else {
		if !strings.Contains(shop, ".") {
			shop += ".myshopify.com"
		}
		base = "https://" + strings.TrimSuffix(shop, "/")
	}
	return fmt.Sprintf("%s/admin/api/%s/graphql.json", base, c.APIVersion)
}

// KnownNamespaces lists the namespaces declared in metafield_types.
func (c Config) KnownNamespaces() []string {
	seen := map[string]struct{}{}
	var namespaces []string
	for key := range c.MetafieldTypes {
		if _, ok := seen[key.Namespace]; ok {
			continue
		}
		seen[key.Namespace] = struct{}{}
		namespaces = append(namespaces, key.Namespace)
	}
	sort.Strings(namespaces)
	return namespaces
}
