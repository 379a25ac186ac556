package shopify

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rpattn/shopsync/internal/config"
	"github.com/rpattn/shopsync/internal/middleware"

	"github.com/machinebox/graphql"
	"go.uber.org/zap"
)

const accessTokenHeader = "X-Shopify-Access-Token"

// Client talks to the Shopify GraphQL Admin API. Calls are made one at a
// time by the callers; the client itself holds no per-call state.
type Client struct {
	gql                  *graphql.Client
	endpoint             string
	accessToken          string
	logger               *zap.Logger
	httpClient           *http.Client
	variantsPerProduct   int
	metafieldsPerVariant int
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the logging HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithVariantLimits caps how many variants per product and metafields per
// variant are requested.
func WithVariantLimits(variants, metafields int) Option {
	return func(c *Client) {
		if variants > 0 {
			c.variantsPerProduct = variants
		}
		if metafields > 0 {
			c.metafieldsPerVariant = metafields
		}
	}
}

// NewClient builds a client for the shop in cfg. cfg must already be validated.
func NewClient(cfg config.Config, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		endpoint:             cfg.Endpoint(),
		accessToken:          cfg.AccessToken,
		logger:               logger,
		variantsPerProduct:   100,
		metafieldsPerVariant: 50,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = middleware.LoggingClient(logger, cfg.HTTPTimeout)
	}
	c.gql = graphql.NewClient(c.endpoint, graphql.WithHTTPClient(c.httpClient))
	c.gql.Log = func(s string) { logger.Debug(s) }
	return c
}

// Endpoint returns the Admin API URL in use.
func (c *Client) Endpoint() string {
	return c.endpoint
}

func (c *Client) run(ctx context.Context, op Operation, vars map[string]any, resp any) error {
	req := graphql.NewRequest(op.Document)
	for key, value := range vars {
		req.Var(key, value)
	}
	req.Header.Set(accessTokenHeader, c.accessToken)

	c.logger.Debug("graphql call", zap.String("operation", op.Name), zap.String("kind", string(op.Kind)))
	if err := c.gql.Run(ctx, req, resp); err != nil {
		return fmt.Errorf("%s: %w", op.Name, err)
	}
	return nil
}

type pageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

// UserError is a field level error reported by a mutation.
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// UserErrors is returned when a mutation responds with userErrors.
type UserErrors []UserError

func (e UserErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, ue := range e {
		if len(ue.Field) > 0 {
			parts = append(parts, fmt.Sprintf("%s: %s", strings.Join(ue.Field, "."), ue.Message))
			continue
		}
		parts = append(parts, ue.Message)
	}
	return strings.Join(parts, "; ")
}

func userErrors(errs []UserError) error {
	if len(errs) == 0 {
		return nil
	}
	return UserErrors(errs)
}
