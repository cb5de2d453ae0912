// Package recipeapi implements app.RecipeSource over the recipe data HTTP API.
package recipeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/craftcalc/business/crafting/app"
	"github.com/fd1az/craftcalc/business/crafting/domain"
	"github.com/fd1az/craftcalc/internal/apperror"
	"github.com/fd1az/craftcalc/internal/cache"
	"github.com/fd1az/craftcalc/internal/circuitbreaker"
	"github.com/fd1az/craftcalc/internal/httpclient"
	"github.com/fd1az/craftcalc/internal/logger"
	"github.com/fd1az/craftcalc/internal/ratelimit"
)

const (
	providerName = "recipeapi"
	tracerName   = "crafting.recipeapi"
	cachePrefix  = "recipe:"
)

// Config configures the client.
type Config struct {
	BaseURL           string
	Server            string // used when a fetch names no server
	Timeout           time.Duration
	RequestsPerMinute int
	CacheTTL          time.Duration
	FailureThreshold  int
	CompressCache     bool
}

// Client fetches recipes with rate limiting, a circuit breaker and an
// optional response cache.
type Client struct {
	http     *httpclient.Client
	limiter  *ratelimit.Limiter
	breaker  *circuitbreaker.CircuitBreaker[*RecipeResponse]
	cache    *cache.JSON[RecipeResponse]
	cacheTTL time.Duration
	server   string
	log      logger.LoggerInterface
	tracer   trace.Tracer
}

var _ app.RecipeSource = (*Client)(nil)

// NewClient builds a client. store may be nil to disable caching. Extra
// options are passed to the underlying HTTP client.
func NewClient(cfg Config, store cache.Store, log logger.LoggerInterface, opts ...httpclient.Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("recipe api base url"))
	}

	base := []httpclient.Option{
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithProviderName(providerName),
		httpclient.WithErrorHandler(handleErrorResponse),
	}
	if cfg.Timeout > 0 {
		base = append(base, httpclient.WithTimeout(cfg.Timeout))
	}
	hc, err := httpclient.New(append(base, opts...)...)
	if err != nil {
		return nil, err
	}

	bcfg := circuitbreaker.DefaultConfig(providerName)
	if cfg.FailureThreshold > 0 {
		bcfg.FailureThreshold = uint32(cfg.FailureThreshold)
	}
	bcfg.IsSuccessful = func(err error) bool {
		// A missing recipe or an abandoned request says nothing about API health.
		return err == nil ||
			apperror.GetCode(err) == apperror.CodeSubRecipeNotFound ||
			errors.Is(err, context.Canceled)
	}
	bcfg.OnStateChange = func(name string, from, to circuitbreaker.State) {
		log.Warn(context.Background(), "circuit breaker state changed",
			"breaker", name, "from", from.String(), "to", to.String())
	}

	c := &Client{
		http:     hc,
		limiter:  ratelimit.New(cfg.RequestsPerMinute),
		breaker:  circuitbreaker.New[*RecipeResponse](bcfg),
		cacheTTL: cfg.CacheTTL,
		server:   cfg.Server,
		log:      log,
		tracer:   otel.Tracer(tracerName),
	}
	if store != nil && cfg.CacheTTL > 0 {
		c.cache = cache.NewJSON[RecipeResponse](store, cachePrefix, cfg.CompressCache)
	}
	return c, nil
}

// FetchRecipe resolves recipeID for server, falling back to the configured
// default server.
func (c *Client) FetchRecipe(ctx context.Context, recipeID, server string) (*domain.Recipe, error) {
	if recipeID == "" {
		return nil, apperror.Validation(apperror.CodeRequiredField, "recipe id")
	}
	if server == "" {
		server = c.server
	}

	ctx, span := c.tracer.Start(ctx, "recipeapi.FetchRecipe",
		trace.WithAttributes(
			attribute.String("recipe.id", recipeID),
			attribute.String("recipe.server", server),
		),
	)
	defer span.End()

	key := server + ":" + recipeID
	if c.cache != nil {
		cached, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			c.log.Warn(ctx, "recipe cache read failed", "key", key, "error", err)
		}
		if ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return cached.toDomain(server), nil
		}
	}

	resp, err := c.breaker.Execute(func() (*RecipeResponse, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return c.fetch(ctx, recipeID, server)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperror.GetCode(err)))
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, *resp, c.cacheTTL); err != nil {
			c.log.Warn(ctx, "recipe cache write failed", "key", key, "error", err)
		}
	}
	span.SetAttributes(attribute.Int("recipe.ingredients", len(resp.Ingredients)))
	return resp.toDomain(server), nil
}

func (c *Client) fetch(ctx context.Context, recipeID, server string) (*RecipeResponse, error) {
	query := url.Values{}
	if server != "" {
		query.Set("server", server)
	}

	var out RecipeResponse
	_, err := c.http.GetJSON(ctx, "recipes/"+url.PathEscape(recipeID), query, &out)
	if err != nil {
		var decErr *httpclient.DecodeError
		switch {
		case apperror.IsAppError(err):
			return nil, err
		case errors.As(err, &decErr):
			return nil, apperror.New(apperror.CodeRecipeDecodeFailed,
				apperror.WithCause(err),
				apperror.WithContext("recipe "+recipeID),
				apperror.WithStatusCode(http.StatusBadGateway))
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			return nil, apperror.External(apperror.CodeRecipeFetchFailed, "recipe "+recipeID, err)
		}
	}
	if err := out.validate(); err != nil {
		return nil, apperror.New(apperror.CodeRecipeDecodeFailed,
			apperror.WithCause(err),
			apperror.WithContext("recipe "+recipeID),
			apperror.WithStatusCode(http.StatusBadGateway))
	}
	if out.ID == "" {
		out.ID = recipeID
	}
	return &out, nil
}

// Invalidate drops the cached copy of a recipe.
func (c *Client) Invalidate(ctx context.Context, recipeID, server string) error {
	if c.cache == nil {
		return nil
	}
	if server == "" {
		server = c.server
	}
	return c.cache.Delete(ctx, server+":"+recipeID)
}

// BreakerState reports the circuit breaker state for health checks.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}

func handleErrorResponse(status int, body []byte) error {
	if status < http.StatusBadRequest {
		return nil
	}

	var apiErr ErrorResponse
	detail := "status " + strconv.Itoa(status)
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
		detail = fmt.Sprintf("status %d: %s", status, apiErr.Message)
	}

	if status == http.StatusNotFound {
		return apperror.NotFound(apperror.CodeSubRecipeNotFound, detail)
	}
	return apperror.New(apperror.CodeRecipeAPIError,
		apperror.WithContext(detail),
		apperror.WithStatusCode(http.StatusBadGateway))
}
