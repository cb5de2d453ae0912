package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	// General validation
	CodeRequiredField Code = "REQUIRED_FIELD"
	CodeInvalidInput  Code = "INVALID_INPUT"
	CodeInvalidFormat Code = "INVALID_FORMAT"

	// Configuration
	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	// External service errors
	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	// System errors
	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Crafting-specific error codes
const (
	// Recipe collaborator errors
	CodeSubRecipeNotFound     Code = "SUB_RECIPE_NOT_FOUND"
	CodeRecipeFetchFailed     Code = "RECIPE_FETCH_FAILED"
	CodeRecipeDecodeFailed    Code = "RECIPE_DECODE_FAILED"
	CodeRecipeAPIError        Code = "RECIPE_API_ERROR"
	CodeStockFetchFailed      Code = "STOCK_FETCH_FAILED"
	CodeStockStoreUnavailable Code = "STOCK_STORE_CONNECTION_FAILED"

	// Expansion errors
	CodeLoadInFlight Code = "LOAD_IN_FLIGHT"
	CodeRecipeCycle  Code = "RECIPE_CYCLE"
	CodeDepthLimit   Code = "DEPTH_LIMIT"
	CodeLoadCanceled Code = "LOAD_CANCELED"
	CodeInvalidPath  Code = "INVALID_PATH"

	// Session errors
	CodeSessionNotFound Code = "SESSION_NOT_FOUND"

	// WebSocket errors
	CodeWebSocketConnectionError Code = "WEBSOCKET_CONNECTION_ERROR"
	CodeWebSocketReconnecting    Code = "WEBSOCKET_RECONNECTING"
	CodeWebSocketClosed          Code = "WEBSOCKET_CLOSED"
	CodeWebSocketSendError       Code = "WEBSOCKET_SEND_ERROR"
	CodeInvalidPriceTick         Code = "INVALID_PRICE_TICK"

	// Cache errors
	CodeCacheMiss    Code = "CACHE_MISS"
	CodeCacheBackend Code = "CACHE_BACKEND_ERROR"

	// Circuit breaker errors
	CodeCircuitOpen     Code = "CIRCUIT_OPEN"
	CodeCircuitHalfOpen Code = "CIRCUIT_HALF_OPEN"
)
