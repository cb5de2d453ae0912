package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	// General validation
	CodeRequiredField: "Required field is missing",
	CodeInvalidInput:  "Invalid input provided",
	CodeInvalidFormat: "Invalid data format",

	// Configuration
	CodeConfigurationError: "Configuration error",

	// External service errors
	CodeExternalServiceError: "External service error",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	// System errors
	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",

	// Recipe collaborator errors
	CodeSubRecipeNotFound:     "Sub-recipe not found",
	CodeRecipeFetchFailed:     "Failed to fetch recipe",
	CodeRecipeDecodeFailed:    "Failed to decode recipe payload",
	CodeRecipeAPIError:        "Recipe API error",
	CodeStockFetchFailed:      "Failed to fetch owned quantities",
	CodeStockStoreUnavailable: "Stock store unavailable",

	// Expansion errors
	CodeLoadInFlight: "Ingredient is already loading",
	CodeRecipeCycle:  "Recipe references itself",
	CodeDepthLimit:   "Maximum expansion depth reached",
	CodeLoadCanceled: "Load was canceled",
	CodeInvalidPath:  "Invalid ingredient path",

	// Session errors
	CodeSessionNotFound: "Session not found",

	// WebSocket errors
	CodeWebSocketConnectionError: "WebSocket connection error",
	CodeWebSocketReconnecting:    "WebSocket reconnecting",
	CodeWebSocketClosed:          "WebSocket connection closed",
	CodeWebSocketSendError:       "Failed to send WebSocket message",
	CodeInvalidPriceTick:         "Invalid price tick",

	// Cache errors
	CodeCacheMiss:    "Cache miss",
	CodeCacheBackend: "Cache backend error",

	// Circuit breaker errors
	CodeCircuitOpen:     "Circuit breaker is open",
	CodeCircuitHalfOpen: "Circuit breaker is half-open",
}
