package ports

import "errors"

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Market Data Errors
	ErrProviderUnavailable = errors.New("market data provider is unavailable")
	ErrRateLimited         = errors.New("provider rate limit exceeded")
	ErrQuoteNotFound       = errors.New("no quote available for instrument")
	ErrStaleQuote          = errors.New("cached quote is older than the staleness threshold")
	ErrQuoteRegression     = errors.New("quote as-of timestamp regressed")

	// Execution Errors
	ErrOrderTerminal        = errors.New("order is already in a terminal state")
	ErrInsufficientFunds    = errors.New("insufficient cash balance for fill")
	ErrInsufficientQuantity = errors.New("insufficient held quantity for fill")
	ErrUnknownOrderKind     = errors.New("unknown order kind")

	// Scheduler Errors
	ErrJobNotFound   = errors.New("job is not registered")
	ErrJobRunning    = errors.New("job is already running")
	ErrMarketClosed  = errors.New("market is closed")
	ErrInvalidParams = errors.New("invalid strategy parameters")

	// Database Errors
	ErrDuplicateEntry = errors.New("database record already exists")
	ErrDBConnection   = errors.New("database connection error")
	ErrQueryFailed    = errors.New("database query failed")
	ErrUpdateFailed   = errors.New("database update failed")
)
