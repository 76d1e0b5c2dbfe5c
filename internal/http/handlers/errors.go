package handlers

// Error codes carried in ErrorResponse.Code. Clients branch on these, so
// existing values never change.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"

	ErrCodeEmptyQuery      = "empty_query"
	ErrCodeQueryTooLong    = "query_too_long"
	ErrCodeNoProducts      = "no_products_found"
	ErrCodeRateLimited     = "rate_limited"
	ErrCodeProviderFailure = "provider_failure"
	ErrCodeListFailed      = "list_failed"
)
