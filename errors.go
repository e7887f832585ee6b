package donorsearch

import "github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain"

// Errors returned by the package. Match with errors.Is.
var (
	ErrInvalidConfig  = domain.ErrInvalidConfig
	ErrInvalidRequest = domain.ErrInvalidRequest
)
