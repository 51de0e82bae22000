// Package v1 exposes the compliance data model over HTTP. Handlers are
// thin: they resolve the authenticated principal, call the entity store,
// trace engine, or audit reader, and map sentinel errors to HTTP problem
// responses. All authorization and invariant checks live below this layer.
package v1

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/veritrail/veritrail/internal/directory"
	"github.com/veritrail/veritrail/internal/domain"
	"github.com/veritrail/veritrail/internal/server/middleware"
)

// principalFrom extracts the authenticated principal placed in the context
// by the auth middleware.
func principalFrom(ctx context.Context) (directory.Principal, error) {
	p, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		return directory.Principal{}, huma.Error403Forbidden("missing tenant context")
	}
	return p, nil
}

// mapError translates service-layer sentinels to HTTP problem responses.
// Cross-tenant denials arrive as ErrNotFound already, so a 404 here never
// confirms that a foreign resource exists.
func mapError(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return huma.Error404NotFound("resource not found")
	case errors.Is(err, domain.ErrDenied):
		return huma.Error403Forbidden("operation not permitted")
	case errors.Is(err, domain.ErrVersionConflict):
		return huma.Error409Conflict("version conflict: resource was modified concurrently")
	case errors.Is(err, domain.ErrInvariantViolation):
		var ie *domain.InvariantError
		if errors.As(err, &ie) {
			return huma.Error422UnprocessableEntity(ie.Error())
		}
		return huma.Error422UnprocessableEntity("invariant violation")
	case errors.Is(err, domain.ErrChainBroken):
		return huma.Error409Conflict("audit chain integrity failure: recomputation halted pending acknowledgment")
	case errors.Is(err, domain.ErrConflict):
		return huma.Error409Conflict("conflicting concurrent operation, retry")
	default:
		return huma.Error500InternalServerError("internal error", err)
	}
}
