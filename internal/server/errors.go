package server

import (
	"context"
	"errors"

	"github.com/getsentry/sentry-go"

	"github.com/polkassembly/governance/internal/auth"
)

// gqlError is what resolvers return to graphql-go. Only the public message
// and the error code reach the client.
type gqlError struct {
	message string
	code    string
}

func (e *gqlError) Error() string { return e.message }

func (e *gqlError) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": e.code}
}

func (s *Server) publicError(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	kind := auth.KindOf(err)
	if kind == auth.KindInternal {
		s.Logger.ErrorContext(ctx, "operation failed", "operation", op, "error", err)
		if hub := sentry.GetHubFromContext(ctx); hub != nil {
			hub.CaptureException(err)
		}
	} else {
		var ae *auth.Error
		if errors.As(err, &ae) {
			s.Logger.DebugContext(ctx, "operation rejected", "operation", op, "code", kind.String(), "message", ae.Message)
		}
	}
	return &gqlError{message: auth.PublicMessage(err), code: kind.String()}
}
