package context

import "context"

// Request describes the caller behind the current operation. It travels on
// the context so logs and audit rows carry the same identity.
type Request struct {
	ID        string
	ActorType string
	ActorID   string
	IPAddress string
	UserAgent string
}

type requestKey struct{}

func WithRequest(ctx context.Context, req Request) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestKey{}, req)
}

// RequestFrom returns the request stored on ctx, or the zero value.
func RequestFrom(ctx context.Context) Request {
	if ctx == nil {
		return Request{}
	}
	req, _ := ctx.Value(requestKey{}).(Request)
	return req
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	req := RequestFrom(ctx)
	req.ID = requestID
	return WithRequest(ctx, req)
}

func RequestIDFromContext(ctx context.Context) string {
	return RequestFrom(ctx).ID
}

// WithActor overwrites the actor and keeps the rest of the request.
func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	req := RequestFrom(ctx)
	req.ActorType = actorType
	req.ActorID = actorID
	return WithRequest(ctx, req)
}

func ActorFromContext(ctx context.Context) (string, string) {
	req := RequestFrom(ctx)
	return req.ActorType, req.ActorID
}
