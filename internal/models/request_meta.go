package models

import "context"

// RequestMeta describes the client behind a request, for the audit ledger
type RequestMeta struct {
	IP            string
	UserAgent     string
	DeviceType    string
	CorrelationID string
}

type requestMetaKey struct{}

// WithRequestMeta attaches request metadata to a context
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFrom returns the request metadata stored in ctx, or the zero value
func RequestMetaFrom(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}
