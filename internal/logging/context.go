package logging

import "context"

type clientIPKey struct{}

// WithClientIP stores the request origin address in ctx. Loggers attach it
// as client_ip and the activity trail records it.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIP returns the origin address set by WithClientIP.
func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}
