package scan

import (
	"context"

	"github.com/vitwit/jpycpay/types"
)

// Scanner consumes raw payloads, typically a payment.Controller.
type Scanner interface {
	Scan(raw string) (*types.PaymentIntent, error)
}

// Result is the outcome of feeding one Scan to a Scanner.
type Result struct {
	Scan   Scan
	Intent *types.PaymentIntent
	Err    error
}

// Pipe feeds every scan from src to target until the source is closed or
// ctx ends. Each outcome is passed to fn when it is non-nil.
func Pipe(ctx context.Context, src *Source, target Scanner, fn func(Result)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sc, ok := <-src.Scans():
			if !ok {
				return nil
			}
			intent, err := target.Scan(sc.Payload)
			if err != nil {
				src.logger.Debug("scan not accepted", map[string]any{
					"origin": string(sc.Origin),
					"error":  err,
				})
			}
			if fn != nil {
				fn(Result{Scan: sc, Intent: intent, Err: err})
			}
		}
	}
}
