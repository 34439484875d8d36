// Package otp retrieves the 6-digit login code the portal sends out
// of band. Sources are polled in order; the first code that arrives
// after the login attempt wins.
package otp

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/newbienorbie/unifi-scraper/internal/logger"
)

var ErrNoCode = errors.New("no otp code received")

// Source delivers login codes from one channel.
type Source interface {
	Name() string
	// WaitForCode blocks until a 6-digit code sent at or after
	// notBefore arrives, the context is done, or the source's own
	// wait window closes.
	WaitForCode(ctx context.Context, notBefore time.Time) (string, error)
}

// Message patterns the portal is known to use, tried in order.
var codePatterns = []*regexp.Regexp{
	regexp.MustCompile(`OTP is (\d{6})`),
	regexp.MustCompile(`OTP:\s*(\d{6})`),
	regexp.MustCompile(`\b(\d{6})\b`),
}

// extractCode pulls a 6-digit code out of a message body.
func extractCode(text string) (string, bool) {
	for _, re := range codePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// Resolver tries each source sequentially until one yields a code.
type Resolver struct {
	sources []Source
}

func NewResolver(sources ...Source) *Resolver {
	return &Resolver{sources: sources}
}

// Resolve walks the sources in order. A source that errors or times
// out hands over to the next one; only when all are exhausted does
// the resolver fail.
func (r *Resolver) Resolve(ctx context.Context, notBefore time.Time) (string, error) {
	if len(r.sources) == 0 {
		return "", fmt.Errorf("%w: no sources configured", ErrNoCode)
	}

	var lastErr error
	for _, src := range r.sources {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		logger.CtxInfo(ctx, "Waiting for OTP from %s", src.Name())
		code, err := src.WaitForCode(ctx, notBefore)
		if err == nil {
			logger.CtxInfo(ctx, "OTP received from %s", src.Name())
			return code, nil
		}
		logger.CtxWarn(ctx, "OTP from %s failed, trying next source: %v", src.Name(), err)
		lastErr = err
	}
	return "", fmt.Errorf("%w: %v", ErrNoCode, lastErr)
}
