package llm

import (
	"context"
	"errors"
	"time"

	"github.com/mohitkumar/forge/logger"
	"go.uber.org/zap"
)

// Router tries the primary model and then each fallback in declared order.
// Only transient failures advance the chain; exhaustion of the whole chain
// surfaces as a single failed call to the caller.
type Router struct {
	client           Client
	defaultModel     string
	RateLimitRetries int
	RetryDelay       time.Duration
}

func NewRouter(client Client, defaultModel string) *Router {
	return &Router{
		client:           client,
		defaultModel:     defaultModel,
		RateLimitRetries: 3,
		RetryDelay:       time.Second,
	}
}

func (r *Router) DefaultModel() string {
	return r.defaultModel
}

func (r *Router) Complete(ctx context.Context, model string, fallback []string, req Request) (*Response, error) {
	models := make([]string, 0, 1+len(fallback))
	if model == "" {
		model = r.defaultModel
	}
	models = append(models, model)
	models = append(models, fallback...)

	var lastErr error
	for _, current := range models {
		for attempt := 0; attempt < r.RateLimitRetries; attempt++ {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			req.Model = current
			resp, err := r.client.Complete(ctx, req)
			if err == nil {
				if resp.Model == "" {
					resp.Model = current
				}
				return resp, nil
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			lastErr = err
			var failure *Failure
			if !errors.As(err, &failure) {
				failure = NewFailure(FAILURE_UNAVAILABLE, current, "%v", err)
				lastErr = failure
			}
			if !failure.Transient() {
				return nil, failure
			}
			logger.Warn("model call failed", zap.String("model", current), zap.String("kind", string(failure.Kind)), zap.Int("attempt", attempt+1))
			if failure.Kind == FAILURE_RATE_LIMITED && attempt < r.RateLimitRetries-1 {
				wait := r.RetryDelay * time.Duration(1<<attempt)
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(wait):
				}
				continue
			}
			break
		}
	}
	if lastErr == nil {
		lastErr = NewFailure(FAILURE_UNAVAILABLE, model, "no models configured")
	}
	logger.Error("all models failed", zap.Strings("models", models), zap.Error(lastErr))
	return nil, lastErr
}
