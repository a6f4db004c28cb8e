package planner

import (
	"context"
	"errors"
	"fmt"
)

// FallbackPlanner tries a primary planner first and falls back on error, so a
// dead or misbehaving model endpoint still yields a usable plan.
type FallbackPlanner struct {
	primary  Planner
	fallback Planner
}

func NewFallbackPlanner(primary, fallback Planner) *FallbackPlanner {
	return &FallbackPlanner{primary: primary, fallback: fallback}
}

func (p *FallbackPlanner) Plan(ctx context.Context, req Request) (Plan, error) {
	if p == nil || p.primary == nil {
		if p != nil && p.fallback != nil {
			return p.fallback.Plan(ctx, req)
		}
		return Plan{}, fmt.Errorf("fallback planner misconfigured")
	}

	plan, err := p.primary.Plan(ctx, req)
	if err == nil {
		return plan, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Plan{}, err
	}
	if p.fallback == nil {
		return Plan{}, err
	}
	plan, fallbackErr := p.fallback.Plan(ctx, req)
	if fallbackErr != nil {
		return Plan{}, fmt.Errorf("primary planner error: %w; fallback planner error: %v", err, fallbackErr)
	}
	return plan, nil
}
