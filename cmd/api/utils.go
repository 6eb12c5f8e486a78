package main

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/farxc/vintage-cohorts/internal/vintage"
	"github.com/farxc/vintage-cohorts/internal/vintage/aggregate"
)

// reservedParams are query parameters that are not attribute filters.
var reservedParams = map[string]bool{
	"threshold":   true,
	"denominator": true,
	"basis":       true,
}

func splitList(param string) []string {
	if param == "" {
		return nil
	}
	parts := strings.Split(param, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseThreshold(param string) (int, error) {
	if param == "" {
		return vintage.DefaultThresholdDays, nil
	}
	threshold, err := strconv.Atoi(strings.TrimSpace(param))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", vintage.ErrInvalidThreshold, param)
	}
	if threshold <= 0 {
		return 0, fmt.Errorf("%w: %d", vintage.ErrInvalidThreshold, threshold)
	}
	return threshold, nil
}

// parseCohortParams reads the aggregation parameters from a query string. Every
// non-reserved key is an attribute filter holding a comma-separated value list; keys the
// registry does not know are rejected.
func parseCohortParams(query url.Values, registry *vintage.Registry) (aggregate.Params, error) {
	var p aggregate.Params
	var err error

	if p.ThresholdDays, err = parseThreshold(query.Get("threshold")); err != nil {
		return p, err
	}
	if p.Denominator, err = aggregate.ParseDenominatorMode(query.Get("denominator")); err != nil {
		return p, err
	}
	if p.Numerator, err = aggregate.ParseNumeratorBasis(query.Get("basis")); err != nil {
		return p, err
	}

	p.Filters = vintage.Filters{}
	for key, values := range query {
		if reservedParams[key] {
			continue
		}
		var accepted []string
		for _, v := range values {
			accepted = append(accepted, splitList(v)...)
		}
		p.Filters[key] = accepted
	}
	if err := registry.Validate(p.Filters); err != nil {
		return p, err
	}

	return p, nil
}
