// Package provision computes vendor commission for compensation receipts.
package provision

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Sales is an aggregate of item prices in minor currency units.
type Sales struct {
	Total int64
	Count int64
}

// Add returns the combined aggregate.
func (s Sales) Add(o Sales) Sales {
	return Sales{Total: s.Total + o.Total, Count: s.Count + o.Count}
}

// Func maps a vendor's cumulative sales to the cumulative provision amount.
// It must be monotonic in Sales.Total.
type Func func(Sales) int64

// Result of a provision calculation. HasProvision is false when the event
// has no provision function configured.
type Result struct {
	HasProvision bool
	Provision    int64
	ProvisionFix int64
}

// Calculate returns the provision owed for current on top of before, and the
// fix correcting drift between what before should have cost and what was
// applied on earlier compensation receipts.
func Calculate(fn Func, before, current Sales, applied int64) Result {
	if fn == nil {
		return Result{}
	}
	expectedBefore := fn(before)
	return Result{
		HasProvision: true,
		Provision:    fn(before.Add(current)) - expectedBefore,
		ProvisionFix: expectedBefore - applied,
	}
}

// Linear is the event configurable provision function:
// round(Total*Rate + Count*PerItem) to the nearest multiple of Round.
type Linear struct {
	Rate    decimal.Decimal
	PerItem int64
	Round   int64
}

// Func returns the provision function described by l.
func (l Linear) Func() Func {
	return func(s Sales) int64 {
		value := decimal.NewFromInt(s.Total).Mul(l.Rate).
			Add(decimal.NewFromInt(s.Count).Mul(decimal.NewFromInt(l.PerItem)))
		step := l.Round
		if step <= 0 {
			step = 1
		}
		stepDec := decimal.NewFromInt(step)
		return value.Div(stepDec).Round(0).Mul(stepDec).IntPart()
	}
}

// Parse reads a provision function configuration such as
// "rate=-0.1;per_item=0;round=5". An empty string means no provision.
func Parse(config string) (Func, error) {
	config = strings.TrimSpace(config)
	if config == "" {
		return nil, nil
	}
	l := Linear{Rate: decimal.Zero, Round: 1}
	for _, part := range strings.Split(config, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("provision function: malformed term %q", part)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		switch key {
		case "rate":
			rate, err := decimal.NewFromString(value)
			if err != nil {
				return nil, fmt.Errorf("provision function: rate: %w", err)
			}
			l.Rate = rate
		case "per_item":
			perItem, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("provision function: per_item: %w", err)
			}
			l.PerItem = perItem
		case "round":
			round, err := strconv.ParseInt(value, 10, 64)
			if err != nil || round <= 0 {
				return nil, fmt.Errorf("provision function: round must be a positive integer")
			}
			l.Round = round
		default:
			return nil, fmt.Errorf("provision function: unknown term %q", key)
		}
	}
	return l.Func(), nil
}

// Lookup resolves the provision function of an event from its stored
// configuration.
type Lookup interface {
	ProvisionFunc(config *string) (Func, error)
}

// ConfigLookup parses the event configuration on every call.
type ConfigLookup struct{}

func (ConfigLookup) ProvisionFunc(config *string) (Func, error) {
	if config == nil {
		return nil, nil
	}
	return Parse(*config)
}
