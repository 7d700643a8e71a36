package agentteam

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Dimension names a budget ceiling.
type Dimension string

const (
	DimTokens    Dimension = "max_tokens"
	DimSteps     Dimension = "max_steps"
	DimToolCalls Dimension = "max_tool_calls"
	DimDuration  Dimension = "max_duration_ms"
	DimCost      Dimension = "max_cost_usd"
)

// MissionScoped returns the exhaustedBy value reported for mission aggregates.
func (d Dimension) MissionScoped() string {
	return "mission_" + string(d)
}

// BudgetLimit is a set of optional ceilings. A nil field is uncapped.
type BudgetLimit struct {
	MaxTokens     *int64           `json:"max_tokens,omitempty" yaml:"max_tokens"`
	MaxSteps      *int64           `json:"max_steps,omitempty" yaml:"max_steps"`
	MaxToolCalls  *int64           `json:"max_tool_calls,omitempty" yaml:"max_tool_calls"`
	MaxDurationMs *int64           `json:"max_duration_ms,omitempty" yaml:"max_duration_ms"`
	MaxCostUSD    *decimal.Decimal `json:"max_cost_usd,omitempty" yaml:"max_cost_usd"`
}

// MarshalJSON renders cost as a JSON number.
func (b BudgetLimit) MarshalJSON() ([]byte, error) {
	type view struct {
		MaxTokens     *int64   `json:"max_tokens,omitempty"`
		MaxSteps      *int64   `json:"max_steps,omitempty"`
		MaxToolCalls  *int64   `json:"max_tool_calls,omitempty"`
		MaxDurationMs *int64   `json:"max_duration_ms,omitempty"`
		MaxCostUSD    *float64 `json:"max_cost_usd,omitempty"`
	}
	v := view{
		MaxTokens:     b.MaxTokens,
		MaxSteps:      b.MaxSteps,
		MaxToolCalls:  b.MaxToolCalls,
		MaxDurationMs: b.MaxDurationMs,
	}
	if b.MaxCostUSD != nil {
		f := b.MaxCostUSD.InexactFloat64()
		v.MaxCostUSD = &f
	}
	return json.Marshal(v)
}

// IsZero reports whether no ceiling is set.
func (b BudgetLimit) IsZero() bool {
	return b.MaxTokens == nil && b.MaxSteps == nil && b.MaxToolCalls == nil &&
		b.MaxDurationMs == nil && b.MaxCostUSD == nil
}

// Int64 returns a pointer to v, for building limits.
func Int64(v int64) *int64 { return &v }

// Cost returns a pointer to a decimal parsed from a float literal.
func Cost(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

// Overlay returns b with every field set in top replacing b's.
func (b BudgetLimit) Overlay(top BudgetLimit) BudgetLimit {
	out := b
	if top.MaxTokens != nil {
		out.MaxTokens = top.MaxTokens
	}
	if top.MaxSteps != nil {
		out.MaxSteps = top.MaxSteps
	}
	if top.MaxToolCalls != nil {
		out.MaxToolCalls = top.MaxToolCalls
	}
	if top.MaxDurationMs != nil {
		out.MaxDurationMs = top.MaxDurationMs
	}
	if top.MaxCostUSD != nil {
		out.MaxCostUSD = top.MaxCostUSD
	}
	return out
}

// Tighten returns the per-dimension minimum of b and other. A dimension set in
// only one of them keeps that value.
func (b BudgetLimit) Tighten(other BudgetLimit) BudgetLimit {
	return BudgetLimit{
		MaxTokens:     minInt(b.MaxTokens, other.MaxTokens),
		MaxSteps:      minInt(b.MaxSteps, other.MaxSteps),
		MaxToolCalls:  minInt(b.MaxToolCalls, other.MaxToolCalls),
		MaxDurationMs: minInt(b.MaxDurationMs, other.MaxDurationMs),
		MaxCostUSD:    minDecimal(b.MaxCostUSD, other.MaxCostUSD),
	}
}

// Scale returns every set dimension multiplied by pct/100, rounded down.
func (b BudgetLimit) Scale(pct float64) BudgetLimit {
	factor := decimal.NewFromFloat(pct).Div(decimal.NewFromInt(100))
	scaleInt := func(v *int64) *int64 {
		if v == nil {
			return nil
		}
		return Int64(decimal.NewFromInt(*v).Mul(factor).Floor().IntPart())
	}
	out := BudgetLimit{
		MaxTokens:     scaleInt(b.MaxTokens),
		MaxSteps:      scaleInt(b.MaxSteps),
		MaxToolCalls:  scaleInt(b.MaxToolCalls),
		MaxDurationMs: scaleInt(b.MaxDurationMs),
	}
	if b.MaxCostUSD != nil {
		c := b.MaxCostUSD.Mul(factor)
		out.MaxCostUSD = &c
	}
	return out
}

// Remaining returns the headroom left under b after usage, floored at zero.
// Duration headroom is measured from elapsed wall-clock time.
func (b BudgetLimit) Remaining(used Usage, elapsed time.Duration) BudgetLimit {
	sub := func(limit *int64, spent int64) *int64 {
		if limit == nil {
			return nil
		}
		left := *limit - spent
		if left < 0 {
			left = 0
		}
		return Int64(left)
	}
	out := BudgetLimit{
		MaxTokens:     sub(b.MaxTokens, used.Tokens),
		MaxSteps:      sub(b.MaxSteps, used.Steps),
		MaxToolCalls:  sub(b.MaxToolCalls, used.ToolCalls),
		MaxDurationMs: sub(b.MaxDurationMs, elapsed.Milliseconds()),
	}
	if b.MaxCostUSD != nil {
		left := b.MaxCostUSD.Sub(used.CostUSD)
		if left.IsNegative() {
			left = decimal.Zero
		}
		out.MaxCostUSD = &left
	}
	return out
}

// ExhaustedDimension returns the first set dimension with no headroom left.
func (b BudgetLimit) ExhaustedDimension() (Dimension, bool) {
	switch {
	case b.MaxTokens != nil && *b.MaxTokens <= 0:
		return DimTokens, true
	case b.MaxSteps != nil && *b.MaxSteps <= 0:
		return DimSteps, true
	case b.MaxToolCalls != nil && *b.MaxToolCalls <= 0:
		return DimToolCalls, true
	case b.MaxDurationMs != nil && *b.MaxDurationMs <= 0:
		return DimDuration, true
	case b.MaxCostUSD != nil && !b.MaxCostUSD.IsPositive():
		return DimCost, true
	}
	return "", false
}

func minInt(a, b *int64) *int64 {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case *b < *a:
		return b
	}
	return a
}

func minDecimal(a, b *decimal.Decimal) *decimal.Decimal {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.LessThan(*a):
		return b
	}
	return a
}

// Usage is the consumption counted against a budget.
type Usage struct {
	Tokens    int64
	Steps     int64
	ToolCalls int64
	CostUSD   decimal.Decimal
}

// Add returns u plus d.
func (u Usage) Add(d Usage) Usage {
	return Usage{
		Tokens:    u.Tokens + d.Tokens,
		Steps:     u.Steps + d.Steps,
		ToolCalls: u.ToolCalls + d.ToolCalls,
		CostUSD:   u.CostUSD.Add(d.CostUSD),
	}
}

// Equal compares usage counters exactly.
func (u Usage) Equal(o Usage) bool {
	return u.Tokens == o.Tokens && u.Steps == o.Steps && u.ToolCalls == o.ToolCalls &&
		u.CostUSD.Equal(o.CostUSD)
}

// IsZero reports whether nothing was consumed.
func (u Usage) IsZero() bool {
	return u.Tokens == 0 && u.Steps == 0 && u.ToolCalls == 0 && u.CostUSD.IsZero()
}

func (u Usage) negative() bool {
	return u.Tokens < 0 || u.Steps < 0 || u.ToolCalls < 0 || u.CostUSD.IsNegative()
}

// exceeds returns the first dimension where usage is strictly above the limit.
func exceeds(limit BudgetLimit, usage Usage, elapsed time.Duration) (Dimension, bool) {
	switch {
	case limit.MaxDurationMs != nil && elapsed.Milliseconds() > *limit.MaxDurationMs:
		return DimDuration, true
	case limit.MaxTokens != nil && usage.Tokens > *limit.MaxTokens:
		return DimTokens, true
	case limit.MaxSteps != nil && usage.Steps > *limit.MaxSteps:
		return DimSteps, true
	case limit.MaxToolCalls != nil && usage.ToolCalls > *limit.MaxToolCalls:
		return DimToolCalls, true
	case limit.MaxCostUSD != nil && usage.CostUSD.GreaterThan(*limit.MaxCostUSD):
		return DimCost, true
	}
	return "", false
}
