package chat

import (
	"fmt"
	"strconv"
)

// EffortLevel selects how much extended reasoning a model may spend.
type EffortLevel string

const (
	EffortLow    EffortLevel = "low"
	EffortMedium EffortLevel = "medium"
	EffortHigh   EffortLevel = "high"
	EffortBudget EffortLevel = "budget"
)

// ReasoningEffort gates a vendor's extended-reasoning mode, either by a
// named level or by an explicit token budget.
type ReasoningEffort struct {
	Level EffortLevel
	// Budget is the explicit token budget, used when Level == EffortBudget.
	Budget int
}

// BudgetEffort returns a ReasoningEffort with an explicit token budget.
func BudgetEffort(tokens int) ReasoningEffort {
	return ReasoningEffort{Level: EffortBudget, Budget: tokens}
}

// ParseReasoningEffort parses "low", "medium", "high", or a decimal
// number meaning an explicit token budget.
func ParseReasoningEffort(s string) (*ReasoningEffort, error) {
	switch s {
	case "low":
		return &ReasoningEffort{Level: EffortLow}, nil
	case "medium":
		return &ReasoningEffort{Level: EffortMedium}, nil
	case "high":
		return &ReasoningEffort{Level: EffortHigh}, nil
	}
	tokens, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("invalid reasoning effort %q", s)
	}
	effort := BudgetEffort(tokens)
	return &effort, nil
}

// Options are the per-call or default-level generation options.
type Options struct {
	Temperature     *float64
	TopP            *float64
	MaxTokens       *int
	StopSequences   []string
	ReasoningEffort *ReasoningEffort
	// CaptureRawBody keeps the provider's raw response payload on the
	// decoded response for debugging.
	CaptureRawBody bool
}

// OptionsSet is a read-only view combining per-call options with
// client-level defaults. Per-call values win.
type OptionsSet struct {
	call     *Options
	defaults *Options
}

// NewOptionsSet builds an OptionsSet. Either argument may be nil.
func NewOptionsSet(call, defaults *Options) OptionsSet {
	return OptionsSet{call: call, defaults: defaults}
}

func (s OptionsSet) Temperature() (float64, bool) {
	if s.call != nil && s.call.Temperature != nil {
		return *s.call.Temperature, true
	}
	if s.defaults != nil && s.defaults.Temperature != nil {
		return *s.defaults.Temperature, true
	}
	return 0, false
}

func (s OptionsSet) TopP() (float64, bool) {
	if s.call != nil && s.call.TopP != nil {
		return *s.call.TopP, true
	}
	if s.defaults != nil && s.defaults.TopP != nil {
		return *s.defaults.TopP, true
	}
	return 0, false
}

func (s OptionsSet) MaxTokens() (int, bool) {
	if s.call != nil && s.call.MaxTokens != nil {
		return *s.call.MaxTokens, true
	}
	if s.defaults != nil && s.defaults.MaxTokens != nil {
		return *s.defaults.MaxTokens, true
	}
	return 0, false
}

func (s OptionsSet) StopSequences() []string {
	if s.call != nil && len(s.call.StopSequences) > 0 {
		return s.call.StopSequences
	}
	if s.defaults != nil && len(s.defaults.StopSequences) > 0 {
		return s.defaults.StopSequences
	}
	return nil
}

func (s OptionsSet) ReasoningEffort() (ReasoningEffort, bool) {
	if s.call != nil && s.call.ReasoningEffort != nil {
		return *s.call.ReasoningEffort, true
	}
	if s.defaults != nil && s.defaults.ReasoningEffort != nil {
		return *s.defaults.ReasoningEffort, true
	}
	return ReasoningEffort{}, false
}

func (s OptionsSet) CaptureRawBody() bool {
	if s.call != nil && s.call.CaptureRawBody {
		return true
	}
	return s.defaults != nil && s.defaults.CaptureRawBody
}

// Float64 returns a pointer to v, for building Options literals.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v, for building Options literals.
func Int(v int) *int { return &v }
