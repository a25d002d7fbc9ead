package registration

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// IdentityStep is the wizard step every registration must include. Extra
// steps are host specific and flow into the post-register hook.
const IdentityStep = "user"

// StepData is one validated wizard step worth of input.
type StepData struct {
	Step   string
	Values map[string]any
}

// StepResult reports wizard progress. When Complete is true, Aggregate
// holds every collected step keyed by step name.
type StepResult struct {
	Next      string
	Complete  bool
	Aggregate map[string]map[string]any
}

// StepCollector accumulates per-step validated data. The wizard engine
// behind it is a black box; the workflow only consumes the terminal
// aggregate.
type StepCollector interface {
	AdvanceStep(ctx context.Context, data StepData) (StepResult, error)
}

// SingleStepCollector completes immediately, for hosts whose form has no
// steps beyond the identity form.
type SingleStepCollector struct{}

func (SingleStepCollector) AdvanceStep(_ context.Context, data StepData) (StepResult, error) {
	return StepResult{
		Complete: true,
		Aggregate: map[string]map[string]any{
			data.Step: data.Values,
		},
	}, nil
}

// SessionStepCollector walks a fixed ordered list of steps, keeping the
// collected data in memory for the duration of one registration attempt.
type SessionStepCollector struct {
	steps     []string
	index     int
	collected map[string]map[string]any
}

func NewSessionStepCollector(steps ...string) *SessionStepCollector {
	if len(steps) == 0 {
		steps = []string{IdentityStep}
	}
	return &SessionStepCollector{
		steps:     steps,
		collected: map[string]map[string]any{},
	}
}

func (c *SessionStepCollector) AdvanceStep(_ context.Context, data StepData) (StepResult, error) {
	if c.index >= len(c.steps) {
		return StepResult{}, goerrors.New("wizard already completed", goerrors.CategoryOperation)
	}

	expected := c.steps[c.index]
	if data.Step != expected {
		return StepResult{}, goerrors.New("unexpected wizard step", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{
				"expected": expected,
				"got":      data.Step,
			})
	}

	c.collected[data.Step] = data.Values
	c.index++

	if c.index < len(c.steps) {
		return StepResult{Next: c.steps[c.index]}, nil
	}

	return StepResult{
		Complete:  true,
		Aggregate: c.collected,
	}, nil
}

// DataFromAggregate extracts the identity step from a completed wizard
// aggregate and returns the remaining steps untouched.
func DataFromAggregate(aggregate map[string]map[string]any) (RegistrationData, map[string]map[string]any, error) {
	identity, ok := aggregate[IdentityStep]
	if !ok {
		return RegistrationData{}, nil, goerrors.New("wizard aggregate is missing the identity step", goerrors.CategoryBadInput)
	}

	data := RegistrationData{
		Username: stringValue(identity, "username"),
		Email:    stringValue(identity, "email"),
		Phone:    stringValue(identity, "phone"),
		Password: stringValue(identity, "password"),
	}

	if data.Email == "" {
		return RegistrationData{}, nil, goerrors.New("identity step is missing an email", goerrors.CategoryBadInput)
	}

	extra := make(map[string]map[string]any, len(aggregate)-1)
	for step, values := range aggregate {
		if step == IdentityStep {
			continue
		}
		extra[step] = values
	}

	return data, extra, nil
}

func stringValue(values map[string]any, key string) string {
	if v, ok := values[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
