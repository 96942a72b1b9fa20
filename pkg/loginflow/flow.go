package loginflow

import (
	"context"
	"fmt"
	"sort"

	"github.com/tendant/proxy-admin-auth/pkg/login"
)

// Step is one stage of the password login flow.
type Step interface {
	Name() string
	// Order sorts steps; lower runs first.
	Order() int
	Execute(ctx context.Context, fc *FlowContext) (StepResult, error)
}

// FlowContext carries state between steps of one login.
type FlowContext struct {
	Request      Request
	Result       *Result
	Account      login.Account
	TwoFAEnabled bool
	Services     *Dependencies
}

// StepResult tells the executor whether to run the next step.
type StepResult struct {
	Continue bool
}

// Predefined step orders.
const (
	OrderCredentialAuthentication = 100
	OrderSecondFactorRequirement  = 200
	OrderSessionIssuance          = 300
)

// StepRegistry holds steps and returns them ordered.
type StepRegistry struct {
	steps []Step
}

func NewStepRegistry() *StepRegistry {
	return &StepRegistry{}
}

func (r *StepRegistry) AddStep(step Step) *StepRegistry {
	r.steps = append(r.steps, step)
	return r
}

// OrderedSteps returns a sorted copy; registration order breaks ties.
func (r *StepRegistry) OrderedSteps() []Step {
	ordered := make([]Step, len(r.steps))
	copy(ordered, r.steps)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Order() < ordered[j].Order()
	})
	return ordered
}

// FlowExecutor runs the registered steps in order until one stops the flow
// or fails.
type FlowExecutor struct {
	registry *StepRegistry
	services *Dependencies
}

func NewFlowExecutor(registry *StepRegistry, services *Dependencies) *FlowExecutor {
	return &FlowExecutor{registry: registry, services: services}
}

func (e *FlowExecutor) Execute(ctx context.Context, request Request) (Result, error) {
	fc := &FlowContext{
		Request:  request,
		Result:   &Result{},
		Services: e.services,
	}

	for _, step := range e.registry.OrderedSteps() {
		res, err := step.Execute(ctx, fc)
		if err != nil {
			return Result{}, err
		}
		if !res.Continue {
			break
		}
	}

	if fc.Result.Token == "" && fc.Result.TempToken == "" {
		return Result{}, fmt.Errorf("login flow finished without issuing a token")
	}
	return *fc.Result, nil
}

// FlowBuilder assembles a FlowExecutor.
type FlowBuilder struct {
	registry *StepRegistry
}

func NewFlowBuilder() *FlowBuilder {
	return &FlowBuilder{registry: NewStepRegistry()}
}

func (b *FlowBuilder) AddStep(step Step) *FlowBuilder {
	b.registry.AddStep(step)
	return b
}

func (b *FlowBuilder) Build(services *Dependencies) *FlowExecutor {
	return NewFlowExecutor(b.registry, services)
}

// DefaultPasswordLoginFlow is password check, then either a pending token
// for enrolled accounts or a session for everyone else.
func DefaultPasswordLoginFlow() *FlowBuilder {
	return NewFlowBuilder().
		AddStep(&CredentialAuthenticationStep{}).
		AddStep(&SecondFactorRequirementStep{}).
		AddStep(&SessionIssuanceStep{})
}
