package models

import "time"

// StepKind distinguishes contract creation from state-changing calls
type StepKind string

const (
	StepDeploy StepKind = "deploy"
	StepCall   StepKind = "call"
)

// Step is one action of a deployment pipeline. Argument values may contain
// ${...} references that are resolved just before the step executes.
type Step struct {
	Name string
	Kind StepKind

	// Deploy steps
	Contract  string            // artifact name or path:Contract
	Libraries map[string]string // library name -> address expression

	// Call steps
	Target string // address expression, usually ${SomeStep}
	Method string
	ABI    string // artifact supplying the target's ABI when Target is not a step

	Args []any
}

// Pipeline is an ordered list of steps. Steps execute strictly in order.
type Pipeline struct {
	Name     string
	Source   string   // file the pipeline was loaded from
	Accounts []string // named accounts that must resolve before anything is sent
	Steps    []*Step
}

// StepByName returns the step with the given name, or nil
func (p *Pipeline) StepByName(name string) *Step {
	for _, s := range p.Steps {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Initialization is the persisted record of a confirmed call step
type Initialization struct {
	Step            string    `json:"step"`
	Target          string    `json:"target"`
	Method          string    `json:"method"`
	Args            []any     `json:"args"`
	TransactionHash string    `json:"transactionHash"`
	BlockNumber     uint64    `json:"blockNumber"`
	GasUsed         uint64    `json:"gasUsed,omitempty"`
	RunID           string    `json:"runId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}
