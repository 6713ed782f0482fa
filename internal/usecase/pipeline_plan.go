package usecase

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"github.com/trebuchet-org/lend-deploy/internal/domain"
	"github.com/trebuchet-org/lend-deploy/internal/domain/models"
	"gopkg.in/yaml.v3"
)

// DeployerRole is the named account that signs every transaction
const DeployerRole = "deployer"

var stepNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// PipelineFile represents the YAML pipeline document
type PipelineFile struct {
	Name     string       `yaml:"name"`
	Accounts []string     `yaml:"accounts,omitempty"`
	Steps    []StepConfig `yaml:"steps"`
}

// StepConfig is one entry of the steps list. Exactly one of Deploy or Call is set.
type StepConfig struct {
	Name      string            `yaml:"name"`
	Deploy    string            `yaml:"deploy,omitempty"`
	Args      []any             `yaml:"args,omitempty"`
	Libraries map[string]string `yaml:"libraries,omitempty"`
	Call      *CallConfig       `yaml:"call,omitempty"`
}

// CallConfig describes a state-changing call
type CallConfig struct {
	Target string `yaml:"target"`
	Method string `yaml:"method"`
	ABI    string `yaml:"abi,omitempty"` // required when target is not ${Step}
	Args   []any  `yaml:"args,omitempty"`
}

// LoadPipeline reads, parses and validates a pipeline file
func LoadPipeline(path string) (*models.Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline file: %w", err)
	}
	pipeline, err := ParsePipeline(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	pipeline.Source = path
	return pipeline, nil
}

// ParsePipeline parses and validates a pipeline document
func ParsePipeline(data []byte) (*models.Pipeline, error) {
	var file PipelineFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: failed to parse YAML: %v", domain.ErrInvalidPipeline, err)
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	return file.toPipeline(), nil
}

// Validate checks the pipeline before any network access. Every problem is
// reported, not just the first.
func (f *PipelineFile) Validate() error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(f.Name) == "" {
		addf("pipeline name is required")
	}
	if len(f.Steps) == 0 {
		addf("pipeline must have at least one step")
	}

	seen := make(map[string]bool)
	deployed := make(map[string]bool)

	for i, step := range f.Steps {
		label := fmt.Sprintf("step %d", i+1)
		name := step.name()
		if name != "" {
			label = fmt.Sprintf("step %d (%s)", i+1, name)
		}

		switch {
		case name == "":
			addf("%s: name is required", label)
		case !stepNamePattern.MatchString(name):
			addf("%s: name must match %s", label, stepNamePattern.String())
		case name == accountsNamespace || name == envNamespace:
			addf("%s: %q is reserved", label, name)
		case seen[name]:
			addf("%s: duplicate step name", label)
		}

		switch {
		case step.Deploy != "" && step.Call != nil:
			addf("%s: a step is either deploy or call, not both", label)
		case step.Deploy == "" && step.Call == nil:
			addf("%s: one of deploy or call is required", label)
		}

		checkRefs := func(what string, value any) {
			refs, err := findReferences(value)
			if err != nil {
				addf("%s: %s: %v", label, what, err)
				return
			}
			for _, ref := range refs {
				if ref.kind != stepReference {
					continue
				}
				switch {
				case ref.name == name:
					addf("%s: %s references itself", label, what)
				case deployed[ref.name]:
				case seen[ref.name]:
					addf("%s: %s references %s, which is a call step and has no address", label, what, ref.name)
				default:
					addf("%s: %s references %s, which is not an earlier deploy step", label, what, ref.name)
				}
			}
		}

		if step.Deploy != "" {
			for i, arg := range step.Args {
				checkRefs(fmt.Sprintf("argument %d", i), arg)
			}
			for lib, expr := range step.Libraries {
				if strings.TrimSpace(expr) == "" {
					addf("%s: library %s has no address", label, lib)
					continue
				}
				checkRefs("library "+lib, expr)
			}
		}

		if step.Call != nil {
			if len(step.Args) > 0 || len(step.Libraries) > 0 {
				addf("%s: call steps take args under call.args and cannot link libraries", label)
			}
			if strings.TrimSpace(step.Call.Target) == "" {
				addf("%s: call.target is required", label)
			} else {
				checkRefs("call.target", step.Call.Target)
				if _, ok := singleStepReference(step.Call.Target); !ok && step.Call.ABI == "" {
					addf("%s: call.abi is required when call.target is not a ${Step} reference", label)
				}
			}
			if strings.TrimSpace(step.Call.Method) == "" {
				addf("%s: call.method is required", label)
			}
			for i, arg := range step.Call.Args {
				checkRefs(fmt.Sprintf("call argument %d", i), arg)
			}
		}

		if name != "" {
			seen[name] = true
			if step.Deploy != "" {
				deployed[name] = true
			}
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w:\n  - %s", domain.ErrInvalidPipeline, strings.Join(problems, "\n  - "))
}

// name returns the step name; deploy steps default to their contract name
func (s StepConfig) name() string {
	if s.Name != "" {
		return s.Name
	}
	if s.Deploy != "" && !strings.Contains(s.Deploy, ":") {
		return s.Deploy
	}
	return ""
}

func (f *PipelineFile) toPipeline() *models.Pipeline {
	pipeline := &models.Pipeline{
		Name:     f.Name,
		Accounts: f.Accounts,
		Steps:    make([]*models.Step, 0, len(f.Steps)),
	}

	for _, sc := range f.Steps {
		step := &models.Step{Name: sc.name()}
		if sc.Deploy != "" {
			step.Kind = models.StepDeploy
			step.Contract = sc.Deploy
			step.Args = sc.Args
			step.Libraries = sc.Libraries
		} else {
			step.Kind = models.StepCall
			step.Target = sc.Call.Target
			step.Method = sc.Call.Method
			step.ABI = sc.Call.ABI
			step.Args = sc.Call.Args
		}
		pipeline.Steps = append(pipeline.Steps, step)
	}

	return pipeline
}

// RequiredAccounts returns every named account the pipeline needs: the
// deployer, the declared accounts list and all ${accounts.role} references.
func RequiredAccounts(p *models.Pipeline) []string {
	roles := []string{DeployerRole}
	roles = append(roles, p.Accounts...)
	roles = append(roles, referencedNames(p, accountReference)...)

	roles = lo.Uniq(roles)
	sort.Strings(roles[1:])
	return roles
}

// RequiredEnv returns the sorted names of all ${env.VAR} references
func RequiredEnv(p *models.Pipeline) []string {
	names := lo.Uniq(referencedNames(p, envReference))
	sort.Strings(names)
	return names
}

func referencedNames(p *models.Pipeline, kind referenceKind) []string {
	var names []string
	for _, step := range p.Steps {
		values := append([]any{step.Target}, step.Args...)
		for _, lib := range step.Libraries {
			values = append(values, lib)
		}
		refs, _ := findReferences(values)
		for _, ref := range refs {
			if ref.kind == kind {
				names = append(names, ref.name)
			}
		}
	}
	return names
}

// callContract returns the artifact whose ABI encodes a call step
func callContract(step *models.Step, scope *referenceScope) (string, error) {
	if step.ABI != "" {
		return step.ABI, nil
	}
	name, ok := singleStepReference(step.Target)
	if !ok {
		return "", fmt.Errorf("step %s: cannot determine ABI for target %s", step.Name, step.Target)
	}
	contract, ok := scope.contracts[name]
	if !ok {
		return "", fmt.Errorf("%w: step %s has no deployed contract", domain.ErrUnresolvedReference, name)
	}
	return contract, nil
}

// formatLibraries renders linked library addresses for a record, keyed by
// path:Name as the link references name them
func formatLibraries(artifact *models.Artifact, libs map[string]common.Address) map[string]string {
	if len(libs) == 0 {
		return nil
	}
	out := make(map[string]string, len(libs))
	for source, bySource := range artifact.LinkReferences {
		for name := range bySource {
			addr, ok := libs[name]
			if !ok {
				addr, ok = libs[source+":"+name]
			}
			if ok {
				out[source+":"+name] = addr.Hex()
			}
		}
	}
	return out
}

// sameValues compares argument lists by their JSON form, which is how records
// store them
func sameValues(current, recorded []any) bool {
	if len(current) == 0 && len(recorded) == 0 {
		return true
	}
	return reflect.DeepEqual(normalizeJSON(current), normalizeJSON(recorded))
}

func normalizeJSON(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

// sameAddresses compares resolved library addresses with a record's
// libraries, which are keyed by path:Name rather than step name
func sameAddresses(current map[string]common.Address, recorded map[string]string) bool {
	if len(current) != len(recorded) {
		return false
	}
	want := lo.Map(lo.Values(current), func(a common.Address, _ int) string { return strings.ToLower(a.Hex()) })
	got := lo.Map(lo.Values(recorded), func(a string, _ int) string { return strings.ToLower(a) })
	sort.Strings(want)
	sort.Strings(got)
	return slices.Equal(want, got)
}
