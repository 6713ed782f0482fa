package usecase

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/lend-deploy/internal/domain"
)

// referencePattern matches ${Step}, ${Step.address}, ${accounts.role} and ${env.VAR}
var referencePattern = regexp.MustCompile(`\$\{\s*([A-Za-z_][A-Za-z0-9_-]*)(?:\.([A-Za-z_][A-Za-z0-9_-]*))?\s*\}`)

type referenceKind int

const (
	stepReference referenceKind = iota
	accountReference
	envReference
)

const (
	accountsNamespace = "accounts"
	envNamespace      = "env"
)

type reference struct {
	kind referenceKind
	name string
	raw  string
}

func parseReference(match []string) (reference, error) {
	raw, head, field := match[0], match[1], match[2]
	switch head {
	case accountsNamespace:
		if field == "" {
			return reference{}, fmt.Errorf("%s: missing account role", raw)
		}
		return reference{kind: accountReference, name: field, raw: raw}, nil
	case envNamespace:
		if field == "" {
			return reference{}, fmt.Errorf("%s: missing variable name", raw)
		}
		return reference{kind: envReference, name: field, raw: raw}, nil
	default:
		if field != "" && field != "address" {
			return reference{}, fmt.Errorf("%s: unknown field %q (only .address is supported)", raw, field)
		}
		return reference{kind: stepReference, name: head, raw: raw}, nil
	}
}

// findReferences returns every reference in a value, walking lists and maps
func findReferences(value any) ([]reference, error) {
	var refs []reference
	switch v := value.(type) {
	case string:
		for _, m := range referencePattern.FindAllStringSubmatch(v, -1) {
			ref, err := parseReference(m)
			if err != nil {
				return nil, err
			}
			refs = append(refs, ref)
		}
	case []any:
		for _, item := range v {
			found, err := findReferences(item)
			if err != nil {
				return nil, err
			}
			refs = append(refs, found...)
		}
	case map[string]any:
		for _, item := range v {
			found, err := findReferences(item)
			if err != nil {
				return nil, err
			}
			refs = append(refs, found...)
		}
	}
	return refs, nil
}

// singleStepReference returns the step name when expr is exactly one ${Step} reference
func singleStepReference(expr string) (string, bool) {
	expr = strings.TrimSpace(expr)
	m := referencePattern.FindStringSubmatch(expr)
	if m == nil || m[0] != expr {
		return "", false
	}
	ref, err := parseReference(m)
	if err != nil || ref.kind != stepReference {
		return "", false
	}
	return ref.name, true
}

// referenceScope holds the values references resolve to while a pipeline runs
type referenceScope struct {
	network   string
	accounts  map[string]common.Address
	addresses map[string]common.Address // deploy step -> address
	contracts map[string]string         // deploy step -> artifact name
	lookupEnv func(string) (string, bool)
}

func newReferenceScope(network string, accounts map[string]common.Address) *referenceScope {
	return &referenceScope{
		network:   network,
		accounts:  accounts,
		addresses: make(map[string]common.Address),
		contracts: make(map[string]string),
		lookupEnv: os.LookupEnv,
	}
}

// bind records the address of a deploy step. A zero address is rejected so
// later steps never observe an empty dependency.
func (s *referenceScope) bind(step, contract string, addr common.Address) error {
	if addr == (common.Address{}) {
		return fmt.Errorf("%w: step %s has an empty address", domain.ErrInvalidAddress, step)
	}
	s.addresses[step] = addr
	s.contracts[step] = contract
	return nil
}

func (s *referenceScope) lookup(ref reference) (string, error) {
	switch ref.kind {
	case accountReference:
		addr, ok := s.accounts[ref.name]
		if !ok {
			return "", fmt.Errorf("%w: %s (named account %s not resolved on %s)", domain.ErrUnresolvedReference, ref.raw, ref.name, s.network)
		}
		return addr.Hex(), nil
	case envReference:
		val, ok := s.lookupEnv(ref.name)
		if !ok {
			return "", fmt.Errorf("%w: %s (environment variable not set)", domain.ErrUnresolvedReference, ref.raw)
		}
		return val, nil
	default:
		addr, ok := s.addresses[ref.name]
		if !ok || addr == (common.Address{}) {
			return "", fmt.Errorf("%w: %s (step %s has no deployed address)", domain.ErrUnresolvedReference, ref.raw, ref.name)
		}
		return addr.Hex(), nil
	}
}

// resolveValue replaces references inside a value. A string that is exactly
// one reference becomes the referenced value; references embedded in longer
// strings are interpolated.
func (s *referenceScope) resolveValue(value any) (any, error) {
	switch v := value.(type) {
	case string:
		matches := referencePattern.FindAllStringSubmatchIndex(v, -1)
		if len(matches) == 0 {
			return v, nil
		}
		var b strings.Builder
		last := 0
		for _, m := range matches {
			groups := []string{v[m[0]:m[1]], v[m[2]:m[3]], ""}
			if m[4] >= 0 {
				groups[2] = v[m[4]:m[5]]
			}
			ref, err := parseReference(groups)
			if err != nil {
				return nil, err
			}
			resolved, err := s.lookup(ref)
			if err != nil {
				return nil, err
			}
			b.WriteString(v[last:m[0]])
			b.WriteString(resolved)
			last = m[1]
		}
		b.WriteString(v[last:])
		return b.String(), nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			resolved, err := s.resolveValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			resolved, err := s.resolveValue(item)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}

func (s *referenceScope) resolveArgs(args []any) ([]any, error) {
	out := make([]any, len(args))
	for i, arg := range args {
		resolved, err := s.resolveValue(arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = resolved
	}
	return out, nil
}

// resolveAddress resolves an expression that must yield a non-zero address
func (s *referenceScope) resolveAddress(expr string) (common.Address, error) {
	resolved, err := s.resolveValue(expr)
	if err != nil {
		return common.Address{}, err
	}
	str, _ := resolved.(string)
	if !common.IsHexAddress(str) {
		return common.Address{}, fmt.Errorf("%w: %q resolved to %q", domain.ErrInvalidAddress, expr, str)
	}
	addr := common.HexToAddress(str)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: %q resolved to the zero address", domain.ErrInvalidAddress, expr)
	}
	return addr, nil
}
