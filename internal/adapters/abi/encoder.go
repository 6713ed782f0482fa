package abi

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/trebuchet-org/lend-deploy/internal/usecase"
)

var bigIntType = reflect.TypeOf((*big.Int)(nil))

// ArgumentEncoder converts pipeline values (strings, numbers, bools and
// lists as decoded from YAML) into the Go types the go-ethereum packer
// expects, then packs them.
type ArgumentEncoder struct{}

// NewArgumentEncoder creates a new encoder
func NewArgumentEncoder() *ArgumentEncoder {
	return &ArgumentEncoder{}
}

// EncodeConstructor packs constructor arguments. The result is the data
// appended to the creation code, without a selector.
func (e *ArgumentEncoder) EncodeConstructor(contract *abi.ABI, args []any) ([]byte, error) {
	inputs := contract.Constructor.Inputs
	if len(args) != len(inputs) {
		return nil, fmt.Errorf("constructor expects %d arguments, got %d", len(inputs), len(args))
	}
	if len(inputs) == 0 {
		return nil, nil
	}

	converted, err := ConvertArguments(inputs, args)
	if err != nil {
		return nil, err
	}
	return contract.Pack("", converted...)
}

// EncodeCall packs a method call, selector included. method is a method
// name, or a full signature such as "initialize(address,uint256)" for
// overloaded methods.
func (e *ArgumentEncoder) EncodeCall(contract *abi.ABI, method string, args []any) ([]byte, error) {
	m, err := findMethod(contract, method)
	if err != nil {
		return nil, err
	}
	if len(args) != len(m.Inputs) {
		return nil, fmt.Errorf("%s expects %d arguments, got %d", m.Sig, len(m.Inputs), len(args))
	}

	converted, err := ConvertArguments(m.Inputs, args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.Sig, err)
	}
	packed, err := m.Inputs.Pack(converted...)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, m.ID...), packed...), nil
}

// findMethod matches method against the names as written in the ABI.
// go-ethereum keys overloads as name, name0, name1..., so those keys are
// never accepted as input.
func findMethod(contract *abi.ABI, method string) (*abi.Method, error) {
	if strings.Contains(method, "(") {
		sig := strings.ReplaceAll(method, " ", "")
		for _, m := range contract.Methods {
			if m.Sig == sig {
				return &m, nil
			}
		}
		return nil, fmt.Errorf("method %s not found in ABI", method)
	}

	var matches []abi.Method
	for _, m := range contract.Methods {
		if m.RawName == method {
			matches = append(matches, m)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("method %s not found in ABI", method)
	case 1:
		return &matches[0], nil
	}

	available := make([]string, len(matches))
	for i, m := range matches {
		available[i] = m.Sig
	}
	sort.Strings(available)
	return nil, fmt.Errorf("method %s is overloaded, use a full signature: %s", method, strings.Join(available, ", "))
}

// ConvertArguments converts each value for its ABI argument
func ConvertArguments(inputs abi.Arguments, args []any) ([]any, error) {
	out := make([]any, len(args))
	for i, input := range inputs {
		v, err := ConvertValue(input.Type, args[i])
		if err != nil {
			name := input.Name
			if name == "" {
				name = strconv.Itoa(i)
			}
			return nil, fmt.Errorf("argument %s (%s): %w", name, input.Type.String(), err)
		}
		out[i] = v
	}
	return out, nil
}

// ConvertValue converts one value to the Go type of t
func ConvertValue(t abi.Type, value any) (any, error) {
	switch t.T {
	case abi.AddressTy:
		s, ok := value.(string)
		if !ok || !common.IsHexAddress(s) {
			return nil, fmt.Errorf("invalid address %v", value)
		}
		return common.HexToAddress(s), nil

	case abi.BoolTy:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			return strconv.ParseBool(v)
		}
		return nil, fmt.Errorf("invalid bool %v", value)

	case abi.StringTy:
		switch v := value.(type) {
		case string:
			return v, nil
		case int, int64, uint64, float64, bool:
			return fmt.Sprint(v), nil
		}
		return nil, fmt.Errorf("invalid string %v", value)

	case abi.IntTy, abi.UintTy:
		n, err := toBigInt(value)
		if err != nil {
			return nil, err
		}
		if err := checkRange(t, n); err != nil {
			return nil, err
		}
		goType := t.GetType()
		if goType == bigIntType {
			return n, nil
		}
		rv := reflect.New(goType).Elem()
		if t.T == abi.UintTy {
			rv.SetUint(n.Uint64())
		} else {
			rv.SetInt(n.Int64())
		}
		return rv.Interface(), nil

	case abi.BytesTy:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("invalid bytes %v", value)
		}
		return hexutil.Decode(s)

	case abi.FixedBytesTy:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("invalid bytes%d %v", t.Size, value)
		}
		b, err := hexutil.Decode(s)
		if err != nil {
			return nil, err
		}
		if len(b) > t.Size {
			return nil, fmt.Errorf("value is %d bytes, bytes%d holds at most %d", len(b), t.Size, t.Size)
		}
		rv := reflect.New(t.GetType()).Elem()
		reflect.Copy(rv, reflect.ValueOf(b))
		return rv.Interface(), nil

	case abi.SliceTy, abi.ArrayTy:
		items, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("expected a list, got %T", value)
		}
		var rv reflect.Value
		if t.T == abi.ArrayTy {
			if len(items) != t.Size {
				return nil, fmt.Errorf("expected %d elements, got %d", t.Size, len(items))
			}
			rv = reflect.New(t.GetType()).Elem()
		} else {
			rv = reflect.MakeSlice(t.GetType(), len(items), len(items))
		}
		for i, item := range items {
			ev, err := ConvertValue(*t.Elem, item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			rv.Index(i).Set(reflect.ValueOf(ev))
		}
		return rv.Interface(), nil

	default:
		return nil, fmt.Errorf("unsupported ABI type %s", t.String())
	}
}

// toBigInt accepts integers, integral floats and decimal or 0x strings
func toBigInt(value any) (*big.Int, error) {
	switch v := value.(type) {
	case int:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%v is not an integer", v)
		}
		if math.Abs(v) > 1<<53 {
			return nil, fmt.Errorf("%v is too large to be exact, quote it as a string", v)
		}
		n, _ := big.NewFloat(v).Int(nil)
		return n, nil
	case *big.Int:
		return new(big.Int).Set(v), nil
	case string:
		n, ok := new(big.Int).SetString(strings.TrimSpace(v), 0)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", v)
		}
		return n, nil
	}
	return nil, fmt.Errorf("invalid integer %v", value)
}

func checkRange(t abi.Type, n *big.Int) error {
	if t.T == abi.UintTy {
		if n.Sign() < 0 {
			return fmt.Errorf("%s is negative", n)
		}
		if n.BitLen() > t.Size {
			return fmt.Errorf("%s overflows uint%d", n, t.Size)
		}
		return nil
	}
	limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
	if n.Cmp(limit) >= 0 || n.Cmp(new(big.Int).Neg(limit)) < 0 {
		return fmt.Errorf("%s overflows int%d", n, t.Size)
	}
	return nil
}

// Ensure the adapter implements the interface
var _ usecase.ArgumentEncoder = (*ArgumentEncoder)(nil)
