// Package abi turns command-line strings into ABI values and decodes what
// comes back from the chain: return data, revert payloads and event logs.
package abi

import (
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/params"
	"github.com/trebuchet-org/sling/internal/usecase"
)

var bigIntType = reflect.TypeOf(&big.Int{})

// unit suffixes accepted on integer arguments, e.g. "1.5ether" or "20 gwei"
var units = []struct {
	suffix string
	wei    *big.Int
}{
	{"ether", big.NewInt(params.Ether)},
	{"gwei", big.NewInt(params.GWei)},
	{"wei", big.NewInt(params.Wei)},
}

// ArgParser coerces strings typed by an operator into the Go values
// accounts/abi packs for each ABI type.
type ArgParser struct{}

// NewArgParser creates a new argument parser
func NewArgParser() *ArgParser {
	return &ArgParser{}
}

// ParseArgs converts raw into values for inputs. The count must match.
func (p *ArgParser) ParseArgs(inputs abi.Arguments, raw []string) ([]any, error) {
	if len(raw) != len(inputs) {
		return nil, fmt.Errorf("expected %d argument(s) %s, got %d", len(inputs), signature(inputs), len(raw))
	}
	values := make([]any, len(inputs))
	for i, input := range inputs {
		v, err := ParseValue(input.Type, raw[i])
		if err != nil {
			name := input.Name
			if name == "" {
				name = fmt.Sprintf("#%d", i)
			}
			return nil, fmt.Errorf("argument %s (%s): %w", name, input.Type, err)
		}
		values[i] = v
	}
	return values, nil
}

// ParseValue converts a single string into a value of type t.
func ParseValue(t abi.Type, s string) (any, error) {
	v, err := parseValue(t, strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

func parseValue(t abi.Type, s string) (reflect.Value, error) {
	switch t.T {
	case abi.UintTy, abi.IntTy:
		n, err := parseInteger(s)
		if err != nil {
			return reflect.Value{}, err
		}
		if err := checkRange(t, n); err != nil {
			return reflect.Value{}, err
		}
		goType := t.GetType()
		if goType == bigIntType {
			return reflect.ValueOf(n), nil
		}
		v := reflect.New(goType).Elem()
		if t.T == abi.UintTy {
			v.SetUint(n.Uint64())
		} else {
			v.SetInt(n.Int64())
		}
		return v, nil

	case abi.BoolTy:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("invalid bool %q", s)
		}
		return reflect.ValueOf(b), nil

	case abi.StringTy:
		return reflect.ValueOf(unquote(s)), nil

	case abi.AddressTy:
		addr, err := parseAddress(unquote(s))
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(addr), nil

	case abi.BytesTy:
		b, err := parseHex(unquote(s))
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(b), nil

	case abi.FixedBytesTy, abi.FunctionTy:
		b, err := parseHex(unquote(s))
		if err != nil {
			return reflect.Value{}, err
		}
		size := t.Size
		if t.T == abi.FunctionTy {
			size = 24
		}
		if len(b) != size {
			return reflect.Value{}, fmt.Errorf("expected %d bytes, got %d", size, len(b))
		}
		v := reflect.New(t.GetType()).Elem()
		reflect.Copy(v, reflect.ValueOf(b))
		return v, nil

	case abi.SliceTy, abi.ArrayTy:
		items, err := splitList(s, '[', ']')
		if err != nil {
			return reflect.Value{}, err
		}
		var v reflect.Value
		if t.T == abi.ArrayTy {
			if len(items) != t.Size {
				return reflect.Value{}, fmt.Errorf("expected %d elements, got %d", t.Size, len(items))
			}
			v = reflect.New(t.GetType()).Elem()
		} else {
			v = reflect.MakeSlice(t.GetType(), len(items), len(items))
		}
		for i, item := range items {
			ev, err := parseValue(*t.Elem, item)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			v.Index(i).Set(ev)
		}
		return v, nil

	case abi.TupleTy:
		items, err := splitList(s, '(', ')')
		if err != nil {
			return reflect.Value{}, err
		}
		if len(items) != len(t.TupleElems) {
			return reflect.Value{}, fmt.Errorf("expected %d tuple fields, got %d", len(t.TupleElems), len(items))
		}
		v := reflect.New(t.GetType()).Elem()
		for i, elem := range t.TupleElems {
			fv, err := parseValue(*elem, items[i])
			if err != nil {
				return reflect.Value{}, fmt.Errorf("field %s: %w", t.TupleRawNames[i], err)
			}
			v.Field(i).Set(fv)
		}
		return v, nil
	}
	return reflect.Value{}, fmt.Errorf("unsupported type %s", t)
}

// parseInteger accepts decimal, 0x-hex, scientific ("1e18") and unit
// suffixed ("1.5 ether") notation.
func parseInteger(s string) (*big.Int, error) {
	s = strings.ReplaceAll(unquote(s), "_", "")
	if s == "" {
		return nil, fmt.Errorf("empty integer")
	}
	lower := strings.ToLower(s)
	for _, u := range units {
		if strings.HasSuffix(lower, u.suffix) {
			return scaleDecimal(strings.TrimSpace(lower[:len(lower)-len(u.suffix)]), u.wei)
		}
	}
	if strings.ContainsAny(lower, "e.") && !strings.HasPrefix(lower, "0x") && !strings.HasPrefix(lower, "-0x") {
		return scaleDecimal(lower, big.NewInt(1))
	}
	n, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return n, nil
}

func scaleDecimal(s string, unit *big.Int) (*big.Int, error) {
	f, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("invalid number %q", s)
	}
	f.Mul(f, new(big.Rat).SetInt(unit))
	if !f.IsInt() {
		return nil, fmt.Errorf("%q is not a whole number of wei", s)
	}
	return new(big.Int).Set(f.Num()), nil
}

func checkRange(t abi.Type, n *big.Int) error {
	if t.T == abi.UintTy {
		if n.Sign() < 0 {
			return fmt.Errorf("negative value %s for unsigned type", n)
		}
		if n.BitLen() > t.Size {
			return fmt.Errorf("value %s overflows uint%d", n, t.Size)
		}
		return nil
	}
	limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
	if n.Cmp(limit) >= 0 || n.Cmp(new(big.Int).Neg(limit)) < 0 {
		return fmt.Errorf("value %s overflows int%d", n, t.Size)
	}
	return nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	addr := common.HexToAddress(s)
	hexPart := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	mixed := strings.ToLower(hexPart) != hexPart && strings.ToUpper(hexPart) != hexPart
	if mixed && addr.Hex() != "0x"+hexPart {
		return common.Address{}, fmt.Errorf("address %q has an invalid checksum", s)
	}
	return addr, nil
}

func parseHex(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	if s == "0x" {
		return []byte{}, nil
	}
	if len(s)%2 == 1 {
		return nil, fmt.Errorf("odd length hex %q", s)
	}
	b, err := hexutil.Decode(strings.ToLower(s[:2]) + s[2:])
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	return b, nil
}

// splitList splits "[a, [b, c], \"d,e\"]" into its top-level items.
func splitList(s string, open, close byte) ([]string, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != open || s[len(s)-1] != close {
		return nil, fmt.Errorf("expected %c...%c, got %q", open, close, s)
	}
	body := strings.TrimSpace(s[1 : len(s)-1])
	if body == "" {
		return nil, nil
	}

	var (
		items   []string
		depth   int
		quoted  bool
		start   int
		escaped bool
	)
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && quoted:
			escaped = true
		case c == '"':
			quoted = !quoted
		case quoted:
		case c == '[' || c == '(':
			depth++
		case c == ']' || c == ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced %q", s)
			}
		case c == ',' && depth == 0:
			items = append(items, strings.TrimSpace(body[start:i]))
			start = i + 1
		}
	}
	if depth != 0 || quoted {
		return nil, fmt.Errorf("unbalanced %q", s)
	}
	return append(items, strings.TrimSpace(body[start:])), nil
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if u, err := strconv.Unquote(s); err == nil {
			return u
		}
		return s[1 : len(s)-1]
	}
	return s
}

func signature(inputs abi.Arguments) string {
	types := make([]string, len(inputs))
	for i, in := range inputs {
		types[i] = in.Type.String()
	}
	return "(" + strings.Join(types, ",") + ")"
}

var _ usecase.ArgumentParser = (*ArgParser)(nil)
