package exec

import (
	"math"
	"strings"
	"time"

	"github.com/gqlite/gqlite/pkg/gql"
	"github.com/gqlite/gqlite/pkg/types"
)

// Env resolves variables and property accesses during expression
// evaluation.
type Env interface {
	// LookupVar resolves a bare identifier.
	LookupVar(name string) (types.Value, bool)
	// LookupProperty resolves object.property.
	LookupProperty(object, property string) (types.Value, bool)
}

// emptyEnv resolves nothing; literal-only expressions evaluate against it.
type emptyEnv struct{}

func (emptyEnv) LookupVar(string) (types.Value, bool) { return types.Null(), false }

func (emptyEnv) LookupProperty(string, string) (types.Value, bool) { return types.Null(), false }

// EvalLiteral evaluates an expression that must not reference bindings.
func EvalLiteral(e gql.Expr) (types.Value, error) {
	return Eval(e, emptyEnv{})
}

// Eval evaluates an expression against an environment. Unresolvable
// references evaluate to null, matching GQL's missing-property semantics;
// genuine evaluation failures (bad casts, invalid temporal strings) return
// an expression error.
func Eval(e gql.Expr, env Env) (types.Value, error) {
	switch x := e.(type) {
	case *gql.Literal:
		switch v := x.Value.(type) {
		case nil:
			return types.Null(), nil
		case bool:
			return types.NewBool(v), nil
		case float64:
			return types.NewNumber(v), nil
		case string:
			return types.NewString(v), nil
		}
		return types.Null(), Errorf(KindExpression, "unsupported literal type %T", x.Value)

	case *gql.Ident:
		if v, ok := env.LookupVar(x.Name); ok {
			return v, nil
		}
		return types.Null(), nil

	case *gql.PropertyAccess:
		if v, ok := env.LookupProperty(x.Object, x.Property); ok {
			return v, nil
		}
		return types.Null(), nil

	case *gql.ListExpr:
		items := make([]types.Value, 0, len(x.Items))
		for _, item := range x.Items {
			v, err := Eval(item, env)
			if err != nil {
				return types.Null(), err
			}
			items = append(items, v)
		}
		return types.NewList(items...), nil

	case *gql.MapExpr:
		m := make(map[string]types.Value, len(x.Keys))
		for i, key := range x.Keys {
			v, err := Eval(x.Values[i], env)
			if err != nil {
				return types.Null(), err
			}
			m[key] = v
		}
		return types.NewMap(m), nil

	case *gql.Unary:
		operand, err := Eval(x.Operand, env)
		if err != nil {
			return types.Null(), err
		}
		switch x.Op {
		case "NOT":
			if operand.IsNull() {
				return types.Null(), nil
			}
			return types.NewBool(!operand.Truthy()), nil
		case "-":
			if operand.Kind != types.KindNumber {
				return types.Null(), Errorf(KindExpression, "cannot negate %s value", operand.Kind)
			}
			return types.NewNumber(-operand.Number), nil
		}
		return types.Null(), Errorf(KindExpression, "unknown unary operator %q", x.Op)

	case *gql.Binary:
		return evalBinary(x, env)

	case *gql.FuncCall:
		return evalFunc(x, env)
	}
	return types.Null(), Errorf(KindExpression, "unsupported expression %T", e)
}

func evalBinary(x *gql.Binary, env Env) (types.Value, error) {
	left, err := Eval(x.Left, env)
	if err != nil {
		return types.Null(), err
	}
	// AND/OR short-circuit.
	switch x.Op {
	case "AND":
		if !left.IsNull() && !left.Truthy() {
			return types.NewBool(false), nil
		}
		right, err := Eval(x.Right, env)
		if err != nil {
			return types.Null(), err
		}
		if left.IsNull() || right.IsNull() {
			return types.Null(), nil
		}
		return types.NewBool(left.Truthy() && right.Truthy()), nil
	case "OR":
		if !left.IsNull() && left.Truthy() {
			return types.NewBool(true), nil
		}
		right, err := Eval(x.Right, env)
		if err != nil {
			return types.Null(), err
		}
		if left.IsNull() || right.IsNull() {
			return types.Null(), nil
		}
		return types.NewBool(left.Truthy() || right.Truthy()), nil
	}

	right, err := Eval(x.Right, env)
	if err != nil {
		return types.Null(), err
	}

	switch x.Op {
	case "=":
		if left.IsNull() || right.IsNull() {
			return types.Null(), nil
		}
		return types.NewBool(left.Equal(right)), nil
	case "<>":
		if left.IsNull() || right.IsNull() {
			return types.Null(), nil
		}
		return types.NewBool(!left.Equal(right)), nil
	case "<", "<=", ">", ">=":
		if left.IsNull() || right.IsNull() {
			return types.Null(), nil
		}
		cmp := left.Compare(right)
		switch x.Op {
		case "<":
			return types.NewBool(cmp < 0), nil
		case "<=":
			return types.NewBool(cmp <= 0), nil
		case ">":
			return types.NewBool(cmp > 0), nil
		default:
			return types.NewBool(cmp >= 0), nil
		}
	case "+":
		if left.Kind == types.KindString || right.Kind == types.KindString {
			return types.NewString(left.String() + right.String()), nil
		}
		fallthrough
	case "-", "*", "/":
		if left.Kind != types.KindNumber || right.Kind != types.KindNumber {
			return types.Null(), Errorf(KindExpression,
				"cannot apply %q to %s and %s", x.Op, left.Kind, right.Kind)
		}
		switch x.Op {
		case "+":
			return types.NewNumber(left.Number + right.Number), nil
		case "-":
			return types.NewNumber(left.Number - right.Number), nil
		case "*":
			return types.NewNumber(left.Number * right.Number), nil
		default:
			if right.Number == 0 {
				return types.Null(), Errorf(KindExpression, "division by zero")
			}
			return types.NewNumber(left.Number / right.Number), nil
		}
	}
	return types.Null(), Errorf(KindExpression, "unknown operator %q", x.Op)
}

func evalFunc(x *gql.FuncCall, env Env) (types.Value, error) {
	if x.Namespace != "" {
		return types.Null(), Errorf(KindExpression,
			"procedure %s.%s cannot be used as a scalar function", x.Namespace, x.Name)
	}

	args := make([]types.Value, 0, len(x.Args))
	for _, a := range x.Args {
		v, err := Eval(a, env)
		if err != nil {
			return types.Null(), err
		}
		args = append(args, v)
	}

	need := func(n int) error {
		if len(args) != n {
			return Errorf(KindExpression, "%s() expects %d argument(s), got %d", x.Name, n, len(args))
		}
		return nil
	}
	needString := func(i int) (string, error) {
		if args[i].Kind != types.KindString {
			return "", Errorf(KindExpression, "%s() expects a string argument", x.Name)
		}
		return args[i].Str, nil
	}
	needNumber := func(i int) (float64, error) {
		if args[i].Kind != types.KindNumber {
			return 0, Errorf(KindExpression, "%s() expects a numeric argument", x.Name)
		}
		return args[i].Number, nil
	}

	switch x.Name {
	case "datetime":
		if err := need(1); err != nil {
			return types.Null(), err
		}
		s, err := needString(0)
		if err != nil {
			return types.Null(), err
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return types.Null(), Errorf(KindExpression,
				"invalid datetime %q: want RFC 3339 timestamp like '2024-01-15T10:30:00Z'", s)
		}
		return types.NewTemporal(t), nil
	case "date":
		if err := need(1); err != nil {
			return types.Null(), err
		}
		s, err := needString(0)
		if err != nil {
			return types.Null(), err
		}
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return types.Null(), Errorf(KindExpression, "invalid date %q: want YYYY-MM-DD", s)
		}
		return types.NewTemporal(t), nil
	case "upper":
		if err := need(1); err != nil {
			return types.Null(), err
		}
		s, err := needString(0)
		if err != nil {
			return types.Null(), err
		}
		return types.NewString(strings.ToUpper(s)), nil
	case "lower":
		if err := need(1); err != nil {
			return types.Null(), err
		}
		s, err := needString(0)
		if err != nil {
			return types.Null(), err
		}
		return types.NewString(strings.ToLower(s)), nil
	case "trim":
		if err := need(1); err != nil {
			return types.Null(), err
		}
		s, err := needString(0)
		if err != nil {
			return types.Null(), err
		}
		return types.NewString(strings.TrimSpace(s)), nil
	case "char_length":
		if err := need(1); err != nil {
			return types.Null(), err
		}
		s, err := needString(0)
		if err != nil {
			return types.Null(), err
		}
		return types.NewNumber(float64(len([]rune(s)))), nil
	case "abs":
		if err := need(1); err != nil {
			return types.Null(), err
		}
		n, err := needNumber(0)
		if err != nil {
			return types.Null(), err
		}
		return types.NewNumber(math.Abs(n)), nil
	case "ceil":
		if err := need(1); err != nil {
			return types.Null(), err
		}
		n, err := needNumber(0)
		if err != nil {
			return types.Null(), err
		}
		return types.NewNumber(math.Ceil(n)), nil
	case "floor":
		if err := need(1); err != nil {
			return types.Null(), err
		}
		n, err := needNumber(0)
		if err != nil {
			return types.Null(), err
		}
		return types.NewNumber(math.Floor(n)), nil
	case "sqrt":
		if err := need(1); err != nil {
			return types.Null(), err
		}
		n, err := needNumber(0)
		if err != nil {
			return types.Null(), err
		}
		if n < 0 {
			return types.Null(), Errorf(KindExpression, "sqrt() of negative number")
		}
		return types.NewNumber(math.Sqrt(n)), nil
	case "coalesce":
		for _, a := range args {
			if !a.IsNull() {
				return a, nil
			}
		}
		return types.Null(), nil
	case "nullif":
		if err := need(2); err != nil {
			return types.Null(), err
		}
		if args[0].Equal(args[1]) {
			return types.Null(), nil
		}
		return args[0], nil
	}
	return types.Null(), Errorf(KindExpression, "unknown function %s()", x.Name)
}

// ScalarFunctions lists the registered scalar and aggregate function names
// for gql.list_functions().
func ScalarFunctions() []map[string]string {
	return []map[string]string{
		{"name": "count", "category": "aggregate", "description": "number of rows or non-null values"},
		{"name": "sum", "category": "aggregate", "description": "sum of numeric values"},
		{"name": "avg", "category": "aggregate", "description": "average of numeric values"},
		{"name": "min", "category": "aggregate", "description": "minimum value"},
		{"name": "max", "category": "aggregate", "description": "maximum value"},
		{"name": "abs", "category": "numeric", "description": "absolute value"},
		{"name": "ceil", "category": "numeric", "description": "round up"},
		{"name": "floor", "category": "numeric", "description": "round down"},
		{"name": "sqrt", "category": "numeric", "description": "square root"},
		{"name": "char_length", "category": "string", "description": "string length in characters"},
		{"name": "upper", "category": "string", "description": "uppercase"},
		{"name": "lower", "category": "string", "description": "lowercase"},
		{"name": "trim", "category": "string", "description": "strip surrounding whitespace"},
		{"name": "coalesce", "category": "null", "description": "first non-null argument"},
		{"name": "nullif", "category": "null", "description": "null when arguments are equal"},
		{"name": "datetime", "category": "temporal", "description": "parse an RFC 3339 timestamp"},
		{"name": "date", "category": "temporal", "description": "parse a YYYY-MM-DD date"},
	}
}
