package earthengine

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
)

// Expression is the wire form of a computation graph: a flat table of value
// nodes and the key of the node that is the result.
type Expression struct {
	Result string               `json:"result"`
	Values map[string]ValueNode `json:"values"`
}

// ValueNode is exactly one of the variants below.
type ValueNode struct {
	ConstantValue           json.RawMessage     `json:"constantValue,omitempty"`
	ValueReference          string              `json:"valueReference,omitempty"`
	ArgumentReference       string              `json:"argumentReference,omitempty"`
	FunctionInvocationValue *FunctionInvocation `json:"functionInvocationValue,omitempty"`
	FunctionDefinitionValue *FunctionDefinition `json:"functionDefinitionValue,omitempty"`
	ArrayValue              *ArrayValue         `json:"arrayValue,omitempty"`
	DictionaryValue         *DictionaryValue    `json:"dictionaryValue,omitempty"`
}

type FunctionInvocation struct {
	FunctionName string               `json:"functionName"`
	Arguments    map[string]ValueNode `json:"arguments"`
}

// FunctionDefinition's Body is the key of the body node in Expression.Values.
type FunctionDefinition struct {
	ArgumentNames []string `json:"argumentNames"`
	Body          string   `json:"body"`
}

type ArrayValue struct {
	Values []ValueNode `json:"values"`
}

type DictionaryValue struct {
	Values map[string]ValueNode `json:"values"`
}

type exprKind int

const (
	kindConstant exprKind = iota
	kindInvocation
	kindArray
	kindDictionary
	kindArgument
	kindFunction
)

// Expr is a node of a graph under construction. Build it with Const, Call,
// Array, Dict, Arg and Lambda, then serialize it with Encode.
type Expr struct {
	kind     exprKind
	constant any
	fn       string
	args     Args
	items    []*Expr
	params   []string
	body     *Expr
	argName  string
}

// Args are the named arguments of a function invocation.
type Args map[string]*Expr

// Const wraps any JSON-encodable value.
func Const(v any) *Expr {
	return &Expr{kind: kindConstant, constant: v}
}

// Call invokes a server-side algorithm. Nil arguments are dropped so optional
// parameters can be left out inline.
func Call(fn string, args Args) *Expr {
	clean := make(Args, len(args))
	for k, v := range args {
		if v != nil {
			clean[k] = v
		}
	}
	return &Expr{kind: kindInvocation, fn: fn, args: clean}
}

// Array is a list whose items may themselves be computed.
func Array(items ...*Expr) *Expr {
	return &Expr{kind: kindArray, items: items}
}

// Dict is a dictionary whose values may themselves be computed.
func Dict(entries Args) *Expr {
	return &Expr{kind: kindDictionary, args: entries}
}

// Arg references a parameter of the enclosing Lambda.
func Arg(name string) *Expr {
	return &Expr{kind: kindArgument, argName: name}
}

// Lambda defines a server-side function, used by Collection.map.
func Lambda(params []string, body *Expr) *Expr {
	return &Expr{kind: kindFunction, params: params, body: body}
}

// Encode flattens the graph. Identical sub-graphs share one entry and keys
// are assigned in a deterministic depth-first order.
func Encode(root *Expr) (Expression, error) {
	e := &encoder{values: map[string]ValueNode{}, index: map[string]string{}}
	n, err := e.node(root)
	if err != nil {
		return Expression{}, err
	}
	key, err := e.ref(n)
	if err != nil {
		return Expression{}, err
	}
	return Expression{Result: key, Values: e.values}, nil
}

type encoder struct {
	values map[string]ValueNode
	index  map[string]string // canonical JSON -> key
}

func (e *encoder) node(x *Expr) (ValueNode, error) {
	if x == nil {
		return ValueNode{}, fmt.Errorf("nil expression")
	}
	switch x.kind {
	case kindConstant:
		data, err := json.Marshal(x.constant)
		if err != nil {
			return ValueNode{}, fmt.Errorf("encode constant: %w", err)
		}
		return ValueNode{ConstantValue: data}, nil

	case kindArgument:
		return ValueNode{ArgumentReference: x.argName}, nil

	case kindArray:
		vals := make([]ValueNode, len(x.items))
		for i, item := range x.items {
			n, err := e.node(item)
			if err != nil {
				return ValueNode{}, err
			}
			vals[i] = n
		}
		return ValueNode{ArrayValue: &ArrayValue{Values: vals}}, nil

	case kindDictionary:
		vals, err := e.namedNodes(x.args)
		if err != nil {
			return ValueNode{}, err
		}
		return ValueNode{DictionaryValue: &DictionaryValue{Values: vals}}, nil

	case kindInvocation:
		args, err := e.namedNodes(x.args)
		if err != nil {
			return ValueNode{}, fmt.Errorf("%s: %w", x.fn, err)
		}
		key, err := e.hoist(ValueNode{FunctionInvocationValue: &FunctionInvocation{FunctionName: x.fn, Arguments: args}})
		if err != nil {
			return ValueNode{}, err
		}
		return ValueNode{ValueReference: key}, nil

	case kindFunction:
		body, err := e.node(x.body)
		if err != nil {
			return ValueNode{}, err
		}
		bodyKey, err := e.ref(body)
		if err != nil {
			return ValueNode{}, err
		}
		key, err := e.hoist(ValueNode{FunctionDefinitionValue: &FunctionDefinition{ArgumentNames: x.params, Body: bodyKey}})
		if err != nil {
			return ValueNode{}, err
		}
		return ValueNode{ValueReference: key}, nil
	}
	return ValueNode{}, fmt.Errorf("unknown expression kind %d", x.kind)
}

// namedNodes encodes arguments in sorted name order so numbering is stable.
func (e *encoder) namedNodes(args Args) (map[string]ValueNode, error) {
	names := make([]string, 0, len(args))
	for k := range args {
		names = append(names, k)
	}
	slices.Sort(names)

	out := make(map[string]ValueNode, len(args))
	for _, name := range names {
		n, err := e.node(args[name])
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", name, err)
		}
		out[name] = n
	}
	return out, nil
}

// ref returns the key of n, hoisting it into the table if it is inline.
func (e *encoder) ref(n ValueNode) (string, error) {
	if n.ValueReference != "" {
		return n.ValueReference, nil
	}
	return e.hoist(n)
}

func (e *encoder) hoist(n ValueNode) (string, error) {
	canon, err := json.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("encode node: %w", err)
	}
	if key, ok := e.index[string(canon)]; ok {
		return key, nil
	}
	key := strconv.Itoa(len(e.values))
	e.values[key] = n
	e.index[string(canon)] = key
	return key, nil
}
