package onnx

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/example/go-ort-smoke/internal/shape"
	"google.golang.org/protobuf/encoding/protowire"
)

// Opset range of the default ONNX domain that the bundled runtimes execute.
const (
	MinOpset = 7
	MaxOpset = 23
)

// ElemType is the ONNX TensorProto.DataType of a graph input or output.
type ElemType int32

const (
	ElemUndefined ElemType = 0
	ElemFloat     ElemType = 1
	ElemUint8     ElemType = 2
	ElemInt8      ElemType = 3
	ElemInt32     ElemType = 6
	ElemInt64     ElemType = 7
	ElemString    ElemType = 8
	ElemBool      ElemType = 9
	ElemFloat16   ElemType = 10
	ElemDouble    ElemType = 11
	ElemBFloat16  ElemType = 16
)

func (e ElemType) String() string {
	switch e {
	case ElemFloat:
		return "float32"
	case ElemUint8:
		return "uint8"
	case ElemInt8:
		return "int8"
	case ElemInt32:
		return "int32"
	case ElemInt64:
		return "int64"
	case ElemString:
		return "string"
	case ElemBool:
		return "bool"
	case ElemFloat16:
		return "float16"
	case ElemDouble:
		return "float64"
	case ElemBFloat16:
		return "bfloat16"
	case ElemUndefined:
		return "undefined"
	default:
		return fmt.Sprintf("type(%d)", int32(e))
	}
}

// NodeInfo describes one graph input or output.
type NodeInfo struct {
	Name     string
	ElemType ElemType
	Shape    shape.Shape
	// Symbols holds the dim_param name of each dynamic axis, "" otherwise.
	Symbols []string

	hasShape bool
}

// DimString renders the declared shape with symbolic names where present,
// e.g. "[batch,3,256,256]".
func (n NodeInfo) DimString() string {
	if !n.hasShape && len(n.Shape) == 0 {
		return "unknown"
	}

	parts := make([]string, len(n.Shape))
	for i, d := range n.Shape {
		if d.IsDynamic() && i < len(n.Symbols) && n.Symbols[i] != "" {
			parts[i] = n.Symbols[i]
			continue
		}

		parts[i] = d.String()
	}

	return "[" + strings.Join(parts, ",") + "]"
}

func (n NodeInfo) clone() NodeInfo {
	n.Shape = n.Shape.Clone()
	n.Symbols = append([]string(nil), n.Symbols...)

	return n
}

// OpsetImport is one entry of the model's opset_import list.
type OpsetImport struct {
	Domain  string
	Version int64
}

// ModelDescriptor is the metadata of a parsed ONNX model: its graph inputs
// and outputs in declared order. It is immutable once built.
type ModelDescriptor struct {
	Path      string
	IRVersion int64
	Producer  string
	GraphName string

	opsets  []OpsetImport
	inputs  []NodeInfo
	outputs []NodeInfo
}

// NewModelDescriptor builds a descriptor from already known node metadata.
// Engines that report their own metadata and tests use it.
func NewModelDescriptor(path string, inputs, outputs []NodeInfo) *ModelDescriptor {
	d := &ModelDescriptor{Path: path}
	for _, n := range inputs {
		n.hasShape = true
		d.inputs = append(d.inputs, n.clone())
	}

	for _, n := range outputs {
		n.hasShape = true
		d.outputs = append(d.outputs, n.clone())
	}

	return d
}

// Opsets returns a copy of the model's opset imports.
func (d *ModelDescriptor) Opsets() []OpsetImport {
	return append([]OpsetImport(nil), d.opsets...)
}

// Inputs returns a copy of the declared graph inputs.
func (d *ModelDescriptor) Inputs() []NodeInfo {
	return cloneNodes(d.inputs)
}

// Outputs returns a copy of the declared graph outputs.
func (d *ModelDescriptor) Outputs() []NodeInfo {
	return cloneNodes(d.outputs)
}

// InputNames returns the input names in declared order.
func (d *ModelDescriptor) InputNames() []string {
	return nodeNames(d.inputs)
}

// OutputNames returns the output names in declared order.
func (d *ModelDescriptor) OutputNames() []string {
	return nodeNames(d.outputs)
}

// InputShapes returns the declared input shapes paired with their names.
func (d *ModelDescriptor) InputShapes() []shape.Named {
	return namedShapes(d.inputs)
}

// OutputShapes returns the declared output shapes paired with their names.
func (d *ModelDescriptor) OutputShapes() []shape.Named {
	return namedShapes(d.outputs)
}

// DefaultOpset returns the opset version imported for the default domain,
// or 0 when the model does not import it.
func (d *ModelDescriptor) DefaultOpset() int64 {
	for _, o := range d.opsets {
		if o.Domain == "" || o.Domain == "ai.onnx" {
			return o.Version
		}
	}

	return 0
}

// Validate checks that the descriptor can serve as a shape contract: the
// default opset is supported, and every input and output is a named float32
// tensor with a declared rank.
func (d *ModelDescriptor) Validate() error {
	opset := d.DefaultOpset()
	if opset == 0 && len(d.opsets) > 0 {
		return errors.New("model does not import the default ONNX domain")
	}

	if opset != 0 && (opset < MinOpset || opset > MaxOpset) {
		return fmt.Errorf("opset %d outside supported range [%d, %d]", opset, MinOpset, MaxOpset)
	}

	if len(d.inputs) == 0 {
		return errors.New("graph declares no inputs")
	}

	if len(d.outputs) == 0 {
		return errors.New("graph declares no outputs")
	}

	seen := make(map[string]struct{}, len(d.inputs)+len(d.outputs))
	check := func(role string, nodes []NodeInfo) error {
		for i, n := range nodes {
			label := shape.Label(role, i, n.Name)
			if n.Name == "" {
				return fmt.Errorf("%s has no name", label)
			}

			if _, dup := seen[n.Name]; dup {
				return fmt.Errorf("%s: duplicate tensor name", label)
			}

			seen[n.Name] = struct{}{}

			if n.ElemType != ElemFloat {
				return fmt.Errorf("%s: element type %s is not supported (want float32)", label, n.ElemType)
			}

			if !n.hasShape {
				return fmt.Errorf("%s declares no shape", label)
			}
		}

		return nil
	}

	if err := check("input", d.inputs); err != nil {
		return err
	}

	return check("output", d.outputs)
}

// ReadDescriptor parses the ONNX model at path. Any failure, including a
// missing file, is a *ModelLoadError.
func ReadDescriptor(path string) (*ModelDescriptor, error) {
	//nolint:gosec // G304: the model path is supplied by the operator.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ModelLoadError{Path: path, Err: err}
	}

	d, err := ParseDescriptor(data)
	if err != nil {
		return nil, &ModelLoadError{Path: path, Err: err}
	}

	d.Path = path

	return d, nil
}

// ParseDescriptor decodes the graph metadata of a serialized ONNX ModelProto.
// Only the fields needed for the shape contract are read; weights and nodes
// are skipped. Graph inputs that are also initializers are not model inputs
// and are dropped, matching ONNX Runtime.
func ParseDescriptor(data []byte) (*ModelDescriptor, error) {
	d := &ModelDescriptor{}

	var graph []byte

	err := walk(data, func(f field) error {
		switch f.num {
		case 1: // ir_version
			d.IRVersion = int64(f.varint)
		case 2: // producer_name
			d.Producer = string(f.bytes)
		case 7: // graph
			graph = f.bytes
		case 8: // opset_import
			op, err := parseOpset(f.bytes)
			if err != nil {
				return fmt.Errorf("opset_import: %w", err)
			}

			d.opsets = append(d.opsets, op)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}

	if graph == nil {
		return nil, errors.New("decode model: no graph")
	}

	if err := parseGraph(graph, d); err != nil {
		return nil, fmt.Errorf("decode graph: %w", err)
	}

	return d, nil
}

func parseGraph(data []byte, d *ModelDescriptor) error {
	var inputs []NodeInfo

	initializers := make(map[string]struct{})

	err := walk(data, func(f field) error {
		switch f.num {
		case 2: // name
			d.GraphName = string(f.bytes)
		case 5: // initializer
			name, err := parseInitializerName(f.bytes)
			if err != nil {
				return fmt.Errorf("initializer: %w", err)
			}

			initializers[name] = struct{}{}
		case 11: // input
			n, err := parseValueInfo(f.bytes)
			if err != nil {
				return fmt.Errorf("input %d: %w", len(inputs), err)
			}

			inputs = append(inputs, n)
		case 12: // output
			n, err := parseValueInfo(f.bytes)
			if err != nil {
				return fmt.Errorf("output %d: %w", len(d.outputs), err)
			}

			d.outputs = append(d.outputs, n)
		}

		return nil
	})
	if err != nil {
		return err
	}

	for _, n := range inputs {
		if _, isWeight := initializers[n.Name]; isWeight {
			continue
		}

		d.inputs = append(d.inputs, n)
	}

	return nil
}

func parseOpset(data []byte) (OpsetImport, error) {
	var op OpsetImport

	err := walk(data, func(f field) error {
		switch f.num {
		case 1:
			op.Domain = string(f.bytes)
		case 2:
			op.Version = int64(f.varint)
		}

		return nil
	})

	return op, err
}

func parseInitializerName(data []byte) (string, error) {
	var name string

	err := walk(data, func(f field) error {
		if f.num == 8 {
			name = string(f.bytes)
		}

		return nil
	})

	return name, err
}

// parseValueInfo reads ValueInfoProto{name=1, type=2} and the nested
// TypeProto.tensor_type{elem_type=1, shape=2}.
func parseValueInfo(data []byte) (NodeInfo, error) {
	var n NodeInfo

	var typ []byte

	err := walk(data, func(f field) error {
		switch f.num {
		case 1:
			n.Name = string(f.bytes)
		case 2:
			typ = f.bytes
		}

		return nil
	})
	if err != nil {
		return n, err
	}

	var tensorType []byte

	err = walk(typ, func(f field) error {
		if f.num == 1 {
			tensorType = f.bytes
		}

		return nil
	})
	if err != nil {
		return n, fmt.Errorf("%q type: %w", n.Name, err)
	}

	err = walk(tensorType, func(f field) error {
		switch f.num {
		case 1:
			n.ElemType = ElemType(int32(f.varint))
		case 2:
			n.hasShape = true

			return parseShape(f.bytes, &n)
		}

		return nil
	})
	if err != nil {
		return n, fmt.Errorf("%q tensor type: %w", n.Name, err)
	}

	return n, nil
}

func parseShape(data []byte, n *NodeInfo) error {
	n.Shape = shape.Shape{}
	n.Symbols = []string{}

	return walk(data, func(f field) error {
		if f.num != 1 {
			return nil
		}

		dim := shape.Dynamic
		symbol := ""

		err := walk(f.bytes, func(df field) error {
			switch df.num {
			case 1: // dim_value
				v := int64(df.varint)
				if v < 1 {
					return fmt.Errorf("axis %d: dim_value %d is not positive", len(n.Shape), v)
				}

				dim = shape.Dim(v)
			case 2: // dim_param
				symbol = string(df.bytes)
			}

			return nil
		})
		if err != nil {
			return err
		}

		n.Shape = append(n.Shape, dim)
		n.Symbols = append(n.Symbols, symbol)

		return nil
	})
}

type field struct {
	num    protowire.Number
	typ    protowire.Type
	varint uint64
	bytes  []byte
}

// walk calls fn for each top-level field of a protobuf message. Length
// delimited fields carry their payload in bytes, varints in varint; other
// wire types are skipped.
func walk(data []byte, fn func(field) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}

		data = data[n:]
		f := field{num: num, typ: typ}

		switch typ {
		case protowire.VarintType:
			f.varint, n = protowire.ConsumeVarint(data)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(data)
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
		}

		if n < 0 {
			return fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
		}

		data = data[n:]

		if err := fn(f); err != nil {
			return err
		}
	}

	return nil
}

func cloneNodes(nodes []NodeInfo) []NodeInfo {
	out := make([]NodeInfo, len(nodes))
	for i, n := range nodes {
		out[i] = n.clone()
	}

	return out
}

func namedShapes(nodes []NodeInfo) []shape.Named {
	out := make([]shape.Named, len(nodes))
	for i, n := range nodes {
		out[i] = shape.Named{Name: n.Name, Shape: n.Shape.Clone()}
	}

	return out
}

func nodeNames(nodes []NodeInfo) []string {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name
	}

	return names
}
