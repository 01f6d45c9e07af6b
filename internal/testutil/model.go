package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

// ValueSpec describes a graph input or output of a fixture model.
type ValueSpec struct {
	Name string
	// ElemType is the ONNX data type; 0 means float32.
	ElemType int32
	// Dims holds int or int64 for fixed axes, string for symbolic axes, and
	// nil for an unnamed unknown axis.
	Dims []any
	// NoShape omits the shape field entirely (unknown rank).
	NoShape bool
}

// NodeSpec is a graph node. Only enough to build runnable toy graphs.
type NodeSpec struct {
	OpType  string
	Inputs  []string
	Outputs []string
}

// ModelSpec describes a fixture ONNX model.
type ModelSpec struct {
	IRVersion int64
	Opset     int64
	Producer  string
	GraphName string
	Nodes     []NodeSpec
	Inputs    []ValueSpec
	Outputs   []ValueSpec
	// Initializers lists weight names; each also appears as a graph input
	// the way older exporters emit them.
	Initializers []string
}

// Float is a float32 ValueSpec with the given axes.
func Float(name string, dims ...any) ValueSpec {
	return ValueSpec{Name: name, Dims: dims}
}

// PoseLandmarkSpec mirrors the metadata of MediaPipe's pose_landmark_lite:
// one image input and five float outputs.
func PoseLandmarkSpec() ModelSpec {
	return ModelSpec{
		Producer:  "tf2onnx",
		GraphName: "pose_landmark_lite",
		Inputs: []ValueSpec{
			Float("input_1", 1, 3, 256, 256),
		},
		Outputs: []ValueSpec{
			Float("Identity", 1, 195),
			Float("Identity_1", 1, 1),
			Float("Identity_2", 1, 256, 256, 1),
			Float("Identity_3", 1, 64, 64, 39),
			Float("Identity_4", 1, 117),
		},
	}
}

// IdentitySpec is a runnable single Identity node graph from x to y.
func IdentitySpec(dims ...any) ModelSpec {
	return ModelSpec{
		GraphName: "identity",
		Nodes:     []NodeSpec{{OpType: "Identity", Inputs: []string{"x"}, Outputs: []string{"y"}}},
		Inputs:    []ValueSpec{Float("x", dims...)},
		Outputs:   []ValueSpec{Float("y", dims...)},
	}
}

// WriteModel encodes spec into dir/name and returns the path.
func WriteModel(tb testing.TB, dir, name string, spec ModelSpec) string {
	tb.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, EncodeModel(spec), 0o644); err != nil {
		tb.Fatalf("write model fixture: %v", err)
	}

	return path
}

// EncodeModel serializes spec as an ONNX ModelProto.
func EncodeModel(spec ModelSpec) []byte {
	if spec.IRVersion == 0 {
		spec.IRVersion = 8
	}

	if spec.Opset == 0 {
		spec.Opset = 13
	}

	var graph []byte
	for _, n := range spec.Nodes {
		graph = appendMessage(graph, 1, encodeNode(n))
	}

	graph = appendString(graph, 2, spec.GraphName)

	for _, name := range spec.Initializers {
		var tensor []byte
		tensor = protowire.AppendTag(tensor, 1, protowire.BytesType) // dims, packed
		tensor = protowire.AppendBytes(tensor, protowire.AppendVarint(nil, 1))
		tensor = protowire.AppendTag(tensor, 2, protowire.VarintType) // data_type
		tensor = protowire.AppendVarint(tensor, 1)
		tensor = appendString(tensor, 8, name)
		graph = appendMessage(graph, 5, tensor)
	}

	for _, v := range spec.Inputs {
		graph = appendMessage(graph, 11, encodeValueInfo(v))
	}

	for _, name := range spec.Initializers {
		graph = appendMessage(graph, 11, encodeValueInfo(Float(name, 1)))
	}

	for _, v := range spec.Outputs {
		graph = appendMessage(graph, 12, encodeValueInfo(v))
	}

	var opset []byte
	opset = appendString(opset, 1, "")
	opset = protowire.AppendTag(opset, 2, protowire.VarintType)
	opset = protowire.AppendVarint(opset, uint64(spec.Opset))

	var model []byte
	model = protowire.AppendTag(model, 1, protowire.VarintType)
	model = protowire.AppendVarint(model, uint64(spec.IRVersion))
	model = appendString(model, 2, spec.Producer)
	model = appendMessage(model, 7, graph)
	model = appendMessage(model, 8, opset)

	return model
}

func encodeNode(n NodeSpec) []byte {
	var b []byte
	for _, in := range n.Inputs {
		b = appendString(b, 1, in)
	}

	for _, out := range n.Outputs {
		b = appendString(b, 2, out)
	}

	return appendString(b, 4, n.OpType)
}

func encodeValueInfo(v ValueSpec) []byte {
	elem := v.ElemType
	if elem == 0 {
		elem = 1
	}

	var tensorType []byte
	tensorType = protowire.AppendTag(tensorType, 1, protowire.VarintType)
	tensorType = protowire.AppendVarint(tensorType, uint64(elem))

	if !v.NoShape {
		var shape []byte
		for _, d := range v.Dims {
			shape = appendMessage(shape, 1, encodeDim(d))
		}

		tensorType = appendMessage(tensorType, 2, shape)
	}

	typ := appendMessage(nil, 1, tensorType)

	var info []byte
	info = appendString(info, 1, v.Name)

	return appendMessage(info, 2, typ)
}

func encodeDim(d any) []byte {
	var b []byte

	switch v := d.(type) {
	case int:
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(v)))
	case int64:
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(v))
	case string:
		b = appendString(b, 2, v)
	case nil:
	default:
		panic(fmt.Sprintf("testutil: unsupported dim type %T", d))
	}

	return b
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}

	b = protowire.AppendTag(b, num, protowire.BytesType)

	return protowire.AppendString(b, s)
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)

	return protowire.AppendBytes(b, msg)
}
