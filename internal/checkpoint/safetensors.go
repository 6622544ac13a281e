package checkpoint

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/weft-ml/weft/internal/tensor"
)

// Safetensors format:
// [8 bytes: header_size (uint64 LE)]
// [header_size bytes: JSON header]
// [tensor data: raw bytes]

// SafetensorsDType represents supported safetensors data types.
type SafetensorsDType string

// Supported safetensors dtypes.
const (
	SafetensorsF16  SafetensorsDType = "F16"
	SafetensorsF32  SafetensorsDType = "F32"
	SafetensorsF64  SafetensorsDType = "F64"
	SafetensorsBF16 SafetensorsDType = "BF16"
	SafetensorsI32  SafetensorsDType = "I32"
	SafetensorsI64  SafetensorsDType = "I64"
	SafetensorsU8   SafetensorsDType = "U8"
)

// SafetensorInfo describes one tensor in the header.
type SafetensorInfo struct {
	DType       SafetensorsDType `json:"dtype"`
	Shape       []int            `json:"shape"`
	DataOffsets [2]int64         `json:"data_offsets"` // [start, end]
}

// safetensorsHeader is the JSON header: tensor entries plus an optional
// __metadata__ block.
type safetensorsHeader struct {
	Metadata map[string]string
	Tensors  map[string]SafetensorInfo
}

func (h *safetensorsHeader) UnmarshalJSON(data []byte) error {
	var rawMap map[string]json.RawMessage
	if err := json.Unmarshal(data, &rawMap); err != nil {
		return err
	}

	if metadataRaw, ok := rawMap["__metadata__"]; ok {
		if err := json.Unmarshal(metadataRaw, &h.Metadata); err != nil {
			return fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	h.Tensors = make(map[string]SafetensorInfo)
	for key, value := range rawMap {
		if key == "__metadata__" {
			continue
		}
		var info SafetensorInfo
		if err := json.Unmarshal(value, &info); err != nil {
			return fmt.Errorf("failed to unmarshal tensor %s: %w", key, err)
		}
		h.Tensors[key] = info
	}
	return nil
}

// SafetensorsReader reads safetensors files tensor by tensor.
type SafetensorsReader struct {
	file       *os.File
	header     safetensorsHeader
	dataOffset int64
}

// NewSafetensorsReader opens a safetensors file and parses its header.
func NewSafetensorsReader(path string) (*SafetensorsReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	var headerSize uint64
	if err := binary.Read(file, binary.LittleEndian, &headerSize); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to read header size: %w", err)
	}
	if headerSize > maxHeaderSize {
		_ = file.Close()
		return nil, fmt.Errorf("invalid header size: %d (too large)", headerSize)
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(file, headerBytes); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var header safetensorsHeader
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	return &SafetensorsReader{
		file:       file,
		header:     header,
		dataOffset: int64(8 + headerSize),
	}, nil
}

// Close closes the underlying file.
func (r *SafetensorsReader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// Metadata returns the __metadata__ map from the header.
func (r *SafetensorsReader) Metadata() map[string]string {
	return r.header.Metadata
}

// TensorNames returns the names of all tensors in the file.
func (r *SafetensorsReader) TensorNames() []string {
	names := make([]string, 0, len(r.header.Tensors))
	for name := range r.header.Tensors {
		names = append(names, name)
	}
	return names
}

// LoadTensor reads one tensor into CPU memory, preserving half-precision
// payloads as Float16/BFloat16 storage.
func (r *SafetensorsReader) LoadTensor(name string) (*tensor.RawTensor, error) {
	info, ok := r.header.Tensors[name]
	if !ok {
		return nil, fmt.Errorf("tensor %s not found", name)
	}

	dtype, err := safetensorsDTypeToDataType(info.DType)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}

	shape := tensor.Shape(info.Shape)
	if len(shape) == 0 {
		// Scalar entries (e.g. "alpha") are stored with an empty shape.
		shape = tensor.Shape{1}
	}
	if err := validateShape(name, shape); err != nil {
		return nil, err
	}

	start := r.dataOffset + info.DataOffsets[0]
	size := info.DataOffsets[1] - info.DataOffsets[0]
	if size < 0 || int(size) != shape.NumElements()*dtype.Size() {
		return nil, fmt.Errorf("invalid data offsets for tensor %s: [%d, %d]",
			name, info.DataOffsets[0], info.DataOffsets[1])
	}

	if _, err := r.file.Seek(start, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to tensor data: %w", err)
	}

	raw, err := tensor.NewRaw(shape, dtype, tensor.CPU)
	if err != nil {
		return nil, fmt.Errorf("failed to create tensor %s: %w", name, err)
	}
	if _, err := io.ReadFull(r.file, raw.Data()); err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	return raw, nil
}

// LoadSafetensors reads every tensor of a safetensors file into a state dict.
func LoadSafetensors(path string) (StateDict, error) {
	reader, err := NewSafetensorsReader(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	sd := make(StateDict, len(reader.header.Tensors))
	for name := range reader.header.Tensors {
		raw, err := reader.LoadTensor(name)
		if err != nil {
			return nil, err
		}
		sd[name] = raw
	}
	return sd, nil
}

func safetensorsDTypeToDataType(dtype SafetensorsDType) (tensor.DataType, error) {
	switch dtype {
	case SafetensorsF32:
		return tensor.Float32, nil
	case SafetensorsF64:
		return tensor.Float64, nil
	case SafetensorsF16:
		return tensor.Float16, nil
	case SafetensorsBF16:
		return tensor.BFloat16, nil
	case SafetensorsI32:
		return tensor.Int32, nil
	case SafetensorsI64:
		return tensor.Int64, nil
	case SafetensorsU8:
		return tensor.Uint8, nil
	default:
		return 0, fmt.Errorf("unsupported dtype: %s", dtype)
	}
}
