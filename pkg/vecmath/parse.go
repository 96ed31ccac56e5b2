package vecmath

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/DRSN-tech/taste-backend/pkg/e"
	"github.com/goccy/go-json"
)

// Parse приводит вектор из хранилища к []float32.
// Поддерживаются: []float32, []float64, []any с числами, текст "[1,2,3]" (JSON и pgvector),
// литерал массива PostgreSQL "{1,2,3}", те же форматы в []byte, а также бинарный BLOB
// из little-endian float32 без префикса длины.
// nil означает отсутствие вектора и не является ошибкой.
func Parse(raw any) ([]float32, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []float32:
		return checkFinite(append([]float32(nil), v...))
	case []float64:
		out := make([]float32, len(v))
		for i, x := range v {
			out[i] = float32(x)
		}
		return checkFinite(out)
	case []any:
		return parseAnySlice(v)
	case string:
		return parseText([]byte(v))
	case *string:
		if v == nil {
			return nil, nil
		}
		return parseText([]byte(*v))
	case []byte:
		trimmed := bytes.TrimSpace(v)
		if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
			return parseText(trimmed)
		}
		return decodeBlob(v)
	default:
		return nil, e.Wrap(fmt.Sprintf("unsupported vector encoding %T", raw), e.ErrInvalidVector)
	}
}

// EncodeText сериализует вектор в текстовый формат pgvector "[1,2,3]".
func EncodeText(v []float32) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", e.Wrap("vecmath.EncodeText", err)
	}

	return string(data), nil
}

func parseText(data []byte) ([]float32, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	// {1,2,3} -> [1,2,3]
	if data[0] == '{' && data[len(data)-1] == '}' {
		converted := make([]byte, len(data))
		copy(converted, data)
		converted[0] = '['
		converted[len(converted)-1] = ']'
		data = converted
	}

	var values []float64
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, e.Wrap("vecmath.parseText", fmt.Errorf("%w: %v", e.ErrInvalidVector, err))
	}

	out := make([]float32, len(values))
	for i, x := range values {
		out[i] = float32(x)
	}

	return checkFinite(out)
}

func parseAnySlice(values []any) ([]float32, error) {
	out := make([]float32, len(values))
	for i, raw := range values {
		switch x := raw.(type) {
		case float64:
			out[i] = float32(x)
		case float32:
			out[i] = x
		case int:
			out[i] = float32(x)
		case int64:
			out[i] = float32(x)
		case json.Number:
			f, err := x.Float64()
			if err != nil {
				return nil, e.Wrap("vecmath.parseAnySlice", e.ErrInvalidVector)
			}
			out[i] = float32(f)
		default:
			return nil, e.Wrap(fmt.Sprintf("vector element %d has type %T", i, raw), e.ErrInvalidVector)
		}
	}

	return checkFinite(out)
}

func decodeBlob(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, e.Wrap(fmt.Sprintf("blob length %d is not a multiple of 4", len(b)), e.ErrInvalidVector)
	}

	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}

	return checkFinite(out)
}

func checkFinite(v []float32) ([]float32, error) {
	for i, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, e.Wrap(fmt.Sprintf("non-finite value at %d", i), e.ErrInvalidVector)
		}
	}

	return v, nil
}
