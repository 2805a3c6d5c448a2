package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// EncodeUniform converts a Go value into the little-endian byte layout of a shader uniform type.
// Scalars are converted between numeric kinds; vectors and matrices accept the matching mgl32
// types. Matrices are column-major, with mat3x3 columns padded to 16 bytes.
//
// Parameters:
//   - typeName: the shader type of the destination uniform, e.g. "f32", "vec3f", "mat4x4<f32>"
//   - value: the Go value to encode
//
// Returns:
//   - []byte: the encoded value
//   - error: an error if the value cannot represent the type
func EncodeUniform(typeName string, value any) ([]byte, error) {
	switch typeName {
	case "f32":
		f, ok := toFloat(value)
		if !ok {
			break
		}
		return floats(f), nil
	case "i32":
		i, ok := toInt(value)
		if !ok {
			break
		}
		return binary.LittleEndian.AppendUint32(nil, uint32(int32(i))), nil
	case "u32", "bool":
		i, ok := toInt(value)
		if !ok || i < 0 {
			break
		}
		return binary.LittleEndian.AppendUint32(nil, uint32(i)), nil
	case "vec2f", "vec2<f32>":
		if v, ok := value.(mgl32.Vec2); ok {
			return floats(v[:]...), nil
		}
	case "vec3f", "vec3<f32>":
		if v, ok := value.(mgl32.Vec3); ok {
			return floats(v[:]...), nil
		}
	case "vec4f", "vec4<f32>":
		if v, ok := value.(mgl32.Vec4); ok {
			return floats(v[:]...), nil
		}
	case "mat2x2f", "mat2x2<f32>":
		if m, ok := value.(mgl32.Mat2); ok {
			return floats(m[:]...), nil
		}
	case "mat3x3f", "mat3x3<f32>":
		if m, ok := value.(mgl32.Mat3); ok {
			return floats(m[0], m[1], m[2], 0, m[3], m[4], m[5], 0, m[6], m[7], m[8], 0), nil
		}
	case "mat4x4f", "mat4x4<f32>":
		if m, ok := value.(mgl32.Mat4); ok {
			return floats(m[:]...), nil
		}
	}

	if raw, ok := value.([]float32); ok {
		return floats(raw...), nil
	}
	return nil, fmt.Errorf("cannot encode %T as %s", value, typeName)
}

// EncodeUnit encodes a texture unit, image unit or binding point index for a resource uniform.
func EncodeUnit(unit int) []byte {
	return binary.LittleEndian.AppendUint32(nil, uint32(int32(unit)))
}

func floats(values ...float32) []byte {
	out := make([]byte, 0, 4*len(values))
	for _, v := range values {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
	}
	return out
}

func toFloat(value any) (float32, bool) {
	switch v := value.(type) {
	case float32:
		return v, true
	case float64:
		return float32(v), true
	case int:
		return float32(v), true
	case int32:
		return float32(v), true
	case uint32:
		return float32(v), true
	default:
		return 0, false
	}
}

func toInt(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
