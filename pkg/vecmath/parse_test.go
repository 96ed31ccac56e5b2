package vecmath

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/DRSN-tech/taste-backend/pkg/e"
)

func blob(values ...float32) []byte {
	b := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		want    []float32
		wantErr bool
	}{
		{name: "nil", raw: nil, want: nil},
		{name: "float32 slice", raw: []float32{1, 2}, want: []float32{1, 2}},
		{name: "float64 slice", raw: []float64{0.5, -1}, want: []float32{0.5, -1}},
		{name: "any slice", raw: []any{1.0, 2, int64(3)}, want: []float32{1, 2, 3}},
		{name: "pgvector text", raw: "[0.25,0.5,1]", want: []float32{0.25, 0.5, 1}},
		{name: "postgres array literal", raw: "{1,2,3}", want: []float32{1, 2, 3}},
		{name: "text with spaces", raw: "  [1, 2]  ", want: []float32{1, 2}},
		{name: "text bytes", raw: []byte("[3,4]"), want: []float32{3, 4}},
		{name: "binary blob", raw: blob(1.5, -2), want: []float32{1.5, -2}},
		{name: "empty string", raw: "", want: nil},
		{name: "malformed text", raw: "[1,2", wantErr: true},
		{name: "non-numeric element", raw: []any{"a"}, wantErr: true},
		{name: "blob with bad length", raw: []byte{1, 2, 3}, wantErr: true},
		{name: "nan in blob", raw: blob(float32(math.NaN())), wantErr: true},
		{name: "unsupported type", raw: 42, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%v) error = nil, want error", tt.raw)
				}
				if !errors.Is(err, e.ErrInvalidVector) {
					t.Errorf("Parse(%v) error = %v, want ErrInvalidVector", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%v) error = %v", tt.raw, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len(Parse()) = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Parse()[%d] = %f, want %f", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestEncodeText_RoundTrip(t *testing.T) {
	in := []float32{0.5, -1, 2}

	text, err := EncodeText(in)
	if err != nil {
		t.Fatalf("EncodeText() error = %v", err)
	}

	out, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", text, err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("Parse(EncodeText())[%d] = %f, want %f", i, out[i], in[i])
		}
	}
}
