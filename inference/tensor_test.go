package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTensor_Validate(t *testing.T) {
	tests := []struct {
		name    string
		tensor  Tensor
		wantErr string
	}{
		{
			name:   "float32 matches shape",
			tensor: NewFloat32Tensor("pixel_values", []int64{1, 3, 2, 2}, make([]float32, 12)),
		},
		{
			name:   "int64 matches shape",
			tensor: NewInt64Tensor("pixel_mask", []int64{1, 2, 2}, []int64{1, 1, 1, 1}),
		},
		{
			name:    "length mismatch",
			tensor:  NewFloat32Tensor("pixel_values", []int64{1, 3, 2, 2}, make([]float32, 11)),
			wantErr: "needs 12",
		},
		{
			name:    "no data",
			tensor:  Tensor{Name: "empty", Shape: []int64{1}},
			wantErr: "no data",
		},
		{
			name:    "both data kinds",
			tensor:  Tensor{Name: "both", Shape: []int64{1}, Float32: []float32{1}, Int64: []int64{1}},
			wantErr: "both",
		},
		{
			name:    "zero dimension",
			tensor:  NewFloat32Tensor("zero", []int64{1, 0}, []float32{}),
			wantErr: "non-positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tensor.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFind(t *testing.T) {
	tensors := []Tensor{
		NewFloat32Tensor("logits", []int64{1, 2, 3}, make([]float32, 6)),
		NewFloat32Tensor("pred_boxes", []int64{1, 2, 4}, make([]float32, 8)),
	}

	got, err := Find(tensors, "pred_boxes")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 4}, got.Shape)

	_, err = Find(tensors, "missing")
	assert.Error(t, err)
}

func TestTensor_Elements(t *testing.T) {
	assert.Equal(t, int64(24), Tensor{Shape: []int64{2, 3, 4}}.Elements())
	assert.Zero(t, Tensor{}.Elements())
}
