package chain

import (
	"errors"
	"math/big"
	"testing"
)

func TestCheckChainID(t *testing.T) {
	tests := []struct {
		name     string
		expected int64
		actual   *big.Int
		wantErr  bool
	}{
		{"unset accepts any network", 0, big.NewInt(137), false},
		{"match", 137, big.NewInt(137), false},
		{"mismatch", 137, big.NewInt(1), true},
		{"nil reported id", 137, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkChainID(tt.expected, tt.actual)
			if tt.wantErr {
				if !errors.Is(err, ErrWrongNetwork) {
					t.Errorf("checkChainID: got %v, want ErrWrongNetwork", err)
				}
				return
			}
			if err != nil {
				t.Errorf("checkChainID: %v", err)
			}
		})
	}
}
