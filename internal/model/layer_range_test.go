package model

import (
	"errors"
	"testing"
)

func TestLayerRange_Resolve(t *testing.T) {
	tests := []struct {
		name      string
		in        LayerRange
		count     uint32
		want      LayerRange
		wantCount uint32
		wantErr   bool
	}{
		{name: "whole document", in: WholeDocument(), count: 10, want: LayerRange{0, 9}, wantCount: 10},
		{name: "explicit range", in: LayerRange{0, 4}, count: 10, want: LayerRange{0, 4}, wantCount: 5},
		{name: "single layer", in: LayerRange{3, 3}, count: 10, want: LayerRange{3, 3}, wantCount: 1},
		{name: "open end from middle", in: LayerRange{Start: 7, End: LastLayer}, count: 10, want: LayerRange{7, 9}, wantCount: 3},
		{name: "end past last layer", in: LayerRange{0, 10}, count: 10, wantErr: true},
		{name: "start after end", in: LayerRange{5, 2}, count: 10, wantErr: true},
		{name: "start past open end", in: LayerRange{Start: 12, End: LastLayer}, count: 10, wantErr: true},
		{name: "empty document", in: WholeDocument(), count: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Resolve(tt.count)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRange) {
					t.Fatalf("Resolve() error = %v, want ErrInvalidRange", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %v, want %v", got, tt.want)
			}
			if got.Count() != tt.wantCount {
				t.Errorf("Count() = %d, want %d", got.Count(), tt.wantCount)
			}
		})
	}
}

func TestLayerRange_CountInverted(t *testing.T) {
	if c := (LayerRange{Start: 4, End: 1}).Count(); c != 0 {
		t.Errorf("Count() = %d, want 0", c)
	}
}

func TestGlobalFlags_ShowProgress(t *testing.T) {
	tests := []struct {
		name  string
		flags GlobalFlags
		want  bool
	}{
		{name: "defaults", flags: GlobalFlags{}, want: true},
		{name: "quiet", flags: GlobalFlags{Quiet: true}, want: false},
		{name: "no progress", flags: GlobalFlags{NoProgress: true}, want: false},
		{name: "dummy keeps bar", flags: GlobalFlags{Dummy: true}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.flags.ShowProgress(); got != tt.want {
				t.Errorf("ShowProgress() = %v, want %v", got, tt.want)
			}
		})
	}
}
