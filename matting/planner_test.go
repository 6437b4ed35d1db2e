package matting

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPlanSquarePowerOfTwo(t *testing.T) {
	got := Plan(128, 128)
	want := []Level{
		{1, 1}, {2, 2}, {4, 4}, {8, 8}, {16, 16}, {32, 32}, {64, 64}, {128, 128},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Plan(128,128) mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanDegenerate(t *testing.T) {
	if diff := cmp.Diff([]Level{{1, 1}}, Plan(1, 1)); diff != "" {
		t.Errorf("Plan(1,1) mismatch (-want +got):\n%s", diff)
	}
	if got := Plan(0, 5); got != nil {
		t.Errorf("Plan(0,5) = %v, want nil", got)
	}
}

func TestPlanProperties(t *testing.T) {
	sizes := [][2]int{
		{1, 1}, {1, 2}, {2, 1}, {3, 3}, {1, 300}, {300, 1},
		{7, 5}, {31, 33}, {64, 48}, {100, 37}, {640, 480}, {1200, 799}, {4096, 3},
	}
	for _, s := range sizes {
		w, h := s[0], s[1]
		levels := Plan(w, h)
		if len(levels) == 0 {
			t.Errorf("Plan(%d,%d) is empty", w, h)
			continue
		}
		for i := 1; i < len(levels); i++ {
			prev, cur := levels[i-1], levels[i]
			if cur.Width < prev.Width || cur.Height < prev.Height {
				t.Errorf("Plan(%d,%d) decreases at %d: %v -> %v", w, h, i, prev, cur)
			}
		}
		if first := levels[0]; first.Width < 1 || first.Height < 1 {
			t.Errorf("Plan(%d,%d) starts at %v", w, h, first)
		}
		if last := levels[len(levels)-1]; last != (Level{w, h}) {
			t.Errorf("Plan(%d,%d) ends at %v", w, h, last)
		}
	}
}

func TestPolicyBlocks(t *testing.T) {
	levels := Plan(128, 128)

	got := DefaultPolicy().Blocks(levels)
	var iters []int
	for _, b := range got {
		iters = append(iters, b.Iterations)
	}
	want := []int{10, 10, 10, 10, 10, 10, 2, 2}
	if diff := cmp.Diff(want, iters); diff != "" {
		t.Errorf("iterations mismatch (-want +got):\n%s", diff)
	}
}

func TestPolicyMinLevelSize(t *testing.T) {
	p := DefaultPolicy()
	p.MinLevelSize = 32

	got := p.Blocks(Plan(128, 128))
	want := []IterationBlock{
		{Level: Level{64, 64}, Iterations: 2},
		{Level: Level{128, 128}, Iterations: 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("filtered blocks mismatch (-want +got):\n%s", diff)
	}

	// The finest level survives even when it is below the minimum.
	got = p.Blocks(Plan(16, 16))
	want = []IterationBlock{{Level: Level{16, 16}, Iterations: 10}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("small source blocks mismatch (-want +got):\n%s", diff)
	}
}

func TestPolicyCoarse(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		level Level
		want  bool
	}{
		{Level{32, 32}, true},
		{Level{1, 32}, true},
		{Level{33, 2}, false},
		{Level{64, 64}, false},
	}
	for _, tt := range tests {
		if got := p.Coarse(tt.level); got != tt.want {
			t.Errorf("Coarse(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestDefaultPolicySeedsFromImage(t *testing.T) {
	if s := DefaultPolicy().Seed; s != SeedImage {
		t.Errorf("default seed = %v, want %v", s, SeedImage)
	}
}
