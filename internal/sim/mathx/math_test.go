package mathx

import "testing"

func TestFloorDiv(t *testing.T) {
	cases := []struct {
		a, b, q int64
	}{
		{0, 9, 0},
		{8, 9, 0},
		{9, 9, 1},
		{-1, 9, -1},
		{-9, 9, -1},
		{-10, 9, -2},
	}
	for _, c := range cases {
		if got := FloorDiv(c.a, c.b); got != c.q {
			t.Errorf("FloorDiv(%d,%d) = %d, want %d", c.a, c.b, got, c.q)
		}
	}
}

func TestFloorDivF(t *testing.T) {
	if got := FloorDivF(-0.5, 288); got != -1 {
		t.Fatalf("FloorDivF(-0.5) = %d, want -1", got)
	}
	if got := FloorDivF(287.99, 288); got != 0 {
		t.Fatalf("FloorDivF(287.99) = %d, want 0", got)
	}
	if got := FloorDivF(288, 288); got != 1 {
		t.Fatalf("FloorDivF(288) = %d, want 1", got)
	}
}

func TestHashesAreStable(t *testing.T) {
	if HashSum(42, 7) != HashSum(42, 7) {
		t.Fatalf("HashSum not deterministic")
	}
	if HashSum(42, 7) == HashSum(43, 7) {
		t.Fatalf("HashSum ignores seed")
	}
	if Hash2(1, 3, 4) == Hash2(1, 4, 3) {
		t.Fatalf("Hash2 should distinguish axis order")
	}
}
