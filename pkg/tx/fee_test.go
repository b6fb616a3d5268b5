package tx

import (
	"strings"
	"testing"
)

func TestFee(t *testing.T) {
	tests := []struct {
		size int
		want uint64
	}{
		{0, 0},
		{1, 80},
		{250, 80},
		{999, 80},
		{1000, 100},
		{1001, 180},
		{1999, 180},
		{2000, 200},
		{10500, 1080},
	}
	for _, tt := range tests {
		if got := Fee(tt.size); got != tt.want {
			t.Errorf("Fee(%d) = %d, want %d", tt.size, got, tt.want)
		}
	}
}

func TestFee_Monotonic(t *testing.T) {
	prev := Fee(0)
	for size := 1; size <= 20000; size++ {
		f := Fee(size)
		if f < prev {
			t.Fatalf("Fee(%d) = %d < Fee(%d) = %d", size, f, size-1, prev)
		}
		prev = f
	}
}

func TestFeeForHex(t *testing.T) {
	b := NewBuilder()
	if err := b.AddInput(strings.Repeat("11", 32), 0, testP2PKHScript(t), 5000); err != nil {
		t.Fatalf("AddInput() error: %v", err)
	}
	b.AddOutput(4000, testP2PKHScript(t))
	raw, err := b.Hex()
	if err != nil {
		t.Fatalf("Hex() error: %v", err)
	}

	got, err := FeeForHex(raw)
	if err != nil {
		t.Fatalf("FeeForHex() error: %v", err)
	}
	if want := Fee(len(raw) / 2); got != want {
		t.Errorf("FeeForHex() = %d, want %d", got, want)
	}
	if got != FeeForTx(b.Build()) {
		t.Error("FeeForHex and FeeForTx disagree")
	}

	if _, err := FeeForHex("zz"); err == nil {
		t.Error("FeeForHex() should reject bad hex")
	}
}
