package utxo

import "testing"

func TestParseTBC(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{"1", 1_000_000, false},
		{"0.5", 500_000, false},
		{".000001", 1, false},
		{"12.345678", 12_345_678, false},
		{"0.0000019", 1, false}, // truncated, not rounded
		{"0.9999999", 999_999, false},
		{" 2.1 ", 2_100_000, false},
		{"", 0, true},
		{"-1", 0, true},
		{"1.-5", 0, true},
		{"abc", 0, true},
		{"1.2.3", 0, true},
		{"99999999999999999999", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTBC(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseTBC(%q) = %d, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTBC(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseTBC(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatTBC(t *testing.T) {
	tests := map[uint64]string{
		0:          "0",
		1:          "0.000001",
		1_500_000:  "1.5",
		12_000_000: "12",
	}
	for in, want := range tests {
		if got := FormatTBC(in); got != want {
			t.Errorf("FormatTBC(%d) = %q, want %q", in, got, want)
		}
	}
}
