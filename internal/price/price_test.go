package price

import (
	"encoding/json"
	"testing"
)

func TestPriceUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Price
		wantErr bool
	}{
		{"zero", `"0"`, 0, false},
		{"one", `"1"`, 1_000_000, false},
		{"half", `"0.5"`, 500_000, false},
		{"quarter", `"0.25"`, 250_000, false},
		{"typical price", `"0.123456"`, 123_456, false},
		{"needs padding 1 digit", `"0.1"`, 100_000, false},
		{"needs padding 3 digits", `"0.123"`, 123_000, false},
		{"needs truncation", `"0.1234567"`, 123_456, false},
		{"raw number no quotes", `0.25`, 250_000, false},
		{"whole with frac", `"1.5"`, 1_500_000, false},
		{"small frac", `"0.000001"`, 1, false},
		{"negative", `"-0.02"`, -20_000, false},
		{"null", `null`, 0, false},
		{"garbage", `"abc"`, 0, true},
		{"exponent", `1e-3`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Price
			err := got.UnmarshalJSON([]byte(tt.input))

			if (err != nil) != tt.wantErr {
				t.Errorf("error = %v, wantErr = %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPriceInStruct(t *testing.T) {
	type Level struct {
		Price Price `json:"price"`
		Size  Size  `json:"size"`
	}

	input := `{"price": "0.75", "size": "120.5"}`
	var l Level
	if err := json.Unmarshal([]byte(input), &l); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if l.Price != 750_000 {
		t.Errorf("price = %d, want 750000", l.Price)
	}
	if l.Size.Float64() != 120.5 {
		t.Errorf("size = %v, want 120.5", l.Size.Float64())
	}
}

func TestPriceConversions(t *testing.T) {
	p, err := Parse("0.42")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Float64() != 0.42 {
		t.Errorf("Float64() = %v, want 0.42", p.Float64())
	}
	if p.String() != "0.42" {
		t.Errorf("String() = %q, want 0.42", p.String())
	}
	if got := FromFloat(0.6499999999); got != 650_000 {
		t.Errorf("FromFloat rounding = %d, want 650000", got)
	}
}

func BenchmarkPriceUnmarshalJSON(b *testing.B) {
	data := []byte(`"0.123456"`)
	var p Price

	for i := 0; i < b.N; i++ {
		_ = p.UnmarshalJSON(data)
	}
}
