package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		required bool
		want     string
		wantNil  bool
		wantErr  bool
	}{
		{name: "plain decimal", input: "1.50", required: true, want: "1.50"},
		{name: "comma decimal", input: "1,50", required: true, want: "1.50"},
		{name: "euro suffix", input: "1,50€", required: true, want: "1.50"},
		{name: "eur suffix", input: "1.50 EUR", required: true, want: "1.50"},
		{name: "integer", input: "3", required: true, want: "3.00"},
		{name: "missing leading zero", input: ",50", required: true, want: "0.50"},
		{name: "dot leading", input: ".50", required: true, want: "0.50"},
		{name: "thousands dot", input: "1.200,50", required: true, want: "1200.50"},
		{name: "thousands comma", input: "1,200.50", required: true, want: "1200.50"},
		{name: "thousands space", input: "1 200,50", required: true, want: "1200.50"},
		{name: "rounds half up", input: "1.005", required: true, want: "1.01"},
		{name: "rounds down", input: "1.004", required: true, want: "1.00"},
		{name: "blank required", input: "", required: true, wantErr: true},
		{name: "blank optional", input: "", required: false, wantNil: true},
		{name: "spaces only optional", input: "   ", required: false, wantNil: true},
		{name: "garbage required", input: "n/a", required: true, wantErr: true},
		{name: "garbage optional", input: "n/a", required: false, wantNil: true},
		{name: "negative required", input: "-1,50", required: true, wantErr: true},
		{name: "negative optional", input: "-1,50", required: false, wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePrice(tt.input, tt.required)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}
