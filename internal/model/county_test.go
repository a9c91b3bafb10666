package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPadFIPS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"1", 2, "01"},
		{"36", 2, "36"},
		{"29", 3, "029"},
		{"  7 ", 3, "007"},
		{"36029", 5, "36029"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, PadFIPS(tt.in, tt.width))
		})
	}
}

func TestCountyFIPS(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "36029", CountyFIPS("36", "29"))
	assert.Equal(t, "06037", CountyFIPS("6", "37"))
}

func TestCountyValidate(t *testing.T) {
	t.Parallel()

	good := County{FIPS: "36029", StateFIPS: "36", PopulationBase: 919040}
	assert.NoError(t, good.Validate())

	short := County{FIPS: "3629"}
	assert.Error(t, short.Validate())

	mismatch := County{FIPS: "36029", StateFIPS: "06"}
	assert.Error(t, mismatch.Validate())

	negative := County{FIPS: "36029", StateFIPS: "36", PopulationBase: -1}
	assert.Error(t, negative.Validate())
}
