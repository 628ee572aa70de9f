package probe

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	for line, want := range map[string]Reading{
		"1.23G":        {Value: 1.23, Unit: "G"},
		"-12.5T\r\n":   {Value: -12.5, Unit: "T"},
		"+99999.9999G": {Value: 99999.9999, Unit: "G"},
		"  0.0G ":      {Value: 0, Unit: "G"},
		"3.1µ":         {Value: 3.1, Unit: "µ"},
	} {
		got, err := Parse(line)
		if assert.NoError(t, err, line) {
			assert.Equal(t, want, got, line)
		}
	}
}

func TestParse_Rejects(t *testing.T) {
	for _, line := range []string{
		"noise",
		"",
		"1.23",
		"123G",
		"1.G",
		".5G",
		"123456.1G",
		"1.23456G",
		"1.23GG",
		"--1.23G",
		"1.23 G",
		"x1.23G",
	} {
		_, err := Parse(line)
		assert.True(t, errors.Is(err, ErrMalformed), "%q: %v", line, err)
	}
}

func TestReading_String(t *testing.T) {
	assert.Equal(t, "-1.5G", Reading{Value: -1.5, Unit: "G"}.String())
}
