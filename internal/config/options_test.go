package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeBareFlagForNilAndTrue(t *testing.T) {
	t.Parallel()

	args := Encode(OptionMap{"checksum": nil, "fast-list": true})
	assert.ElementsMatch(t, []string{"--checksum", "--fast-list"}, args)
}

func TestEncodeOmitsFalse(t *testing.T) {
	t.Parallel()

	args := Encode(OptionMap{"checksum": false})
	assert.Empty(t, args)
}

func TestEncodeRepeatsListValues(t *testing.T) {
	t.Parallel()

	args := Encode(OptionMap{"exclude": []any{"*.tmp", "*.log"}})
	assert.Equal(t, []string{"--exclude", "*.tmp", "--exclude", "*.log"}, args)
}

func TestEncodeScalarFlagValue(t *testing.T) {
	t.Parallel()

	args := Encode(OptionMap{"transfers": 4})
	assert.Equal(t, []string{"--transfers", "4"}, args)
}

func TestEncodeKebabCasesUnderscoredKeys(t *testing.T) {
	t.Parallel()

	args := Encode(OptionMap{"max_duration": "1h"})
	assert.Equal(t, []string{"--max-duration", "1h"}, args)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	opts := OptionMap{"checksum": true, "transfers": "4"}
	decoded := Decode(Encode(opts))
	assert.Equal(t, opts, decoded)
}

func TestEncodeDecodeRoundTripRepeated(t *testing.T) {
	t.Parallel()

	opts := OptionMap{"exclude": []any{"a", "b"}}
	decoded := Decode(Encode(opts))
	assert.Equal(t, opts, decoded)
}
