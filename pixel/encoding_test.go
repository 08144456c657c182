package pixel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseKnownEncodings(t *testing.T) {
	tests := []struct {
		name string
		want Encoding
	}{
		{name: "Raw", want: EncodingRaw},
		{name: "Mono8", want: EncodingMono8},
		{name: "Mono12", want: EncodingMono12},
		{name: "Mono12Packed", want: EncodingMono12Packed},
		{name: "Mono16", want: EncodingMono16},
		{name: "Mono32", want: EncodingMono32},
		{name: "RGB8Packed", want: EncodingRGB8Packed},
		{name: "Mono12Coded", want: EncodingMono12Coded},
		{name: "Mono12codedPacked", want: EncodingMono12CodedPacked},
		{name: "Mono12parallel", want: EncodingMono12Parallel},
		{name: "Mono12PackedParallel", want: EncodingMono12PackedParallel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, ok := Parse(tt.name)
			assert.True(t, ok)
			assert.Equal(t, tt.want, enc)
			assert.Equal(t, tt.name, enc.String())
		})
	}
}

func TestParseUnknownEncoding(t *testing.T) {
	enc, ok := Parse("Mono12packed") // wrong case
	assert.False(t, ok)
	assert.Equal(t, EncodingRaw, enc)

	enc, ok = Parse("")
	assert.False(t, ok)
	assert.Equal(t, EncodingRaw, enc)
}

func TestEncodingStringOutOfRange(t *testing.T) {
	assert.Equal(t, "Raw", Encoding(200).String())
}

func TestImageSamples(t *testing.T) {
	assert.Equal(t, 3, (&Image{Pix8: make([]uint8, 3)}).Samples())
	assert.Equal(t, 4, (&Image{Pix16: make([]uint16, 4)}).Samples())
	assert.Equal(t, 5, (&Image{Pix32: make([]uint32, 5)}).Samples())
	assert.Equal(t, 0, (&Image{}).Samples())
}
