package pixel

import (
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRaw(t *testing.T) {
	g := Geometry{SizeBytes: 6, Width: 3, Height: 2, RowStride: 3}
	src := []byte{1, 2, 3, 4, 5, 6}

	img, err := Decoder(EncodingRaw)(g, src)
	require.NoError(t, err)
	assert.Equal(t, EncodingRaw, img.Encoding)
	assert.Equal(t, src, img.Pix8)

	// The copy must not alias the source slot: the slot is overwritten by
	// the next DMA cycle once requeued.
	src[0] = 99
	assert.EqualValues(t, 1, img.Pix8[0])
}

func TestDecodeRawShortFrame(t *testing.T) {
	g := Geometry{SizeBytes: 16, Width: 4, Height: 4, RowStride: 4}
	_, err := Decoder(EncodingRaw)(g, make([]byte, 8))
	assert.ErrorIs(t, err, ErrShortFrame)
}

func TestDecodeMono8NoPadding(t *testing.T) {
	// rowStride == width: decoding equals a straight memory copy.
	g := Geometry{SizeBytes: 8, Width: 4, Height: 2, RowStride: 4}
	src := []byte{10, 11, 12, 13, 20, 21, 22, 23}

	img, err := Decoder(EncodingMono8)(g, src)
	require.NoError(t, err)
	assert.Equal(t, src, img.Pix8)
	assert.Equal(t, 4, img.Width)
	assert.Equal(t, 2, img.Height)
}

func TestDecodeMono8WithPadding(t *testing.T) {
	g := Geometry{SizeBytes: 12, Width: 4, Height: 2, RowStride: 6}
	src := []byte{
		10, 11, 12, 13, 0xEE, 0xEE,
		20, 21, 22, 23, 0xEE, 0xEE,
	}

	img, err := Decoder(EncodingMono8)(g, src)
	require.NoError(t, err)
	assert.Equal(t, []byte{10, 11, 12, 13, 20, 21, 22, 23}, img.Pix8)
}

func TestDecodeMono16(t *testing.T) {
	g := Geometry{SizeBytes: 16, Width: 4, Height: 2, RowStride: 8}
	src := []byte{
		0x01, 0x00, 0x02, 0x00, 0x03, 0x00, 0xFF, 0x0F,
		0x00, 0x10, 0x34, 0x12, 0x00, 0x00, 0x01, 0x80,
	}

	img, err := Decoder(EncodingMono16)(g, src)
	require.NoError(t, err)
	assert.Equal(t, []uint16{1, 2, 3, 0x0FFF, 0x1000, 0x1234, 0, 0x8001}, img.Pix16)
	assert.Equal(t, EncodingMono16, img.Encoding)
}

func TestDecodeMono12UsesSixteenBitWords(t *testing.T) {
	g := Geometry{SizeBytes: 4, Width: 2, Height: 1, RowStride: 4}
	src := []byte{0xFF, 0x0F, 0x00, 0x01}

	img, err := Decoder(EncodingMono12)(g, src)
	require.NoError(t, err)
	assert.Equal(t, EncodingMono12, img.Encoding)
	assert.Equal(t, []uint16{0x0FFF, 0x0100}, img.Pix16)
}

func TestDecodeMono16WithPadding(t *testing.T) {
	g := Geometry{SizeBytes: 20, Width: 4, Height: 2, RowStride: 10}
	src := make([]byte, 20)
	for i := range src {
		src[i] = byte(i)
	}

	img, err := Decoder(EncodingMono16)(g, src)
	require.NoError(t, err)
	require.Len(t, img.Pix16, 8)
	// Second row starts at the stride, not at width*2.
	assert.EqualValues(t, 0x0B0A, img.Pix16[4])
}

func TestWideningConversion(t *testing.T) {
	g := Geometry{SizeBytes: 6, Width: 3, Height: 2, RowStride: 3}
	src := []byte{1, 2, 3, 250, 251, 252}

	pix, err := convert16(g, src, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint16{1, 2, 3, 250, 251, 252}, pix)
}

func TestNarrowingConversionRejected(t *testing.T) {
	g := Geometry{SizeBytes: 8, Width: 2, Height: 1, RowStride: 8}
	_, err := convert16(g, make([]byte, 8), 4)
	assert.ErrorIs(t, err, ErrNarrowing)
}

func TestDecodeMono32(t *testing.T) {
	g := Geometry{SizeBytes: 8, Width: 2, Height: 1, RowStride: 8}
	src := []byte{0x01, 0x00, 0x00, 0x00, 0x78, 0x56, 0x34, 0x12}

	img, err := Decoder(EncodingMono32)(g, src)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 0x12345678}, img.Pix32)
}

func TestDecodeMono12PackedOddWidth(t *testing.T) {
	// One row of three samples packed into a full 3-byte group plus a
	// partial group; the trailing sample uses only the low extraction.
	b0, b1, b2 := byte(0xAB), byte(0xCD), byte(0xEF)
	b3, b4, b5 := byte(0x12), byte(0x34), byte(0x56)
	g := Geometry{SizeBytes: 6, Width: 3, Height: 1, RowStride: 6}
	src := []byte{b0, b1, b2, b3, b4, b5}

	img, err := Decoder(EncodingMono12Packed)(g, src)
	require.NoError(t, err)
	want := []uint16{
		uint16(b0)<<4 | uint16(b1&0x0F),
		uint16(b2)<<4 | uint16(b1>>4),
		uint16(b3)<<4 | uint16(b4&0x0F),
	}
	assert.Equal(t, want, img.Pix16)
}

func TestDecodeMono12PackedEvenWidth(t *testing.T) {
	g := Geometry{SizeBytes: 6, Width: 4, Height: 1, RowStride: 6}
	src := []byte{0x10, 0x32, 0x54, 0x76, 0x98, 0xBA}

	img, err := Decoder(EncodingMono12Packed)(g, src)
	require.NoError(t, err)
	want := []uint16{
		0x10<<4 | 0x2,
		0x54<<4 | 0x3,
		0x76<<4 | 0x8,
		0xBA<<4 | 0x9,
	}
	assert.Equal(t, want, img.Pix16)
}

func TestDecodeMono12PackedMultiRowStride(t *testing.T) {
	// Two rows of two samples: 3 payload bytes per row, stride 4.
	g := Geometry{SizeBytes: 8, Width: 2, Height: 2, RowStride: 4}
	src := []byte{0x01, 0x02, 0x03, 0xEE, 0x04, 0x05, 0x06, 0xEE}

	img, err := Decoder(EncodingMono12Packed)(g, src)
	require.NoError(t, err)
	want := []uint16{
		0x01<<4 | 0x2, 0x03<<4 | 0x0,
		0x04<<4 | 0x5, 0x06<<4 | 0x0,
	}
	assert.Equal(t, want, img.Pix16)
}

func TestRawFallbackWarnsOncePerEncoding(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	g := Geometry{SizeBytes: 4, Width: 2, Height: 2, RowStride: 2}
	src := []byte{1, 2, 3, 4}

	// This encoding is used by no other test, so the process-wide warn
	// set cannot have seen it yet.
	decode := Decoder(EncodingMono12PackedParallel)
	img, err := decode(g, src)
	require.NoError(t, err)
	assert.Equal(t, EncodingMono12PackedParallel, img.Encoding)
	assert.Equal(t, src, img.Pix8)

	_, err = decode(g, src)
	require.NoError(t, err)

	warned := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["encoding"] == "Mono12PackedParallel" {
			warned++
		}
	}
	assert.Equal(t, 1, warned, "fallback warning must fire once per encoding")
}

func TestDecoderForUndefinedValueIsRaw(t *testing.T) {
	g := Geometry{SizeBytes: 3, Width: 3, Height: 1, RowStride: 3}
	img, err := Decoder(Encoding(200))(g, []byte{7, 8, 9})
	require.NoError(t, err)
	assert.Equal(t, []byte{7, 8, 9}, img.Pix8)
}
