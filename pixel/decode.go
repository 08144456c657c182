package pixel

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// DecodeFunc converts one raw frame into a decoded image. Implementations
// are pure: they read src, allocate the destination, and touch no shared
// state beyond the process-wide one-time warning set.
type DecodeFunc func(g Geometry, src []byte) (*Image, error)

// Decoding errors.
var (
	// ErrNarrowing indicates a conversion whose destination element is
	// smaller than the source element. This is a configuration fault,
	// never a data fault.
	ErrNarrowing = errors.New("destination element narrower than source")

	// ErrShortFrame indicates the frame payload is too small for the
	// geometry it was decoded against.
	ErrShortFrame = errors.New("frame shorter than geometry requires")
)

// Decoder selects the decoding routine for an encoding. The set is closed:
// every Encoding value maps to a routine here, and encodings without an
// unpacking rule map to a raw copy that warns once per encoding.
func Decoder(e Encoding) DecodeFunc {
	switch e {
	case EncodingMono8:
		return decodeMono8
	case EncodingMono12, EncodingMono16:
		return decodeMono16(e)
	case EncodingMono12Packed:
		return decodeMono12Packed
	case EncodingMono32:
		return decodeMono32
	case EncodingRGB8Packed, EncodingMono12Coded, EncodingMono12CodedPacked,
		EncodingMono12Parallel, EncodingMono12PackedParallel:
		return rawFallback(e)
	default:
		return decodeRaw
	}
}

// One-time raw-fallback warnings, keyed by encoding. Process-wide and
// suppress-only: the set only ever grows and needs no teardown.
var (
	fallbackMu     sync.Mutex
	fallbackWarned = make(map[Encoding]bool)
)

// rawFallback wraps decodeRaw with a one-time warning naming the encoding
// that is being passed through undecoded.
func rawFallback(e Encoding) DecodeFunc {
	return func(g Geometry, src []byte) (*Image, error) {
		fallbackMu.Lock()
		if !fallbackWarned[e] {
			fallbackWarned[e] = true
			logrus.WithFields(logrus.Fields{
				"function": "rawFallback",
				"encoding": e.String(),
			}).Warn("pixels will be extracted as raw data")
		}
		fallbackMu.Unlock()
		img, err := decodeRaw(g, src)
		if err != nil {
			return nil, err
		}
		img.Encoding = e
		return img, nil
	}
}

// decodeRaw copies the frame payload verbatim into a flat byte array.
func decodeRaw(g Geometry, src []byte) (*Image, error) {
	if len(src) < g.SizeBytes {
		return nil, fmt.Errorf("%w: have %d bytes, geometry says %d",
			ErrShortFrame, len(src), g.SizeBytes)
	}
	pix := make([]uint8, g.SizeBytes)
	copy(pix, src[:g.SizeBytes])
	return &Image{
		Encoding: EncodingRaw,
		Width:    g.Width,
		Height:   g.Height,
		Pix8:     pix,
	}, nil
}

// checkRows verifies src covers height rows of rowStride bytes, where the
// final row only needs its payload, not its padding.
func checkRows(g Geometry, src []byte, rowPayload int) error {
	if g.Height == 0 {
		return nil
	}
	need := (g.Height-1)*g.RowStride + rowPayload
	if len(src) < need {
		return fmt.Errorf("%w: have %d bytes, rows need %d",
			ErrShortFrame, len(src), need)
	}
	return nil
}

// decodeMono8 copies 8-bit monochrome pixels. When the row stride carries
// no padding a single bulk copy moves the whole frame; otherwise rows are
// copied individually, skipping the per-row padding.
func decodeMono8(g Geometry, src []byte) (*Image, error) {
	rowSize := g.Width
	if err := checkRows(g, src, rowSize); err != nil {
		return nil, err
	}
	pix := make([]uint8, g.Width*g.Height)
	if g.RowStride == rowSize {
		copy(pix, src[:len(pix)])
	} else {
		for y := 0; y < g.Height; y++ {
			copy(pix[y*g.Width:(y+1)*g.Width], src[y*g.RowStride:])
		}
	}
	return &Image{
		Encoding: EncodingMono8,
		Width:    g.Width,
		Height:   g.Height,
		Pix8:     pix,
	}, nil
}

// decodeMono16 returns a routine decoding little-endian 16-bit samples for
// enc, which is either Mono16 or the unpacked 16-bits-per-sample Mono12.
func decodeMono16(enc Encoding) DecodeFunc {
	return func(g Geometry, src []byte) (*Image, error) {
		pix, err := convert16(g, src, 2)
		if err != nil {
			return nil, err
		}
		return &Image{
			Encoding: enc,
			Width:    g.Width,
			Height:   g.Height,
			Pix16:    pix,
		}, nil
	}
}

// convert16 copies samples of srcElem bytes into 16-bit destination
// elements, widening when srcElem is smaller. A source element wider than
// the destination is rejected with ErrNarrowing.
func convert16(g Geometry, src []byte, srcElem int) ([]uint16, error) {
	if srcElem > 2 {
		return nil, fmt.Errorf("%w: %d-byte source into 2-byte destination",
			ErrNarrowing, srcElem)
	}
	if err := checkRows(g, src, g.Width*srcElem); err != nil {
		return nil, err
	}
	pix := make([]uint16, g.Width*g.Height)
	for y := 0; y < g.Height; y++ {
		row := src[y*g.RowStride:]
		out := pix[y*g.Width:]
		if srcElem == 2 {
			for x := 0; x < g.Width; x++ {
				out[x] = binary.LittleEndian.Uint16(row[2*x:])
			}
		} else {
			for x := 0; x < g.Width; x++ {
				out[x] = uint16(row[x])
			}
		}
	}
	return pix, nil
}

// decodeMono32 decodes little-endian 32-bit monochrome samples.
func decodeMono32(g Geometry, src []byte) (*Image, error) {
	if err := checkRows(g, src, g.Width*4); err != nil {
		return nil, err
	}
	pix := make([]uint32, g.Width*g.Height)
	for y := 0; y < g.Height; y++ {
		row := src[y*g.RowStride:]
		out := pix[y*g.Width:]
		for x := 0; x < g.Width; x++ {
			out[x] = binary.LittleEndian.Uint32(row[4*x:])
		}
	}
	return &Image{
		Encoding: EncodingMono32,
		Width:    g.Width,
		Height:   g.Height,
		Pix32:    pix,
	}, nil
}

// packedLow and packedHigh extract the two 12-bit samples encoded in a
// 3-byte group: the low sample from bytes 0 and 1, the high sample from
// bytes 2 and 1.
func packedLow(b0, b1 byte) uint16  { return uint16(b0)<<4 | uint16(b1&0x0F) }
func packedHigh(b1, b2 byte) uint16 { return uint16(b2)<<4 | uint16(b1>>4) }

// packedRowBytes is the packed length of a row of w 12-bit samples: full
// 3-byte groups plus a partial 2-byte group for a trailing odd sample.
func packedRowBytes(w int) int {
	return (w/2)*3 + (w%2)*2
}

// decodeMono12Packed unpacks rows of 12-bit samples packed two-per-three-
// bytes. A row of odd width ends with a partial group from which only the
// low sample is taken.
func decodeMono12Packed(g Geometry, src []byte) (*Image, error) {
	if err := checkRows(g, src, packedRowBytes(g.Width)); err != nil {
		return nil, err
	}
	pix := make([]uint16, g.Width*g.Height)
	even := g.Width &^ 1
	for y := 0; y < g.Height; y++ {
		row := src[y*g.RowStride:]
		out := pix[y*g.Width:]
		s := 0
		for x := 0; x < even; x += 2 {
			out[x] = packedLow(row[s], row[s+1])
			out[x+1] = packedHigh(row[s+1], row[s+2])
			s += 3
		}
		if g.Width&1 != 0 {
			out[even] = packedLow(row[s], row[s+1])
		}
	}
	return &Image{
		Encoding: EncodingMono12Packed,
		Width:    g.Width,
		Height:   g.Height,
		Pix16:    pix,
	}, nil
}
