// Package pixel converts camera-native frame encodings into dense typed
// pixel arrays.
//
// The encoding set is closed and known at design time, so decoding is
// dispatched through a switch on the Encoding enum rather than a table of
// function values. Encodings without a defined unpacking rule degrade to a
// raw byte copy with a one-time warning; acquisition availability is never
// sacrificed for format fidelity.
package pixel

// Encoding identifies a camera-reported pixel encoding.
type Encoding uint8

const (
	// EncodingRaw copies the frame bytes verbatim. It is also the
	// fallback for encodings this package cannot unpack.
	EncodingRaw Encoding = iota
	// EncodingMono8 is 8-bit monochrome, one byte per pixel.
	EncodingMono8
	// EncodingMono12 is 12-bit monochrome stored unpacked in 16-bit
	// little-endian words.
	EncodingMono12
	// EncodingMono12Packed is 12-bit monochrome with two samples packed
	// into three bytes.
	EncodingMono12Packed
	// EncodingMono16 is 16-bit monochrome, little-endian.
	EncodingMono16
	// EncodingMono32 is 32-bit monochrome, little-endian.
	EncodingMono32
	// Encodings below have no defined unpacking rule and decode as raw.
	EncodingRGB8Packed
	EncodingMono12Coded
	EncodingMono12CodedPacked
	EncodingMono12Parallel
	EncodingMono12PackedParallel
)

// encodingNames holds the exact strings the camera reports. Case matters:
// "Mono12codedPacked" and "Mono12parallel" are spelled the way the vendor
// firmware spells them.
var encodingNames = map[Encoding]string{
	EncodingRaw:                  "Raw",
	EncodingMono8:                "Mono8",
	EncodingMono12:               "Mono12",
	EncodingMono12Packed:         "Mono12Packed",
	EncodingMono16:               "Mono16",
	EncodingMono32:               "Mono32",
	EncodingRGB8Packed:           "RGB8Packed",
	EncodingMono12Coded:          "Mono12Coded",
	EncodingMono12CodedPacked:    "Mono12codedPacked",
	EncodingMono12Parallel:       "Mono12parallel",
	EncodingMono12PackedParallel: "Mono12PackedParallel",
}

// String returns the camera-facing name of the encoding.
func (e Encoding) String() string {
	if name, ok := encodingNames[e]; ok {
		return name
	}
	return "Raw"
}

// Parse maps a camera-reported encoding name onto the Encoding enum. The
// second result is false for names not in the table; callers fall back to
// EncodingRaw in that case.
func Parse(name string) (Encoding, bool) {
	for enc, n := range encodingNames {
		if n == name {
			return enc, true
		}
	}
	return EncodingRaw, false
}

// Geometry describes the frame layout captured when acquisition starts.
// RowStride may exceed the payload width of a row because of hardware
// padding.
type Geometry struct {
	SizeBytes int // total frame size in bytes as reported by the camera
	Width     int // frame width in pixels
	Height    int // frame height in pixels
	RowStride int // bytes from the start of one row to the next
}

// Image is a decoded frame in row-major order. Exactly one of the pixel
// slices is populated, according to Encoding: Pix8 for EncodingRaw and
// EncodingMono8 (and raw fallbacks), Pix16 for the 12- and 16-bit
// monochrome encodings, Pix32 for EncodingMono32. For raw images Pix8
// holds the full frame payload and Width/Height describe the nominal
// geometry only.
type Image struct {
	Encoding Encoding
	Width    int
	Height   int
	Pix8     []uint8
	Pix16    []uint16
	Pix32    []uint32
}

// Samples returns the number of decoded samples in the populated plane.
func (img *Image) Samples() int {
	switch {
	case img.Pix16 != nil:
		return len(img.Pix16)
	case img.Pix32 != nil:
		return len(img.Pix32)
	default:
		return len(img.Pix8)
	}
}
