package dicom

import (
	"math"

	"github.com/medicore/dcmcore/dicomio"
	"github.com/medicore/dcmcore/dicomtag"

	"github.com/sirupsen/logrus"
)

// PixelDataInfo is the decoded form of the PixelData element (spec.md's
// Pixel-Data Engine). Exactly one of the two encodings is populated: when
// Encapsulated is true, Offsets/Frames hold the compressed Basic Offset
// Table and opaque per-frame fragments (PS3.5 A.4); otherwise Native holds
// the reshaped, logically-indexed sample array.
type PixelDataInfo struct {
	Encapsulated bool

	// Encapsulated form.
	Offsets []uint32 // Basic Offset Table: byte offset of each frame
	Frames  [][]byte // opaque, typically JPEG/JPEG2000/RLE compressed frames

	// Native (uncompressed) form.
	Native NativePixelData
}

// NativePixelData is a dense, logically-indexed view of an uncompressed
// PixelData payload: Data[frame][row][col][sample]. The wire format is
// either sample-interleaved (PlanarConfiguration==0, samples vary
// fastest) or planar (PlanarConfiguration==1, a full row/col plane per
// sample); reshapeNative absorbs that permutation so callers never see it.
type NativePixelData struct {
	BitsAllocated       int
	Rows                int
	Columns             int
	Frames              int
	SamplesPerPixel     int
	PlanarConfiguration int
	Signed              bool

	Data [][][][]int64 // [frame][row][col][sample]
}

// readPixelData decodes the body of a PixelData element. P3.5 A.4
// describes the encapsulated wire format:
//
//	Item(BasicOffsetTable) Item(fragment0) ... Item(fragmentN) SequenceDelimitationItem
//
// A defined-length PixelData is native (uncompressed): its bytes are a
// dense row-major sample array whose shape comes from the surrounding
// data set's Rows/Columns/NumberOfFrames/SamplesPerPixel/BitsAllocated/
// PlanarConfiguration elements.
func (p *elementParser) readPixelData(vl uint32) PixelDataInfo {
	d := p.d
	if vl == UndefinedLength {
		info := PixelDataInfo{Encapsulated: true}
		info.Offsets = p.readBasicOffsetTable()

		for !d.EOF() {
			chunk, endOfItems := p.readRawItem()
			if d.Error() != nil {
				break
			}
			if endOfItems {
				break
			}
			info.Frames = append(info.Frames, chunk)
		}
		return info
	}

	raw := d.ReadBytes(int(vl))
	if vl%2 == 1 {
		d.Skip(1)
	}
	native := p.reshapeNativeFromContext(raw)
	return PixelDataInfo{Encapsulated: false, Native: native}
}

// reshapeNativeFromContext pulls the geometry elements already seen by
// this parse (Rows, Columns, NumberOfFrames, SamplesPerPixel,
// BitsAllocated, PixelRepresentation, PlanarConfiguration) out of the
// partially-built data set and reshapes raw accordingly. PixelData is
// required by the standard to follow the geometry group, so by the time
// it's reached these have already been parsed.
func (p *elementParser) reshapeNativeFromContext(raw []byte) NativePixelData {
	// lookup reads a US-VR geometry element (Rows, Columns,
	// SamplesPerPixel, BitsAllocated, PlanarConfiguration,
	// PixelRepresentation all decode as uint16).
	lookup := func(tag dicomtag.Tag, def int) int {
		if p.seen == nil {
			return def
		}
		e, ok := p.seen[tag]
		if !ok {
			return def
		}
		if v, err := e.GetUInt16(); err == nil {
			return int(v)
		}
		return def
	}

	// lookupIS reads an IS-VR element (NumberOfFrames), which decodes to
	// int32 numeric text (spec.md 4.3) rather than a binary integer.
	lookupIS := func(tag dicomtag.Tag, def int) int {
		if p.seen == nil {
			return def
		}
		e, ok := p.seen[tag]
		if !ok {
			return def
		}
		if v, err := e.GetInt32(); err == nil {
			return int(v)
		}
		return def
	}

	rows := lookup(dicomtag.Rows, 0)
	cols := lookup(dicomtag.Columns, 0)
	// NumberOfFrames (IS) and the retired Planes attribute (US) both
	// contribute to the total frame count (spec.md 4.6: "(0028,0012)
	// Planes ... (multiplies planes)").
	frames := lookupIS(dicomtag.NumberOfFrames, 1) * lookup(dicomtag.Planes, 1)
	if frames < 1 {
		frames = 1
	}
	samples := lookup(dicomtag.SamplesPerPixel, 1)
	bitsAllocated := lookup(dicomtag.BitsAllocated, 8)
	planar := lookup(dicomtag.PlanarConfiguration, 0)
	signed := lookup(dicomtag.PixelRepresentation, 0) == 1

	native := NativePixelData{
		BitsAllocated:       bitsAllocated,
		Rows:                rows,
		Columns:             cols,
		Frames:              frames,
		SamplesPerPixel:     samples,
		PlanarConfiguration: planar,
		Signed:              signed,
	}
	if rows == 0 || cols == 0 {
		logrus.Warnf("dicom: PixelData found without preceding Rows/Columns; leaving it unshaped")
		return native
	}
	native.Data = reshapeNative(raw, bitsAllocated, rows, cols, frames, samples, planar, signed)
	return native
}

// reshapeNative converts a dense row-major byte buffer into Data[frame]
// [row][col][sample]. DICOM stores native pixel data as the sequence
// (frame, [plane-or-sample-interleave], row, col): PlanarConfiguration==0
// interleaves samples fastest (R,G,B,R,G,B,...); PlanarConfiguration==1
// stores one full row*col plane per sample before moving to the next
// sample. Either way the logical index this returns is always
// [frame][row][col][sample]: row-major, with the sample axis innermost.
func reshapeNative(raw []byte, bitsAllocated, rows, cols, frames, samples, planar int, signed bool) [][][][]int64 {
	bytesPerSample := bitsAllocated / 8
	if bytesPerSample == 0 {
		bytesPerSample = 1
	}

	readSample := func(off int) int64 {
		if off+bytesPerSample > len(raw) {
			return 0
		}
		switch bytesPerSample {
		case 1:
			v := raw[off]
			if signed {
				return int64(int8(v))
			}
			return int64(v)
		default: // 2 bytes, the only other BitsAllocated this core handles
			v := uint16(raw[off]) | uint16(raw[off+1])<<8
			if signed {
				return int64(int16(v))
			}
			return int64(v)
		}
	}

	data := make([][][][]int64, frames)
	planeSize := rows * cols
	for f := 0; f < frames; f++ {
		frameBuf := make([][][]int64, rows)
		for r := 0; r < rows; r++ {
			frameBuf[r] = make([][]int64, cols)
			for c := 0; c < cols; c++ {
				frameBuf[r][c] = make([]int64, samples)
			}
		}
		frameBase := f * planeSize * samples * bytesPerSample
		if planar == 1 {
			for s := 0; s < samples; s++ {
				planeBase := frameBase + s*planeSize*bytesPerSample
				for r := 0; r < rows; r++ {
					rowBase := planeBase + r*cols*bytesPerSample
					for c := 0; c < cols; c++ {
						frameBuf[r][c][s] = readSample(rowBase + c*bytesPerSample)
					}
				}
			}
		} else {
			for r := 0; r < rows; r++ {
				rowBase := frameBase + r*cols*samples*bytesPerSample
				for c := 0; c < cols; c++ {
					pixBase := rowBase + c*samples*bytesPerSample
					for s := 0; s < samples; s++ {
						frameBuf[r][c][s] = readSample(pixBase + s*bytesPerSample)
					}
				}
			}
		}
		data[f] = frameBuf
	}
	return data
}

// flattenNative is the write-side inverse of reshapeNative: it lays
// Data[frame][row][col][sample] back out into the row-major wire order
// dictated by planarConfiguration.
func flattenNative(n NativePixelData) []byte {
	bytesPerSample := n.BitsAllocated / 8
	if bytesPerSample == 0 {
		bytesPerSample = 1
	}
	total := n.Frames * n.Rows * n.Columns * n.SamplesPerPixel * bytesPerSample
	out := make([]byte, total)

	writeSample := func(off int, v int64) {
		switch bytesPerSample {
		case 1:
			out[off] = byte(v)
		default:
			u := uint16(v)
			out[off] = byte(u)
			out[off+1] = byte(u >> 8)
		}
	}

	planeSize := n.Rows * n.Columns
	for f := 0; f < n.Frames && f < len(n.Data); f++ {
		frameBase := f * planeSize * n.SamplesPerPixel * bytesPerSample
		if n.PlanarConfiguration == 1 {
			for s := 0; s < n.SamplesPerPixel; s++ {
				planeBase := frameBase + s*planeSize*bytesPerSample
				for r := 0; r < n.Rows; r++ {
					rowBase := planeBase + r*n.Columns*bytesPerSample
					for c := 0; c < n.Columns; c++ {
						writeSample(rowBase+c*bytesPerSample, n.Data[f][r][c][s])
					}
				}
			}
		} else {
			for r := 0; r < n.Rows; r++ {
				rowBase := frameBase + r*n.Columns*n.SamplesPerPixel*bytesPerSample
				for c := 0; c < n.Columns; c++ {
					pixBase := rowBase + c*n.SamplesPerPixel*bytesPerSample
					for s := 0; s < n.SamplesPerPixel; s++ {
						writeSample(pixBase+s*bytesPerSample, n.Data[f][r][c][s])
					}
				}
			}
		}
	}
	return out
}

// readBasicOffsetTable reads the first item of an encapsulated PixelData
// sequence: a list of uint32 byte offsets, one per frame (PS3.5 A.4).
func (p *elementParser) readBasicOffsetTable() []uint32 {
	d := p.d
	data, endOfData := p.readRawItem()
	if endOfData {
		d.SetErrorf("dicom: basic offset table not found")
		return nil
	}
	if len(data) == 0 {
		return []uint32{0}
	}

	byteOrder, _ := d.TransferSyntax()
	sub := dicomio.NewBytesDecoder(data, byteOrder, dicomio.ImplicitVR)
	var offsets []uint32
	for !sub.EOF() {
		offsets = append(offsets, sub.ReadUInt32())
	}
	return offsets
}

// Rescale applies the linear transform value*slope + intercept described
// by a data set's RescaleSlope/RescaleIntercept elements to every sample
// of a native PixelData, widening the result to float64. If either
// element is absent, slope defaults to 1 and intercept to 0 (identity).
func Rescale(native NativePixelData, slope, intercept float64) [][][][]float64 {
	out := make([][][][]float64, len(native.Data))
	for f, frame := range native.Data {
		out[f] = make([][][]float64, len(frame))
		for r, row := range frame {
			out[f][r] = make([][]float64, len(row))
			for c, px := range row {
				out[f][r][c] = make([]float64, len(px))
				for s, v := range px {
					out[f][r][c][s] = float64(v)*slope + intercept
				}
			}
		}
	}
	return out
}

// UnrescaleSample is the backward half of the rescale transform: it
// recovers a raw stored value from a rescaled (real-world) value by
// rounding (value-intercept)/slope back to the sample's integer type.
func UnrescaleSample(value, slope, intercept float64) int64 {
	if slope == 0 {
		slope = 1
	}
	return int64(math.Round((value - intercept) / slope))
}

// Unrescale is the array form of UnrescaleSample: it inverts Rescale,
// recovering the stored sample values a forward rescale was computed
// from.
func Unrescale(rescaled [][][][]float64, slope, intercept float64) [][][][]int64 {
	out := make([][][][]int64, len(rescaled))
	for f, frame := range rescaled {
		out[f] = make([][][]int64, len(frame))
		for r, row := range frame {
			out[f][r] = make([][]int64, len(row))
			for c, px := range row {
				out[f][r][c] = make([]int64, len(px))
				for s, v := range px {
					out[f][r][c][s] = UnrescaleSample(v, slope, intercept)
				}
			}
		}
	}
	return out
}

// RescaleSlopeIntercept reads RescaleSlope/RescaleIntercept off a data
// set, defaulting to the identity transform (1, 0) when either is absent
// -- per spec.md, these elements are optional and their absence means
// stored values already are real-world values.
func RescaleSlopeIntercept(ds *DataSet) (slope, intercept float64) {
	se, err := ds.FindElementByTag(dicomtag.RescaleSlope)
	if err != nil {
		return 1, 0
	}
	ie, err := ds.FindElementByTag(dicomtag.RescaleIntercept)
	if err != nil {
		return 1, 0
	}
	s, errS := se.GetFloat64()
	i, errI := ie.GetFloat64()
	if errS != nil || errI != nil {
		return 1, 0
	}
	return s, i
}
