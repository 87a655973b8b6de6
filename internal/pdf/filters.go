package pdf

import (
	"bytes"
	"compress/zlib"
	"encoding/ascii85"
	"io"
)

// decodeStream decodes a stream's data according to its /Filter chain.
// Only the filters needed for structural streams (cross-reference streams and
// object streams) are supported: FlateDecode with optional PNG predictors,
// ASCIIHexDecode, and ASCII85Decode. Content streams are never decoded.
func (d *Document) decodeStream(s *Stream) ([]byte, error) {
	data := s.Data
	filters := d.Resolve(s.Dict.Get("Filter"))
	parms := d.Resolve(s.Dict.Get("DecodeParms"))

	var filterList []Name
	var parmList []Object
	switch f := filters.(type) {
	case nil, Null:
		return data, nil
	case Name:
		filterList = []Name{f}
		parmList = []Object{parms}
	case Array:
		parmArr, _ := parms.(Array)
		for i, el := range f {
			name, ok := d.Resolve(el).(Name)
			if !ok {
				return nil, parseErrf(KindMalformed, "non-name filter entry")
			}
			filterList = append(filterList, name)
			if i < len(parmArr) {
				parmList = append(parmList, d.Resolve(parmArr[i]))
			} else {
				parmList = append(parmList, nil)
			}
		}
	default:
		return nil, parseErrf(KindMalformed, "bad /Filter entry")
	}

	var err error
	for i, name := range filterList {
		switch name {
		case "FlateDecode", "Fl":
			data, err = flateDecode(data)
			if err != nil {
				return nil, parseErrf(KindMalformed, "flate decode: %v", err)
			}
			data, err = applyPredictor(data, parmDict(parmList[i]), d)
			if err != nil {
				return nil, err
			}
		case "ASCIIHexDecode", "AHx":
			data, err = hexDecode(data)
			if err != nil {
				return nil, err
			}
		case "ASCII85Decode", "A85":
			data, err = a85Decode(data)
			if err != nil {
				return nil, parseErrf(KindMalformed, "ascii85 decode: %v", err)
			}
		default:
			return nil, parseErrf(KindMalformed, "unsupported structural stream filter /%s", name)
		}
	}
	return data, nil
}

func parmDict(obj Object) *Dict {
	d, _ := obj.(*Dict)
	return d
}

func flateDecode(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	return out, nil
}

func hexDecode(data []byte) ([]byte, error) {
	var out []byte
	hi := -1
	for _, b := range data {
		if b == '>' {
			break
		}
		v := unhex(b)
		if v < 0 {
			continue
		}
		if hi < 0 {
			hi = v
		} else {
			out = append(out, byte(hi<<4|v))
			hi = -1
		}
	}
	if hi >= 0 {
		out = append(out, byte(hi<<4))
	}
	return out, nil
}

func a85Decode(data []byte) ([]byte, error) {
	data = bytes.TrimSuffix(bytes.TrimSpace(data), []byte("~>"))
	dec := ascii85.NewDecoder(bytes.NewReader(data))
	return io.ReadAll(dec)
}

// applyPredictor undoes PNG row predictors (values 10-15) on decoded data.
// Predictor 1 (none) and absent parms are a no-op; TIFF predictor 2 is not
// used by the writers we have seen for xref streams.
func applyPredictor(data []byte, parms *Dict, d *Document) ([]byte, error) {
	if parms == nil {
		return data, nil
	}
	pred, ok := Int(d.Resolve(parms.Get("Predictor")))
	if !ok || pred <= 1 {
		return data, nil
	}
	if pred < 10 {
		return nil, parseErrf(KindMalformed, "unsupported predictor %d", pred)
	}
	columns := int64(1)
	if c, ok := Int(d.Resolve(parms.Get("Columns"))); ok && c > 0 {
		columns = c
	}
	colors := int64(1)
	if c, ok := Int(d.Resolve(parms.Get("Colors"))); ok && c > 0 {
		colors = c
	}
	bpc := int64(8)
	if b, ok := Int(d.Resolve(parms.Get("BitsPerComponent"))); ok && b > 0 {
		bpc = b
	}
	bytesPerPixel := int(colors*bpc+7) / 8
	rowLen := int(columns*colors*bpc+7) / 8

	if rowLen <= 0 || len(data)%(rowLen+1) != 0 {
		return nil, parseErrf(KindMalformed, "predictor row length mismatch (row=%d data=%d)", rowLen, len(data))
	}

	rows := len(data) / (rowLen + 1)
	out := make([]byte, 0, rows*rowLen)
	prev := make([]byte, rowLen)
	row := make([]byte, rowLen)
	for r := 0; r < rows; r++ {
		ft := data[r*(rowLen+1)]
		copy(row, data[r*(rowLen+1)+1:(r+1)*(rowLen+1)])
		switch ft {
		case 0: // None
		case 1: // Sub
			for i := bytesPerPixel; i < rowLen; i++ {
				row[i] += row[i-bytesPerPixel]
			}
		case 2: // Up
			for i := 0; i < rowLen; i++ {
				row[i] += prev[i]
			}
		case 3: // Average
			for i := 0; i < rowLen; i++ {
				var left byte
				if i >= bytesPerPixel {
					left = row[i-bytesPerPixel]
				}
				row[i] += byte((int(left) + int(prev[i])) / 2)
			}
		case 4: // Paeth
			for i := 0; i < rowLen; i++ {
				var left, upLeft byte
				if i >= bytesPerPixel {
					left = row[i-bytesPerPixel]
					upLeft = prev[i-bytesPerPixel]
				}
				row[i] += paeth(left, prev[i], upLeft)
			}
		default:
			return nil, parseErrf(KindMalformed, "bad PNG filter type %d", ft)
		}
		out = append(out, row...)
		copy(prev, row)
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
