// Package preview codecs the thumbnail section: a small directory of
// raster images the writing application embeds so shells can show an
// icon without loading the drawing. Image payloads are stored as
// written; decoding them to pixels is optional and on demand.
package preview

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/bmp"

	"github.com/draftware/dwgkit/bitcode"
)

// ErrMalformed reports a preview section whose framing is inconsistent.
var ErrMalformed = errors.New("malformed preview section")

// Image kinds as stored in the directory.
const (
	KindBMP uint8 = 2
	KindPNG uint8 = 6
)

var sentinel = [16]byte{
	0x1F, 0x25, 0x6D, 0x07, 0xD4, 0x36, 0x28, 0x28,
	0x9D, 0x57, 0xCA, 0x3F, 0x9D, 0x44, 0x10, 0x2B,
}

// Thumbnail is one directory entry. BMP payloads are headerless: the
// writer strips the 14-byte file header and stores the info header,
// palette and pixels only.
type Thumbnail struct {
	Kind uint8
	Data []byte
}

// Section is the decoded thumbnail directory.
type Section struct {
	Images []Thumbnail
}

// Decode parses a preview section. Offsets in the directory count from
// the first sentinel byte.
func Decode(data []byte) (*Section, error) {
	if len(data) < len(sentinel) || !bytes.Equal(data[:len(sentinel)], sentinel[:]) {
		return nil, fmt.Errorf("%w: sentinel mismatch", ErrMalformed)
	}
	r := bitcode.NewReader(data[len(sentinel):])
	overall, err := r.RawLong()
	if err != nil {
		return nil, err
	}
	if int64(overall) > int64(len(data)-len(sentinel)-4) {
		return nil, fmt.Errorf("%w: directory claims %d bytes past the section end", bitcode.ErrTruncated, overall)
	}
	count, err := r.RawChar()
	if err != nil {
		return nil, err
	}
	sec := &Section{Images: make([]Thumbnail, 0, count)}
	for i := 0; i < int(count); i++ {
		kind, err := r.RawChar()
		if err != nil {
			return nil, err
		}
		off, err := r.RawLong()
		if err != nil {
			return nil, err
		}
		size, err := r.RawLong()
		if err != nil {
			return nil, err
		}
		end := int64(off) + int64(size)
		if int64(off) < int64(len(sentinel)) || end > int64(len(data)) {
			return nil, fmt.Errorf("%w: image %d spans [%d, %d) outside the section", ErrMalformed, i, off, end)
		}
		sec.Images = append(sec.Images, Thumbnail{
			Kind: kind,
			Data: append([]byte(nil), data[off:end]...),
		})
	}
	return sec, nil
}

// Encode lays the directory out with payloads packed in entry order.
func (s *Section) Encode() ([]byte, error) {
	dirSize := len(sentinel) + 4 + 1 + 9*len(s.Images)
	total := dirSize
	for _, img := range s.Images {
		total += len(img.Data)
	}
	if len(s.Images) > 255 {
		return nil, fmt.Errorf("%w: %d images do not fit a one-byte count", ErrMalformed, len(s.Images))
	}

	out := make([]byte, 0, total)
	out = append(out, sentinel[:]...)
	out = binary.LittleEndian.AppendUint32(out, uint32(total-len(sentinel)-4))
	out = append(out, byte(len(s.Images)))
	off := dirSize
	for _, img := range s.Images {
		out = append(out, img.Kind)
		out = binary.LittleEndian.AppendUint32(out, uint32(off))
		out = binary.LittleEndian.AppendUint32(out, uint32(len(img.Data)))
		off += len(img.Data)
	}
	for _, img := range s.Images {
		out = append(out, img.Data...)
	}
	return out, nil
}

// Image decodes entry i to pixels. BMP entries get the stripped file
// header synthesized back before decoding.
func (s *Section) Image(i int) (image.Image, error) {
	if i < 0 || i >= len(s.Images) {
		return nil, fmt.Errorf("%w: no image %d", ErrMalformed, i)
	}
	img := s.Images[i]
	switch img.Kind {
	case KindPNG:
		return png.Decode(bytes.NewReader(img.Data))
	case KindBMP:
		full, err := restoreBMPHeader(img.Data)
		if err != nil {
			return nil, err
		}
		return bmp.Decode(bytes.NewReader(full))
	default:
		return nil, fmt.Errorf("%w: image kind %d is not decodable", ErrMalformed, img.Kind)
	}
}

// restoreBMPHeader prepends the BITMAPFILEHEADER the section strips.
// The pixel data offset is recomputed from the info header and the
// palette length.
func restoreBMPHeader(dib []byte) ([]byte, error) {
	if len(dib) < 40 {
		return nil, fmt.Errorf("%w: bitmap info header truncated", ErrMalformed)
	}
	infoSize := binary.LittleEndian.Uint32(dib[0:])
	bitCount := binary.LittleEndian.Uint16(dib[14:])
	palette := binary.LittleEndian.Uint32(dib[32:])
	if palette == 0 && bitCount <= 8 {
		palette = 1 << bitCount
	}

	full := make([]byte, 0, 14+len(dib))
	full = append(full, 'B', 'M')
	full = binary.LittleEndian.AppendUint32(full, uint32(14+len(dib)))
	full = append(full, 0, 0, 0, 0)
	full = binary.LittleEndian.AppendUint32(full, 14+infoSize+palette*4)
	return append(full, dib...), nil
}
