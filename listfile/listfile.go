// Package listfile reads and writes the on-disk capture format: an
// 8-byte magic, an EndianMarker system event, and then the raw framed
// word stream exactly as it came off the data pipe (§4.5, §6).
package listfile

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/sarchlab/mvlc/frame"
	"github.com/sarchlab/mvlc/mvlcerr"
)

// Magic identifies which physical transport produced a listfile; the
// word layout downstream of the magic is identical either way.
type Magic [8]byte

var (
	MagicETH = Magic{'M', 'V', 'L', 'C', '_', 'E', 'T', 'H'}
	MagicUSB = Magic{'M', 'V', 'L', 'C', '_', 'U', 'S', 'B'}
)

// Writer appends framed words to a listfile, writing the magic and
// endian marker exactly once at construction.
type Writer struct {
	w   *bufio.Writer
	buf [4]byte
}

// NewWriter opens dst for writing a fresh listfile tagged with magic.
func NewWriter(dst io.Writer, magic Magic) (*Writer, error) {
	w := &Writer{w: bufio.NewWriter(dst)}

	if _, err := w.w.Write(magic[:]); err != nil {
		return nil, err
	}

	marker := []uint32{
		frame.EncodeSystemEvent(frame.SystemEvent{Subtype: frame.SubtypeEndianMarker, Length: 1}),
		frame.EndianMarkerValue,
	}
	if err := w.WriteWords(marker); err != nil {
		return nil, err
	}

	return w, nil
}

// WriteWords appends words to the listfile in little-endian byte order.
func (w *Writer) WriteWords(words []uint32) error {
	for _, word := range words {
		binary.LittleEndian.PutUint32(w.buf[:], word)
		if _, err := w.w.Write(w.buf[:]); err != nil {
			return err
		}
	}

	return nil
}

// Close flushes any buffered bytes and appends an EndOfFile system event.
func (w *Writer) Close() error {
	eof := frame.EncodeSystemEvent(frame.SystemEvent{Subtype: frame.SubtypeEndOfFile})
	if err := w.WriteWords([]uint32{eof}); err != nil {
		return err
	}

	return w.w.Flush()
}

// Reader reads a listfile back into words, validating the magic and
// EndianMarker before handing anything else to the caller.
type Reader struct {
	r      *bufio.Reader
	Magic  Magic
	Swap   bool
}

// NewReader opens src, checks the magic against MagicETH/MagicUSB, and
// verifies the EndianMarker payload matches EndianMarkerValue either
// as-is or byte-swapped (in which case Swap is set and every
// subsequent word this Reader returns is swapped back).
func NewReader(src io.Reader) (*Reader, error) {
	r := &Reader{r: bufio.NewReader(src)}

	if _, err := io.ReadFull(r.r, r.Magic[:]); err != nil {
		return nil, err
	}
	if r.Magic != MagicETH && r.Magic != MagicUSB {
		return nil, mvlcerr.New(mvlcerr.InvalidBufferHeader, "listfile: unrecognized magic %q", r.Magic[:])
	}

	headerWord, err := r.readRawWord()
	if err != nil {
		return nil, err
	}
	valueWord, err := r.readRawWord()
	if err != nil {
		return nil, err
	}

	h := frame.Decode(headerWord)
	se := frame.DecodeSystemEvent(headerWord)
	if h.Type != frame.TypeSystemEvent || se.Subtype != frame.SubtypeEndianMarker {
		return nil, mvlcerr.New(mvlcerr.InvalidBufferHeader, "listfile: missing EndianMarker system event")
	}

	switch valueWord {
	case frame.EndianMarkerValue:
		r.Swap = false
	case swap32(frame.EndianMarkerValue):
		r.Swap = true
	default:
		return nil, mvlcerr.New(mvlcerr.InvalidBufferHeader, "listfile: EndianMarker value %#x matches neither byte order", valueWord)
	}

	return r, nil
}

func swap32(w uint32) uint32 {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], w)
	return binary.BigEndian.Uint32(b[:])
}

func (r *Reader) readRawWord() (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(b[:]), nil
}

// ReadWord returns the next word, byte-swapped if Swap was set while
// opening the file.
func (r *Reader) ReadWord() (uint32, error) {
	w, err := r.readRawWord()
	if err != nil {
		return 0, err
	}
	if r.Swap {
		w = swap32(w)
	}

	return w, nil
}

// ReadAll drains every remaining word in the file.
func (r *Reader) ReadAll() ([]uint32, error) {
	var words []uint32
	for {
		w, err := r.ReadWord()
		if err == io.EOF {
			return words, nil
		}
		if err != nil {
			return words, err
		}
		words = append(words, w)
	}
}
