package cirbuf

// Codec holds the escape codec constants.
//
// A reserved byte c (the escape marker or the delimiter) is stored as
// Escape, c^XOR. Escape followed by a lower case letter is a control
// character. Escape, Escape also decodes to a literal Escape.
type Codec struct {
	Escape       byte
	XOR          byte
	Delimiter    byte
	HasDelimiter bool
}

// DefaultCodec uses '^' as escape marker and '\n' as delimiter.
var DefaultCodec = Codec{
	Escape:       '^',
	XOR:          0x20,
	Delimiter:    '\n',
	HasDelimiter: true,
}

// Control characters used to frame messages.
const (
	CtrlStart byte = 's'
	CtrlStop  byte = 'p'
)

// Kind classifies a decoded symbol.
type Kind uint8

// Symbol kinds.
const (
	KindData Kind = iota
	KindControl
	KindDelimiter
)

// Reserved tells if c must be escaped.
func (c Codec) Reserved(v byte) bool {
	return v == c.Escape || (c.HasDelimiter && v == c.Delimiter)
}

// EncodedLen returns the encoded size of p.
func (c Codec) EncodedLen(p []byte) int {
	n := len(p)
	for _, v := range p {
		if c.Reserved(v) {
			n++
		}
	}
	return n
}

// AppendEncode appends the encoded form of p to dst.
func (c Codec) AppendEncode(dst, p []byte) []byte {
	for _, v := range p {
		if c.Reserved(v) {
			dst = append(dst, c.Escape, v^c.XOR)
		} else {
			dst = append(dst, v)
		}
	}
	return dst
}

// decodePair decodes the byte following an escape marker.
func (c Codec) decodePair(v byte) (byte, Kind, bool) {
	if v == c.Escape {
		return v, KindData, true
	}
	if d := v ^ c.XOR; c.Reserved(d) {
		return d, KindData, true
	}
	if v >= 'a' && v <= 'z' {
		return v, KindControl, true
	}
	return 0, KindData, false
}

// Decode decodes a complete encoded block into dst. Control characters
// and malformed sequences fail with ErrDecode; a short dst fails with
// ErrInvalidSize.
func (c Codec) Decode(dst, src []byte) (int, error) {
	n := 0
	for i := 0; i < len(src); i++ {
		v := src[i]
		if v == c.Escape {
			if i+1 >= len(src) {
				return n, ErrDecode
			}
			i++
			d, kind, ok := c.decodePair(src[i])
			if !ok || kind != KindData {
				return n, ErrDecode
			}
			v = d
		}
		if n >= len(dst) {
			return n, ErrInvalidSize
		}
		dst[n] = v
		n++
	}
	return n, nil
}

func (b *Buffer) requireEscaped() error {
	if !b.format.Escaped() {
		return b.status.Fail(StatusInvalidOp)
	}
	return nil
}

// EscapedSizeRequired returns the number of buffer bytes p occupies once
// encoded.
func (b *Buffer) EscapedSizeRequired(p []byte) int {
	return b.codec.EncodedLen(p)
}

func (s *shadow) putEscaped(c Codec, p []byte) {
	for _, v := range p {
		if c.Reserved(v) {
			s.put(c.Escape)
			s.put(v ^ c.XOR)
		} else {
			s.put(v)
		}
	}
}

// PutEscapedByte writes c encoded and returns the number of buffer bytes used.
func (b *Buffer) PutEscapedByte(c byte) (int, error) {
	return b.PutEscapedArray([]byte{c})
}

// PutEscapedArray writes all of p encoded, or nothing.
func (b *Buffer) PutEscapedArray(p []byte) (int, error) {
	if err := b.requireEscaped(); err != nil {
		return 0, err
	}
	need := b.codec.EncodedLen(p)
	s := b.shadow()
	if uint32(need) > s.free {
		return 0, b.status.Fail(StatusOverflow)
	}
	s.putEscaped(b.codec, p)
	s.commit()
	return need, nil
}

// PutControlChar writes the control character c ('a'..'z').
func (b *Buffer) PutControlChar(c byte) error {
	if err := b.requireEscaped(); err != nil {
		return err
	}
	if c < 'a' || c > 'z' {
		return b.status.Fail(StatusOutOfRange)
	}
	s := b.shadow()
	if s.free < 2 {
		return b.status.Fail(StatusOverflow)
	}
	s.put(b.codec.Escape)
	s.put(c)
	s.commit()
	return nil
}

// PutDelimiter writes the unescaped delimiter.
func (b *Buffer) PutDelimiter() error {
	if !b.codec.HasDelimiter {
		return b.status.Fail(StatusInvalidOp)
	}
	return b.PutByte(b.codec.Delimiter)
}

// PutEscapedFrame writes p encoded followed by the delimiter, or nothing.
// It returns the number of buffer bytes used.
func (b *Buffer) PutEscapedFrame(p []byte) (int, error) {
	if err := b.requireEscaped(); err != nil {
		return 0, err
	}
	if !b.codec.HasDelimiter {
		return 0, b.status.Fail(StatusInvalidOp)
	}
	need := b.codec.EncodedLen(p) + 1
	s := b.shadow()
	if uint32(need) > s.free {
		return 0, b.status.Fail(StatusOverflow)
	}
	s.putEscaped(b.codec, p)
	s.put(b.codec.Delimiter)
	s.commit()
	return need, nil
}

// peekEscaped decodes the symbol at offset off from r. It returns the
// number of raw bytes the symbol occupies.
func (b *Buffer) peekEscaped(r, cnt, off uint32) (byte, Kind, uint32, Status) {
	if off >= cnt {
		return 0, KindData, 0, StatusUnderflow
	}
	v := b.at(r, off)
	if v == b.codec.Escape {
		if off+1 >= cnt {
			// dangling escape, the pair is not complete yet
			return 0, KindData, 0, StatusUnderflow
		}
		d, kind, ok := b.codec.decodePair(b.at(r, off+1))
		if !ok {
			return 0, KindData, 0, StatusDecode
		}
		return d, kind, 2, StatusNone
	}
	if b.codec.HasDelimiter && v == b.codec.Delimiter {
		return v, KindDelimiter, 1, StatusNone
	}
	return v, KindData, 1, StatusNone
}

// PeekEscapedByte decodes the next symbol without removing it.
func (b *Buffer) PeekEscapedByte() (byte, Kind, error) {
	if err := b.requireEscaped(); err != nil {
		return 0, KindData, err
	}
	r, w := b.rd.Load(), b.wr.Load()
	v, kind, _, st := b.peekEscaped(r, b.used(w, r), 0)
	if st != StatusNone {
		return 0, KindData, b.status.Fail(st)
	}
	return v, kind, nil
}

// GetEscapedByte decodes and removes the next symbol. On ErrDecode the
// read cursor is not moved.
func (b *Buffer) GetEscapedByte() (byte, Kind, error) {
	if err := b.requireEscaped(); err != nil {
		return 0, KindData, err
	}
	r, w := b.rd.Load(), b.wr.Load()
	v, kind, raw, st := b.peekEscaped(r, b.used(w, r), 0)
	if st != StatusNone {
		return 0, KindData, b.status.Fail(st)
	}
	b.rd.Store(b.advance(r, raw))
	return v, kind, nil
}

// GetEscapedArray decodes data bytes into p. It stops before a control
// character, a delimiter, an incomplete escape pair or a malformed
// sequence. A malformed sequence is only reported when it is the first
// symbol.
func (b *Buffer) GetEscapedArray(p []byte) (int, error) {
	if err := b.requireEscaped(); err != nil {
		return 0, err
	}
	r, w := b.rd.Load(), b.wr.Load()
	cnt := b.used(w, r)
	var off uint32
	n := 0
	for n < len(p) {
		v, kind, raw, st := b.peekEscaped(r, cnt, off)
		if st == StatusDecode && n == 0 {
			return 0, b.status.Fail(st)
		}
		if st != StatusNone || kind != KindData {
			break
		}
		p[n] = v
		n++
		off += raw
	}
	if off > 0 {
		b.rd.Store(b.advance(r, off))
	}
	return n, nil
}

// frameEnd scans for an unescaped delimiter and returns the raw size of
// the frame including it. The escape marker is a plain byte in formats
// without escaping.
func (b *Buffer) frameEnd(r, cnt uint32) (uint32, bool) {
	escaped := b.format.Escaped()
	for off := uint32(0); off < cnt; off++ {
		v := b.at(r, off)
		if escaped && v == b.codec.Escape {
			off++
			continue
		}
		if v == b.codec.Delimiter {
			return off + 1, true
		}
	}
	return 0, false
}

// HasWholeFrame tells if a delimiter terminated frame is readable and
// returns its raw size including the delimiter.
func (b *Buffer) HasWholeFrame() (int, bool) {
	if !b.codec.HasDelimiter {
		return 0, false
	}
	r, w := b.rd.Load(), b.wr.Load()
	n, ok := b.frameEnd(r, b.used(w, r))
	return int(n), ok
}

// GetEscapedFrame decodes the next delimiter terminated frame into p and
// removes it. The delimiter is not copied. Nothing is removed on error.
func (b *Buffer) GetEscapedFrame(p []byte) (int, error) {
	if err := b.requireEscaped(); err != nil {
		return 0, err
	}
	if !b.codec.HasDelimiter {
		return 0, b.status.Fail(StatusInvalidOp)
	}
	r, w := b.rd.Load(), b.wr.Load()
	raw, ok := b.frameEnd(r, b.used(w, r))
	if !ok {
		return 0, b.status.Fail(StatusUnderflow)
	}
	n := 0
	for off := uint32(0); off < raw-1; {
		v, kind, size, st := b.peekEscaped(r, raw-1, off)
		if st != StatusNone || kind != KindData {
			return 0, b.status.Fail(StatusDecode)
		}
		if n >= len(p) {
			return 0, b.status.Fail(StatusInvalidSize)
		}
		p[n] = v
		n++
		off += size
	}
	b.rd.Store(b.advance(r, raw))
	return n, nil
}
