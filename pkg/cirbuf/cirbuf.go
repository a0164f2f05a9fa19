package cirbuf

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// Type selects stream or packet semantics.
type Type uint8

// Buffer types.
const (
	TypeStreaming Type = iota
	TypePacket
	TypePacketLarge
)

var typeNames = [...]string{"stream", "packet", "packet-large"}

// String implements fmt.Stringer.
func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", t)
}

// ParseType parses the name returned by Type.String.
func ParseType(s string) (Type, error) {
	for n, name := range typeNames {
		if strings.EqualFold(s, name) {
			return Type(n), nil
		}
	}
	return TypeStreaming, errors.Errorf("unknown buffer type %q", s)
}

// headerLen returns the size of the packet header, 0 for streams.
func (t Type) headerLen() uint32 {
	switch t {
	case TypePacket:
		return 1
	case TypePacketLarge:
		return 2
	}
	return 0
}

// Format describes the encoding of the stored bytes.
type Format uint8

// Buffer formats.
const (
	FormatNone Format = iota
	FormatASCII
	FormatASCIIEsc
	FormatBinary
	FormatBinaryEsc
)

var formatNames = [...]string{"none", "ascii", "ascii-esc", "binary", "binary-esc"}

// String implements fmt.Stringer.
func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return fmt.Sprintf("format(%d)", f)
}

// ParseFormat parses the name returned by Format.String.
func ParseFormat(s string) (Format, error) {
	for n, name := range formatNames {
		if strings.EqualFold(s, name) {
			return Format(n), nil
		}
	}
	return FormatNone, errors.Errorf("unknown buffer format %q", s)
}

// Escaped tells if the format uses the escape codec.
func (f Format) Escaped() bool {
	return f == FormatASCIIEsc || f == FormatBinaryEsc
}

// Delimited tells if the format has a frame delimiter.
func (f Format) Delimited() bool {
	return f == FormatASCII || f.Escaped()
}

// Flags are informational bits of a Buffer.
type Flags uint32

// Buffer flags.
const (
	// FlagPow2 is set when the capacity is a power of two.
	FlagPow2 Flags = 1 << iota
	// FlagActive marks a buffer in use by an application.
	FlagActive
	// FlagContiguous is set when packets are never split across the end of storage.
	FlagContiguous
)

// Option configures a Buffer.
type Option func(*Buffer)

// WithName names the buffer in logs and metrics.
func WithName(name string) Option {
	return func(b *Buffer) { b.name = name }
}

// WithCodec replaces the escape codec constants.
func WithCodec(c Codec) Option {
	return func(b *Buffer) { b.codec = c }
}

// WithContiguousPackets keeps every packet in one contiguous block of the
// storage so GetContiguousPacket never fails for wrapping.
func WithContiguousPackets() Option {
	return func(b *Buffer) { b.flags.Store(b.flags.Load() | uint32(FlagContiguous)) }
}

// WithPartialTimeout enables Task to discard a partial head packet or frame
// that has not progressed for d.
func WithPartialTimeout(d time.Duration) Option {
	return func(b *Buffer) { b.partialTimeout = d }
}

// Buffer is a fixed capacity single producer, single consumer circular buffer.
type Buffer struct {
	buf    []byte
	size   uint32
	mask   uint32
	pow2   bool
	typ    Type
	format Format
	codec  Codec
	name   string

	// cursors are in [0, 2*size), the bit above the physical index tells
	// a full buffer from an empty one.
	rd atomic.Uint32
	wr atomic.Uint32

	flags  atomic.Uint32
	status Register

	partialTimeout time.Duration
	stall          stallState
}

// New creates a Buffer with its own storage of size bytes.
func New(size int, typ Type, format Format, opts ...Option) *Buffer {
	if size <= 0 {
		panic("cirbuf: invalid size")
	}
	return NewWithStorage(make([]byte, size), typ, format, opts...)
}

// NewWithStorage creates a Buffer on top of caller provided storage.
// The capacity is len(storage).
func NewWithStorage(storage []byte, typ Type, format Format, opts ...Option) *Buffer {
	size := len(storage)
	if size <= 0 || size > 1<<30 {
		panic("cirbuf: invalid storage size")
	}
	b := &Buffer{
		buf:    storage,
		size:   uint32(size),
		typ:    typ,
		format: format,
		codec:  DefaultCodec,
	}
	if !format.Delimited() {
		b.codec.HasDelimiter = false
	}
	if size&(size-1) == 0 {
		b.mask = uint32(size - 1)
		b.pow2 = true
		b.flags.Store(uint32(FlagPow2))
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the buffer name.
func (b *Buffer) Name() string {
	return b.name
}

// Type returns the buffer type.
func (b *Buffer) Type() Type {
	return b.typ
}

// Format returns the buffer format.
func (b *Buffer) Format() Format {
	return b.format
}

// Codec returns the escape codec.
func (b *Buffer) Codec() Codec {
	return b.codec
}

// Flags returns the current flags.
func (b *Buffer) Flags() Flags {
	return Flags(b.flags.Load())
}

// SetActive sets or clears FlagActive.
func (b *Buffer) SetActive(active bool) {
	for {
		old := b.flags.Load()
		v := old &^ uint32(FlagActive)
		if active {
			v |= uint32(FlagActive)
		}
		if b.flags.CompareAndSwap(old, v) {
			return
		}
	}
}

// IsActive tells if FlagActive is set.
func (b *Buffer) IsActive() bool {
	return b.Flags()&FlagActive != 0
}

// Status returns the sticky status register.
func (b *Buffer) Status() Status {
	return b.status.Get()
}

// ClearError resets the status register.
func (b *Buffer) ClearError() {
	b.status.Clear()
}

func (b *Buffer) contiguous() bool {
	return b.Flags()&FlagContiguous != 0
}

// phys maps a cursor to an index into storage.
func (b *Buffer) phys(c uint32) uint32 {
	if b.pow2 {
		return c & b.mask
	}
	if c >= b.size {
		return c - b.size
	}
	return c
}

// advance moves a cursor by n <= size.
func (b *Buffer) advance(c, n uint32) uint32 {
	if b.pow2 {
		return (c + n) & (b.size<<1 - 1)
	}
	c += n
	if c >= b.size<<1 {
		c -= b.size << 1
	}
	return c
}

// used returns the number of bytes between read cursor r and write cursor w.
func (b *Buffer) used(w, r uint32) uint32 {
	if w >= r {
		return w - r
	}
	return w + b.size<<1 - r
}

// at returns the byte at offset off from cursor r.
func (b *Buffer) at(r, off uint32) byte {
	return b.buf[b.phys(b.advance(r, off))]
}

// copyIn writes p at cursor w, wrapping at the end of storage.
func (b *Buffer) copyIn(w uint32, p []byte) {
	pw := b.phys(w)
	n := copy(b.buf[pw:], p)
	copy(b.buf, p[n:])
}

// copyOut reads len(p) bytes at cursor r, wrapping at the end of storage.
func (b *Buffer) copyOut(r uint32, p []byte) {
	pr := b.phys(r)
	n := copy(p, b.buf[pr:])
	copy(p[n:], b.buf)
}

// Cap returns the capacity in bytes.
func (b *Buffer) Cap() int {
	return int(b.size)
}

// Count returns the number of readable bytes.
func (b *Buffer) Count() int {
	return int(b.used(b.wr.Load(), b.rd.Load()))
}

// Free returns the number of writable bytes.
func (b *Buffer) Free() int {
	return int(b.size - b.used(b.wr.Load(), b.rd.Load()))
}

// IsEmpty tells if there is nothing to read.
func (b *Buffer) IsEmpty() bool {
	return b.wr.Load() == b.rd.Load()
}

// IsFull tells if there is no space to write.
func (b *Buffer) IsFull() bool {
	return b.Count() == int(b.size)
}

// HasData tells if at least one byte is readable.
func (b *Buffer) HasData() bool {
	return !b.IsEmpty()
}

// HasSpace tells if n bytes can be written.
func (b *Buffer) HasSpace(n int) bool {
	return n >= 0 && b.Free() >= n
}

// ReadIndex returns the physical index of the next byte to read.
func (b *Buffer) ReadIndex() int {
	return int(b.phys(b.rd.Load()))
}

// WriteIndex returns the physical index of the next byte to write.
func (b *Buffer) WriteIndex() int {
	return int(b.phys(b.wr.Load()))
}

// Empty discards all readable bytes. Consumer context.
func (b *Buffer) Empty() {
	b.rd.Store(b.wr.Load())
	b.stall.reset()
}

// Reset puts both cursors at the start of storage and clears the status.
// It must not race with either context.
func (b *Buffer) Reset() {
	b.rd.Store(0)
	b.wr.Store(0)
	b.status.Clear()
	b.stall.reset()
}

// String implements fmt.Stringer.
func (b *Buffer) String() string {
	return fmt.Sprintf("%s[%s/%s %d/%d]", b.name, b.typ, b.format, b.Count(), b.size)
}

// shadow stages a multi-byte put on a private copy of the write cursor.
// Nothing is visible to the consumer until commit.
type shadow struct {
	b    *Buffer
	w    uint32
	free uint32
}

func (b *Buffer) shadow() shadow {
	w := b.wr.Load()
	return shadow{b: b, w: w, free: b.size - b.used(w, b.rd.Load())}
}

func (s *shadow) put(c byte) {
	s.b.buf[s.b.phys(s.w)] = c
	s.w = s.b.advance(s.w, 1)
	s.free--
}

func (s *shadow) write(p []byte) {
	if len(p) == 0 {
		return
	}
	s.b.copyIn(s.w, p)
	s.w = s.b.advance(s.w, uint32(len(p)))
	s.free -= uint32(len(p))
}

func (s *shadow) skip(n uint32) {
	s.w = s.b.advance(s.w, n)
	s.free -= n
}

func (s *shadow) commit() {
	s.b.wr.Store(s.w)
}
