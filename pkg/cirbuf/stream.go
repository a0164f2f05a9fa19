package cirbuf

import (
	"context"
	"runtime"

	"github.com/pkg/errors"
)

// PutByte writes one byte. Producer context.
func (b *Buffer) PutByte(c byte) error {
	s := b.shadow()
	if s.free == 0 {
		return b.status.Fail(StatusOverflow)
	}
	s.put(c)
	s.commit()
	return nil
}

// PutWord writes w as two bytes, low byte first, or nothing.
func (b *Buffer) PutWord(w uint16) error {
	s := b.shadow()
	if s.free < 2 {
		return b.status.Fail(StatusOverflow)
	}
	s.put(byte(w))
	s.put(byte(w >> 8))
	s.commit()
	return nil
}

// PutArray writes as many bytes of p as fit and returns how many were
// written. A short write is not an error.
func (b *Buffer) PutArray(p []byte) int {
	s := b.shadow()
	n := len(p)
	if uint32(n) > s.free {
		n = int(s.free)
	}
	s.write(p[:n])
	s.commit()
	return n
}

// Write implements io.Writer. It fails with ErrOverflow on a short write.
func (b *Buffer) Write(p []byte) (int, error) {
	n := b.PutArray(p)
	if n < len(p) {
		return n, b.status.Fail(StatusOverflow)
	}
	return n, nil
}

// PutString writes all of s or nothing.
func (b *Buffer) PutString(str string) error {
	s := b.shadow()
	if uint32(len(str)) > s.free {
		return b.status.Fail(StatusOverflow)
	}
	for i := 0; i < len(str); i++ {
		s.put(str[i])
	}
	s.commit()
	return nil
}

// PutArrayWait writes all of p, yielding while the buffer is full.
// It must not be called from the producer's interrupt context, and the
// consumer must be running elsewhere.
func (b *Buffer) PutArrayWait(ctx context.Context, p []byte) (int, error) {
	written := 0
	for {
		written += b.PutArray(p[written:])
		if written == len(p) {
			return written, nil
		}
		select {
		case <-ctx.Done():
			b.status.Set(StatusOverflow)
			return written, errors.Wrap(ErrOverflow, ctx.Err().Error())
		default:
			runtime.Gosched()
		}
	}
}

// PutStringWait is PutArrayWait for strings.
func (b *Buffer) PutStringWait(ctx context.Context, s string) (int, error) {
	return b.PutArrayWait(ctx, []byte(s))
}

// GetByte removes and returns the next byte. Consumer context.
func (b *Buffer) GetByte() (byte, error) {
	r, w := b.rd.Load(), b.wr.Load()
	if r == w {
		return 0, b.status.Fail(StatusUnderflow)
	}
	c := b.buf[b.phys(r)]
	b.rd.Store(b.advance(r, 1))
	return c, nil
}

// PeekByte returns the next byte without removing it.
func (b *Buffer) PeekByte() (byte, error) {
	r, w := b.rd.Load(), b.wr.Load()
	if r == w {
		return 0, b.status.Fail(StatusUnderflow)
	}
	return b.buf[b.phys(r)], nil
}

// PeekByteAt returns the byte at offset off from the read cursor.
func (b *Buffer) PeekByteAt(off int) (byte, error) {
	r, w := b.rd.Load(), b.wr.Load()
	if off < 0 || uint32(off) >= b.used(w, r) {
		return 0, b.status.Fail(StatusOutOfRange)
	}
	return b.at(r, uint32(off)), nil
}

// GetArray removes up to len(p) bytes into p and returns the count.
func (b *Buffer) GetArray(p []byte) int {
	r, w := b.rd.Load(), b.wr.Load()
	n := b.used(w, r)
	if uint32(len(p)) < n {
		n = uint32(len(p))
	}
	if n == 0 {
		return 0
	}
	b.copyOut(r, p[:n])
	b.rd.Store(b.advance(r, n))
	return int(n)
}

// GetArrayTillByte removes bytes into p up to and including the first
// occurrence of delim, limited by len(p). found reports whether delim was
// the last byte copied.
func (b *Buffer) GetArrayTillByte(p []byte, delim byte) (n int, found bool) {
	r, w := b.rd.Load(), b.wr.Load()
	limit := b.used(w, r)
	if uint32(len(p)) < limit {
		limit = uint32(len(p))
	}
	cnt := limit
	for i := uint32(0); i < limit; i++ {
		if b.at(r, i) == delim {
			cnt, found = i+1, true
			break
		}
	}
	if cnt == 0 {
		return 0, false
	}
	b.copyOut(r, p[:cnt])
	b.rd.Store(b.advance(r, cnt))
	return int(cnt), found
}

// FindByte returns the offset of the first value at or after offset from.
func (b *Buffer) FindByte(from int, value byte) (int, bool) {
	if from < 0 {
		from = 0
	}
	r, w := b.rd.Load(), b.wr.Load()
	cnt := b.used(w, r)
	for i := uint32(from); i < cnt; i++ {
		if b.at(r, i) == value {
			return int(i), true
		}
	}
	return -1, false
}

// GetRdArr returns the largest contiguous readable region starting at the
// read cursor. The slice aliases storage; consume it with RemoveBytes.
func (b *Buffer) GetRdArr() []byte {
	r, w := b.rd.Load(), b.wr.Load()
	pr := b.phys(r)
	n := b.used(w, r)
	if tail := b.size - pr; n > tail {
		n = tail
	}
	return b.buf[pr : pr+n : pr+n]
}

// GetRdArrSize returns len(GetRdArr()).
func (b *Buffer) GetRdArrSize() int {
	return len(b.GetRdArr())
}

// GetWrArr returns the largest contiguous writable region starting at the
// write cursor. Fill it and publish with UpdatePut.
func (b *Buffer) GetWrArr() []byte {
	w, r := b.wr.Load(), b.rd.Load()
	pw := b.phys(w)
	n := b.size - b.used(w, r)
	if tail := b.size - pw; n > tail {
		n = tail
	}
	return b.buf[pw : pw+n : pw+n]
}

// GetWrArrSize returns len(GetWrArr()).
func (b *Buffer) GetWrArrSize() int {
	return len(b.GetWrArr())
}

// UpdatePut publishes n bytes written through GetWrArr.
func (b *Buffer) UpdatePut(n int) error {
	s := b.shadow()
	if n < 0 || uint32(n) > s.free {
		return b.status.Fail(StatusOverflow)
	}
	s.skip(uint32(n))
	s.commit()
	return nil
}

// RemoveBytes discards n readable bytes.
func (b *Buffer) RemoveBytes(n int) error {
	r, w := b.rd.Load(), b.wr.Load()
	if n < 0 || uint32(n) > b.used(w, r) {
		return b.status.Fail(StatusUnderflow)
	}
	b.rd.Store(b.advance(r, uint32(n)))
	return nil
}

// RemoveByte discards one byte.
func (b *Buffer) RemoveByte() error {
	return b.RemoveBytes(1)
}

// Move moves readable bytes into dst until b is empty or dst is full, and
// returns the number of bytes moved. b's consumer and dst's producer must
// be the calling context.
func (b *Buffer) Move(dst *Buffer) int {
	moved := 0
	for i := 0; i < 2; i++ {
		view := b.GetRdArr()
		if len(view) == 0 {
			break
		}
		n := dst.PutArray(view)
		b.rd.Store(b.advance(b.rd.Load(), uint32(n)))
		moved += n
		if n < len(view) {
			break
		}
	}
	return moved
}
