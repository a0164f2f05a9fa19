package cirbuf

// fillerByte as first header byte marks the unused tail of storage in
// contiguous packet mode.
const fillerByte = 0xFF

func (b *Buffer) isPacket() bool {
	return b.typ == TypePacket || b.typ == TypePacketLarge
}

// MaxPacketDataSize returns the largest raw payload a single packet can
// carry in this buffer.
func (b *Buffer) MaxPacketDataSize() int {
	h := b.typ.headerLen()
	if h == 0 || b.size <= h {
		return 0
	}
	limit := 1<<(8*h) - 1
	if b.contiguous() {
		limit -= 1 << (8 * (h - 1))
	}
	if room := int(b.size - h); room < limit {
		limit = room
	}
	return limit
}

// packetHead returns the read cursor positioned past a filler, and the
// count after it. Nothing is consumed.
func (b *Buffer) packetHead() (r, cnt uint32) {
	r, w := b.rd.Load(), b.wr.Load()
	cnt = b.used(w, r)
	if b.contiguous() && cnt > 0 && b.buf[b.phys(r)] == fillerByte {
		skip := b.size - b.phys(r)
		if skip > cnt {
			skip = cnt
		}
		r, cnt = b.advance(r, skip), cnt-skip
	}
	return r, cnt
}

// header decodes the packet header at r.
func (b *Buffer) header(r, cnt uint32) (uint32, bool) {
	h := b.typ.headerLen()
	if cnt < h {
		return 0, false
	}
	if h == 1 {
		return uint32(b.at(r, 0)), true
	}
	return uint32(b.at(r, 0))<<8 | uint32(b.at(r, 1)), true
}

// wholePacket returns the start and raw payload size of the head packet.
func (b *Buffer) wholePacket() (r, n uint32, st Status) {
	if !b.isPacket() {
		return 0, 0, StatusInvalidOp
	}
	r, cnt := b.packetHead()
	n, ok := b.header(r, cnt)
	if !ok || cnt < b.typ.headerLen()+n {
		return 0, 0, StatusUnderflow
	}
	return r, n, StatusNone
}

// PutPacket writes p as one packet, header and payload, or nothing. For
// escaped formats the payload is encoded and the header holds the encoded
// size. Producer context.
func (b *Buffer) PutPacket(p []byte) error {
	if !b.isPacket() {
		return b.status.Fail(StatusInvalidOp)
	}
	raw := len(p)
	if b.format.Escaped() {
		raw = b.codec.EncodedLen(p)
	}
	h := b.typ.headerLen()
	need := h + uint32(raw)
	if raw > b.MaxPacketDataSize() || need > b.size {
		return b.status.Fail(StatusInvalidSize)
	}
	s := b.shadow()
	if b.contiguous() {
		pw := b.phys(s.w)
		if tail := b.size - pw; need > tail {
			if s.free < tail+need {
				return b.status.Fail(StatusOverflow)
			}
			b.buf[pw] = fillerByte
			s.skip(tail)
		}
	}
	if s.free < need {
		return b.status.Fail(StatusOverflow)
	}
	if h == 2 {
		s.put(byte(raw >> 8))
	}
	s.put(byte(raw))
	if b.format.Escaped() {
		s.putEscaped(b.codec, p)
	} else {
		s.write(p)
	}
	s.commit()
	return nil
}

// HasWholePacket tells if header and complete payload of the head packet
// are readable.
func (b *Buffer) HasWholePacket() bool {
	_, _, st := b.wholePacket()
	return st == StatusNone
}

// PeekPacketDataSize returns the raw payload size of the head packet
// without consuming anything. Only the header needs to be readable.
func (b *Buffer) PeekPacketDataSize() (int, error) {
	if !b.isPacket() {
		return 0, b.status.Fail(StatusInvalidOp)
	}
	n, ok := b.header(b.packetHead())
	if !ok {
		return 0, b.status.Fail(StatusUnderflow)
	}
	return int(n), nil
}

// GetPacketDataSize consumes the header of the head packet and returns the
// raw payload size. The payload is read next with the stream operations.
// For escaped formats this is the encoded size, so GetArray returns the
// encoded bytes; use GetPacket to receive the decoded payload.
func (b *Buffer) GetPacketDataSize() (int, error) {
	if !b.isPacket() {
		return 0, b.status.Fail(StatusInvalidOp)
	}
	r, cnt := b.packetHead()
	n, ok := b.header(r, cnt)
	if !ok {
		return 0, b.status.Fail(StatusUnderflow)
	}
	b.rd.Store(b.advance(r, b.typ.headerLen()))
	return int(n), nil
}

// PeekPacketByte returns the first payload byte of the head packet.
func (b *Buffer) PeekPacketByte() (byte, error) {
	if !b.isPacket() {
		return 0, b.status.Fail(StatusInvalidOp)
	}
	r, cnt := b.packetHead()
	h := b.typ.headerLen()
	n, ok := b.header(r, cnt)
	if !ok || n == 0 || cnt <= h {
		return 0, b.status.Fail(StatusUnderflow)
	}
	return b.at(r, h), nil
}

// GetPacket copies the payload of the head packet into p, decoding it for
// escaped formats, and removes the packet. Nothing is removed on error.
func (b *Buffer) GetPacket(p []byte) (int, error) {
	r, n, st := b.wholePacket()
	if st != StatusNone {
		return 0, b.status.Fail(st)
	}
	h := b.typ.headerLen()
	if !b.format.Escaped() {
		if uint32(len(p)) < n {
			return 0, b.status.Fail(StatusInvalidSize)
		}
		b.copyOut(b.advance(r, h), p[:n])
		b.rd.Store(b.advance(r, h+n))
		return int(n), nil
	}
	cnt := 0
	start := b.advance(r, h)
	for off := uint32(0); off < n; {
		v, kind, size, st := b.peekEscaped(start, n, off)
		if st != StatusNone || kind != KindData {
			return 0, b.status.Fail(StatusDecode)
		}
		if cnt >= len(p) {
			return 0, b.status.Fail(StatusInvalidSize)
		}
		p[cnt] = v
		cnt++
		off += size
	}
	b.rd.Store(b.advance(r, h+n))
	return cnt, nil
}

// RemovePacket discards the head packet.
func (b *Buffer) RemovePacket() error {
	r, n, st := b.wholePacket()
	if st != StatusNone {
		return b.status.Fail(st)
	}
	b.rd.Store(b.advance(r, b.typ.headerLen()+n))
	return nil
}

// GetContiguousPacket returns the raw payload of the head packet as a view
// into storage. It fails with ErrOutOfRange when the payload wraps, which
// never happens with WithContiguousPackets. Remove it with RemovePacket.
func (b *Buffer) GetContiguousPacket() ([]byte, error) {
	r, n, st := b.wholePacket()
	if st != StatusNone {
		return nil, b.status.Fail(st)
	}
	ps := b.phys(b.advance(r, b.typ.headerLen()))
	if ps+n > b.size {
		return nil, b.status.Fail(StatusOutOfRange)
	}
	return b.buf[ps : ps+n : ps+n], nil
}

// FreeForPacket returns the largest raw payload PutPacket can currently
// write.
func (b *Buffer) FreeForPacket() int {
	if !b.isPacket() {
		return 0
	}
	w, r := b.wr.Load(), b.rd.Load()
	free := b.size - b.used(w, r)
	block := free
	if b.contiguous() {
		tail := b.size - b.phys(w)
		if tail >= free {
			block = free
		} else if head := free - tail; head > tail {
			block = head
		} else {
			block = tail
		}
	}
	h := b.typ.headerLen()
	if block <= h {
		return 0
	}
	n := int(block - h)
	if max := b.MaxPacketDataSize(); n > max {
		n = max
	}
	return n
}

// PacketEqual tells if the raw payload of the head packet equals s.
func (b *Buffer) PacketEqual(s string) bool {
	r, n, st := b.wholePacket()
	if st != StatusNone || int(n) != len(s) {
		return false
	}
	start := b.advance(r, b.typ.headerLen())
	for i := 0; i < len(s); i++ {
		if b.at(start, uint32(i)) != s[i] {
			return false
		}
	}
	return true
}
