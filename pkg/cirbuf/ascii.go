package cirbuf

import "strconv"

const hexDigits = "0123456789ABCDEF"

// PutByteASCII writes the decimal representation of c, or nothing.
func (b *Buffer) PutByteASCII(c byte) error {
	var tmp [3]byte
	return b.putASCII(strconv.AppendUint(tmp[:0], uint64(c), 10))
}

// PutByteASCIIHex writes c as two upper case hex digits, or nothing.
func (b *Buffer) PutByteASCIIHex(c byte) error {
	return b.putASCII([]byte{hexDigits[c>>4], hexDigits[c&0xf]})
}

// PutWordASCII writes the decimal representation of w, or nothing.
func (b *Buffer) PutWordASCII(w uint16) error {
	var tmp [5]byte
	return b.putASCII(strconv.AppendUint(tmp[:0], uint64(w), 10))
}

// PutWordASCIIHex writes w as four upper case hex digits, or nothing.
func (b *Buffer) PutWordASCIIHex(w uint16) error {
	return b.putASCII([]byte{
		hexDigits[w>>12], hexDigits[(w>>8)&0xf],
		hexDigits[(w>>4)&0xf], hexDigits[w&0xf],
	})
}

func (b *Buffer) putASCII(p []byte) error {
	s := b.shadow()
	if uint32(len(p)) > s.free {
		return b.status.Fail(StatusOverflow)
	}
	s.write(p)
	s.commit()
	return nil
}

// ASCIIEscFlags modify PutASCIIEscString.
type ASCIIEscFlags uint8

const (
	// ASCIIEscAddStartStop surrounds the message with ^s and ^p.
	ASCIIEscAddStartStop ASCIIEscFlags = 1 << iota
)

func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// PutASCIIEscString converts a message in ASCII escaped notation and
// writes it encoded. The notation is:
//
//	"3F"          hex pairs (upper case) are data bytes
//	'Hi'          quoted text is data, '' inside quotes is a quote
//	a..z          lower case letters are control characters
//	^x            explicit control character, ^^ a literal '^'
//
// Anything else (spaces, punctuation) separates tokens and is ignored.
// Either the whole message is written or nothing; it returns the number
// of buffer bytes used.
func (b *Buffer) PutASCIIEscString(str string, flags ASCIIEscFlags) (int, error) {
	if err := b.requireEscaped(); err != nil {
		return 0, err
	}
	s := b.shadow()
	start := s.free
	overflow := false
	data := func(v byte) {
		need := uint32(1)
		if b.codec.Reserved(v) {
			need = 2
		}
		if overflow || s.free < need {
			overflow = true
			return
		}
		if need == 2 {
			s.put(b.codec.Escape)
			v ^= b.codec.XOR
		}
		s.put(v)
	}
	ctrl := func(c byte) {
		if overflow || s.free < 2 {
			overflow = true
			return
		}
		s.put(b.codec.Escape)
		s.put(c)
	}

	if flags&ASCIIEscAddStartStop != 0 {
		ctrl(CtrlStart)
	}
	var (
		msb      byte
		firstHex bool
		inQuote  bool
		quote    bool // quote seen inside a quoted string
		escape   bool
	)
	for i := 0; i < len(str); i++ {
		c := str[i]
		if quote && c != '\'' {
			inQuote, quote = false, false
		}
		switch {
		case escape:
			escape = false
			switch {
			case c == b.codec.Escape:
				data(c)
			case c >= 'a' && c <= 'z':
				ctrl(c)
			default:
				return 0, b.status.Fail(StatusDecode)
			}
		case firstHex:
			firstHex = false
			lsb, ok := hexNibble(c)
			if !ok {
				return 0, b.status.Fail(StatusDecode)
			}
			data(msb<<4 | lsb)
		case inQuote:
			if c != '\'' {
				data(c)
			} else if quote {
				quote = false
				data(c)
			} else {
				quote = true
			}
		case c == '\'':
			inQuote = true
		case c == b.codec.Escape:
			escape = true
		default:
			if v, ok := hexNibble(c); ok {
				msb, firstHex = v, true
			} else if c >= 'a' && c <= 'z' {
				ctrl(c)
			}
		}
	}
	if firstHex || escape || (inQuote && !quote) {
		return 0, b.status.Fail(StatusDecode)
	}
	if flags&ASCIIEscAddStartStop != 0 {
		ctrl(CtrlStop)
	}
	if overflow {
		return 0, b.status.Fail(StatusOverflow)
	}
	s.commit()
	return int(start - s.free), nil
}
