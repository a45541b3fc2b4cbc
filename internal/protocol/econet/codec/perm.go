package codec

// Perm is the internal permission-bit encoding:
// {hidden, other-write, other-read, locked, owner-write, owner-read}.
type Perm byte

const (
	PermOwnerRead Perm = 1 << iota
	PermOwnerWrite
	PermLocked
	PermOtherRead
	PermOtherWrite
	PermHidden
)

// DefaultFilePerm is written by the attribute store when no sidecar
// attributes exist yet.
const DefaultFilePerm = PermOwnerRead | PermOwnerWrite | PermOtherRead

// PermToWire maps the internal permission encoding onto the protocol
// surface's wire byte. Directories omit the write bits the wire format
// reserves for files in some opcode replies (EXAMINE format 4 in
// particular), so is_dir selects the shape.
func PermToWire(p Perm, isDir bool) byte {
	var w byte
	if p&PermLocked != 0 {
		w |= 0x01
	}
	if isDir {
		if p&PermOwnerRead != 0 {
			w |= 0x02
		}
	} else {
		if p&PermOwnerWrite != 0 {
			w |= 0x02
		}
		if p&PermOwnerRead != 0 {
			w |= 0x04
		}
	}
	if p&PermOtherWrite != 0 {
		w |= 0x08
	}
	if p&PermOtherRead != 0 {
		w |= 0x10
	}
	if p&PermHidden != 0 {
		w |= 0x20
	}
	return w
}

// WireToPerm is the inverse of PermToWire.
func WireToPerm(w byte, isDir bool) Perm {
	var p Perm
	if w&0x01 != 0 {
		p |= PermLocked
	}
	if isDir {
		if w&0x02 != 0 {
			p |= PermOwnerRead
		}
	} else {
		if w&0x02 != 0 {
			p |= PermOwnerWrite
		}
		if w&0x04 != 0 {
			p |= PermOwnerRead
		}
	}
	if w&0x08 != 0 {
		p |= PermOtherWrite
	}
	if w&0x10 != 0 {
		p |= PermOtherRead
	}
	if w&0x20 != 0 {
		p |= PermHidden
	}
	return p
}

// ParseAccessString parses an ACCESS-style permission string of the form
// "owner/other" using letters W R H L on the left and W R on the right
//. An absent '/' means the whole string describes
// owner bits only, leaving other bits untouched by the caller's merge.
func ParseAccessString(s string) (owner, other Perm, hasOther bool) {
	left := s
	if idx := indexByte(s, '/'); idx >= 0 {
		left = s[:idx]
		other = parseAccessLetters(s[idx+1:], false)
		hasOther = true
	}
	owner = parseAccessLetters(left, true)
	return owner, other, hasOther
}

func parseAccessLetters(s string, ownerSide bool) Perm {
	var p Perm
	for _, r := range s {
		switch r {
		case 'W', 'w':
			if ownerSide {
				p |= PermOwnerWrite
			} else {
				p |= PermOtherWrite
			}
		case 'R', 'r':
			if ownerSide {
				p |= PermOwnerRead
			} else {
				p |= PermOtherRead
			}
		case 'H', 'h':
			if ownerSide {
				p |= PermHidden
			}
		case 'L', 'l':
			if ownerSide {
				p |= PermLocked
			}
		}
	}
	return p
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}
