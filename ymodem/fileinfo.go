package ymodem

import (
	"bytes"
	"math"
	"strconv"
)

// UnknownLength marks a file whose length was not announced.
const UnknownLength = -1

// FileInfo describes the file carried by a start frame.
type FileInfo struct {
	Name string

	// Length is the file size in bytes, or UnknownLength.
	Length int64
}

// EncodeFileInfo writes info into seg, the data segment of a start frame:
//
//	<name> NUL <decimal length> NUL <extra> NUL...
//
// The name is truncated to leave room for its terminator. fill, when
// non-nil, appends extra bytes after the length and returns how many it
// wrote. A file of UnknownLength gets an empty length field and no extra
// bytes. The rest of seg is zeroed.
func EncodeFileInfo(seg []byte, info FileInfo, fill func([]byte) int) error {
	if info.Name == "" {
		return NewError(ErrInvalidArg, CodeInvalidFileName, "empty file name")
	}
	clear(seg)

	name := info.Name
	if len(name) > len(seg)-1 {
		name = name[:len(seg)-1]
	}
	idx := copy(seg, name) + 1

	if info.Length < 0 {
		return nil
	}

	length := strconv.FormatInt(info.Length, 10)
	if idx+len(length)+1 > len(seg) {
		return NewError(ErrInvalidArg, CodeInvalidFileName, "file name leaves no room for the length")
	}
	idx += copy(seg[idx:], length) + 1

	if fill != nil && idx < len(seg) {
		n := fill(seg[idx:])
		if n < 0 || n > len(seg)-idx {
			return NewError(ErrInvalidArg, CodeOK, "file info hook overflowed the start frame")
		}
	}
	return nil
}

// DecodeFileInfo parses the data segment of a start frame.
//
// The name ends at the first NUL and is cut to maxName bytes when maxName
// is positive. An empty length field yields UnknownLength. The length is
// decimal, or hexadecimal with a 0x prefix; leading spaces are skipped and
// parsing stops at the first character that is not a digit, so the
// "length mtime mode" tail written by other senders is tolerated. Bytes
// after the length field are returned as extra.
func DecodeFileInfo(seg []byte, maxName int) (FileInfo, []byte, error) {
	if len(seg) == 0 || seg[0] == 0 {
		return FileInfo{}, nil, NewError(ErrInvalidArg, CodeInvalidFileName, "empty file name")
	}
	end := bytes.IndexByte(seg, 0)
	if end < 0 {
		return FileInfo{}, nil, NewError(ErrInvalidArg, CodeInvalidFileName, "unterminated file name")
	}

	name := seg[:end]
	if maxName > 0 && len(name) > maxName {
		name = name[:maxName]
	}
	info := FileInfo{Name: string(name), Length: UnknownLength}

	idx := end + 1
	if idx >= len(seg) || seg[idx] == 0 {
		return info, nil, nil
	}

	token := seg[idx:]
	if n := bytes.IndexByte(token, 0); n >= 0 {
		token = token[:n]
	}
	info.Length = parseLength(token)

	idx += len(token) + 1
	if idx >= len(seg) {
		return info, nil, nil
	}
	return info, seg[idx:], nil
}

// parseLength reads an unsigned decimal or 0x-prefixed hex number,
// saturating at math.MaxInt64.
func parseLength(b []byte) int64 {
	i := 0
	for i < len(b) && b[i] == ' ' {
		i++
	}

	base := int64(10)
	if i+1 < len(b) && b[i] == '0' && (b[i+1] == 'x' || b[i+1] == 'X') {
		base = 16
		i += 2
	}

	var v int64
	for ; i < len(b); i++ {
		d := digitValue(b[i])
		if d < 0 || d >= base {
			break
		}
		if v > (math.MaxInt64-d)/base {
			return math.MaxInt64
		}
		v = v*base + d
	}
	return v
}

func digitValue(c byte) int64 {
	switch {
	case c >= '0' && c <= '9':
		return int64(c - '0')
	case c >= 'a' && c <= 'f':
		return int64(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int64(c-'A') + 10
	}
	return -1
}
