package prop

import (
	"fmt"
	"strconv"
	"strings"
	"unsafe"
)

// Uint8 is an unsigned 8-bit integer slot.
type Uint8 struct{}

func (Uint8) Name() string { return "uint8" }

func (Uint8) Parse(base unsafe.Pointer, off uintptr, text string) error {
	v, err := strconv.ParseUint(text, 10, 8)
	if err != nil {
		return fmt.Errorf("%w: %q is not a uint8", ErrParseRejected, text)
	}

	*(*uint8)(unsafe.Add(base, off)) = uint8(v)
	return nil
}

func (Uint8) Print(base unsafe.Pointer, off uintptr) (string, bool) {
	return strconv.FormatUint(uint64(*(*uint8)(unsafe.Add(base, off))), 10), true
}

// Uint16 is an unsigned 16-bit integer slot.
type Uint16 struct{}

func (Uint16) Name() string { return "uint16" }

func (Uint16) Parse(base unsafe.Pointer, off uintptr, text string) error {
	v, err := strconv.ParseUint(text, 10, 16)
	if err != nil {
		return fmt.Errorf("%w: %q is not a uint16", ErrParseRejected, text)
	}

	*(*uint16)(unsafe.Add(base, off)) = uint16(v)
	return nil
}

func (Uint16) Print(base unsafe.Pointer, off uintptr) (string, bool) {
	return strconv.FormatUint(uint64(*(*uint16)(unsafe.Add(base, off))), 10), true
}

// Uint32 is an unsigned 32-bit integer slot.
type Uint32 struct{}

func (Uint32) Name() string { return "uint32" }

func (Uint32) Parse(base unsafe.Pointer, off uintptr, text string) error {
	v, err := strconv.ParseUint(text, 10, 32)
	if err != nil {
		return fmt.Errorf("%w: %q is not a uint32", ErrParseRejected, text)
	}

	*(*uint32)(unsafe.Add(base, off)) = uint32(v)
	return nil
}

func (Uint32) Print(base unsafe.Pointer, off uintptr) (string, bool) {
	return strconv.FormatUint(uint64(*(*uint32)(unsafe.Add(base, off))), 10), true
}

// Uint64 is an unsigned 64-bit integer slot.
type Uint64 struct{}

func (Uint64) Name() string { return "uint64" }

func (Uint64) Parse(base unsafe.Pointer, off uintptr, text string) error {
	v, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q is not a uint64", ErrParseRejected, text)
	}

	*(*uint64)(unsafe.Add(base, off)) = v
	return nil
}

func (Uint64) Print(base unsafe.Pointer, off uintptr) (string, bool) {
	return strconv.FormatUint(*(*uint64)(unsafe.Add(base, off)), 10), true
}

// Int32 is a signed 32-bit integer slot.
type Int32 struct{}

func (Int32) Name() string { return "int32" }

func (Int32) Parse(base unsafe.Pointer, off uintptr, text string) error {
	v, err := strconv.ParseInt(text, 10, 32)
	if err != nil {
		return fmt.Errorf("%w: %q is not an int32", ErrParseRejected, text)
	}

	*(*int32)(unsafe.Add(base, off)) = int32(v)
	return nil
}

func (Int32) Print(base unsafe.Pointer, off uintptr) (string, bool) {
	return strconv.FormatInt(int64(*(*int32)(unsafe.Add(base, off))), 10), true
}

// Hex32 is an unsigned 32-bit slot written and shown in hex.
type Hex32 struct{}

func (Hex32) Name() string { return "hex32" }

func (Hex32) Parse(base unsafe.Pointer, off uintptr, text string) error {
	v, err := strconv.ParseUint(strings.TrimPrefix(text, "0x"), 16, 32)
	if err != nil {
		return fmt.Errorf("%w: %q is not a hex32", ErrParseRejected, text)
	}

	*(*uint32)(unsafe.Add(base, off)) = uint32(v)
	return nil
}

func (Hex32) Print(base unsafe.Pointer, off uintptr) (string, bool) {
	return fmt.Sprintf("0x%x", *(*uint32)(unsafe.Add(base, off))), true
}

// Hex64 is an unsigned 64-bit slot written and shown in hex.
type Hex64 struct{}

func (Hex64) Name() string { return "hex64" }

func (Hex64) Parse(base unsafe.Pointer, off uintptr, text string) error {
	v, err := strconv.ParseUint(strings.TrimPrefix(text, "0x"), 16, 64)
	if err != nil {
		return fmt.Errorf("%w: %q is not a hex64", ErrParseRejected, text)
	}

	*(*uint64)(unsafe.Add(base, off)) = v
	return nil
}

func (Hex64) Print(base unsafe.Pointer, off uintptr) (string, bool) {
	return fmt.Sprintf("0x%x", *(*uint64)(unsafe.Add(base, off))), true
}

// Bool is an on/off slot backed by a Go bool.
type Bool struct{}

func (Bool) Name() string { return "on/off" }

func (Bool) Parse(base unsafe.Pointer, off uintptr, text string) error {
	switch text {
	case "on":
		*(*bool)(unsafe.Add(base, off)) = true
	case "off":
		*(*bool)(unsafe.Add(base, off)) = false
	default:
		return fmt.Errorf("%w: %q is not on/off", ErrParseRejected, text)
	}

	return nil
}

func (Bool) Print(base unsafe.Pointer, off uintptr) (string, bool) {
	if *(*bool)(unsafe.Add(base, off)) {
		return "on", true
	}

	return "off", true
}

// Bit is a single on/off flag within a uint32 slot.
type Bit struct {
	Mask uint32
}

func (Bit) Name() string { return "on/off" }

func (b Bit) Parse(base unsafe.Pointer, off uintptr, text string) error {
	p := (*uint32)(unsafe.Add(base, off))

	switch text {
	case "on":
		*p |= b.Mask
	case "off":
		*p &^= b.Mask
	default:
		return fmt.Errorf("%w: %q is not on/off", ErrParseRejected, text)
	}

	return nil
}

func (b Bit) Print(base unsafe.Pointer, off uintptr) (string, bool) {
	if *(*uint32)(unsafe.Add(base, off))&b.Mask != 0 {
		return "on", true
	}

	return "off", true
}

// String is a Go string slot. Freeing the property clears the slot.
type String struct{}

func (String) Name() string { return "string" }

func (String) Parse(base unsafe.Pointer, off uintptr, text string) error {
	*(*string)(unsafe.Add(base, off)) = text
	return nil
}

func (String) Print(base unsafe.Pointer, off uintptr) (string, bool) {
	return strconv.Quote(*(*string)(unsafe.Add(base, off))), true
}

func (String) Free(base unsafe.Pointer, off uintptr) {
	*(*string)(unsafe.Add(base, off)) = ""
}

// MACAddr is a 6-byte MAC address slot in colon notation.
type MACAddr struct{}

func (MACAddr) Name() string { return "macaddr" }

func (MACAddr) Parse(base unsafe.Pointer, off uintptr, text string) error {
	mac := (*[6]byte)(unsafe.Add(base, off))

	parts := strings.Split(text, ":")
	if len(parts) != 6 {
		return fmt.Errorf("%w: %q is not a MAC address", ErrParseRejected, text)
	}

	for i, part := range parts {
		v, err := strconv.ParseUint(part, 16, 8)
		if err != nil || len(part) != 2 {
			return fmt.Errorf("%w: %q is not a MAC address", ErrParseRejected, text)
		}

		mac[i] = byte(v)
	}

	return nil
}

func (MACAddr) Print(base unsafe.Pointer, off uintptr) (string, bool) {
	mac := (*[6]byte)(unsafe.Add(base, off))
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
		mac[0], mac[1], mac[2], mac[3], mac[4], mac[5]), true
}
