// Package vmstate describes the persistent state of a device as data.
//
// A Description is a versioned schema over a live instance's memory:
// each Field names a slot by offset and says how to read it (element
// size, count policy, flags). The same schema drives migration
// registration and the monitor's state introspection; Dump is the
// introspection half.
package vmstate

import (
	"fmt"
	"unsafe"
)

// Flags alter how a field's slot is read.
type Flags uint

const (

	// Pointer dereferences the slot once, shifted by Field.Start,
	// before reading elements.
	Pointer Flags = 1 << iota

	// ArrayOfPointer dereferences each element's address.
	ArrayOfPointer

	// Struct recurses into Field.Sub for each element.
	Struct

	// Buffer emits the element's raw bytes.
	Buffer

	// VarBuffer emits raw bytes whose length is read from the slot at
	// Field.SizeOff.
	VarBuffer

	// Multiply scales a VarBuffer length by the element size.
	Multiply

	// Bitfield renames the field to Field.BitName and reduces the
	// value to 0 or 1 under Field.BitMask.
	Bitfield

	// Queue delegates each element to Field.PrintQueue.
	Queue
)

// CountPolicy says how many elements a field has.
type CountPolicy int

const (

	// Scalar fields have exactly one element.
	Scalar CountPolicy = iota

	// FixedArray fields have Field.Num elements.
	FixedArray

	// VarArrayInt32 reads an int32 element count from Field.NumOff.
	VarArrayInt32

	// VarArrayUint16 reads a uint16 element count from Field.NumOff.
	VarArrayUint16
)

// Description is the versioned state schema of one kind.
type Description struct {

	// Name identifies the state record to the migration subsystem.
	Name string

	// VersionID is the schema version, reported by device_show.
	VersionID int

	// PreSave, if set, runs exactly once before the fields are walked.
	PreSave func(base unsafe.Pointer)

	Fields []Field
}

// Field is one slot in the schema.
type Field struct {
	Name   string
	Offset uintptr

	// Size is the element size in bytes. Plain integer fields must be
	// 1, 2, 4 or 8 bytes wide.
	Size uintptr

	Count  CountPolicy
	Num    int     // FixedArray length
	NumOff uintptr // VarArray count slot

	// SizeOff locates a VarBuffer's int32 length slot.
	SizeOff uintptr

	// Start shifts a dereferenced Pointer base, in bytes.
	Start uintptr

	// StartIndex, when set, captions array elements in the dump.
	StartIndex string

	Flags Flags

	// Exists, if set, skips the field when false for the version.
	Exists func(base unsafe.Pointer, version int) bool

	// Sub is the nested schema for Struct fields.
	Sub *Description

	// BitName and BitMask apply when Bitfield is set.
	BitName string
	BitMask uint64

	// PrintQueue renders one Queue element.
	PrintQueue func(elem unsafe.Pointer) any
}

// DumpField is one introspected field. Elems holds uint64 values for
// integer fields, []byte for buffers, DumpField values for struct
// fields, and a nested []any per element for array fields.
type DumpField struct {
	Name  string `json:"name"`
	Start string `json:"start,omitempty"`
	Size  int64  `json:"size"`
	Elems []any  `json:"elems"`
}

// Dump walks the schema over a live instance rooted at base. Unless
// full is set, buffers longer than 16 bytes are truncated to their
// first 16.
func (d *Description) Dump(base unsafe.Pointer, full bool) []DumpField {
	fields, _ := d.dump(base, full)
	return fields
}

func (d *Description) dump(base unsafe.Pointer, full bool) ([]DumpField, int64) {
	if d.PreSave != nil {
		d.PreSave(base)
	}

	var (
		out     = make([]DumpField, 0, len(d.Fields))
		overall int64
	)

	for i := range d.Fields {
		f := &d.Fields[i]
		if f.Exists != nil && !f.Exists(base, d.VersionID) {
			continue
		}

		name := f.Name
		if f.Flags&Bitfield != 0 {
			name = f.BitName
		}

		size := int64(f.Size)
		if f.Flags&VarBuffer != 0 {
			size = int64(*(*int32)(unsafe.Add(base, f.SizeOff)))
			if f.Flags&Multiply != 0 {
				size *= int64(f.Size)
			}
		}

		nElems, isArray := 1, true
		switch f.Count {
		case FixedArray:
			nElems = f.Num

		case VarArrayInt32:
			nElems = int(*(*int32)(unsafe.Add(base, f.NumOff)))

		case VarArrayUint16:
			nElems = int(*(*uint16)(unsafe.Add(base, f.NumOff)))

		default:
			isArray = false
		}

		addr := unsafe.Add(base, f.Offset)
		if f.Flags&Pointer != 0 {
			addr = unsafe.Add(*(*unsafe.Pointer)(addr), f.Start)
		}

		var (
			elems    = make([]any, 0, nElems)
			realSize int64
		)

		for n := 0; n < nElems; n++ {
			ea := unsafe.Add(addr, uintptr(size)*uintptr(n))
			if f.Flags&ArrayOfPointer != 0 {
				ea = *(*unsafe.Pointer)(ea)
			}

			sub := &elems
			if isArray {
				sub = new([]any)
			}

			switch {
			case f.Flags&Struct != 0:
				nested, sz := f.Sub.dump(ea, full)
				realSize = sz
				for _, df := range nested {
					*sub = append(*sub, df)
				}

			case f.Flags&(Buffer|VarBuffer) != 0:
				realSize = size
				n := size
				if !full && n > 16 {
					n = 16
				}

				buf := make([]byte, n)
				copy(buf, unsafe.Slice((*byte)(ea), n))
				*sub = append(*sub, buf)

			case f.Flags&Queue != 0:
				realSize = size
				*sub = append(*sub, f.PrintQueue(ea))

			default:
				realSize = size
				var val uint64
				switch size {
				case 1:
					val = uint64(*(*uint8)(ea))
				case 2:
					val = uint64(*(*uint16)(ea))
				case 4:
					val = uint64(*(*uint32)(ea))
				case 8:
					val = *(*uint64)(ea)
				default:
					panic(fmt.Sprintf("vmstate: %s: bad element size %d", name, size))
				}

				if f.Flags&Bitfield != 0 {
					val &= f.BitMask
					if val != 0 {
						val = 1
					}
				}

				*sub = append(*sub, val)
			}

			if isArray {
				elems = append(elems, *sub)
			}

			overall += realSize
		}

		out = append(out, DumpField{
			Name:  name,
			Start: f.StartIndex,
			Size:  realSize,
			Elems: elems,
		})
	}

	return out, overall
}
