// Package bootargs reads and writes the tagged boot-argument stream handed
// to the kernel by the loader.
//
// The stream is a sequence of variable-length records. Each record starts
// with an 8-byte header: a 4-byte ASCII tag name followed by a 4-byte payload
// size in bytes (always a multiple of the machine word size). The payload
// follows immediately.
//
// Three tags matter to the kernel:
//
//	XArg — the primary RAM descriptor. Must be the first tag.
//	MREx — zero or more extra ownable physical regions.
//	Init — one {satp, entry point, stack pointer} triple per initial
//	       process image, the kernel first.
package bootargs

import (
	"encoding/binary"
	"log"
)

// Tag names as little-endian 4CC values.
var (
	TagXArg = FourCC("XArg")
	TagMREx = FourCC("MREx")
	TagInit = FourCC("Init")
)

// FourCC packs a 4-character ASCII name into its on-disk word value.
func FourCC(name string) uint32 {
	if len(name) != 4 {
		log.Panicf("tag name %q is not 4 bytes", name)
	}

	return binary.LittleEndian.Uint32([]byte(name))
}

// A Tag is one raw record of the boot argument stream.
type Tag struct {
	Name uint32
	Data []byte
}

// NameString returns the ASCII form of the tag name.
func (t Tag) NameString() string {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, t.Name)

	return string(b)
}

func (t Tag) word(i int) uint32 {
	return binary.LittleEndian.Uint32(t.Data[i*4:])
}

// Read splits a boot argument stream into its tags. A malformed stream is a
// loader bug, not an environmental condition, so Read panics instead of
// returning an error.
func Read(data []byte) []Tag {
	var tags []Tag

	for off := 0; off < len(data); {
		if len(data)-off < 8 {
			log.Panicf("boot args truncated at offset %d", off)
		}

		name := binary.LittleEndian.Uint32(data[off:])
		size := binary.LittleEndian.Uint32(data[off+4:])
		off += 8

		if size%4 != 0 || int(size) > len(data)-off {
			log.Panicf("boot args tag %08x at offset %d has bad size %d",
				name, off-8, size)
		}

		tags = append(tags, Tag{Name: name, Data: data[off : off+int(size)]})
		off += int(size)
	}

	return tags
}

// RAMDescriptor is the payload of the XArg tag.
type RAMDescriptor struct {
	Version uint32
	Start   uint32
	Size    uint32
	Name    uint32
}

// ParseRAM decodes an XArg tag. Panics if the tag is not an XArg record of
// the expected shape.
func ParseRAM(t Tag) RAMDescriptor {
	if t.Name != TagXArg || len(t.Data) < 16 {
		log.Panicf("tag %s (%d bytes) is not a RAM descriptor",
			t.NameString(), len(t.Data))
	}

	return RAMDescriptor{
		Version: t.word(0),
		Start:   t.word(1),
		Size:    t.word(2),
		Name:    t.word(3),
	}
}

// Region is one extra-region record of an MREx tag.
type Region struct {
	Start uint32
	Size  uint32
	Name  uint32
}

// ParseExtraRegions decodes an MREx tag into its region records.
func ParseExtraRegions(t Tag) []Region {
	if t.Name != TagMREx || len(t.Data)%16 != 0 {
		log.Panicf("tag %s (%d bytes) is not an extra-region list",
			t.NameString(), len(t.Data))
	}

	regions := make([]Region, 0, len(t.Data)/16)
	for i := 0; i < len(t.Data)/16; i++ {
		// The fourth word of each record is padding.
		regions = append(regions, Region{
			Start: t.word(i*4 + 0),
			Size:  t.word(i*4 + 1),
			Name:  t.word(i*4 + 2),
		})
	}

	return regions
}

// InitProgram describes one initial process image.
type InitProgram struct {
	Satp  uint32
	Entry uint32
	SP    uint32
}

// ParseInitPrograms decodes an Init tag into its program records.
func ParseInitPrograms(t Tag) []InitProgram {
	if t.Name != TagInit || len(t.Data)%12 != 0 {
		log.Panicf("tag %s (%d bytes) is not an init-program list",
			t.NameString(), len(t.Data))
	}

	programs := make([]InitProgram, 0, len(t.Data)/12)
	for i := 0; i < len(t.Data)/12; i++ {
		programs = append(programs, InitProgram{
			Satp:  t.word(i*3 + 0),
			Entry: t.word(i*3 + 1),
			SP:    t.word(i*3 + 2),
		})
	}

	return programs
}
