package bootargs

import (
	"bytes"
	"encoding/binary"
)

// An ImageBuilder assembles a boot argument stream. It is used by the image
// tooling and by tests; the kernel itself only ever reads streams.
type ImageBuilder struct {
	buf bytes.Buffer
}

// MakeImageBuilder creates an empty ImageBuilder.
func MakeImageBuilder() *ImageBuilder {
	return &ImageBuilder{}
}

func (b *ImageBuilder) tag(name uint32, words []uint32) *ImageBuilder {
	b.putWord(name)
	b.putWord(uint32(len(words) * 4))
	for _, w := range words {
		b.putWord(w)
	}

	return b
}

func (b *ImageBuilder) putWord(w uint32) {
	var raw [4]byte
	binary.LittleEndian.PutUint32(raw[:], w)
	b.buf.Write(raw[:])
}

// WithRAM appends the XArg primary RAM descriptor.
func (b *ImageBuilder) WithRAM(start, size uint32, name string) *ImageBuilder {
	return b.tag(TagXArg, []uint32{1, start, size, FourCC(name)})
}

// WithExtraRegions appends an MREx tag holding the given regions.
func (b *ImageBuilder) WithExtraRegions(regions []Region) *ImageBuilder {
	words := make([]uint32, 0, len(regions)*4)
	for _, r := range regions {
		words = append(words, r.Start, r.Size, r.Name, 0)
	}

	return b.tag(TagMREx, words)
}

// WithInitPrograms appends an Init tag holding the given program images.
func (b *ImageBuilder) WithInitPrograms(programs []InitProgram) *ImageBuilder {
	words := make([]uint32, 0, len(programs)*3)
	for _, p := range programs {
		words = append(words, p.Satp, p.Entry, p.SP)
	}

	return b.tag(TagInit, words)
}

// Bytes returns the assembled stream.
func (b *ImageBuilder) Bytes() []byte {
	return b.buf.Bytes()
}
