package world

import (
	"github.com/OCharnyshevich/voxel-world/internal/wire"
)

// ParseColumn decodes the section-array payload of a chunk data packet:
// SectionCount sections in ascending order, each a big-endian solid count
// followed by a block container and a biome container. Sections whose blocks
// and biomes are both single-value 0 come back as nil entries; an all-air
// section with a non-zero biome is kept. The error is always a *ParseError
// carrying the byte offset of the failure.
func ParseColumn(p *Profile, data []byte) ([]*Section, error) {
	r := wire.NewReader(data)
	sections := make([]*Section, p.SectionCount)

	for sy := range sections {
		if _, err := r.ReadI16(); err != nil {
			return nil, &ParseError{Offset: r.Offset(), Err: err}
		}

		blocks, err := parseContainer(r, p.blockLayout())
		if err != nil {
			return nil, err
		}
		biomes, err := parseContainer(r, p.biomeLayout())
		if err != nil {
			return nil, err
		}

		// All-air sections stay nil; reads are equivalent and memory is not.
		if blocks.mode == modeSingle && blocks.single == 0 &&
			biomes.mode == modeSingle && biomes.single == 0 {
			continue
		}

		sec := &Section{blocks: blocks, biomes: biomes}
		sec.recountSolid()
		sections[sy] = sec
	}

	return sections, nil
}

const maxWireBits = 32

func parseContainer(r *wire.Reader, layout containerLayout) (*PalettedContainer, error) {
	bpe, err := r.ReadU8()
	if err != nil {
		return nil, &ParseError{Offset: r.Offset(), Err: err}
	}
	if bpe > maxWireBits {
		return nil, parseErrorf(r.Offset(), "unsupported bits per entry %d", bpe)
	}

	if bpe == 0 {
		value, err := r.ReadVarInt()
		if err != nil {
			return nil, &ParseError{Offset: r.Offset(), Err: err}
		}
		dataLen, err := r.ReadVarInt()
		if err != nil {
			return nil, &ParseError{Offset: r.Offset(), Err: err}
		}
		if dataLen != 0 {
			return nil, parseErrorf(r.Offset(), "single-value palette with data length %d", dataLen)
		}
		return newSingleContainer(layout, value), nil
	}

	if bpe <= layout.maxIndirect {
		paletteLen, err := r.ReadVarInt()
		if err != nil {
			return nil, &ParseError{Offset: r.Offset(), Err: err}
		}
		if paletteLen == 0 || int(paletteLen) > layout.size {
			return nil, parseErrorf(r.Offset(), "indirect palette length %d", paletteLen)
		}
		palette := make([]uint32, paletteLen)
		for i := range palette {
			if palette[i], err = r.ReadVarInt(); err != nil {
				return nil, &ParseError{Offset: r.Offset(), Err: err}
			}
		}
		data, err := readPackedWords(r, layout.wordsFor(bpe))
		if err != nil {
			return nil, err
		}
		c := newIndirectContainer(layout, bpe, palette, data)
		// Indices past the palette would be a latent panic on every later
		// read; reject them here where the offset is still known.
		for i := 0; i < layout.size; i++ {
			if int(c.read(i)) >= len(palette) {
				return nil, parseErrorf(r.Offset(), "palette index %d out of range at entry %d", c.read(i), i)
			}
		}
		return c, nil
	}

	// Any width above the indirect maximum signals direct storage at the
	// profile's direct width.
	data, err := readPackedWords(r, layout.wordsFor(layout.directBits))
	if err != nil {
		return nil, err
	}
	return newDirectContainer(layout, data), nil
}

func readPackedWords(r *wire.Reader, want int) ([]uint64, error) {
	dataLen, err := r.ReadVarInt()
	if err != nil {
		return nil, &ParseError{Offset: r.Offset(), Err: err}
	}
	if int(dataLen) != want {
		return nil, parseErrorf(r.Offset(), "packed data length %d, want %d", dataLen, want)
	}
	data := make([]uint64, dataLen)
	for i := range data {
		if data[i], err = r.ReadU64(); err != nil {
			return nil, &ParseError{Offset: r.Offset(), Err: err}
		}
	}
	return data, nil
}
