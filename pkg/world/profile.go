package world

// Profile holds the version-dependent dimensions of the world: the vertical
// range, and the palette widths for block states and biomes. Callers may
// adjust fields on the value returned by DefaultProfile before passing it to
// NewWorld.
type Profile struct {
	// MinY is the lowest block Y coordinate in the world.
	MinY int32
	// SectionCount is the number of 16-block sections in a column.
	SectionCount int

	// BlockBits is the width of a direct block entry: the number of bits
	// needed for the largest registered block state ID.
	BlockBits uint8
	// BiomeBits is the width of a direct biome entry.
	BiomeBits uint8

	// MinIndirectBlockBits and MaxIndirectBlockBits bound the indirect
	// palette range for block states. A container whose palette outgrows the
	// maximum converts to direct storage.
	MinIndirectBlockBits uint8
	MaxIndirectBlockBits uint8

	// MinIndirectBiomeBits and MaxIndirectBiomeBits bound the indirect
	// palette range for biomes.
	MinIndirectBiomeBits uint8
	MaxIndirectBiomeBits uint8
}

// DefaultProfile returns the profile for Minecraft 1.21.1: Y from -64 to 320,
// 24 sections, 15-bit direct block states, 6-bit direct biomes.
func DefaultProfile() *Profile {
	return &Profile{
		MinY:                 -64,
		SectionCount:         24,
		BlockBits:            15,
		BiomeBits:            6,
		MinIndirectBlockBits: 4,
		MaxIndirectBlockBits: 8,
		MinIndirectBiomeBits: 1,
		MaxIndirectBiomeBits: 3,
	}
}

// Height returns the total world height in blocks.
func (p *Profile) Height() int32 {
	return int32(p.SectionCount) * sectionHeight
}

// MaxY returns the exclusive upper bound of the block Y range.
func (p *Profile) MaxY() int32 {
	return p.MinY + p.Height()
}

// sectionIndex maps a world Y coordinate to a section index, reporting
// whether it is inside the vertical bounds.
func (p *Profile) sectionIndex(y int32) (int, bool) {
	idx := (y - p.MinY) >> 4
	if idx < 0 || idx >= int32(p.SectionCount) {
		return 0, false
	}
	return int(idx), true
}

func (p *Profile) blockLayout() containerLayout {
	return containerLayout{
		size:        sectionVolume,
		minIndirect: p.MinIndirectBlockBits,
		maxIndirect: p.MaxIndirectBlockBits,
		directBits:  p.BlockBits,
	}
}

func (p *Profile) biomeLayout() containerLayout {
	return containerLayout{
		size:        biomeVolume,
		minIndirect: p.MinIndirectBiomeBits,
		maxIndirect: p.MaxIndirectBiomeBits,
		directBits:  p.BiomeBits,
	}
}
