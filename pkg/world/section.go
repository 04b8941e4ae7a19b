package world

const (
	sectionWidth  = 16
	sectionHeight = 16
	sectionVolume = sectionWidth * sectionWidth * sectionHeight // 4096 blocks

	biomeWidth  = 4
	biomeVolume = biomeWidth * biomeWidth * biomeWidth // 64 biome cells

	lightBytes = sectionVolume / 2 // 2048 bytes: 4096 nibbles

	defaultSkyLight   = 15
	defaultBlockLight = 0
)

// blockIndex returns the linear index of local block coordinates, with x
// varying fastest.
func blockIndex(lx, ly, lz int32) int {
	return int((ly*sectionWidth+lz)*sectionWidth + lx)
}

// biomeIndex returns the linear index into the 4×4×4 biome grid.
func biomeIndex(bx, by, bz int32) int {
	return int((by*biomeWidth+bz)*biomeWidth + bx)
}

// Section is a 16×16×16 cube of block states plus a 4×4×4 biome grid and
// optional light nibble arrays. Its methods need a non-nil receiver; a Column
// reads an absent (nil) section as all air with default light.
type Section struct {
	blocks *PalettedContainer
	biomes *PalettedContainer

	// Light arrays hold 4096 packed nibbles each; nil until a light payload
	// is installed, in which case reads fall back to defaults.
	blockLight []byte
	skyLight   []byte

	// solidCount tracks the number of non-air block entries.
	solidCount int16
}

// newAirSection returns a section holding only air and biome 0, for
// materialization on first write.
func newAirSection(p *Profile) *Section {
	return &Section{
		blocks: newSingleContainer(p.blockLayout(), 0),
		biomes: newSingleContainer(p.biomeLayout(), 0),
	}
}

// BlockStateID returns the state at local coordinates.
func (s *Section) BlockStateID(lx, ly, lz int32) uint32 {
	return s.blocks.Get(blockIndex(lx, ly, lz))
}

// SetBlockStateID writes a state at local coordinates, keeping the solid
// block count in step, and returns the previous state.
func (s *Section) SetBlockStateID(lx, ly, lz int32, id uint32) uint32 {
	prev := s.blocks.Set(blockIndex(lx, ly, lz), id)
	if prev != 0 && id == 0 {
		s.solidCount--
	} else if prev == 0 && id != 0 {
		s.solidCount++
	}
	return prev
}

// BiomeID returns the biome at local biome-grid coordinates.
func (s *Section) BiomeID(bx, by, bz int32) uint32 {
	return s.biomes.Get(biomeIndex(bx, by, bz))
}

// SetBiomeID writes a biome at local biome-grid coordinates.
func (s *Section) SetBiomeID(bx, by, bz int32, id uint32) {
	s.biomes.Set(biomeIndex(bx, by, bz), id)
}

// BlockLight returns the block-light nibble for a local block index.
func (s *Section) BlockLight(lx, ly, lz int32) uint8 {
	if s.blockLight == nil {
		return defaultBlockLight
	}
	return getNibble(s.blockLight, blockIndex(lx, ly, lz))
}

// SkyLight returns the sky-light nibble for a local block index.
func (s *Section) SkyLight(lx, ly, lz int32) uint8 {
	if s.skyLight == nil {
		return defaultSkyLight
	}
	return getNibble(s.skyLight, blockIndex(lx, ly, lz))
}

// Blocks returns the section's block state container.
func (s *Section) Blocks() *PalettedContainer {
	return s.blocks
}

// Biomes returns the section's biome container.
func (s *Section) Biomes() *PalettedContainer {
	return s.biomes
}

// SolidCount returns the number of non-air entries.
func (s *Section) SolidCount() int16 {
	return s.solidCount
}

// recountSolid recomputes the solid block count from the container. Used
// after bulk loads where the payload's count is not trusted.
func (s *Section) recountSolid() {
	var n int16
	s.blocks.ForEach(func(_ int, id uint32) {
		if id != 0 {
			n++
		}
	})
	s.solidCount = n
}

func getNibble(arr []byte, i int) uint8 {
	b := arr[i>>1]
	if i&1 == 0 {
		return b & 0x0F
	}
	return (b >> 4) & 0x0F
}

func setNibble(arr []byte, i int, val uint8) {
	if i&1 == 0 {
		arr[i>>1] = arr[i>>1]&0xF0 | val&0x0F
	} else {
		arr[i>>1] = arr[i>>1]&0x0F | (val&0x0F)<<4
	}
}
