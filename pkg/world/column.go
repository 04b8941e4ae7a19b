package world

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/willf/bitset"
)

// Column holds every section of one chunk column under its own
// readers-writer lock. Readers take shared access for the duration of a
// single query; writers take exclusive access.
type Column struct {
	CX, CZ int32

	mu       sync.RWMutex
	profile  *Profile
	sections []*Section
	mask     *bitset.BitSet // occupancy of non-nil sections
}

func newColumn(p *Profile, cx, cz int32, sections []*Section) *Column {
	c := &Column{
		CX:       cx,
		CZ:       cz,
		profile:  p,
		sections: sections,
		mask:     bitset.New(uint(p.SectionCount)),
	}
	for i, s := range sections {
		if s != nil {
			c.mask.Set(uint(i))
		}
	}
	return c
}

// StateID returns the block state at world coordinates, or 0 when the Y
// coordinate is out of range or the section is absent.
func (c *Column) StateID(x, y, z int32) uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sy, ok := c.profile.sectionIndex(y)
	if !ok || !c.mask.Test(uint(sy)) {
		return 0
	}
	return c.sections[sy].BlockStateID(x&0xF, y&0xF, z&0xF)
}

// SetStateID writes a block state at world coordinates. Writing a non-air
// state into an absent section materializes it; writing air into an absent
// section is a no-op.
func (c *Column) SetStateID(x, y, z int32, id uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sy, ok := c.profile.sectionIndex(y)
	if !ok {
		return fmt.Errorf("set state at y=%d: %w", y, ErrOutOfRange)
	}
	sec := c.sections[sy]
	if sec == nil {
		if id == 0 {
			return nil
		}
		sec = newAirSection(c.profile)
		c.sections[sy] = sec
		c.mask.Set(uint(sy))
	}
	sec.SetBlockStateID(x&0xF, y&0xF, z&0xF, id)
	return nil
}

// BiomeID returns the biome at world coordinates, or 0 when out of range or
// absent.
func (c *Column) BiomeID(x, y, z int32) uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sy, ok := c.profile.sectionIndex(y)
	if !ok || !c.mask.Test(uint(sy)) {
		return 0
	}
	return c.sections[sy].BiomeID((x>>2)&0x3, (y>>2)&0x3, (z>>2)&0x3)
}

// SetBiomeID writes a biome at world coordinates, materializing the section
// when needed.
func (c *Column) SetBiomeID(x, y, z int32, id uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sy, ok := c.profile.sectionIndex(y)
	if !ok {
		return fmt.Errorf("set biome at y=%d: %w", y, ErrOutOfRange)
	}
	sec := c.sections[sy]
	if sec == nil {
		if id == 0 {
			return nil
		}
		sec = newAirSection(c.profile)
		c.sections[sy] = sec
		c.mask.Set(uint(sy))
	}
	sec.SetBiomeID((x>>2)&0x3, (y>>2)&0x3, (z>>2)&0x3, id)
	return nil
}

// BlockLight returns the block-light level at world coordinates, 0 when
// unknown.
func (c *Column) BlockLight(x, y, z int32) uint8 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sy, ok := c.profile.sectionIndex(y)
	if !ok || !c.mask.Test(uint(sy)) {
		return defaultBlockLight
	}
	return c.sections[sy].BlockLight(x&0xF, y&0xF, z&0xF)
}

// SkyLight returns the sky-light level at world coordinates, 15 when
// unknown.
func (c *Column) SkyLight(x, y, z int32) uint8 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sy, ok := c.profile.sectionIndex(y)
	if !ok || !c.mask.Test(uint(sy)) {
		return defaultSkyLight
	}
	return c.sections[sy].SkyLight(x&0xF, y&0xF, z&0xF)
}

// blockInfo gathers state, light, and biome in one shared-lock pass.
func (c *Column) blockInfo(x, y, z int32) BlockInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info := BlockInfo{SkyLight: defaultSkyLight}
	sy, ok := c.profile.sectionIndex(y)
	if !ok || !c.mask.Test(uint(sy)) {
		return info
	}
	sec := c.sections[sy]
	lx, ly, lz := x&0xF, y&0xF, z&0xF
	info.StateID = sec.BlockStateID(lx, ly, lz)
	info.BlockLight = sec.BlockLight(lx, ly, lz)
	info.SkyLight = sec.SkyLight(lx, ly, lz)
	info.BiomeID = sec.BiomeID((x>>2)&0x3, (y>>2)&0x3, (z>>2)&0x3)
	return info
}

// ExportSection serializes one section's 4096 block states as little-endian
// uint32 values, or nil when the section is absent or sy is past the top.
func (c *Column) ExportSection(sy int) []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if sy >= c.profile.SectionCount || !c.mask.Test(uint(sy)) {
		return nil
	}
	out := make([]byte, sectionVolume*4)
	c.sections[sy].blocks.ForEach(func(i int, id uint32) {
		binary.LittleEndian.PutUint32(out[i*4:], id)
	})
	return out
}

// SectionMask returns a copy of the occupancy bitset: bit sy is set when
// section sy is materialized. Hosts use this to build chunk packet bitmasks.
func (c *Column) SectionMask() *bitset.BitSet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mask.Clone()
}

// setSectionLight installs light nibble arrays on a materialized section.
// A nil slice leaves the corresponding array unchanged.
func (c *Column) setSectionLight(sy int, blockLight, skyLight []byte) error {
	if blockLight != nil && len(blockLight) != lightBytes {
		return fmt.Errorf("block light length %d: %w", len(blockLight), ErrInvalidArgument)
	}
	if skyLight != nil && len(skyLight) != lightBytes {
		return fmt.Errorf("sky light length %d: %w", len(skyLight), ErrInvalidArgument)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if sy < 0 || sy >= c.profile.SectionCount {
		return fmt.Errorf("section %d: %w", sy, ErrOutOfRange)
	}
	sec := c.sections[sy]
	if sec == nil {
		sec = newAirSection(c.profile)
		c.sections[sy] = sec
		c.mask.Set(uint(sy))
	}
	if blockLight != nil {
		sec.blockLight = append([]byte(nil), blockLight...)
	}
	if skyLight != nil {
		sec.skyLight = append([]byte(nil), skyLight...)
	}
	return nil
}

// applyUpdates writes a batch of block updates under one exclusive lock.
// The batch is validated first so a bad Y leaves the column untouched.
func (c *Column) applyUpdates(updates []BlockUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, u := range updates {
		if _, ok := c.profile.sectionIndex(u.Y); !ok {
			return fmt.Errorf("update at y=%d: %w", u.Y, ErrOutOfRange)
		}
	}
	for _, u := range updates {
		sy, _ := c.profile.sectionIndex(u.Y)
		sec := c.sections[sy]
		if sec == nil {
			if u.StateID == 0 {
				continue
			}
			sec = newAirSection(c.profile)
			c.sections[sy] = sec
			c.mask.Set(uint(sy))
		}
		sec.SetBlockStateID(u.X&0xF, u.Y&0xF, u.Z&0xF, u.StateID)
	}
	return nil
}
