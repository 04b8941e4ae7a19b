package world

import "math/bits"

// Palette storage modes. A container starts as a single value, grows through
// indirect palettes of increasing width, and converts to direct storage once
// the palette outgrows the indirect range. The mode only ever moves forward.
type paletteMode uint8

const (
	modeSingle paletteMode = iota
	modeIndirect
	modeDirect
)

// containerLayout fixes the dimensions of a container: entry count and the
// palette width bounds for its content kind (block states or biomes).
type containerLayout struct {
	size        int
	minIndirect uint8
	maxIndirect uint8
	directBits  uint8
}

// wordsFor returns the packed long count for the layout at the given width.
// Entries never straddle word boundaries, so each 64-bit word holds
// floor(64/bpe) entries and the spare high bits stay zero.
func (l containerLayout) wordsFor(bpe uint8) int {
	perWord := 64 / int(bpe)
	return (l.size + perWord - 1) / perWord
}

// PalettedContainer is a bit-packed array of global IDs with a resizable
// palette. Writes may grow the entry width or drop the palette entirely;
// reads are O(1) in every mode.
type PalettedContainer struct {
	layout  containerLayout
	mode    paletteMode
	bits    uint8 // 0 while single-valued
	single  uint32
	palette []uint32
	data    []uint64
}

func newSingleContainer(layout containerLayout, value uint32) *PalettedContainer {
	return &PalettedContainer{layout: layout, mode: modeSingle, single: value}
}

func newIndirectContainer(layout containerLayout, bpe uint8, palette []uint32, data []uint64) *PalettedContainer {
	return &PalettedContainer{
		layout:  layout,
		mode:    modeIndirect,
		bits:    bpe,
		palette: palette,
		data:    data,
	}
}

func newDirectContainer(layout containerLayout, data []uint64) *PalettedContainer {
	return &PalettedContainer{
		layout: layout,
		mode:   modeDirect,
		bits:   layout.directBits,
		data:   data,
	}
}

// BitsPerEntry returns the current packed entry width; 0 means the container
// holds a single value.
func (c *PalettedContainer) BitsPerEntry() uint8 {
	return c.bits
}

// PaletteLen returns the palette length, or 0 for single-value and direct
// containers.
func (c *PalettedContainer) PaletteLen() int {
	return len(c.palette)
}

// Get returns the global ID stored at linear index i.
func (c *PalettedContainer) Get(i int) uint32 {
	switch c.mode {
	case modeSingle:
		return c.single
	case modeIndirect:
		return c.palette[c.read(i)]
	default:
		return c.read(i)
	}
}

// Set writes a global ID at linear index i and returns the previous ID,
// growing the palette and entry width as needed.
func (c *PalettedContainer) Set(i int, id uint32) uint32 {
	switch c.mode {
	case modeSingle:
		if id == c.single {
			return c.single
		}
		prev := c.single
		// Two distinct values: rebuild as the narrowest allowed indirect
		// palette with every entry pointing at the old value.
		c.bits = max(c.layout.minIndirect, 1)
		c.palette = []uint32{prev, id}
		c.data = make([]uint64, c.layout.wordsFor(c.bits))
		c.mode = modeIndirect
		c.write(i, 1)
		return prev

	case modeIndirect:
		prev := c.palette[c.read(i)]
		if idx, ok := c.paletteIndex(id); ok {
			c.write(i, idx)
			return prev
		}
		c.palette = append(c.palette, id)
		if len(c.palette) > 1<<c.bits {
			c.grow()
		}
		if c.mode == modeDirect {
			c.write(i, id)
		} else {
			c.write(i, uint32(len(c.palette)-1))
		}
		return prev

	default:
		prev := c.read(i)
		c.write(i, id)
		return prev
	}
}

// ForEach calls fn for every entry in linear index order.
func (c *PalettedContainer) ForEach(fn func(i int, id uint32)) {
	switch c.mode {
	case modeSingle:
		for i := 0; i < c.layout.size; i++ {
			fn(i, c.single)
		}
	case modeIndirect:
		for i := 0; i < c.layout.size; i++ {
			fn(i, c.palette[c.read(i)])
		}
	default:
		for i := 0; i < c.layout.size; i++ {
			fn(i, c.read(i))
		}
	}
}

func (c *PalettedContainer) paletteIndex(id uint32) (uint32, bool) {
	for i, v := range c.palette {
		if v == id {
			return uint32(i), true
		}
	}
	return 0, false
}

// grow repacks the container one step wider. While the required width stays
// inside the indirect range the palette is kept; beyond it the container
// converts to direct storage and the palette is dropped.
func (c *PalettedContainer) grow() {
	required := uint8(bits.Len(uint(len(c.palette) - 1)))
	if required < c.layout.minIndirect {
		required = c.layout.minIndirect
	}

	if required <= c.layout.maxIndirect {
		old := *c
		c.bits = required
		c.data = make([]uint64, c.layout.wordsFor(required))
		for i := 0; i < c.layout.size; i++ {
			c.write(i, old.read(i))
		}
		return
	}

	old := *c
	c.mode = modeDirect
	c.bits = c.layout.directBits
	c.data = make([]uint64, c.layout.wordsFor(c.bits))
	for i := 0; i < c.layout.size; i++ {
		c.write(i, old.palette[old.read(i)])
	}
	c.palette = nil
}

func (c *PalettedContainer) read(i int) uint32 {
	perWord := 64 / int(c.bits)
	word := c.data[i/perWord]
	shift := uint(i%perWord) * uint(c.bits)
	mask := uint64(1)<<c.bits - 1
	return uint32((word >> shift) & mask)
}

func (c *PalettedContainer) write(i int, v uint32) {
	perWord := 64 / int(c.bits)
	shift := uint(i%perWord) * uint(c.bits)
	mask := uint64(1)<<c.bits - 1
	word := &c.data[i/perWord]
	*word = *word&^(mask<<shift) | (uint64(v)&mask)<<shift
}
