package world

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/klauspost/compress/zlib"
	"github.com/willf/bitset"
)

// BlockPos is a block position in world space.
type BlockPos struct {
	X, Y, Z int32
}

// ChunkPos identifies a chunk column.
type ChunkPos struct {
	X, Z int32
}

// BlockInfo bundles everything known about one block position.
type BlockInfo struct {
	StateID    uint32
	BlockLight uint8
	SkyLight   uint8
	BiomeID    uint32
}

// BlockUpdate is one entry of a multi-block change. Y is absolute world Y;
// producers that receive section-relative Y must offset it before calling.
type BlockUpdate struct {
	X, Y, Z int32
	StateID uint32
}

// World is the in-memory store of loaded chunk columns. All methods are safe
// for concurrent use: the column map takes a readers-writer lock for lookup
// and insertion, and each column carries its own lock for its data.
type World struct {
	mu      sync.RWMutex
	columns map[ChunkPos]*Column
	profile Profile
	log     *slog.Logger
}

// NewWorld creates an empty world for the given profile. A nil profile uses
// DefaultProfile; a nil logger discards.
func NewWorld(p *Profile, log *slog.Logger) *World {
	if p == nil {
		p = DefaultProfile()
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &World{
		columns: make(map[ChunkPos]*Column),
		profile: *p,
		log:     log,
	}
}

// Profile returns the world's version profile.
func (w *World) Profile() Profile {
	return w.profile
}

// column returns the loaded column for chunk coordinates, or nil.
func (w *World) column(cx, cz int32) *Column {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.columns[ChunkPos{cx, cz}]
}

// columnAt routes world X/Z to the owning column.
func (w *World) columnAt(x, z int32) *Column {
	return w.column(x>>4, z>>4)
}

// LoadColumn parses a section-array payload and publishes it as the column
// at (cx, cz), replacing any previous column. Parsing happens outside every
// lock; on a parse error the prior column is untouched.
func (w *World) LoadColumn(cx, cz int32, data []byte) error {
	sections, err := ParseColumn(&w.profile, data)
	if err != nil {
		w.log.Warn("discard chunk column", "cx", cx, "cz", cz, "error", err)
		return err
	}
	col := newColumn(&w.profile, cx, cz, sections)

	w.mu.Lock()
	w.columns[ChunkPos{cx, cz}] = col
	w.mu.Unlock()

	w.log.Debug("loaded chunk column", "cx", cx, "cz", cz, "sections", col.mask.Count())
	return nil
}

// LoadColumnZlib inflates a zlib-wrapped payload and loads it.
func (w *World) LoadColumnZlib(cx, cz int32, compressed []byte) error {
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("open zlib payload: %w", err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return fmt.Errorf("inflate payload: %w", err)
	}
	return w.LoadColumn(cx, cz, data)
}

// UnloadColumn removes the column at (cx, cz). Unloading an absent column is
// a no-op.
func (w *World) UnloadColumn(cx, cz int32) {
	w.mu.Lock()
	_, ok := w.columns[ChunkPos{cx, cz}]
	delete(w.columns, ChunkPos{cx, cz})
	w.mu.Unlock()

	if ok {
		w.log.Debug("unloaded chunk column", "cx", cx, "cz", cz)
	}
}

// GetBlockStateID returns the block state at world coordinates, or 0 when
// the column or section is not loaded or Y is out of range.
func (w *World) GetBlockStateID(x, y, z int32) uint32 {
	col := w.columnAt(x, z)
	if col == nil {
		return 0
	}
	return col.StateID(x, y, z)
}

// SetBlockStateID writes a block state at world coordinates. The column must
// be loaded and Y inside the vertical bounds.
func (w *World) SetBlockStateID(x, y, z int32, id uint32) error {
	col := w.columnAt(x, z)
	if col == nil {
		return fmt.Errorf("set state at (%d,%d,%d): %w", x, y, z, ErrNotLoaded)
	}
	return col.SetStateID(x, y, z, id)
}

// GetBlock returns the full block info at world coordinates, or nil when the
// column is not loaded.
func (w *World) GetBlock(x, y, z int32) *BlockInfo {
	col := w.columnAt(x, z)
	if col == nil {
		return nil
	}
	info := col.blockInfo(x, y, z)
	return &info
}

// GetBlockLight returns the block-light level, 0 when unknown.
func (w *World) GetBlockLight(x, y, z int32) uint8 {
	col := w.columnAt(x, z)
	if col == nil {
		return defaultBlockLight
	}
	return col.BlockLight(x, y, z)
}

// GetSkyLight returns the sky-light level, 15 when unknown.
func (w *World) GetSkyLight(x, y, z int32) uint8 {
	col := w.columnAt(x, z)
	if col == nil {
		return defaultSkyLight
	}
	return col.SkyLight(x, y, z)
}

// GetBiomeID returns the biome at world coordinates, or 0 when not loaded.
func (w *World) GetBiomeID(x, y, z int32) uint32 {
	col := w.columnAt(x, z)
	if col == nil {
		return 0
	}
	return col.BiomeID(x, y, z)
}

// SetBiomeID writes a biome at world coordinates. The column must be loaded.
func (w *World) SetBiomeID(x, y, z int32, id uint32) error {
	col := w.columnAt(x, z)
	if col == nil {
		return fmt.Errorf("set biome at (%d,%d,%d): %w", x, y, z, ErrNotLoaded)
	}
	return col.SetBiomeID(x, y, z, id)
}

// ExportSectionStates serializes section sy of column (cx, cz) as 4096
// little-endian uint32 values. It returns nil for an unloaded column, an
// absent section, or sy past the top; a negative sy is an error.
func (w *World) ExportSectionStates(cx, cz int32, sy int) ([]byte, error) {
	if sy < 0 {
		return nil, fmt.Errorf("export section %d: %w", sy, ErrOutOfRange)
	}
	col := w.column(cx, cz)
	if col == nil {
		return nil, nil
	}
	return col.ExportSection(sy), nil
}

// SectionMask returns the occupancy bitset of column (cx, cz), or nil when
// the column is not loaded.
func (w *World) SectionMask(cx, cz int32) *bitset.BitSet {
	col := w.column(cx, cz)
	if col == nil {
		return nil
	}
	return col.SectionMask()
}

// LoadedChunks returns a snapshot of every loaded column position.
func (w *World) LoadedChunks() []ChunkPos {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]ChunkPos, 0, len(w.columns))
	for pos := range w.columns {
		out = append(out, pos)
	}
	return out
}

// ApplyBlockUpdates applies a multi-block change. Updates are grouped by
// column and each column's batch is applied under a single exclusive lock.
// Every targeted column must be loaded and every Y in range; a failing
// column is left untouched.
func (w *World) ApplyBlockUpdates(updates []BlockUpdate) error {
	groups := make(map[ChunkPos][]BlockUpdate)
	for _, u := range updates {
		pos := ChunkPos{u.X >> 4, u.Z >> 4}
		groups[pos] = append(groups[pos], u)
	}

	cols := make(map[ChunkPos]*Column, len(groups))
	for pos := range groups {
		col := w.column(pos.X, pos.Z)
		if col == nil {
			return fmt.Errorf("update column (%d,%d): %w", pos.X, pos.Z, ErrNotLoaded)
		}
		cols[pos] = col
	}

	for pos, batch := range groups {
		if err := cols[pos].applyUpdates(batch); err != nil {
			return err
		}
	}
	return nil
}

// SetSectionLight installs light data on section sy of column (cx, cz),
// materializing the section if needed. Each non-nil array must hold 2048
// bytes of packed nibbles.
func (w *World) SetSectionLight(cx, cz int32, sy int, blockLight, skyLight []byte) error {
	col := w.column(cx, cz)
	if col == nil {
		return fmt.Errorf("light for column (%d,%d): %w", cx, cz, ErrNotLoaded)
	}
	return col.setSectionLight(sy, blockLight, skyLight)
}
