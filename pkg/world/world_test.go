package world

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sync"
	"testing"

	"github.com/klauspost/compress/zlib"
)

func TestSingleValueColumnRoundTrip(t *testing.T) {
	p := DefaultProfile()
	w := NewWorld(p, nil)

	if err := w.LoadColumn(0, 0, uniformColumn(p, 1, 1)); err != nil {
		t.Fatalf("LoadColumn: %v", err)
	}

	if got := w.GetBlockStateID(5, 65, 5); got != 1 {
		t.Errorf("GetBlockStateID(5,65,5) = %d, want 1", got)
	}
	if got := w.GetBiomeID(5, 65, 5); got != 1 {
		t.Errorf("GetBiomeID(5,65,5) = %d, want 1", got)
	}

	if err := w.SetBlockStateID(5, 65, 5, 0); err != nil {
		t.Fatalf("SetBlockStateID: %v", err)
	}
	if got := w.GetBlockStateID(5, 65, 5); got != 0 {
		t.Errorf("GetBlockStateID after break = %d, want 0", got)
	}

	w.UnloadColumn(0, 0)
	if got := w.GetBlock(5, 65, 5); got != nil {
		t.Errorf("GetBlock after unload = %+v, want nil", got)
	}
}

func TestSetBlockReadBack(t *testing.T) {
	p := DefaultProfile()
	w := NewWorld(p, nil)
	if err := w.LoadColumn(0, 0, airColumn(p)); err != nil {
		t.Fatalf("LoadColumn: %v", err)
	}

	coords := []BlockPos{
		{0, -64, 0},   // bottom of the world
		{15, 319, 15}, // top of the world
		{3, 0, 7},
		{8, 64, 8},
	}
	for i, pos := range coords {
		id := uint32(i + 1)
		if err := w.SetBlockStateID(pos.X, pos.Y, pos.Z, id); err != nil {
			t.Fatalf("SetBlockStateID(%+v): %v", pos, err)
		}
		if got := w.GetBlockStateID(pos.X, pos.Y, pos.Z); got != id {
			t.Errorf("GetBlockStateID(%+v) = %d, want %d", pos, got, id)
		}
	}
}

func TestPaletteGrowthThroughWorld(t *testing.T) {
	p := DefaultProfile()
	w := NewWorld(p, nil)
	if err := w.LoadColumn(0, 0, airColumn(p)); err != nil {
		t.Fatalf("LoadColumn: %v", err)
	}

	for k := uint32(1); k <= 20; k++ {
		x := int32((k - 1) % 16)
		z := int32((k - 1) / 16)
		if err := w.SetBlockStateID(x, 0, z, k); err != nil {
			t.Fatalf("SetBlockStateID(k=%d): %v", k, err)
		}
	}
	for k := uint32(1); k <= 20; k++ {
		x := int32((k - 1) % 16)
		z := int32((k - 1) / 16)
		if got := w.GetBlockStateID(x, 0, z); got != k {
			t.Errorf("GetBlockStateID(k=%d) = %d, want %d", k, got, k)
		}
	}

	col := w.column(0, 0)
	sy, _ := p.sectionIndex(0)
	blocks := col.sections[sy].Blocks()
	if blocks.BitsPerEntry() != 5 {
		t.Errorf("BitsPerEntry() = %d, want 5", blocks.BitsPerEntry())
	}
	if blocks.PaletteLen() != 21 {
		t.Errorf("PaletteLen() = %d, want 21 (20 states + air)", blocks.PaletteLen())
	}
}

func TestWriteErrors(t *testing.T) {
	p := DefaultProfile()
	w := NewWorld(p, nil)
	if err := w.LoadColumn(0, 0, airColumn(p)); err != nil {
		t.Fatalf("LoadColumn: %v", err)
	}

	if err := w.SetBlockStateID(100, 0, 0, 1); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("write to unloaded column: %v, want ErrNotLoaded", err)
	}
	if err := w.SetBlockStateID(0, -65, 0, 1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("write below the world: %v, want ErrOutOfRange", err)
	}
	if err := w.SetBlockStateID(0, 320, 0, 1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("write above the world: %v, want ErrOutOfRange", err)
	}
}

func TestReadDefaults(t *testing.T) {
	p := DefaultProfile()
	w := NewWorld(p, nil)

	// Nothing loaded: every read degrades.
	if got := w.GetBlockStateID(0, 0, 0); got != 0 {
		t.Errorf("GetBlockStateID = %d, want 0", got)
	}
	if got := w.GetSkyLight(0, 0, 0); got != 15 {
		t.Errorf("GetSkyLight = %d, want 15", got)
	}
	if got := w.GetBlockLight(0, 0, 0); got != 0 {
		t.Errorf("GetBlockLight = %d, want 0", got)
	}
	if got := w.GetBlock(0, 0, 0); got != nil {
		t.Errorf("GetBlock = %+v, want nil", got)
	}

	if err := w.LoadColumn(0, 0, airColumn(p)); err != nil {
		t.Fatalf("LoadColumn: %v", err)
	}

	// Loaded but all-air: defaults with a BlockInfo present.
	info := w.GetBlock(3, 70, 3)
	if info == nil {
		t.Fatal("GetBlock on loaded column = nil")
	}
	want := BlockInfo{StateID: 0, BlockLight: 0, SkyLight: 15, BiomeID: 0}
	if *info != want {
		t.Errorf("GetBlock = %+v, want %+v", *info, want)
	}

	// Y outside the vertical range reads as air.
	if got := w.GetBlockStateID(0, 1000, 0); got != 0 {
		t.Errorf("GetBlockStateID above the world = %d, want 0", got)
	}
}

func TestUnloadIdempotent(t *testing.T) {
	w := NewWorld(DefaultProfile(), nil)
	w.UnloadColumn(10, 10)
	w.UnloadColumn(10, 10)
	if got := w.GetBlockStateID(160, 0, 160); got != 0 {
		t.Errorf("GetBlockStateID(160,0,160) = %d, want 0", got)
	}
}

func TestExportRoundTrip(t *testing.T) {
	p := DefaultProfile()
	w := NewWorld(p, nil)
	if err := w.LoadColumn(0, 0, airColumn(p)); err != nil {
		t.Fatalf("LoadColumn: %v", err)
	}

	for x := int32(0); x < 16; x++ {
		for z := int32(0); z < 16; z++ {
			if err := w.SetBlockStateID(x, 0, z, uint32(x*16+z+1)); err != nil {
				t.Fatalf("SetBlockStateID: %v", err)
			}
		}
	}

	sy, _ := p.sectionIndex(0)
	first, err := w.ExportSectionStates(0, 0, sy)
	if err != nil {
		t.Fatalf("ExportSectionStates: %v", err)
	}
	if len(first) != sectionVolume*4 {
		t.Fatalf("export length = %d, want %d", len(first), sectionVolume*4)
	}

	// Writing every exported state back must reproduce the same bytes.
	baseY := p.MinY + int32(sy)*16
	for i := 0; i < sectionVolume; i++ {
		id := binary.LittleEndian.Uint32(first[i*4:])
		lx := int32(i % 16)
		lz := int32(i / 16 % 16)
		ly := int32(i / 256)
		if err := w.SetBlockStateID(lx, baseY+ly, lz, id); err != nil {
			t.Fatalf("SetBlockStateID: %v", err)
		}
	}
	second, err := w.ExportSectionStates(0, 0, sy)
	if err != nil {
		t.Fatalf("ExportSectionStates: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("export changed after writing exported states back")
	}
}

func TestExportEdgeCases(t *testing.T) {
	p := DefaultProfile()
	w := NewWorld(p, nil)

	if _, err := w.ExportSectionStates(0, 0, -1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("negative section: %v, want ErrOutOfRange", err)
	}

	data, err := w.ExportSectionStates(0, 0, 0)
	if err != nil || data != nil {
		t.Errorf("unloaded column export = %v, %v, want nil, nil", data, err)
	}

	if err := w.LoadColumn(0, 0, airColumn(p)); err != nil {
		t.Fatalf("LoadColumn: %v", err)
	}
	data, err = w.ExportSectionStates(0, 0, 3)
	if err != nil || data != nil {
		t.Errorf("absent section export = %v, %v, want nil, nil", data, err)
	}
	data, err = w.ExportSectionStates(0, 0, p.SectionCount)
	if err != nil || data != nil {
		t.Errorf("past-the-top export = %v, %v, want nil, nil", data, err)
	}
}

func TestLoadColumnReplacesAndPreservesOnError(t *testing.T) {
	p := DefaultProfile()
	w := NewWorld(p, nil)

	if err := w.LoadColumn(0, 0, uniformColumn(p, 7, 1)); err != nil {
		t.Fatalf("LoadColumn: %v", err)
	}

	// A malformed buffer must not disturb the loaded column.
	bad := uniformColumn(p, 9, 1)
	bad = bad[:10]
	var pe *ParseError
	if err := w.LoadColumn(0, 0, bad); !errors.As(err, &pe) {
		t.Fatalf("LoadColumn(bad) = %v, want *ParseError", err)
	}
	if got := w.GetBlockStateID(1, 0, 1); got != 7 {
		t.Errorf("GetBlockStateID after failed reload = %d, want 7", got)
	}

	// A valid reload replaces wholesale.
	if err := w.LoadColumn(0, 0, uniformColumn(p, 9, 1)); err != nil {
		t.Fatalf("LoadColumn(reload): %v", err)
	}
	if got := w.GetBlockStateID(1, 0, 1); got != 9 {
		t.Errorf("GetBlockStateID after reload = %d, want 9", got)
	}
}

func TestLoadColumnZlib(t *testing.T) {
	p := DefaultProfile()
	w := NewWorld(p, nil)

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(uniformColumn(p, 4, 2)); err != nil {
		t.Fatalf("compress payload: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close compressor: %v", err)
	}

	if err := w.LoadColumnZlib(3, -2, buf.Bytes()); err != nil {
		t.Fatalf("LoadColumnZlib: %v", err)
	}
	if got := w.GetBlockStateID(3*16+1, 0, -2*16+1); got != 4 {
		t.Errorf("GetBlockStateID = %d, want 4", got)
	}

	if err := w.LoadColumnZlib(0, 0, []byte{0x00, 0x01}); err == nil {
		t.Error("LoadColumnZlib on garbage should fail")
	}
}

func TestLoadedChunksSnapshot(t *testing.T) {
	p := DefaultProfile()
	w := NewWorld(p, nil)

	want := map[ChunkPos]bool{{0, 0}: true, {1, 0}: true, {-3, 7}: true}
	for pos := range want {
		if err := w.LoadColumn(pos.X, pos.Z, airColumn(p)); err != nil {
			t.Fatalf("LoadColumn(%+v): %v", pos, err)
		}
	}

	got := w.LoadedChunks()
	if len(got) != len(want) {
		t.Fatalf("LoadedChunks() returned %d entries, want %d", len(got), len(want))
	}
	for _, pos := range got {
		if !want[pos] {
			t.Errorf("LoadedChunks() contains unexpected %+v", pos)
		}
	}
}

func TestApplyBlockUpdates(t *testing.T) {
	p := DefaultProfile()
	w := NewWorld(p, nil)
	if err := w.LoadColumn(0, 0, airColumn(p)); err != nil {
		t.Fatalf("LoadColumn: %v", err)
	}
	if err := w.LoadColumn(1, 0, airColumn(p)); err != nil {
		t.Fatalf("LoadColumn: %v", err)
	}

	updates := []BlockUpdate{
		{X: 1, Y: 64, Z: 1, StateID: 5},
		{X: 2, Y: 64, Z: 1, StateID: 6},
		{X: 17, Y: -64, Z: 3, StateID: 7}, // second column
	}
	if err := w.ApplyBlockUpdates(updates); err != nil {
		t.Fatalf("ApplyBlockUpdates: %v", err)
	}
	for _, u := range updates {
		if got := w.GetBlockStateID(u.X, u.Y, u.Z); got != u.StateID {
			t.Errorf("GetBlockStateID(%d,%d,%d) = %d, want %d", u.X, u.Y, u.Z, got, u.StateID)
		}
	}

	if err := w.ApplyBlockUpdates([]BlockUpdate{{X: 200, Y: 0, Z: 0, StateID: 1}}); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("update in unloaded column: %v, want ErrNotLoaded", err)
	}

	// An out-of-range Y rejects the whole batch for that column.
	bad := []BlockUpdate{
		{X: 5, Y: 64, Z: 5, StateID: 9},
		{X: 5, Y: 1000, Z: 5, StateID: 9},
	}
	if err := w.ApplyBlockUpdates(bad); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("out-of-range batch: %v, want ErrOutOfRange", err)
	}
	if got := w.GetBlockStateID(5, 64, 5); got != 0 {
		t.Errorf("GetBlockStateID(5,64,5) = %d, want 0 (batch rolled back)", got)
	}
}

func TestSetSectionLight(t *testing.T) {
	p := DefaultProfile()
	w := NewWorld(p, nil)
	if err := w.LoadColumn(0, 0, airColumn(p)); err != nil {
		t.Fatalf("LoadColumn: %v", err)
	}

	blockLight := make([]byte, lightBytes)
	skyLight := make([]byte, lightBytes)
	setNibble(blockLight, blockIndex(1, 2, 3), 11)
	setNibble(skyLight, blockIndex(1, 2, 3), 4)

	sy, _ := p.sectionIndex(64)
	if err := w.SetSectionLight(0, 0, sy, blockLight, skyLight); err != nil {
		t.Fatalf("SetSectionLight: %v", err)
	}

	if got := w.GetBlockLight(1, 64+2, 3); got != 11 {
		t.Errorf("GetBlockLight = %d, want 11", got)
	}
	if got := w.GetSkyLight(1, 64+2, 3); got != 4 {
		t.Errorf("GetSkyLight = %d, want 4", got)
	}
	// Neighboring nibble untouched.
	if got := w.GetSkyLight(2, 64+2, 3); got != 0 {
		t.Errorf("GetSkyLight neighbor = %d, want 0", got)
	}

	if err := w.SetSectionLight(0, 0, sy, make([]byte, 100), nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("short light array: %v, want ErrInvalidArgument", err)
	}
	if err := w.SetSectionLight(5, 5, 0, blockLight, nil); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("light for unloaded column: %v, want ErrNotLoaded", err)
	}
}

func TestSectionMask(t *testing.T) {
	p := DefaultProfile()
	w := NewWorld(p, nil)

	if mask := w.SectionMask(0, 0); mask != nil {
		t.Errorf("SectionMask on unloaded column = %v, want nil", mask)
	}

	if err := w.LoadColumn(0, 0, airColumn(p)); err != nil {
		t.Fatalf("LoadColumn: %v", err)
	}
	if got := w.SectionMask(0, 0).Count(); got != 0 {
		t.Errorf("air column mask count = %d, want 0", got)
	}

	if err := w.SetBlockStateID(0, 0, 0, 1); err != nil {
		t.Fatalf("SetBlockStateID: %v", err)
	}
	mask := w.SectionMask(0, 0)
	if got := mask.Count(); got != 1 {
		t.Errorf("mask count = %d, want 1", got)
	}
	sy, _ := p.sectionIndex(0)
	if !mask.Test(uint(sy)) {
		t.Errorf("mask bit %d not set", sy)
	}
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	p := DefaultProfile()
	w := NewWorld(p, nil)
	if err := w.LoadColumn(0, 0, airColumn(p)); err != nil {
		t.Fatalf("LoadColumn: %v", err)
	}

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(2)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				y := int32(i%64) - 64
				if err := w.SetBlockStateID(int32(g), y, int32(g), uint32(i%50)); err != nil {
					t.Errorf("SetBlockStateID: %v", err)
					return
				}
			}
		}(g)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				_ = w.GetBlockStateID(int32(g), int32(i%64)-64, int32(g))
				_ = w.GetBlock(int32(g), 0, int32(g))
			}
		}(g)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			if err := w.LoadColumn(1, 1, airColumn(p)); err != nil {
				t.Errorf("LoadColumn: %v", err)
				return
			}
			w.UnloadColumn(1, 1)
			_ = w.LoadedChunks()
		}
	}()
	wg.Wait()
}
