package tile

import (
	"errors"
	"testing"
)

func TestInitImageLayoutBlockLinear(t *testing.T) {
	tests := []struct {
		name     string
		desc     LayoutDesc
		wantTile TileSize
		wantSize uint32
		wantAlgn uint32
	}{
		{
			name:     "small auto tile clamps to two gobs",
			desc:     LayoutDesc{Type: Image2D, Format: FormatRGBA8Unorm, Width: 16, Height: 4},
			wantTile: TileTwoGobs,
			wantSize: 64 * 16,
			wantAlgn: 1024,
		},
		{
			name: "custom one gob",
			desc: LayoutDesc{Type: Image2D, Format: FormatRGBA8Unorm, Width: 16, Height: 4,
				Flags: ImageCustomTileSize, TileSize: TileOneGob},
			wantTile: TileOneGob,
			wantSize: 64 * 8,
			wantAlgn: 512,
		},
		{
			name:     "tall image uses sixteen gobs",
			desc:     LayoutDesc{Type: Image2D, Format: FormatR8Unorm, Width: 100, Height: 1000},
			wantTile: TileSixteenGobs,
			wantSize: 128 * 1024,
			wantAlgn: 512 * 16,
		},
		{
			name:     "64 rows fit eight gobs",
			desc:     LayoutDesc{Type: Image2D, Format: FormatRGBA8Unorm, Width: 16, Height: 64},
			wantTile: TileEightGobs,
			wantSize: 64 * 64,
			wantAlgn: 512 * 8,
		},
		{
			name:     "1D forces one row",
			desc:     LayoutDesc{Type: Image1D, Format: FormatR32Float, Width: 32, Height: 7, Depth: 3},
			wantTile: TileTwoGobs,
			wantSize: 128 * 16,
			wantAlgn: 1024,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := InitImageLayout(tt.desc)
			if err != nil {
				t.Fatalf("InitImageLayout: %v", err)
			}
			if l.TileSize != tt.wantTile {
				t.Errorf("TileSize = %d, want %d", l.TileSize, tt.wantTile)
			}
			if l.Size != tt.wantSize {
				t.Errorf("Size = %d, want %d", l.Size, tt.wantSize)
			}
			if l.Alignment != tt.wantAlgn {
				t.Errorf("Alignment = %d, want %d", l.Alignment, tt.wantAlgn)
			}
		})
	}
}

func TestInitImageLayout3DDepth(t *testing.T) {
	l, err := InitImageLayout(LayoutDesc{Type: Image3D, Format: FormatRGBA8Unorm, Width: 16, Height: 16, Depth: 4})
	if err != nil {
		t.Fatal(err)
	}
	if l.Depth != 4 {
		t.Errorf("Depth = %d, want 4", l.Depth)
	}
	if l.Size != 64*16*4 {
		t.Errorf("Size = %d, want %d", l.Size, 64*16*4)
	}
}

func TestInitImageLayoutPitchLinear(t *testing.T) {
	l, err := InitImageLayout(LayoutDesc{
		Type: Image2D, Format: FormatR8Unorm, Flags: ImagePitchLinear,
		Width: 100, Height: 10, PitchStride: 128,
	})
	if err != nil {
		t.Fatal(err)
	}
	if l.RowPitch != 128 || l.Size != 1280 || l.Alignment != 32 {
		t.Errorf("got pitch %d size %d align %d", l.RowPitch, l.Size, l.Alignment)
	}

	bad := []LayoutDesc{
		{Type: Image2D, Format: FormatR8Unorm, Flags: ImagePitchLinear, Width: 100, Height: 1, PitchStride: 64},
		{Type: Image2D, Format: FormatR8Unorm, Flags: ImagePitchLinear, Width: 10, Height: 1, PitchStride: 48},
		{Type: Image3D, Format: FormatR8Unorm, Flags: ImagePitchLinear, Width: 10, Height: 1, PitchStride: 64},
	}
	for i, d := range bad {
		if _, err := InitImageLayout(d); !errors.Is(err, ErrInvalidLayout) {
			t.Errorf("case %d: err = %v, want ErrInvalidLayout", i, err)
		}
	}
}

func TestInitImageLayoutRejects(t *testing.T) {
	if _, err := InitImageLayout(LayoutDesc{Type: Image2D, Format: FormatNone, Width: 1, Height: 1}); !errors.Is(err, ErrInvalidLayout) {
		t.Errorf("FormatNone: err = %v", err)
	}
	if _, err := InitImageLayout(LayoutDesc{Type: 9, Format: FormatR8Unorm, Width: 1, Height: 1}); !errors.Is(err, ErrInvalidLayout) {
		t.Errorf("bad type: err = %v", err)
	}
}

func TestImageFormatBytes(t *testing.T) {
	if FormatRGB32Float.BytesPerPixel() != 12 {
		t.Errorf("RGB32_Float bpp = %d", FormatRGB32Float.BytesPerPixel())
	}
	if FormatBGRX8Unorm.String() != "BGRX8_Unorm" {
		t.Errorf("String = %q", FormatBGRX8Unorm.String())
	}
	if ImageFormat(200).BytesPerPixel() != 0 {
		t.Error("unknown format should have 0 bpp")
	}
}

func TestAlignUp(t *testing.T) {
	if AlignUp(uint32(1), 0x1000) != 0x1000 {
		t.Error("AlignUp(1, 0x1000)")
	}
	if AlignUp(uint64(0x2000), 0x1000) != 0x2000 {
		t.Error("AlignUp(0x2000, 0x1000)")
	}
	if AlignUp(0, 64) != 0 {
		t.Error("AlignUp(0, 64)")
	}
}
