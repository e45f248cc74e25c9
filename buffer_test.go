package tilera

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gogpu/tilera/internal/tile"
)

func TestCreateBufferMemoryFlags(t *testing.T) {
	ctx, _ := newTestContext(t)

	tests := []struct {
		typ        BufferType
		wantCached bool
		wantFlags  tile.MemFlags
	}{
		{BufferTexUpload, true, tile.MemCPUCached | tile.MemGPUUncached},
		{BufferUniform, false, tile.MemCPUUncached | tile.MemGPUCached},
		{BufferShaderStorage, false, tile.MemCPUUncached | tile.MemGPUCached},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			b, err := ctx.CreateBuffer(BufferParams{Type: tt.typ, Size: 100})
			if err != nil {
				t.Fatalf("CreateBuffer() error = %v", err)
			}
			defer b.Destroy()
			if b.cpuCached != tt.wantCached {
				t.Errorf("cpuCached = %v, want %v", b.cpuCached, tt.wantCached)
			}
			if got := b.mem.Flags(); got != tt.wantFlags {
				t.Errorf("memory flags = %s, want %s", got, tt.wantFlags)
			}
			if got := b.mem.Size(); got != tile.MemBlockAlignment {
				t.Errorf("memory size = %#x, want %#x", got, tile.MemBlockAlignment)
			}
		})
	}
}

func TestCreateBufferInvalidSize(t *testing.T) {
	ctx, _ := newTestContext(t)
	if _, err := ctx.CreateBuffer(BufferParams{Type: BufferUniform}); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("CreateBuffer(size 0) error = %v, want ErrOutOfRange", err)
	}
}

func TestBufferDataHostMapped(t *testing.T) {
	ctx, _ := newTestContext(t)
	data := []byte("hello, tile")

	mapped, err := ctx.CreateBuffer(BufferParams{Type: BufferShaderStorage, Size: 64, HostMapped: true, InitialData: data})
	if err != nil {
		t.Fatal(err)
	}
	defer mapped.Destroy()
	if got := mapped.Data(); len(got) != 64 || !bytes.HasPrefix(got, data) {
		t.Errorf("Data() = %q, want 64 bytes starting with %q", got, data)
	}

	hidden, err := ctx.CreateBuffer(BufferParams{Type: BufferShaderStorage, Size: 64})
	if err != nil {
		t.Fatal(err)
	}
	defer hidden.Destroy()
	if hidden.Data() != nil {
		t.Error("Data() of a buffer without HostMapped is not nil")
	}
}

func TestUniformUpdateIsInlinePush(t *testing.T) {
	ctx, _ := newTestContext(t)
	b, err := ctx.CreateBuffer(BufferParams{Type: BufferUniform, Size: 256})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Destroy()

	executed := ctx.Queue().Stats().Commands
	pending := ctx.cmd().Len()
	if err := b.Update(16, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got := ctx.cmd().Len(); got != pending+1 {
		t.Errorf("recorded %d commands, want 1 push", got-pending)
	}
	if got := ctx.Queue().Stats().Commands; got != executed {
		t.Error("uniform update waited for the GPU")
	}

	// The push lands once the queue runs.
	if err := ctx.ring.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := ctx.Queue().WaitIdle(); err != nil {
		t.Fatal(err)
	}
	if got := b.mem.CPUAddr()[16:20]; !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Errorf("uniform bytes = %v, want 1 2 3 4", got)
	}
}

func TestStorageUpdateWaitsIdle(t *testing.T) {
	ctx, _ := newTestContext(t)
	b, err := ctx.CreateBuffer(BufferParams{Type: BufferShaderStorage, Size: 32})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Destroy()

	if err := b.Update(4, []byte{9, 8, 7}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got := b.mem.CPUAddr()[4:7]; !bytes.Equal(got, []byte{9, 8, 7}) {
		t.Errorf("buffer bytes = %v, want 9 8 7", got)
	}
}

func TestStagingUpdateFlushesCache(t *testing.T) {
	ctx, _ := newTestContext(t)
	b, err := ctx.CreateBuffer(BufferParams{Type: BufferTexUpload, Size: 32})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Destroy()

	before := b.mem.Flushes()
	if err := b.Update(0, []byte{1}); err != nil {
		t.Fatal(err)
	}
	if b.mem.Flushes() != before+1 {
		t.Errorf("Flushes() = %d, want %d", b.mem.Flushes(), before+1)
	}
}

func TestStagingUpdateAfterAsyncUpload(t *testing.T) {
	ctx, _ := newTestContext(t)
	const w, h = 4, 4
	old := bytes.Repeat([]byte{0xaa}, w*h)
	buf, err := ctx.CreateBuffer(BufferParams{Type: BufferTexUpload, Size: len(old), HostMapped: true, InitialData: old})
	if err != nil {
		t.Fatal(err)
	}
	defer buf.Destroy()
	tex := mustTexture(t, ctx, TextureParams{Dimensions: 2, W: w, H: h, Format: mustFormat(t, "r8")})

	if err := ctx.Upload(UploadParams{Texture: tex, Buf: buf}); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	// The recorded copy must read the old bytes before the host overwrites them.
	if err := buf.Update(0, bytes.Repeat([]byte{0xbb}, w*h)); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !buf.Poll() {
		t.Error("Poll() = false after Update waited for the upload")
	}
	got := make([]byte, w*h)
	if err := ctx.Download(DownloadParams{Texture: tex, Dst: got}); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if !bytes.Equal(got, old) {
		t.Errorf("texture = %x, want %x", got, old)
	}
}

func TestBufferUpdateOutOfRange(t *testing.T) {
	ctx, _ := newTestContext(t)
	b, err := ctx.CreateBuffer(BufferParams{Type: BufferUniform, Size: 8})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Destroy()

	for _, tt := range []struct {
		offset int
		n      int
	}{
		{-1, 1},
		{0, 9},
		{7, 2},
	} {
		if err := b.Update(tt.offset, make([]byte, tt.n)); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("Update(%d, %d bytes) error = %v, want ErrOutOfRange", tt.offset, tt.n, err)
		}
	}
}

func TestPollBufferNeverUsed(t *testing.T) {
	ctx, _ := newTestContext(t)
	b, err := ctx.CreateBuffer(BufferParams{Type: BufferShaderStorage, Size: 16})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Destroy()
	if !ctx.PollBuffer(b) {
		t.Error("PollBuffer() = false for a buffer with no pending work")
	}
}
