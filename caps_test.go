package tilera

import (
	"strings"
	"testing"
)

func TestCaps(t *testing.T) {
	ctx, _ := newTestContext(t)
	caps := ctx.Caps()
	for _, want := range []Caps{CapTex1D, CapTex3D, CapBlit, CapCompute, CapBufRW, CapNumGroups} {
		if !caps.Has(want) {
			t.Errorf("Caps() lacks %s", want)
		}
	}
	s := caps.String()
	if !strings.Contains(s, "compute") || strings.Count(s, "|") != len(capNames)-1 {
		t.Errorf("Caps().String() = %q", s)
	}
	if got := Caps(0).String(); got != "none" {
		t.Errorf("Caps(0).String() = %q, want none", got)
	}
}

func TestLimits(t *testing.T) {
	ctx, _ := newTestContext(t)
	lim := ctx.Limits()
	if lim.MaxTextureSize != 16384 || lim.MaxSharedMemory != 98304 || lim.MaxComputeGroupThreads != 1024 {
		t.Errorf("Limits() = %+v", lim)
	}

	g := lim.Gputypes()
	if g.MaxTextureDimension2D != 16384 || g.MaxTextureDimension3D != 16384 {
		t.Errorf("texture dimension limits = %d/%d, want 16384", g.MaxTextureDimension2D, g.MaxTextureDimension3D)
	}
	if g.MaxComputeWorkgroupStorageSize != 98304 || g.MaxComputeInvocationsPerWorkgroup != 1024 {
		t.Errorf("compute limits = %d/%d", g.MaxComputeWorkgroupStorageSize, g.MaxComputeInvocationsPerWorkgroup)
	}
	if g.MaxBindGroups == 0 {
		t.Error("unmapped limits lost their defaults")
	}
}

func TestDescNamespace(t *testing.T) {
	ctx, _ := newTestContext(t)
	for _, v := range []VarType{VarInt, VarTex, VarBufRW} {
		if got := ctx.DescNamespace(v); got != int(v) {
			t.Errorf("DescNamespace(%s) = %d, want %d", v, got, int(v))
		}
	}
}
