package fishnerf

import (
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestCheckpoint_Roundtrip(t *testing.T) {
	src, err := NewVoxelGridVolume(mgl64.Vec3{}, 2.0, 3)
	if err != nil {
		t.Fatal(err)
	}
	params := src.Params()
	for i := range params {
		params[i] = Real(i) * 0.01
	}
	path := filepath.Join(t.TempDir(), "ckpt", "grid.json")
	if err := SaveCheckpoint(path, "grid", src, 42); err != nil {
		t.Fatal(err)
	}

	dst, err := NewVoxelGridVolume(mgl64.Vec3{}, 2.0, 3)
	if err != nil {
		t.Fatal(err)
	}
	epoch, err := LoadCheckpoint(path, "grid", dst)
	if err != nil {
		t.Fatal(err)
	}
	if epoch != 42 {
		t.Fatalf("resumed epoch %d, want 42", epoch)
	}
	for i, p := range dst.Params() {
		if p != params[i] {
			t.Fatalf("param %d restored as %g, want %g", i, p, params[i])
		}
	}
}

func TestLoadCheckpoint_TypeMismatch(t *testing.T) {
	vol, err := NewHomogeneousVolume(1, mgl64.Vec3{0.5, 0.5, 0.5})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "ckpt.json")
	if err := SaveCheckpoint(path, "homogeneous", vol, 1); err != nil {
		t.Fatal(err)
	}
	grid, err := NewVoxelGridVolume(mgl64.Vec3{}, 2.0, 3)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCheckpoint(path, "grid", grid); err == nil {
		t.Fatal("expected error loading a homogeneous checkpoint into a grid")
	}
}

func TestLoadCheckpoint_ParamCountMismatch(t *testing.T) {
	small, err := NewVoxelGridVolume(mgl64.Vec3{}, 2.0, 2)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "ckpt.json")
	if err := SaveCheckpoint(path, "grid", small, 3); err != nil {
		t.Fatal(err)
	}
	big, err := NewVoxelGridVolume(mgl64.Vec3{}, 2.0, 4)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCheckpoint(path, "grid", big); err == nil {
		t.Fatal("expected error for parameter count mismatch")
	}
}

func TestLoadCheckpoint_MissingFile(t *testing.T) {
	grid, err := NewVoxelGridVolume(mgl64.Vec3{}, 2.0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCheckpoint(filepath.Join(t.TempDir(), "nope.json"), "grid", grid); err == nil {
		t.Fatal("expected error for missing checkpoint")
	}
}
