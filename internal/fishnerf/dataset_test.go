package fishnerf

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writeSolidPNG(t *testing.T, path string, w, h int, c color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDataset(t *testing.T) {
	root := t.TempDir()
	writeSolidPNG(t, filepath.Join(root, "frame0.png"), 16, 16, color.NRGBA{R: 255, G: 0, B: 0, A: 255})
	writeSolidPNG(t, filepath.Join(root, "frame1.png"), 16, 16, color.NRGBA{R: 0, G: 0, B: 255, A: 255})
	poses := `[
  {"file": "frame0.png", "translation": [0, 0, 0], "quaternion": [0, 0, 0, 1]},
  {"file": "frame1.png", "translation": [1, 2, 3], "quaternion": [0, 0, 0, 1]}
]`
	if err := os.WriteFile(filepath.Join(root, "poses.json"), []byte(poses), 0o644); err != nil {
		t.Fatal(err)
	}

	ds, err := LoadDataset(root, 8, 8)
	if err != nil {
		t.Fatal(err)
	}
	if len(ds.Frames) != 2 || ds.Width != 8 || ds.Height != 8 {
		t.Fatalf("dataset shape: %d frames, %dx%d", len(ds.Frames), ds.Width, ds.Height)
	}
	// frame 0 is solid red; resizing a solid image keeps it solid
	f0 := ds.Frames[0]
	if len(f0.Pixels) != 8*8*3 {
		t.Fatalf("frame buffer has %d values, want %d", len(f0.Pixels), 8*8*3)
	}
	for p := 0; p < len(f0.Pixels); p += 3 {
		if math.Abs(f0.Pixels[p]-1) > 0.02 || f0.Pixels[p+1] > 0.02 || f0.Pixels[p+2] > 0.02 {
			t.Fatalf("pixel %d of a solid red frame = (%g, %g, %g)", p/3, f0.Pixels[p], f0.Pixels[p+1], f0.Pixels[p+2])
		}
	}
	tr := ds.Frames[1].Pose.Translation
	if tr.X() != 1 || tr.Y() != 2 || tr.Z() != 3 {
		t.Fatalf("frame 1 translation = %v", tr)
	}
}

func TestLoadDataset_Errors(t *testing.T) {
	if _, err := LoadDataset(t.TempDir(), 8, 8); err == nil {
		t.Fatal("expected error when poses.json is missing")
	}

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "poses.json"), []byte("[]"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadDataset(root, 8, 8); err == nil {
		t.Fatal("expected error for an empty dataset")
	}

	root = t.TempDir()
	poses := `[{"file": "nope.png", "translation": [0, 0, 0], "quaternion": [0, 0, 0, 1]}]`
	if err := os.WriteFile(filepath.Join(root, "poses.json"), []byte(poses), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadDataset(root, 8, 8); err == nil {
		t.Fatal("expected error for a missing image file")
	}

	root = t.TempDir()
	writeSolidPNG(t, filepath.Join(root, "frame0.png"), 4, 4, color.NRGBA{A: 255})
	poses = `[{"file": "frame0.png", "translation": [0, 0, 0], "quaternion": [0, 0, 0, 0]}]`
	if err := os.WriteFile(filepath.Join(root, "poses.json"), []byte(poses), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadDataset(root, 8, 8); err == nil {
		t.Fatal("expected error for a zero quaternion")
	}
}

func TestFrameColorsAt(t *testing.T) {
	f := Frame{Pixels: make([]Real, 4*4*3)}
	o := (2*4 + 1) * 3 // pixel (1, 2)
	f.Pixels[o+0] = 0.1
	f.Pixels[o+1] = 0.2
	f.Pixels[o+2] = 0.3
	got := f.ColorsAt([]Pixel{{X: 1, Y: 2}, {X: 0, Y: 0}}, 4)
	if got[0].X() != 0.1 || got[0].Y() != 0.2 || got[0].Z() != 0.3 {
		t.Fatalf("ColorsAt(1,2) = %v", got[0])
	}
	if got[1].Len() != 0 {
		t.Fatalf("ColorsAt(0,0) = %v, want black", got[1])
	}
}
