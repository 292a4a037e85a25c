package fishnerf

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"

	_ "image/jpeg"
	_ "image/png"
)

// Frame is one posed training image: RGB values in [0,1], row-major with
// stride 3 per pixel, already resized to the sensor shape.
type Frame struct {
	Pixels []Real // W*H*3
	Pose   Pose
}

// Dataset is an in-memory set of posed frames sharing one sensor shape.
type Dataset struct {
	Frames        []Frame
	Width, Height int
}

type poseEntry struct {
	File        string  `json:"file"`
	Translation [3]Real `json:"translation"`
	Quaternion  [4]Real `json:"quaternion"` // xyzw
}

// LoadDataset reads <root>/poses.json and the image files it references,
// decoding and resizing each to width x height.
func LoadDataset(root string, width, height int) (*Dataset, error) {
	data, err := os.ReadFile(filepath.Join(root, "poses.json"))
	if err != nil {
		return nil, fmt.Errorf("read poses: %w", err)
	}
	var entries []poseEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse poses: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("dataset %s has no frames", root)
	}
	ds := &Dataset{Width: width, Height: height}
	for _, e := range entries {
		pose, err := NewPose(
			mgl64.Vec3{e.Translation[0], e.Translation[1], e.Translation[2]},
			e.Quaternion[0], e.Quaternion[1], e.Quaternion[2], e.Quaternion[3],
		)
		if err != nil {
			return nil, fmt.Errorf("frame %s: %w", e.File, err)
		}
		px, err := loadImage(filepath.Join(root, e.File), width, height)
		if err != nil {
			return nil, fmt.Errorf("frame %s: %w", e.File, err)
		}
		ds.Frames = append(ds.Frames, Frame{Pixels: px, Pose: pose})
	}
	log.Info().Int("frames", len(ds.Frames)).Str("root", root).Msg("loaded dataset")
	return ds, nil
}

func loadImage(path string, width, height int) ([]Real, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	rgba := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(rgba, rgba.Bounds(), src, src.Bounds(), draw.Src, nil)

	out := make([]Real, width*height*3)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			p := rgba.PixOffset(x, y)
			o := (y*width + x) * 3
			out[o+0] = Real(rgba.Pix[p+0]) / 255
			out[o+1] = Real(rgba.Pix[p+1]) / 255
			out[o+2] = Real(rgba.Pix[p+2]) / 255
		}
	}
	return out, nil
}

// ColorsAt samples the ground-truth colors of a frame at the given pixels.
func (f *Frame) ColorsAt(pixels []Pixel, width int) []mgl64.Vec3 {
	out := make([]mgl64.Vec3, len(pixels))
	for i, px := range pixels {
		o := (px.Y*width + px.X) * 3
		out[i] = mgl64.Vec3{f.Pixels[o], f.Pixels[o+1], f.Pixels[o+2]}
	}
	return out
}
