package fishnerf

import (
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"image/png"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/rs/zerolog/log"
)

// RenderFrame renders every valid pixel of the camera at the given pose and
// scatters the per-ray colors into a full W*H*3 buffer; pixels outside the
// validity mask keep the background value. The valid pixels are split into
// chunks across all CPU cores; chunks are independent ray batches, so no
// locking is needed beyond the worker join.
func RenderFrame(cam *Camera, pose Pose, sampler Sampler, vol ImplicitVolume, renderer *EmissionAbsorptionRenderer, seed int64) ([]Real, error) {
	pixels := cam.AllValidPixels()
	workers := runtime.NumCPU()
	if workers > len(pixels) {
		workers = len(pixels)
	}
	if workers < 1 {
		workers = 1
	}
	chunk := (len(pixels) + workers - 1) / workers

	buf := make([]Real, cam.Width*cam.Height*3)
	if renderer.HasBackground {
		for p := 0; p < len(buf); p += 3 {
			buf[p+0] = renderer.Background.X()
			buf[p+1] = renderer.Background.Y()
			buf[p+2] = renderer.Background.Z()
		}
	}

	errs := make([]error, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		wid := w
		go func() {
			defer wg.Done()
			lo := wid * chunk
			hi := lo + chunk
			if hi > len(pixels) {
				hi = len(pixels)
			}
			if lo >= hi {
				return
			}
			rng := rand.New(rand.NewSource(seed ^ int64(uint64(wid)*0x9e3779b97f4a7c15)))
			rb, err := RaysFromPixels(pixels[lo:hi], cam, pose)
			if err != nil {
				errs[wid] = err
				return
			}
			out, err := renderer.Render(rb, sampler, vol, rng)
			if err != nil {
				errs[wid] = err
				return
			}
			for i, px := range rb.Pixels {
				o := (px.Y*cam.Width + px.X) * 3
				buf[o+0] = out.Colors[i].X()
				buf[o+1] = out.Colors[i].Y()
				buf[o+2] = out.Colors[i].Z()
			}
		}()
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// SurroundPosesAt returns n poses spinning the camera about its own down
// axis at a fixed translation.
func SurroundPosesAt(base Pose, n int) []Pose {
	poses := make([]Pose, n)
	for i := range poses {
		poses[i] = base.RotatedZ(2 * math.Pi * Real(i) / Real(n))
	}
	return poses
}

func frameToNRGBA(buf []Real, width, height int) *image.NRGBA {
	rgba := image.NewNRGBA(image.Rect(0, 0, width, height))
	toByte := func(v Real) uint8 {
		return uint8(math.Round(clamp(v, 0, 1) * 255))
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			o := (y*width + x) * 3
			p := rgba.PixOffset(x, y)
			rgba.Pix[p+0] = toByte(buf[o+0])
			rgba.Pix[p+1] = toByte(buf[o+1])
			rgba.Pix[p+2] = toByte(buf[o+2])
			rgba.Pix[p+3] = 255
		}
	}
	return rgba
}

// SavePNG writes one frame buffer as an 8-bit PNG.
func SavePNG(buf []Real, width, height int, path string) error {
	if len(buf) != width*height*3 {
		return fmt.Errorf("expected %d frame values, got %d", width*height*3, len(buf))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, frameToNRGBA(buf, width, height))
}

// SaveAnimatedGIF writes one GIF frame per buffer.
// delay is in 100ths of a second (e.g., 5 => 20 fps).
func SaveAnimatedGIF(frames [][]Real, width, height int, path string, delay int) error {
	if len(frames) == 0 {
		return fmt.Errorf("no frames to save")
	}
	out := &gif.GIF{
		Image:     make([]*image.Paletted, 0, len(frames)),
		Delay:     make([]int, 0, len(frames)),
		LoopCount: 0,
	}
	for k, buf := range frames {
		if len(buf) != width*height*3 {
			return fmt.Errorf("frame %d: expected %d values, got %d", k, width*height*3, len(buf))
		}
		rgba := frameToNRGBA(buf, width, height)
		pimg := image.NewPaletted(rgba.Bounds(), palette.Plan9)
		draw.FloydSteinberg.Draw(pimg, pimg.Bounds(), rgba, image.Point{})
		out.Image = append(out.Image, pimg)
		out.Delay = append(out.Delay, delay)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := gif.EncodeAll(f, out); err != nil {
		return err
	}
	log.Info().Str("path", path).Int("frames", len(frames)).Msg("saved animated GIF")
	return nil
}
