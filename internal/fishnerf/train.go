package fishnerf

import (
	"fmt"
	"math/rand"
	"runtime"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

// Trainer fits the volume's parameters to a dataset of posed images by
// gradient descent on the mean squared rendering error. The renderer and
// sampler are the same components used at evaluation time; only the
// sampler's stochastic flag differs.
type Trainer struct {
	Camera   *Camera
	Dataset  *Dataset
	Sampler  Sampler
	Volume   ImplicitVolume
	Renderer *EmissionAbsorptionRenderer
	Opt      *Adam

	BatchSize int
	Workers   int // 0 means NumCPU
	rng       *rand.Rand
}

// NewTrainer wires the components together and validates the batch size.
func NewTrainer(cam *Camera, ds *Dataset, sampler Sampler, vol ImplicitVolume, renderer *EmissionAbsorptionRenderer, cfg TrainingConfig) (*Trainer, error) {
	if cfg.BatchSize < 1 {
		return nil, fmt.Errorf("batch size must be positive, got %d", cfg.BatchSize)
	}
	opt, err := NewAdam(len(vol.Params()), cfg.LearningRate)
	if err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = 1
	}
	return &Trainer{
		Camera:    cam,
		Dataset:   ds,
		Sampler:   sampler,
		Volume:    vol,
		Renderer:  renderer,
		Opt:       opt,
		BatchSize: cfg.BatchSize,
		Workers:   cfg.Workers,
		rng:       rand.New(rand.NewSource(seed)),
	}, nil
}

// Step runs one optimizer step on a random pixel batch from one frame and
// returns the batch loss. The batch is split into chunks rendered by
// parallel workers; each worker back-propagates into the shared gradient
// buffers (the volume serializes those scatters), and the parameter update
// itself happens once, after every worker has joined. No render call ever
// observes a half-updated parameter set.
func (tr *Trainer) Step(frame *Frame, lrScale Real) (Real, error) {
	pixels := tr.Camera.SampleValidPixels(tr.BatchSize, tr.rng)
	gt := frame.ColorsAt(pixels, tr.Camera.Width)

	workers := tr.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(pixels) {
		workers = len(pixels)
	}
	chunk := (len(pixels) + workers - 1) / workers

	tr.Volume.ZeroGrad()
	losses := make([]Real, workers)
	errs := make([]error, workers)
	seeds := make([]int64, workers)
	for w := range seeds {
		seeds[w] = tr.rng.Int63()
	}
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
			rng := rand.New(rand.NewSource(seeds[wid]))
			rb, err := RaysFromPixels(pixels[lo:hi], tr.Camera, frame.Pose)
			if err != nil {
				errs[wid] = err
				return
			}
			out, err := tr.Renderer.Render(rb, tr.Sampler, tr.Volume, rng)
			if err != nil {
				errs[wid] = err
				return
			}
			// MSE over the full batch: L = sum |C - gt|^2 / (3N)
			dColors := make([]mgl64.Vec3, len(out.Colors))
			norm := 1.0 / Real(3*len(pixels))
			for i, c := range out.Colors {
				diff := c.Sub(gt[lo+i])
				losses[wid] += diff.Dot(diff) * norm
				dColors[i] = diff.Mul(2 * norm)
			}
			errs[wid] = out.Backward(tr.Volume, dColors, nil)
		}()
	}
	wg.Wait()
	loss := 0.0
	for w := 0; w < workers; w++ {
		if errs[w] != nil {
			return 0, errs[w]
		}
		loss += losses[w]
	}
	if err := tr.Opt.Step(tr.Volume.Params(), tr.Volume.Grads(), lrScale); err != nil {
		return 0, err
	}
	return loss, nil
}

// Epoch iterates once over every frame in a random order, returning the
// mean step loss.
func (tr *Trainer) Epoch(epoch int, cfg TrainingConfig) (Real, error) {
	order := tr.rng.Perm(len(tr.Dataset.Frames))
	lrScale := LRDecay(cfg.LRDecayGamma, epoch, cfg.LRDecayStep)

	var bar *progressbar.ProgressBar
	if Progress {
		bar = progressbar.Default(int64(len(order)), fmt.Sprintf("epoch %04d", epoch))
	}
	total := 0.0
	for _, fi := range order {
		loss, err := tr.Step(&tr.Dataset.Frames[fi], lrScale)
		if err != nil {
			return 0, fmt.Errorf("epoch %d frame %d: %w", epoch, fi, err)
		}
		total += loss
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	mean := total / Real(len(order))
	log.Info().Int("epoch", epoch).Float64("loss", mean).Float64("lrScale", lrScale).Msg("epoch done")
	return mean, nil
}
