package fishnerf

import (
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog/log"
)

type components struct {
	cfg      *Config
	camera   *Camera
	volume   ImplicitVolume
	renderer *EmissionAbsorptionRenderer
}

func buildComponents(cfgPath string) (*components, error) {
	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	cam, err := NewCamera(cfg.Camera.FOVDegree, cfg.Camera.Width, cfg.Camera.Height)
	if err != nil {
		return nil, err
	}
	vol, err := NewVolume(cfg.Volume)
	if err != nil {
		return nil, err
	}
	renderer, err := NewRenderer(cfg.Renderer)
	if err != nil {
		return nil, err
	}
	return &components{cfg: cfg, camera: cam, volume: vol, renderer: renderer}, nil
}

func (c *components) renderPose() (Pose, error) {
	p := c.cfg.Render.Pose
	return NewPose(mgl64.Vec3{p[0], p[1], p[2]}, p[3], p[4], p[5], p[6])
}

// renderSurround renders a full frame for each pose of a spin around the
// camera's own axis and returns the frame buffers.
func (c *components) renderSurround(base Pose) ([][]Real, error) {
	evalSampler, err := NewSampler(c.cfg.Sampler, false)
	if err != nil {
		return nil, err
	}
	poses := SurroundPosesAt(base, c.cfg.Render.NumPoses)
	frames := make([][]Real, 0, len(poses))
	for i, pose := range poses {
		buf, err := RenderFrame(c.camera, pose, evalSampler, c.volume, c.renderer, int64(i+1))
		if err != nil {
			return nil, fmt.Errorf("pose %d: %w", i, err)
		}
		frames = append(frames, buf)
	}
	return frames, nil
}

// Train fits the configured volume to the configured dataset, with
// periodic checkpoints and surround renders.
func Train(cfgPath string) error {
	c, err := buildComponents(cfgPath)
	if err != nil {
		return err
	}
	cfg := c.cfg

	ds, err := LoadDataset(cfg.Data.Root, cfg.Camera.Width, cfg.Camera.Height)
	if err != nil {
		return err
	}
	trainSampler, err := NewSampler(cfg.Sampler, true)
	if err != nil {
		return err
	}
	tr, err := NewTrainer(c.camera, ds, trainSampler, c.volume, c.renderer, cfg.Training)
	if err != nil {
		return err
	}

	startEpoch := 0
	if cfg.Training.Resume && cfg.Training.CheckpointPath != "" {
		if _, err := os.Stat(cfg.Training.CheckpointPath); err == nil {
			startEpoch, err = LoadCheckpoint(cfg.Training.CheckpointPath, cfg.Volume.Type, c.volume)
			if err != nil {
				return err
			}
		}
	}

	for epoch := startEpoch; epoch < cfg.Training.Epochs; epoch++ {
		if _, err := tr.Epoch(epoch, cfg.Training); err != nil {
			return err
		}
		if cfg.Training.CheckpointPath != "" && epoch > 0 && epoch%cfg.Training.CheckpointInterval == 0 {
			if err := SaveCheckpoint(cfg.Training.CheckpointPath, cfg.Volume.Type, c.volume, epoch); err != nil {
				return err
			}
		}
		if epoch > 0 && epoch%cfg.Training.RenderInterval == 0 {
			// spin at the pose of a random training frame
			base := ds.Frames[tr.rng.Intn(len(ds.Frames))].Pose
			frames, err := c.renderSurround(base)
			if err != nil {
				return err
			}
			path := fmt.Sprintf("results/training_%d.gif", epoch)
			if err := SaveAnimatedGIF(frames, c.camera.Width, c.camera.Height, path, cfg.Render.Delay); err != nil {
				return err
			}
		}
	}
	if cfg.Training.CheckpointPath != "" {
		return SaveCheckpoint(cfg.Training.CheckpointPath, cfg.Volume.Type, c.volume, cfg.Training.Epochs)
	}
	return nil
}

// Render restores the configured volume from its checkpoint (when one is
// set) and writes a surround GIF at the configured pose.
func Render(cfgPath string) error {
	c, err := buildComponents(cfgPath)
	if err != nil {
		return err
	}
	if c.cfg.Training.CheckpointPath != "" {
		if _, err := LoadCheckpoint(c.cfg.Training.CheckpointPath, c.cfg.Volume.Type, c.volume); err != nil {
			return err
		}
	} else {
		log.Warn().Msg("no checkpoint configured, rendering the untrained volume")
	}
	base, err := c.renderPose()
	if err != nil {
		return err
	}
	frames, err := c.renderSurround(base)
	if err != nil {
		return err
	}
	return SaveAnimatedGIF(frames, c.camera.Width, c.camera.Height, c.cfg.Render.Out, c.cfg.Render.Delay)
}
