package fishnerf

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func constantFrame(width, height int, c mgl64.Vec3) *Frame {
	px := make([]Real, width*height*3)
	for p := 0; p < len(px); p += 3 {
		px[p+0] = c.X()
		px[p+1] = c.Y()
		px[p+2] = c.Z()
	}
	return &Frame{Pixels: px, Pose: Identity()}
}

func newTestTrainer(t *testing.T) (*Trainer, *Frame) {
	t.Helper()
	cam, err := NewCamera(180, 8, 8)
	if err != nil {
		t.Fatal(err)
	}
	sampler, err := NewStratifiedSampler(0.5, 4.0, 16, false)
	if err != nil {
		t.Fatal(err)
	}
	vol, err := NewHomogeneousVolume(0.5, mgl64.Vec3{0.5, 0.5, 0.5})
	if err != nil {
		t.Fatal(err)
	}
	renderer := NewEmissionAbsorptionRenderer(nil)
	frame := constantFrame(8, 8, mgl64.Vec3{0.8, 0.2, 0.4})
	ds := &Dataset{Frames: []Frame{*frame}, Width: 8, Height: 8}
	tr, err := NewTrainer(cam, ds, sampler, vol, renderer, TrainingConfig{
		BatchSize:    32,
		LearningRate: 0.05,
		Workers:      1,
		Seed:         7,
	})
	if err != nil {
		t.Fatal(err)
	}
	return tr, frame
}

func TestNewTrainer_ConfigError(t *testing.T) {
	vol, err := NewHomogeneousVolume(1, mgl64.Vec3{0.5, 0.5, 0.5})
	if err != nil {
		t.Fatal(err)
	}
	_, err = NewTrainer(nil, nil, nil, vol, nil, TrainingConfig{BatchSize: 0, LearningRate: 0.1})
	if err == nil {
		t.Fatal("expected error for zero batch size")
	}
}

func TestTrainerStep_ReducesLoss(t *testing.T) {
	tr, frame := newTestTrainer(t)
	first, err := tr.Step(frame, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	var last Real
	for i := 0; i < 200; i++ {
		last, err = tr.Step(frame, 1.0)
		if err != nil {
			t.Fatal(err)
		}
	}
	if last >= first {
		t.Fatalf("loss did not decrease: first %.6f, last %.6f", first, last)
	}
	if last > 0.02 {
		t.Fatalf("loss after fitting a constant frame = %.6f, want below 0.02", last)
	}
}

func TestTrainerStep_ProducesGradients(t *testing.T) {
	tr, frame := newTestTrainer(t)
	if _, err := tr.Step(frame, 1.0); err != nil {
		t.Fatal(err)
	}
	any := false
	for _, g := range tr.Volume.Grads() {
		if g != 0 {
			any = true
			break
		}
	}
	if !any {
		t.Fatal("step left every gradient at zero for an unfit volume")
	}
	tr.Volume.ZeroGrad()
	for i, g := range tr.Volume.Grads() {
		if g != 0 {
			t.Fatalf("gradient %d survived ZeroGrad: %g", i, g)
		}
	}
}

func TestTrainerEpoch(t *testing.T) {
	old := Progress
	Progress = false
	defer func() { Progress = old }()

	tr, _ := newTestTrainer(t)
	loss, err := tr.Epoch(0, TrainingConfig{LRDecayGamma: 0.9, LRDecayStep: 10})
	if err != nil {
		t.Fatal(err)
	}
	if loss <= 0 {
		t.Fatalf("epoch loss = %g, want positive for an unfit volume", loss)
	}
}
