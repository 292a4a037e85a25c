package fishnerf

type Real = float64

// Defaults applied by LoadConfig when a field is omitted.
const (
	FOVDegree     = 180.0
	SensorWidth   = 256
	SensorHeight  = 256
	NearBound     = 0.5
	FarBound      = 6.0
	NumSamples    = 64
	BatchSize     = 1024
	Epochs        = 100
	LearningRate  = 5e-4
	LRDecayGamma  = 0.1
	LRDecayStep   = 100
	GridRes       = 64
	GridExtent    = 4.0
	GIFOut        = "results/render.gif"
	GIFDelay      = 5 // 100ths of a second per frame
	NumShards     = 1024
	SurroundPoses = 20
)

// hot-loop constants reused across rays
const (
	maxOpticalDepth  = 80.0  // clamp on sigma*delta before exponentiation
	minTransmittance = 1e-12 // floor on (1 - alpha) in the backward pass
	epsDepth         = 1e-9  // minimum separation between merged sample depths
	dirNormTol       = 1e-5  // tolerance on |direction| == 1
)
