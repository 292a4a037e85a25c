package fishnerf

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

type checkpoint struct {
	Volume string `json:"volume"`
	Epoch  int    `json:"epoch"`
	Params []Real `json:"params"`
}

// SaveCheckpoint writes the volume's parameter vector and the epoch it was
// taken at. Parent directories are created as needed.
func SaveCheckpoint(path string, volumeType string, vol ImplicitVolume, epoch int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(checkpoint{Volume: volumeType, Epoch: epoch, Params: vol.Params()})
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	log.Info().Str("path", path).Int("epoch", epoch).Msg("stored checkpoint")
	return nil
}

// LoadCheckpoint restores a parameter vector into vol and returns the epoch
// to resume from. The checkpoint must match the volume variant and its
// parameter count; anything restored still satisfies the query contract,
// since only the parameter values change.
func LoadCheckpoint(path string, volumeType string, vol ImplicitVolume) (epoch int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var ck checkpoint
	if err := json.Unmarshal(data, &ck); err != nil {
		return 0, fmt.Errorf("parse checkpoint %s: %w", path, err)
	}
	if ck.Volume != volumeType {
		return 0, fmt.Errorf("checkpoint holds a %q volume, config wants %q", ck.Volume, volumeType)
	}
	params := vol.Params()
	if len(ck.Params) != len(params) {
		return 0, fmt.Errorf("checkpoint has %d params, volume has %d", len(ck.Params), len(params))
	}
	copy(params, ck.Params)
	log.Info().Str("path", path).Int("epoch", ck.Epoch).Msg("resumed from checkpoint")
	return ck.Epoch, nil
}
