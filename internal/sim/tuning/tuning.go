package tuning

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning holds the behavioural constants of the foraging model. The defaults are the
// values estimated from Diacamma colonies (Fujioka, Marchand & LeBoeuf 2023).
type Tuning struct {
	// Probabilities per time unit.
	POut    float64 `yaml:"p_out" json:"p_out"`
	PNest   float64 `yaml:"p_nest" json:"p_nest"`
	PSource float64 `yaml:"p_source" json:"p_source"`
	PFeedT  float64 `yaml:"p_feed_t" json:"p_feed_t"`

	// Social bucket recruitment: trigger = 1/(SBEmptyWeight/(empty/N) + SBGroupWeight*k).
	SBEmptyWeight float64 `yaml:"sb_empty_weight" json:"sb_empty_weight"`
	SBGroupWeight float64 `yaml:"sb_group_weight" json:"sb_group_weight"`
	SBMaxGroup    int     `yaml:"sb_max_group" json:"sb_max_group"`

	// Volumes are in units of 10 µL.
	FedVolume    float64 `yaml:"fed_volume" json:"fed_volume"`
	BucketGrab   int     `yaml:"bucket_grab_ticks" json:"bucket_grab_ticks"`
	BucketVolume float64 `yaml:"bucket_volume" json:"bucket_volume"`
	TrophaGrab   int     `yaml:"tropha_grab_ticks" json:"tropha_grab_ticks"`

	DropBase float64 `yaml:"drop_base" json:"drop_base"`

	// Saturation above FullThreshold counts as full; payload below EmptyThreshold counts as empty.
	FullThreshold  float64 `yaml:"full_threshold" json:"full_threshold"`
	EmptyThreshold float64 `yaml:"empty_threshold" json:"empty_threshold"`

	SampleEveryTicks int `yaml:"sample_every_ticks" json:"sample_every_ticks"`
}

func Defaults() Tuning {
	return Tuning{
		POut:             0.1,
		PNest:            0.1,
		PSource:          0.2,
		PFeedT:           0.1,
		SBEmptyWeight:    2,
		SBGroupWeight:    0.524,
		SBMaxGroup:       3,
		FedVolume:        10,
		BucketGrab:       10,
		BucketVolume:     10,
		TrophaGrab:       75,
		DropBase:         0.001,
		FullThreshold:    0.9,
		EmptyThreshold:   0.1,
		SampleEveryTicks: 10,
	}
}

// Load reads a tuning file. Keys absent from the file keep their default value.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	probs := []struct {
		name string
		v    float64
	}{
		{"p_out", t.POut},
		{"p_nest", t.PNest},
		{"p_source", t.PSource},
		{"p_feed_t", t.PFeedT},
		{"full_threshold", t.FullThreshold},
	}
	for _, p := range probs {
		if p.v < 0 || p.v > 1 {
			return fmt.Errorf("%s must be in [0,1], got %v", p.name, p.v)
		}
	}
	switch {
	case t.FedVolume <= 0:
		return errors.New("fed_volume must be positive")
	case t.BucketVolume < 0 || t.BucketGrab < 0 || t.TrophaGrab < 0:
		return errors.New("grab ticks and volumes must be non-negative")
	case t.SBMaxGroup < 1:
		return errors.New("sb_max_group must be at least 1")
	case t.SBEmptyWeight <= 0:
		return errors.New("sb_empty_weight must be positive")
	case t.DropBase < 0:
		return errors.New("drop_base must be non-negative")
	case t.EmptyThreshold < 0:
		return errors.New("empty_threshold must be non-negative")
	case t.SampleEveryTicks <= 0:
		return errors.New("sample_every_ticks must be positive")
	}
	return nil
}
