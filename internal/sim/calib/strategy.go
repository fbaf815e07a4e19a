package calib

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Strategy is the colony-wide feeding protocol.
type Strategy uint8

const (
	Trophallaxis Strategy = iota + 1
	SocialBucket
	Both
)

func (s Strategy) Valid() bool { return s >= Trophallaxis && s <= Both }

func (s Strategy) String() string {
	switch s {
	case Trophallaxis:
		return "trophallaxis"
	case SocialBucket:
		return "social_bucket"
	case Both:
		return "both"
	}
	return fmt.Sprintf("strategy(%d)", uint8(s))
}

// ParseStrategy accepts the names used in config files and the numeric behaviour
// codes of the published model (0 = social bucket, 1 = trophallaxis, 2 = both).
func ParseStrategy(v string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "trophallaxis", "t", "tropha", "1":
		return Trophallaxis, nil
	case "social_bucket", "social-bucket", "socialbucket", "sb", "0":
		return SocialBucket, nil
	case "both", "t+sb", "2":
		return Both, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, v)
}

func (s Strategy) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStrategy, uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Strategy) UnmarshalText(b []byte) error {
	v, err := ParseStrategy(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s Strategy) MarshalYAML() (any, error) {
	b, err := s.MarshalText()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *Strategy) UnmarshalYAML(n *yaml.Node) error {
	return s.UnmarshalText([]byte(n.Value))
}

// Policy selects how social-bucket overfeeding is resolved.
type Policy uint8

const (
	// Simple clamps every recipient above the full threshold to exactly 1.
	Simple Policy = iota + 1
	// Complex clamps near-full recipients and redistributes colony-wide overflow once.
	Complex
)

func (p Policy) Valid() bool { return p == Simple || p == Complex }

func (p Policy) String() string {
	switch p {
	case Simple:
		return "simple"
	case Complex:
		return "complex"
	}
	return fmt.Sprintf("policy(%d)", uint8(p))
}

func ParsePolicy(v string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "simple":
		return Simple, nil
	case "complex":
		return Complex, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPolicy, v)
}

func (p Policy) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPolicy, uint8(p))
	}
	return []byte(p.String()), nil
}

func (p *Policy) UnmarshalText(b []byte) error {
	v, err := ParsePolicy(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

func (p Policy) MarshalYAML() (any, error) {
	b, err := p.MarshalText()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *Policy) UnmarshalYAML(n *yaml.Node) error {
	return p.UnmarshalText([]byte(n.Value))
}
