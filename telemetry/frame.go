package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// FrameVersion is incremented when the frame format changes.
const FrameVersion = 1

// Frame holds the observable state of one colony after a tick. It is what
// renderers draw and what traces record.
type Frame struct {
	Version int    `json:"version"`
	Colony  string `json:"colony"`
	Tick    int32  `json:"tick"`

	Width  float64 `json:"width"`
	Height float64 `json:"height"`

	Robots   []RobotState `json:"robots"`
	Sources  []NodeState  `json:"sources"`
	Storages []NodeState  `json:"storages"`

	EmptiedSources uint64 `json:"emptied_sources"`
	FilledStorages uint64 `json:"filled_storages"`

	RobotColor    string `json:"robot_color,omitempty"`
	ResourceColor string `json:"resource_color,omitempty"`
}

// RobotState holds one robot's observable state.
type RobotState struct {
	ID      uint32  `json:"id"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`

	Carrying  bool    `json:"carrying"`
	HasTarget bool    `json:"has_target"`
	TargetX   float64 `json:"target_x,omitempty"`
	TargetY   float64 `json:"target_y,omitempty"`

	DistanceToSource  float64 `json:"distance_to_source"`
	DistanceToStorage float64 `json:"distance_to_storage"`
}

// NodeState holds one source or storage.
type NodeState struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Heading  float64 `json:"heading"`
	Radius   float64 `json:"radius"`
	Amount   int     `json:"amount"`
	Capacity int     `json:"capacity"`
	Fill     float64 `json:"fill"`
}

// Equal reports whether two frames are bit-identical in every recorded
// value.
func (f *Frame) Equal(o *Frame) bool {
	return f.Version == o.Version &&
		f.Colony == o.Colony &&
		f.Tick == o.Tick &&
		f.Width == o.Width &&
		f.Height == o.Height &&
		f.EmptiedSources == o.EmptiedSources &&
		f.FilledStorages == o.FilledStorages &&
		f.RobotColor == o.RobotColor &&
		f.ResourceColor == o.ResourceColor &&
		slices.Equal(f.Robots, o.Robots) &&
		slices.Equal(f.Sources, o.Sources) &&
		slices.Equal(f.Storages, o.Storages)
}

// SaveFrame writes a single frame to disk as indented JSON.
// Returns the filepath where it was saved.
func SaveFrame(frame *Frame, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create frame dir: %w", err)
	}

	name := fmt.Sprintf("frame_%s_%d.json", frame.Colony, frame.Tick)
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(frame, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal frame: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write frame: %w", err)
	}

	return path, nil
}

// LoadFrame reads a frame written by SaveFrame.
func LoadFrame(path string) (*Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}

	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("unmarshal frame: %w", err)
	}
	if frame.Version != FrameVersion {
		return nil, fmt.Errorf("frame version %d, want %d", frame.Version, FrameVersion)
	}

	return &frame, nil
}
