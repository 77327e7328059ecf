package config

import (
	"fmt"
	"math"
)

// Parameter keys as persisted in the colony blob.
const (
	KeyRobotRadius         = "ROBOT_RADIUS"
	KeyRobotSpeed          = "ROBOT_SPEED"
	KeyRobotRotationJitter = "ROBOT_ROTATION_JITTER"
	KeyRobotSpeedJitter    = "ROBOT_SPEED_JITTER"
	KeyStorageRadius       = "STORAGE_RADIUS"
	KeyStorageSpeed        = "STORAGE_SPEED"
	KeyStorageAmount       = "STORAGE_AMOUNT"
	KeySourceRadius        = "SOURCE_RADIUS"
	KeySourceSpeed         = "SOURCE_SPEED"
	KeySourceAmount        = "SOURCE_AMOUNT"
	KeyNodeRotationJitter  = "NODE_ROTATION_JITTER"
	KeyReceiverRadius      = "RECEIVER_RADIUS"
	KeySelfConfidentFactor = "SELF_CONFIDENT_FACTOR"
	KeyNumberOfRobots      = "NUMBER_OF_ROBOTS"
	KeyNumberOfSources     = "NUMBER_OF_SOURCES"
	KeyNumberOfStorages    = "NUMBER_OF_STORAGES"

	KeyRobotColor    = "robotColor"
	KeyResourceColor = "resourceColor"
)

// Default cosmetic colors.
const (
	DefaultRobotColor    = "#555555"
	DefaultResourceColor = "#000000"
)

// Range declares a numeric parameter with its default and editor bounds.
type Range struct {
	Key   string  `json:"key" yaml:"key"`
	Value float64 `json:"value" yaml:"value"`
	Min   float64 `json:"min" yaml:"min"`
	Max   float64 `json:"max" yaml:"max"`
	Step  float64 `json:"step" yaml:"step"`
}

// Clamp limits v to [Min, Max].
func (r Range) Clamp(v float64) float64 {
	return math.Min(math.Max(v, r.Min), r.Max)
}

// Snap rounds v to the nearest step above Min and clamps the result.
func (r Range) Snap(v float64) float64 {
	if r.Step <= 0 {
		return r.Clamp(v)
	}
	steps := math.Round((v - r.Min) / r.Step)
	// Round away float noise like 0.30000000000000004.
	snapped := math.Round((r.Min+steps*r.Step)*1e9) / 1e9
	return r.Clamp(snapped)
}

// Ranges is the table of tunable parameters in editor order.
var Ranges = []Range{
	{Key: KeyRobotRadius, Value: 5, Min: 1, Max: 10, Step: 1},
	{Key: KeyRobotSpeed, Value: 1, Min: 0, Max: 10, Step: 0.1},
	{Key: KeyRobotRotationJitter, Value: 0, Min: 0, Max: 1, Step: 0.01},
	{Key: KeyRobotSpeedJitter, Value: 0, Min: 0, Max: 1, Step: 0.01},
	{Key: KeyStorageRadius, Value: 10, Min: 1, Max: 20, Step: 1},
	{Key: KeyStorageSpeed, Value: 0, Min: 0, Max: 10, Step: 0.1},
	{Key: KeyStorageAmount, Value: 100, Min: 10, Max: 1000, Step: 10},
	{Key: KeySourceRadius, Value: 10, Min: 1, Max: 20, Step: 1},
	{Key: KeySourceSpeed, Value: 0, Min: 0, Max: 10, Step: 0.1},
	{Key: KeySourceAmount, Value: 100, Min: 10, Max: 1000, Step: 10},
	{Key: KeyNodeRotationJitter, Value: 0, Min: 0, Max: 1, Step: 0.01},
	{Key: KeyReceiverRadius, Value: 30, Min: 1, Max: 100, Step: 1},
	{Key: KeySelfConfidentFactor, Value: 1.25, Min: 0, Max: 5, Step: 0.01},
	{Key: KeyNumberOfRobots, Value: 100, Min: 10, Max: 1000, Step: 10},
	{Key: KeyNumberOfSources, Value: 1, Min: 1, Max: 10, Step: 1},
	{Key: KeyNumberOfStorages, Value: 1, Min: 1, Max: 10, Step: 1},
}

var rangeIndex = func() map[string]int {
	m := make(map[string]int, len(Ranges))
	for i, r := range Ranges {
		m[r.Key] = i
	}
	return m
}()

// LookupRange returns the declared range for a parameter key.
func LookupRange(key string) (Range, bool) {
	i, ok := rangeIndex[key]
	if !ok {
		return Range{}, false
	}
	return Ranges[i], true
}

// Params is a typed snapshot of one colony's parameters. Values are always
// within their declared ranges.
type Params struct {
	RobotRadius         float64
	RobotSpeed          float64
	RobotRotationJitter float64
	RobotSpeedJitter    float64

	StorageRadius float64
	StorageSpeed  float64
	StorageAmount int

	SourceRadius float64
	SourceSpeed  float64
	SourceAmount int

	NodeRotationJitter float64

	ReceiverRadius      float64
	SelfConfidentFactor float64

	NumberOfRobots   int
	NumberOfSources  int
	NumberOfStorages int

	RobotColor    string
	ResourceColor string
}

// DefaultParams returns the built-in defaults.
func DefaultParams() Params {
	var p Params
	for _, r := range Ranges {
		p.set(r.Key, r.Value)
	}
	p.RobotColor = DefaultRobotColor
	p.ResourceColor = DefaultResourceColor
	return p
}

// Value returns the numeric value of a parameter key.
func (p Params) Value(key string) (float64, error) {
	switch key {
	case KeyRobotRadius:
		return p.RobotRadius, nil
	case KeyRobotSpeed:
		return p.RobotSpeed, nil
	case KeyRobotRotationJitter:
		return p.RobotRotationJitter, nil
	case KeyRobotSpeedJitter:
		return p.RobotSpeedJitter, nil
	case KeyStorageRadius:
		return p.StorageRadius, nil
	case KeyStorageSpeed:
		return p.StorageSpeed, nil
	case KeyStorageAmount:
		return float64(p.StorageAmount), nil
	case KeySourceRadius:
		return p.SourceRadius, nil
	case KeySourceSpeed:
		return p.SourceSpeed, nil
	case KeySourceAmount:
		return float64(p.SourceAmount), nil
	case KeyNodeRotationJitter:
		return p.NodeRotationJitter, nil
	case KeyReceiverRadius:
		return p.ReceiverRadius, nil
	case KeySelfConfidentFactor:
		return p.SelfConfidentFactor, nil
	case KeyNumberOfRobots:
		return float64(p.NumberOfRobots), nil
	case KeyNumberOfSources:
		return float64(p.NumberOfSources), nil
	case KeyNumberOfStorages:
		return float64(p.NumberOfStorages), nil
	}
	return 0, fmt.Errorf("unknown parameter %q", key)
}

// set assigns a numeric value without range checks. Integer parameters
// round to the nearest whole number.
func (p *Params) set(key string, v float64) {
	switch key {
	case KeyRobotRadius:
		p.RobotRadius = v
	case KeyRobotSpeed:
		p.RobotSpeed = v
	case KeyRobotRotationJitter:
		p.RobotRotationJitter = v
	case KeyRobotSpeedJitter:
		p.RobotSpeedJitter = v
	case KeyStorageRadius:
		p.StorageRadius = v
	case KeyStorageSpeed:
		p.StorageSpeed = v
	case KeyStorageAmount:
		p.StorageAmount = int(math.Round(v))
	case KeySourceRadius:
		p.SourceRadius = v
	case KeySourceSpeed:
		p.SourceSpeed = v
	case KeySourceAmount:
		p.SourceAmount = int(math.Round(v))
	case KeyNodeRotationJitter:
		p.NodeRotationJitter = v
	case KeyReceiverRadius:
		p.ReceiverRadius = v
	case KeySelfConfidentFactor:
		p.SelfConfidentFactor = v
	case KeyNumberOfRobots:
		p.NumberOfRobots = int(math.Round(v))
	case KeyNumberOfSources:
		p.NumberOfSources = int(math.Round(v))
	case KeyNumberOfStorages:
		p.NumberOfStorages = int(math.Round(v))
	}
}

// Map returns the parameters in their persisted blob form.
func (p Params) Map() map[string]any {
	m := make(map[string]any, len(Ranges)+2)
	for _, r := range Ranges {
		v, _ := p.Value(r.Key)
		m[r.Key] = v
	}
	m[KeyRobotColor] = p.RobotColor
	m[KeyResourceColor] = p.ResourceColor
	return m
}

// SameCounts reports whether both snapshots ask for the same population
// sizes.
func (p Params) SameCounts(o Params) bool {
	return p.NumberOfRobots == o.NumberOfRobots &&
		p.NumberOfSources == o.NumberOfSources &&
		p.NumberOfStorages == o.NumberOfStorages
}
