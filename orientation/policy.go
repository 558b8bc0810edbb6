package orientation

// sampleFamily groups samples by the sensor policy that accepts them.
type sampleFamily uint8

const (
	familyNone sampleFamily = iota
	familyLandscape
	familyPortrait
)

// sensorTable maps a live sample to the orientation a sensor policy
// presents for it. The landscape rows are cross-wired: a flipped sample
// presents the non-reversed orientation and vice versa.
var sensorTable = [...]struct {
	family sampleFamily
	to     Orientation
}{
	Unknown:                {familyNone, 0},
	SampleLandscapeFlipped: {familyLandscape, Landscape},
	SampleLandscape:        {familyLandscape, ReverseLandscape},
	SamplePortrait:         {familyPortrait, Portrait},
	SamplePortraitFlipped:  {familyPortrait, ReversePortrait},
}

func (m Mode) accepts(f sampleFamily) bool {
	switch m {
	case SensorLandscape:
		return f == familyLandscape
	case SensorPortrait:
		return f == familyPortrait
	case SensorAny:
		return f != familyNone
	}
	return false
}

// Resolve derives the orientation to present from the policy and the
// latest live sample. Fixed modes ignore sample and previous. Sensor modes
// return previous for samples outside the family they accept.
func Resolve(mode Mode, sample Sample, previous Orientation) Orientation {
	return resolveState(mode, sample, Resolved(previous)).Orientation
}

func resolveState(mode Mode, sample Sample, previous State) State {
	if o, ok := mode.Fixed(); ok {
		return Resolved(o)
	}
	if int(sample) >= len(sensorTable) {
		return previous
	}
	row := sensorTable[sample]
	if !mode.accepts(row.family) {
		return previous
	}
	return Resolved(row.to)
}

// seed is the orientation a sensor policy starts from when no accepted
// sample has been seen yet. SensorAny has none and stays uninitialized.
func seed(mode Mode) (Orientation, bool) {
	switch mode {
	case SensorLandscape:
		return Landscape, true
	case SensorPortrait:
		return Portrait, true
	}
	return mode.Fixed()
}
