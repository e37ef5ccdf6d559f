package tone

import "math"

const tableSize = 2048

// customTable holds one period of the custom timbre: the Fourier series with
// cosine terms [0, 1, 0.5] and sine terms [0, 0, 0.5], scaled to peak 1.
var customTable = buildTable([]float64{0, 1, 0.5}, []float64{0, 0, 0.5})

func buildTable(real, imag []float64) []float64 {
	table := make([]float64, tableSize)
	peak := 0.0
	for i := range table {
		theta := 2 * math.Pi * float64(i) / tableSize
		var v float64
		for k := 1; k < len(real); k++ {
			v += real[k]*math.Cos(float64(k)*theta) + imag[k]*math.Sin(float64(k)*theta)
		}
		table[i] = v
		peak = max(peak, math.Abs(v))
	}
	if peak > 0 {
		for i := range table {
			table[i] /= peak
		}
	}
	return table
}

// Wave evaluates one period of the timbre at phase in [0, 1).
func Wave(t Timbre, phase float64) float64 {
	switch t {
	case Square:
		if phase < 0.5 {
			return 1
		}
		return -1
	case Sawtooth:
		return 2*phase - 1
	case Triangle:
		if phase < 0.5 {
			return 4*phase - 1
		}
		return 3 - 4*phase
	case Custom:
		return customTable[int(phase*tableSize)%tableSize]
	default:
		return math.Sin(2 * math.Pi * phase)
	}
}

// Envelope returns the gain at elapsed seconds into a tone: PeakGain at the
// attack, decaying exponentially toward FloorGain over Duration.
func Envelope(elapsed float64) float64 {
	if elapsed <= 0 {
		return PeakGain
	}
	return PeakGain * math.Pow(FloorGain/PeakGain, elapsed/Duration.Seconds())
}

// Voice is one sounding tone. It renders samples until its envelope window
// ends and is then released; voices are never reused.
type Voice struct {
	timbre     Timbre
	step       float64 // phase increment per sample
	phase      float64
	sampleRate int
	n          int
	total      int
	delay      int
}

// NewVoice creates a voice at freq Hz that starts after delay samples.
func NewVoice(freq float64, timbre Timbre, sampleRate, delay int) *Voice {
	return &Voice{
		timbre:     timbre,
		step:       freq / float64(sampleRate),
		sampleRate: sampleRate,
		total:      int(Duration.Seconds() * float64(sampleRate)),
		delay:      max(0, delay),
	}
}

// Done reports whether the voice has been released.
func (v *Voice) Done() bool {
	return v.n >= v.total
}

// Next returns the next sample, or 0 once the voice is done.
func (v *Voice) Next() float64 {
	if v.delay > 0 {
		v.delay--
		return 0
	}
	if v.Done() {
		return 0
	}
	s := Wave(v.timbre, v.phase) * Envelope(float64(v.n)/float64(v.sampleRate))
	v.n++
	v.phase += v.step
	v.phase -= math.Floor(v.phase)
	return s
}
