package darkness

// DefaultThreshold is the luminance cutoff used by the capture pipeline.
const DefaultThreshold = 40

// Logger receives the optional per-frame diagnostic.
type Logger interface {
	Debug(format string, v ...interface{})
}

// Verdict is the outcome of classifying one frame.
type Verdict struct {
	Average   int  `json:"luminance"`
	Threshold int  `json:"threshold"`
	Dark      bool `json:"dark"`
}

// Classifier applies a fixed threshold. It holds no per-frame state and is
// safe for concurrent use.
type Classifier struct {
	threshold int
	logger    Logger
}

// NewClassifier creates a Classifier. logger may be nil.
func NewClassifier(threshold int, logger Logger) *Classifier {
	return &Classifier{threshold: threshold, logger: logger}
}

// Threshold returns the configured cutoff.
func (c *Classifier) Threshold() int {
	return c.threshold
}

// Classify computes the average luminance of pixels and compares it with the
// threshold.
func (c *Classifier) Classify(pixels PixelBuffer, width, height int) (Verdict, error) {
	avg, err := AverageLuminance(pixels, width, height)
	if err != nil {
		return Verdict{}, err
	}

	if c.logger != nil {
		c.logger.Debug("Average luminance=%d threshold=%d", avg, c.threshold)
	}
	return Verdict{Average: avg, Threshold: c.threshold, Dark: avg < c.threshold}, nil
}
