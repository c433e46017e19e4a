package auth

// Recorder receives authentication and authorization outcomes, typically
// for metrics.
type Recorder interface {
	AuthAttempt(result string)
	TokenRejected(reason string)
	PolicyDecision(policy string, allowed bool)
}

type noopRecorder struct{}

func (noopRecorder) AuthAttempt(string)          {}
func (noopRecorder) TokenRejected(string)        {}
func (noopRecorder) PolicyDecision(string, bool) {}
