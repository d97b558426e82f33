package collaborator

// Registry holds the collaborators for Levels 2 to 4. It is built once and
// read concurrently; unregistered levels resolve to the Unavailable null
// collaborator.
type Registry struct {
	context ContextAssessor
	truth   TruthVerifier
	risk    RiskAssessor
}

// Option registers a collaborator.
type Option func(*Registry)

// WithContextAssessor registers the Level 2 collaborator.
func WithContextAssessor(c ContextAssessor) Option {
	return func(r *Registry) { r.context = c }
}

// WithTruthVerifier registers the Level 3 collaborator.
func WithTruthVerifier(c TruthVerifier) Option {
	return func(r *Registry) { r.truth = c }
}

// WithRiskAssessor registers the Level 4 collaborator.
func WithRiskAssessor(c RiskAssessor) Option {
	return func(r *Registry) { r.risk = c }
}

// NewRegistry creates a registry from options. A nil collaborator leaves the
// level unregistered.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Context returns the Level 2 collaborator, or the null collaborator.
func (r *Registry) Context() ContextAssessor {
	if r == nil || r.context == nil {
		return Unavailable{}
	}
	return r.context
}

// Truth returns the Level 3 collaborator, or the null collaborator.
func (r *Registry) Truth() TruthVerifier {
	if r == nil || r.truth == nil {
		return Unavailable{}
	}
	return r.truth
}

// Risk returns the Level 4 collaborator, or the null collaborator.
func (r *Registry) Risk() RiskAssessor {
	if r == nil || r.risk == nil {
		return Unavailable{}
	}
	return r.risk
}

// Registered reports which levels have a collaborator.
func (r *Registry) Registered() map[int]bool {
	return map[int]bool{
		2: r != nil && r.context != nil,
		3: r != nil && r.truth != nil,
		4: r != nil && r.risk != nil,
	}
}
