// Package collaborator defines the capability contracts for the advisory
// levels (context, truth, risk) and the registry the orchestrator uses to look
// them up.
//
// A level with no registered collaborator reports ErrUnavailable and is
// skipped. Any other error, a timeout, or a missing score or one outside
// [0,1] fails the level.
//
// HTTPCollaborator implements all three contracts against a remote service:
//
//	risk, err := collaborator.NewHTTPCollaborator(collaborator.HTTPConfig{
//	    Name:     "risk",
//	    Endpoint: "http://risk.internal/assess",
//	}, nil, logger)
//	reg := collaborator.NewRegistry(collaborator.WithRiskAssessor(risk))
package collaborator
