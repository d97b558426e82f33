// Package synthesis combines the advisory level outcomes into one verdict and
// confidence score (Level 5).
//
// Confidence is the weighted mean of the executed levels' contributions:
// 0.3 x context score, 0.5 x truth score, 0.7 x (1 - risk score). At or above
// 0.7 the action is approved, from 0.4 it is escalated for human review, and
// below that it is denied.
//
// When no level executed, the confidence is a neutral 0.5. If none failed
// either, the rule validation approval stands.
package synthesis
