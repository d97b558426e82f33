// Package action defines the structured action an agent submits for a
// decision, and typed accessors for its parameters.
package action
