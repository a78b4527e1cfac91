// Package util provides small helpers shared by the gitwatch command.
//
// Key components:
//   - FormatDuration: Renders durations for startup and schedule logs.
//   - SliceSubtract: Finds branches that disappeared between observations.
//
// Usage example:
//
//	until := util.FormatDuration(time.Until(next))
//	removed := util.SliceSubtract(previous.BranchHeads.Names(), current.BranchHeads.Names())
package util
