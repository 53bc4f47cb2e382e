// Package viz renders simulation results for the terminal and for files.
//
//   - [Report] and [SweepReport]: lipgloss panels for run summaries and sweep tables
//   - [Chart]: asciigraph line charts of a trace or a sweep column
//   - [SavePNG]: gonum/plot line plots written as PNG
//   - [RunProgress]: a Bubble Tea progress view that drives a long sweep
package viz
