// Package loom holds project-wide metadata shared by the CLI and library
// consumers.
package loom

// Version is the current Loom release.
const Version = "0.3.0"
