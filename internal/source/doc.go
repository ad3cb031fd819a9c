// Package source fetches raw catalogue documents for the engine.
//
// Supported locations:
//
//	http://, https://   HTTP GET; non-2xx answers fail
//	file://, plain path local JSON (comments and trailing commas allowed)
//	sqlite://path       catalogue database written by compatctl import
package source
