// Package model provides the data structures shared by the pipeline package
// and its observers: step kinds, step records and execution traces.
package model
