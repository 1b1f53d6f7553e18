// Package simengine is a deterministic in-process AR engine.
//
// It implements domain.Engine for local development and tests: the camera pose is
// set by the caller, persisted anchors are kept in a DescriptorStore, and every
// engine call can be made to fail on demand.
package simengine
