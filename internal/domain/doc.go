// Package domain defines the core types and the contracts of the external collaborators.
//
// Geometry, anchors, blueprints (containers), the AR engine and document store interfaces
// and the sentinel errors live here. No implementation code beyond small value helpers.
package domain
