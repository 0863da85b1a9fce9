// Package bundle provides the typed key/value bag that carries call
// composer content between the vendor service, the correlator and the host
// call registry.
//
// A Bundle only holds strings, integers, booleans and nested bundles. There
// are no floats and no nulls, so two bundles with equal content always
// produce the same canonical JSON and the same content hash.
//
// bundle imports nothing internal; every other package may depend on it.
package bundle
