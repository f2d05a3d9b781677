// Package core defines the data model handed to the karst-conduit
// simulator: the project box with its density and karstification
// potential fields, triangulated surfaces, sinks, springs, and the
// sink/spring connectivity matrix.
//
// Everything in this package is plain data. Values are produced once by
// the conversion pipeline and are not mutated after construction.
package core
