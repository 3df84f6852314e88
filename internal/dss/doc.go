// Package dss reads and writes the OpenDSS text circuit format.
//
// A DSS file is a sequence of statements such as
//
//	New Load.house_12 bus1=p1u.1 phases=1 kV=0.12 kW=2.1 yearly=house_12
//	~ kvar=0.4
//	Redirect LoadShapes.dss
//	Solve mode=daily stepsize=15m number=96
//
// Lines beginning with "~" (or "more") continue the previous statement.
// Lines beginning with "!" or "//" are comments. Unmodified statements
// serialize back to their original text, so a parse/serialize round trip
// preserves the file byte for byte apart from line endings.
package dss
