// Package history records Homie property values in SQLite.
//
// Every accepted property update becomes one row in property_history holding
// the raw payload, the datatype it was received under and the unit. Entries
// are read back newest first for the HTTP API and pruned by a retention loop
// when the configuration sets a retention period.
package history
