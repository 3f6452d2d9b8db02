// Package gateway assembles one market gateway instance.
//
// Start order: bus, symbol registry, venue sessions, relay, HTTP server;
// Stop reverses it. Instances never talk to each other directly; all
// cross-instance coordination rides the bus subjects.
package gateway
