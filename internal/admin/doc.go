// Package admin is the operator HTTP API: definition lifecycle, manual
// ticks, the run log and health. It binds to localhost by default and
// requires a bearer token anywhere else.
package admin
