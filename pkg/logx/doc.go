// Package logx is the structured logger every recurpay component receives.
//
// A Logger is a value: derive component loggers with With and pass them by
// value. Loggers built from a Service follow its level and sinks, so a config
// reload takes effect without rebuilding them. Console output is the zerolog
// pretty writer with a file:line caller; the optional file sink writes JSON.
package logx
