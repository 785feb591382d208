// Package recurrence computes when a recurring payment is due next.
//
// Everything here is pure: Next depends only on the rule and the reference
// instant, and calendar arithmetic happens in the reference's location.
package recurrence
