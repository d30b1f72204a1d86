// Package notify prints short-lived toasts for command results, suppressing a
// toast identical to one shown within a configurable window.
package notify
