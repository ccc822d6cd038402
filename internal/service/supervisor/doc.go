// Package supervisor owns the clock controller and the sequence player for
// the lifetime of the process and turns controller reports into
// notifications for its observers.
package supervisor
