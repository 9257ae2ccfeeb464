// Package entity is the port between the heating components and the home
// automation host that owns entity state.
//
// Port is the interface the components depend on. Store implements it as
// an in-memory mirror fed by the host bridge; its writes are forwarded to
// the host through a Writer. In tests the Store is used directly without a
// writer.
//
// States are raw strings as the host reports them. IsValid filters the
// host's placeholders ("unavailable", "unknown", "None", empty) and the
// Float helpers parse numeric readings.
package entity
