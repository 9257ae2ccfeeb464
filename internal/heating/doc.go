// Package heating implements the demand and supply sides of the heating
// controller.
//
// A Zone turns one room's schedule, helpers and temperature sensor into a
// target temperature, a heat claim and a boost request. The claim uses a
// hysteresis band: below target-delta the zone claims heat, at or above
// target-margin it releases, and in between the previous claim holds.
// Zones with a SolarConfig lower their target by up to the configured sun
// compensation as the greenhouse sensor warms from activation to peak.
//
// The Arbitrator aggregates every zone's claim into one boiler flow
// setpoint. A claim only counts once it has been on for the claim
// duration. The setpoint is an outdoor-compensated baseline plus the
// largest boost of the active zones plus a per-extra-zone offset. The
// arbitrator also moves the master mode between Auto and Heating and ends
// Party mode when every valve has closed.
//
// The dashboard text ("Heating stops at 22:00.") is built by following
// contiguous schedule blocks with FindChainEnd.
//
// Everything in this package runs on a dispatch.Loop and talks to the
// home automation host through entity.Port only.
package heating
