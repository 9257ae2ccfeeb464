// Package modbus keeps the boiler's external flow setpoint alive.
//
// The Froling controller accepts an external HK2 flow setpoint over Modbus
// but falls back to its own curve when the register goes stale. KeepAlive
// rewrites the arbitrator's setpoint every KeepAliveInterval, clears the
// circuit pump, and returns the operating mode to automatic once the
// controller has been idle for IdleGrace. LinkWatch notifies when the
// ESP32 gateway loses its Modbus link.
package modbus
