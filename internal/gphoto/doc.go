// Package gphoto drives still cameras through libgphoto2.
//
// A process creates one Context, lists devices with ListDevices, opens a
// Camera and then reads or changes its configuration tree (Config, Widget)
// and takes pictures or live-view frames (File).
//
// Every native reference taken by this package is owned by exactly one
// wrapper and given back through Release or Close. The native calls go
// through the Library interface: package libgphoto2 binds the real
// library with cgo, package mock simulates a camera in memory.
package gphoto
