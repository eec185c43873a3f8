// Package wire defines the records exchanged between the front end and
// worker nodes, and the length-prefixed framing that carries them.
//
// Records use protobuf-compatible encoding so that workers written against
// a .proto definition can interoperate:
//
//	message Task   { int32 index = 1; }
//	message Result { int32 index = 1; string result = 2; string error = 3; }
package wire
