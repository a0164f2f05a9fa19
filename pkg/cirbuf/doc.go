// Package cirbuf provides a fixed capacity circular byte buffer.
//
// A Buffer connects exactly one producer context (an "interrupt" context:
// a UART receive goroutine, a USB endpoint handler) with exactly one consumer
// context (a main loop or worker). Neither side blocks the other and no lock
// is taken: the producer only publishes the write cursor and the consumer
// only publishes the read cursor, each after the bytes are written or
// consumed.
//
// On top of the raw byte stream a Buffer can carry length prefixed packets
// (TypePacket with a 1 byte header, TypePacketLarge with a 2 byte big endian
// header) and an escape codec (FormatASCIIEsc, FormatBinaryEsc) that reserves
// a delimiter and control characters in band.
//
// Producer: PutXXX, GetWrArr/UpdatePut.
// Consumer: GetXXX, PeekXXX, RemoveXXX, GetRdArr, Task.
package cirbuf
