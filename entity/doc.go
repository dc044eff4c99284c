// Package entity provides Responder, a minimal AVDECC entity that answers
// ACMP, AEM and Milan vendor-unique commands addressed to it.
//
// A Responder sits on its own ProtocolInterface and is meant for
// loopback testing and for the avdeccctl respond command: it echoes AEM
// payloads, acknowledges ACMP commands, and can be told to delay, to send
// an IN_PROGRESS interim response first, or to drop selected commands.
package entity
