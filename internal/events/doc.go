// Package events publishes pipeline progress to interested listeners.
//
// A Publisher receives one Event per progress update. The NATS publisher
// sends each event as JSON to "<prefix>.<video_id>"; Nop discards events and
// Multi fans one event out to several publishers.
package events
