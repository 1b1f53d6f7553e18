// Package app provides the session coordinator.
//
// A Coordinator owns one screen's AR session: the tracking session, the local anchor
// store and the engine gateway. Every mutation runs on a single actor goroutine; blocking
// engine and remote calls run on worker goroutines and report back through the command
// channel. Completions that arrive after Close are discarded.
package app
