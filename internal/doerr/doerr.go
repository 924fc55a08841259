// Package doerr defines the DOSA error taxonomy: each error kind is a
// discriminant on a single tagged error type, propagated as ordinary
// error return values and inspected with errors.As/errors.Is.
package doerr

import (
	"errors"
	"fmt"
)

// Kind discriminates the error taxonomy.
type Kind string

const (
	KindInvalidFrame        Kind = "invalid_frame"
	KindInvalidName         Kind = "invalid_name"
	KindTransport           Kind = "transport"
	KindBLENotPowered       Kind = "ble_not_powered"
	KindBLEDeviceNotFound   Kind = "ble_device_not_found"
	KindBLEConnectionFailed Kind = "ble_connection_failed"
	KindBLEDisconnected     Kind = "ble_disconnected"
	KindSerial              Kind = "serial"
	KindConfigParse         Kind = "config_parse"
	KindAlertSink           Kind = "alert_sink"
)

// Error is the single error type used across the DOSA packages.
// It carries a Kind for programmatic dispatch plus an optional wrapped
// cause for diagnostics.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error of the given kind with a message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap creates an Error of the given kind, wrapping an underlying cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Of reports whether err is a *Error of the given kind, unwrapping as
// needed.
func Of(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
