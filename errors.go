package qdev

import (
	"errors"
	"fmt"
)

var (
	ErrMissingParameter      = errors.New("qdev: missing parameter")
	ErrInvalidParameterValue = errors.New("qdev: invalid parameter value")
	ErrBadBusForDevice       = errors.New("qdev: device not compatible with bus")
	ErrNoBusForDevice        = errors.New("qdev: no bus can host device")
	ErrBusNoHotplug          = errors.New("qdev: bus does not support hotplugging")
	ErrBusNotFound           = errors.New("qdev: bus not found")
	ErrDeviceNotFound        = errors.New("qdev: device not found")
	ErrDeviceNoBus           = errors.New("qdev: device has no child bus")
	ErrDeviceMultipleBuses   = errors.New("qdev: device has multiple child buses")
	ErrDeviceInitFailed      = errors.New("qdev: device initialization failed")
	ErrDeviceNoState         = errors.New("qdev: device has no state to show")
	ErrPropertyParse         = errors.New("qdev: property parse rejected")
)

// PathError reports an unresolved or ambiguous path segment. It wraps
// one of the path sentinels and carries the sibling names a monitor
// may list for an interactive user.
type PathError struct {

	// Err is the sentinel classifying the failure.
	Err error

	// Segment is the path element that failed to resolve.
	Segment string

	// Owner names the node whose children were searched.
	Owner string

	// Candidates are the names available at Owner.
	Candidates []string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%v: %q", e.Err, e.Segment)
}

func (e *PathError) Unwrap() error {
	return e.Err
}
