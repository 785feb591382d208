package recurring

import (
	"time"

	"github.com/google/uuid"

	"recurpay/internal/eventbus"
	logx "recurpay/pkg/logx"
)

// Options carries the collaborators shared by Processor and Definitions.
// Zero fields get defaults: Nop logger and bus, time.Now, uuid.New, time.Local.
type Options struct {
	Log   logx.Logger
	Bus   eventbus.Bus
	Clock func() time.Time
	NewID func() uuid.UUID

	// Location is consulted on every call so timezone changes apply without restart.
	Location func() *time.Location
}

func (o Options) withDefaults() Options {
	if o.Log.IsZero() {
		o.Log = logx.Nop()
	}
	if o.Bus == nil {
		o.Bus = eventbus.Nop()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.NewID == nil {
		o.NewID = uuid.New
	}
	if o.Location == nil {
		o.Location = func() *time.Location { return time.Local }
	}
	return o
}

func (o Options) loc() *time.Location {
	if l := o.Location(); l != nil {
		return l
	}
	return time.Local
}
