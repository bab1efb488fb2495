package tracker

import (
	"log"

	"github.com/relabs-tech/orientation_tracker/internal/orientation"
)

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Output  func(orientation.Orientation)
	Preview func(orientation.Orientation)
}

func (f ObserverFuncs) OnOutputOrientationChanged(o orientation.Orientation) {
	if f.Output != nil {
		f.Output(o)
	}
}

func (f ObserverFuncs) OnPreviewOrientationChanged(o orientation.Orientation) {
	if f.Preview != nil {
		f.Preview(o)
	}
}

// MultiObserver fans every change out to each observer in order.
type MultiObserver []Observer

func (m MultiObserver) OnOutputOrientationChanged(o orientation.Orientation) {
	for _, obs := range m {
		if obs != nil {
			obs.OnOutputOrientationChanged(o)
		}
	}
}

func (m MultiObserver) OnPreviewOrientationChanged(o orientation.Orientation) {
	for _, obs := range m {
		if obs != nil {
			obs.OnPreviewOrientationChanged(o)
		}
	}
}

// LogObserver logs every change.
type LogObserver struct{}

func (LogObserver) OnOutputOrientationChanged(o orientation.Orientation) {
	log.Printf("tracker: output orientation changed to %s (%v)", o, o.Rotation())
}

func (LogObserver) OnPreviewOrientationChanged(o orientation.Orientation) {
	log.Printf("tracker: preview orientation changed to %s (%v)", o, o.Rotation())
}
