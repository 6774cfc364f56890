package sensors

import (
	"time"

	"github.com/gr-butler/fieldstation/schedule"
	logger "github.com/sirupsen/logrus"
)

type edgeWaiter interface {
	WaitForEdge(timeout time.Duration) bool
}

// IRQSleeper sleeps by waiting for an edge on the lightning interrupt line,
// so a strike ends the sleep early.
type IRQSleeper struct {
	Pin edgeWaiter
}

func (s IRQSleeper) Sleep(d time.Duration) schedule.WakeCause {
	if d <= 0 {
		return schedule.WakeTimer
	}
	if s.Pin.WaitForEdge(d) {
		logger.Infof("Woken by interrupt")
		return schedule.WakeInterrupt
	}
	return schedule.WakeTimer
}
