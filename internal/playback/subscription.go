package playback

const eventBufferSize = 16

// Subscription provides event channels for one subscriber. Sends are
// non-blocking: a subscriber that stops draining loses events rather
// than stalling the session.
type Subscription struct {
	StateChanged <-chan State
	TrackChanged <-chan TrackChange
	QueueChanged <-chan QueueChange
	Error        <-chan ErrorEvent
	Done         <-chan struct{}

	stateCh chan State
	trackCh chan TrackChange
	queueCh chan QueueChange
	errorCh chan ErrorEvent
	doneCh  chan struct{}
}

func newSubscription() *Subscription {
	s := &Subscription{
		stateCh: make(chan State, eventBufferSize),
		trackCh: make(chan TrackChange, eventBufferSize),
		queueCh: make(chan QueueChange, eventBufferSize),
		errorCh: make(chan ErrorEvent, eventBufferSize),
		doneCh:  make(chan struct{}),
	}
	s.StateChanged = s.stateCh
	s.TrackChanged = s.trackCh
	s.QueueChanged = s.queueCh
	s.Error = s.errorCh
	s.Done = s.doneCh
	return s
}

func (s *Subscription) close() {
	close(s.doneCh)
}

func (s *Subscription) sendState(st State) {
	select {
	case s.stateCh <- st:
	default:
		// Drop if buffer full
	}
}

func (s *Subscription) sendTrack(e TrackChange) {
	select {
	case s.trackCh <- e:
	default:
	}
}

func (s *Subscription) sendQueue(e QueueChange) {
	select {
	case s.queueCh <- e:
	default:
	}
}

func (s *Subscription) sendError(e ErrorEvent) {
	select {
	case s.errorCh <- e:
	default:
	}
}
