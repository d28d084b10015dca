package main

// layoutLock is held while a modal is open over the job table. It counts holders so
// nested modals release correctly.
type layoutLock struct {
	holders int
}

func (l *layoutLock) acquire() {
	l.holders++
}

func (l *layoutLock) release() {
	if l.holders > 0 {
		l.holders--
	}
}

func (l *layoutLock) held() bool {
	return l.holders > 0
}
