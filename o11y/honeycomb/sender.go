package honeycomb

import (
	"github.com/honeycombio/libhoney-go/transmission"
)

// MultiSender fans each event out to all of its Senders.
type MultiSender struct {
	Senders []transmission.Sender
}

func (s *MultiSender) Start() error {
	for _, tx := range s.Senders {
		if err := tx.Start(); err != nil {
			return err
		}
	}
	return nil
}

func (s *MultiSender) Stop() error {
	for _, tx := range s.Senders {
		if err := tx.Stop(); err != nil {
			return err
		}
	}
	return nil
}

func (s *MultiSender) Flush() error {
	for _, tx := range s.Senders {
		if err := tx.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (s *MultiSender) Add(ev *transmission.Event) {
	for _, tx := range s.Senders {
		tx.Add(ev)
	}
}

// TxResponses returns the responses of the first sender only.
func (s *MultiSender) TxResponses() chan transmission.Response {
	if len(s.Senders) == 0 {
		return nil
	}
	return s.Senders[0].TxResponses()
}

func (s *MultiSender) SendResponse(r transmission.Response) bool {
	if len(s.Senders) == 0 {
		return false
	}
	return s.Senders[0].SendResponse(r)
}
