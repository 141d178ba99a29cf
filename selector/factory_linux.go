//go:build linux

package selector

func newDefault() (Selector, error) { return NewEpoll() }

func defaultFactories() []Factory {
	return []Factory{NewEpoll, NewPoll, NewSelect}
}
