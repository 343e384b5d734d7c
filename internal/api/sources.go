package api

import (
	"github.com/finsight-labs/finsight-go/internal/poll"
	"github.com/finsight-labs/finsight-go/internal/query"
)

// Synchronizer is a polled resource as seen by the handlers.
type Synchronizer interface {
	Current() any
	Refresh()
}

// Pager is a paged, searchable list as seen by the handlers.
type Pager interface {
	Current() any
	SetSearchTerm(term string)
	SetPage(n int)
	NextPage()
	PrevPage()
}

type pollerSource[T any] struct {
	*poll.Poller[T]
}

func (s pollerSource[T]) Current() any { return s.Snapshot() }

// FromPoller adapts a poller to a Synchronizer.
func FromPoller[T any](p *poll.Poller[T]) Synchronizer {
	return pollerSource[T]{p}
}

type controllerSource[T any] struct {
	*query.Controller[T]
}

func (s controllerSource[T]) Current() any { return s.State() }

// FromController adapts a query controller to a Pager.
func FromController[T any](c *query.Controller[T]) Pager {
	return controllerSource[T]{c}
}
