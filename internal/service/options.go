package service

import "time"

// Options carries the discovery tunables
type Options struct {
	Radius         float64
	SuggestedLimit int
	MaxPageSize    int
	QueryTimeout   time.Duration
	Now            func() time.Time
}

func DefaultOptions() Options {
	return Options{
		Radius:         10,
		SuggestedLimit: 10,
		MaxPageSize:    100,
		QueryTimeout:   5 * time.Second,
		Now:            time.Now,
	}
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now().UTC()
	}
	return o.Now().UTC()
}
