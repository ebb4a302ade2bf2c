package cache

import (
	"reflect"
	"time"
)

// ViewState is the render state of an entry.
type ViewState int

const (
	StateLoading ViewState = iota
	StateError
	StateEmpty
	StatePopulated
)

func (s ViewState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateError:
		return "error"
	case StateEmpty:
		return "empty"
	case StatePopulated:
		return "populated"
	default:
		return "unknown"
	}
}

// Entry is a snapshot of one cached query.
type Entry struct {
	Key       Key
	Data      any
	Err       error
	IsLoading bool
	IsStale   bool
	UpdatedAt time.Time
	settled   bool
}

// Settled reports whether a load or a direct write has completed for the entry.
func (e Entry) Settled() bool {
	return e.settled
}

// State reduces the entry to the four page states.
// An entry that is refetching keeps showing its previous data.
func (e Entry) State() ViewState {
	switch {
	case e.Err != nil:
		return StateError
	case !e.settled:
		return StateLoading
	case isEmpty(e.Data):
		return StateEmpty
	default:
		return StatePopulated
	}
}

func isEmpty(data any) bool {
	if data == nil {
		return true
	}
	v := reflect.ValueOf(data)
	switch v.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return v.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}
