package pipeline

import (
	"reflect"

	"github.com/banshee-data/canopy.tiles/internal/lidar/l1records"
)

// ReportSink renders diagnostics for a processed unit. It receives the
// unit's table because tile results refer to records by index.
type ReportSink interface {
	ReportUnit(t l1records.Table, res *Result) error
}

// isNilInterface checks if an interface value is nil or contains a nil pointer.
func isNilInterface(i interface{}) bool {
	if i == nil {
		return true
	}
	v := reflect.ValueOf(i)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	}
	return false
}
