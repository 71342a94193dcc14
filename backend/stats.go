package backend

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"

	"github.com/gogpu/tilefx/internal/pool"
)

// PoolStats describes one resource pool.
type PoolStats struct {
	Name      string
	Total     int
	Acquired  int
	CPUMemory uint64
	GPUMemory uint64
}

// Stats is a snapshot of a device.
type Stats struct {
	Backend       ID
	Name          string
	ManagedMemory uint64
	BackendMemory uint64
	Pools         []PoolStats
}

func (s Stats) printJSON(obj *jwriter.ObjectState) {
	obj.Name("Backend").String(s.Backend.String())
	obj.Name("Name").String(s.Name)
	obj.Name("ManagedBytes").Float64(float64(s.ManagedMemory))
	obj.Name("BackendBytes").Float64(float64(s.BackendMemory))

	pools := obj.Name("Pools").Array()
	for _, p := range s.Pools {
		po := pools.Object()
		po.Name("Name").String(p.Name)
		po.Name("Total").Int(p.Total)
		po.Name("Acquired").Int(p.Acquired)
		po.Name("Available").Int(p.Total - p.Acquired)
		po.Name("CPUBytes").Float64(float64(p.CPUMemory))
		po.Name("GPUBytes").Float64(float64(p.GPUMemory))
		po.End()
	}
	pools.End()
}

// BuildStatsString renders the statistics of every device as JSON:
//
//	{"Devices":[{"Backend":"cpu","Name":...,"Pools":[...]}],"TotalManagedBytes":...}
func BuildStatsString(devs ...Device) string {
	w := jwriter.NewWriter()
	root := w.Object()

	var managed, gpu uint64
	arr := root.Name("Devices").Array()
	for _, d := range devs {
		if d == nil {
			continue
		}
		s := d.Stats()
		managed += s.ManagedMemory
		gpu += s.BackendMemory

		obj := arr.Object()
		s.printJSON(&obj)
		obj.End()
	}
	arr.End()

	root.Name("TotalManagedBytes").Float64(float64(managed))
	root.Name("TotalBackendBytes").Float64(float64(gpu))
	root.End()
	return string(w.Bytes())
}

// StatsOf summarizes a resource pool.
func StatsOf[T pool.Resource](p *pool.Pool[T]) PoolStats {
	return PoolStats{
		Name:      p.Name(),
		Total:     p.Len(),
		Acquired:  p.CountAcquired(nil),
		CPUMemory: p.CPUMemory(),
		GPUMemory: p.GPUMemory(),
	}
}
