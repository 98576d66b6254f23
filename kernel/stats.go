package kernel

import (
	"context"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/teranos/qconsole/errors"
)

// Usage is a snapshot of the interpreter's resource consumption.
type Usage struct {
	PID           int32   `json:"pid"`
	RSSBytes      uint64  `json:"rss_bytes"`
	VMSBytes      uint64  `json:"vms_bytes"`
	MemoryPercent float64 `json:"memory_percent"`
	CPUPercent    float64 `json:"cpu_percent"`
	Threads       int32   `json:"threads"`
}

// Stats samples the child process. It does not wait for an in-flight
// Execute.
func (k *Subprocess) Stats(ctx context.Context) (Usage, error) {
	pid := int32(k.pid.Load())
	if pid == 0 {
		return Usage{}, errors.ErrNotConnected
	}

	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return Usage{}, errors.Wrapf(err, "inspect interpreter pid %d", pid)
	}

	u := Usage{PID: pid}
	info, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return Usage{}, errors.Wrap(err, "failed to get interpreter memory")
	}
	u.RSSBytes = info.RSS
	u.VMSBytes = info.VMS

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil && vm.Total > 0 {
		u.MemoryPercent = float64(info.RSS) / float64(vm.Total) * 100
	}
	if cpu, err := p.CPUPercentWithContext(ctx); err == nil {
		u.CPUPercent = cpu
	}
	if n, err := p.NumThreadsWithContext(ctx); err == nil {
		u.Threads = n
	}
	return u, nil
}
