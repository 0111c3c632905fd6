package status

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/sensors"
)

const (
	// memWarnPercent matches the threshold at which the bar highlights memory.
	memWarnPercent = 70.0
	tempWarnC      = 90.0
)

// cpuSensorChips are tried in order; the first reading of the first chip
// present is the CPU package temperature.
var cpuSensorChips = []string{"coretemp", "k10temp", "tctl", "cpu_thermal", "thinkpad"}

// System is a CPU and memory reading.
type System struct {
	CPUPercent  float64
	MemPercent  float64
	MemUsed     uint64
	MemTotal    uint64
	SwapPercent float64
	SwapTotal   uint64
	// CPUTemp is in degrees Celsius, valid when TempOK.
	CPUTemp float64
	TempOK  bool
}

// MemoryPressure reports whether memory use is high enough to highlight.
func (s System) MemoryPressure() bool {
	return s.MemPercent >= memWarnPercent
}

// Overheating reports whether the CPU temperature needs attention.
func (s System) Overheating() bool {
	return s.TempOK && s.CPUTemp >= tempWarnC
}

// ReadSystem samples gopsutil. CPU usage is measured since the previous call,
// so the first reading after start is approximate.
func ReadSystem(ctx context.Context) (System, error) {
	var out System

	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return out, fmt.Errorf("cpu percent: %w", err)
	}
	if len(percents) > 0 {
		out.CPUPercent = percents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return out, fmt.Errorf("virtual memory: %w", err)
	}
	out.MemPercent = vm.UsedPercent
	out.MemUsed = vm.Used
	out.MemTotal = vm.Total

	if swap, err := mem.SwapMemoryWithContext(ctx); err == nil {
		out.SwapPercent = swap.UsedPercent
		out.SwapTotal = swap.Total
	}

	// Some chips fail to read; the others still come back alongside a
	// warnings error.
	temps, _ := sensors.TemperaturesWithContext(ctx)
	out.CPUTemp, out.TempOK = cpuTemperature(temps)
	return out, nil
}

// cpuTemperature picks the CPU reading by chip priority, falling back to the
// first sensor reported.
func cpuTemperature(temps []sensors.TemperatureStat) (float64, bool) {
	if len(temps) == 0 {
		return 0, false
	}
	for _, chip := range cpuSensorChips {
		for _, t := range temps {
			if t.SensorKey == chip || strings.HasPrefix(t.SensorKey, chip+"_") {
				return t.Temperature, true
			}
		}
	}
	return temps[0].Temperature, true
}
