package grid

import (
	"fmt"
	"time"
)

// alertRateLimit bounds fan-temperature alerts to once per level per
// window.
const alertRateLimit = 15 * time.Second

// FanConfig describes the linear temperature-to-PWM mapping and the two
// alert thresholds.
type FanConfig struct {
	LowTemp  float64
	HighTemp float64
	PWMMin   byte
	PWMMax   byte

	WarnThreshold  float64
	ErrorThreshold float64
}

// FanController computes the PWM duty cycle from controller
// temperature, tracks the last value written so writes are idempotent,
// and rate-limits the two alert levels independently.
type FanController struct {
	cfg FanConfig

	hasWritten  bool
	lastWritten byte

	lastCriticalAlert time.Time
	lastErrorAlert    time.Time
}

// NewFanController creates a FanController from cfg.
func NewFanController(cfg FanConfig) *FanController {
	return &FanController{cfg: cfg}
}

// Compute maps temp linearly from [LowTemp, HighTemp] to [PWMMin,
// PWMMax], clamped at both ends.
func (f *FanController) Compute(temp float64) byte {
	cfg := f.cfg
	if cfg.HighTemp <= cfg.LowTemp {
		return cfg.PWMMin
	}
	if temp <= cfg.LowTemp {
		return cfg.PWMMin
	}
	if temp >= cfg.HighTemp {
		return cfg.PWMMax
	}
	frac := (temp - cfg.LowTemp) / (cfg.HighTemp - cfg.LowTemp)
	span := float64(cfg.PWMMax) - float64(cfg.PWMMin)
	return cfg.PWMMin + byte(frac*span)
}

// ShouldWrite reports whether speed differs from the last value
// MarkWritten recorded; unchanged speeds never touch the serial line.
func (f *FanController) ShouldWrite(speed byte) bool {
	return !f.hasWritten || speed != f.lastWritten
}

// MarkWritten records speed as the last value written over serial.
func (f *FanController) MarkWritten(speed byte) {
	f.hasWritten = true
	f.lastWritten = speed
}

// CheckAlert returns a non-nil Alert if temp crosses the error or warn
// threshold and that level's rate-limit window has elapsed, nil
// otherwise. The error threshold (the higher bound) produces a
// CRITICAL alert; the warn threshold produces an ERROR alert.
func (f *FanController) CheckAlert(temp float64, now time.Time) *Alert {
	if temp > f.cfg.ErrorThreshold {
		if now.Sub(f.lastCriticalAlert) >= alertRateLimit {
			f.lastCriticalAlert = now
			return &Alert{
				Category: "fan_temperature",
				Level:    AlertCritical,
				Message:  fmt.Sprintf("controller temperature %.1f exceeds error threshold %.1f", temp, f.cfg.ErrorThreshold),
			}
		}
		return nil
	}
	if temp > f.cfg.WarnThreshold {
		if now.Sub(f.lastErrorAlert) >= alertRateLimit {
			f.lastErrorAlert = now
			return &Alert{
				Category: "fan_temperature",
				Level:    AlertError,
				Message:  fmt.Sprintf("controller temperature %.1f exceeds warn threshold %.1f", temp, f.cfg.WarnThreshold),
			}
		}
	}
	return nil
}
