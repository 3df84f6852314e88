// Package evprofile synthesizes daily EV charging profiles at 15-minute
// resolution, calibrated against an average per-vehicle demand curve.
//
// Generate produces the uncontrolled fleet; EqualEnergy reshapes it into
// the controlled variant, which spreads each vehicle's daily energy evenly
// over the intervals it was already charging in.
package evprofile

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Intervals is the number of 15-minute intervals in a day.
const Intervals = 96

// ErrBadDemand is returned for average demand data that cannot be reduced
// to one value per interval.
var ErrBadDemand = errors.New("average demand must cover a whole day")

// Params controls session synthesis.
type Params struct {
	// NominalKW is the Level 2 charger rating.
	NominalKW float64
	// MinFactor scales NominalKW to the lowest session power.
	MinFactor float64
	// MaxEvents bounds charging events per vehicle per day.
	MaxEvents int
	// Seed fixes the generator; profiles are identical across runs.
	Seed uint64
}

// DefaultParams returns the stock Level 2 parameters.
func DefaultParams() Params {
	return Params{NominalKW: 7.36, MinFactor: 0.9, MaxEvents: 2, Seed: 555}
}

// HostCount returns the number of session rows to synthesize for a
// population: truncate(population × ev_perc × level2_perc).
func HostCount(population int, evPct, level2Pct float64) int {
	n := int(float64(population) * evPct * level2Pct)
	return max(n, 0)
}

// Generate synthesizes n daily session rows against avg, the per-vehicle
// average demand per interval.
func Generate(avg []float64, n int, p Params) [][]float64 {
	if n <= 0 {
		return nil
	}
	T := len(avg)
	sessions := make([][]float64, n)
	for i := range sessions {
		sessions[i] = make([]float64, T)
	}
	if T < 2 {
		return sessions
	}

	r := rand.New(rand.NewPCG(p.Seed, p.Seed))
	power := distuv.Uniform{Min: p.NominalKW * p.MinFactor, Max: p.NominalKW, Src: r}

	for _, row := range sessions {
		start := r.IntN(T - 1)
		end := start + 1 + r.IntN(T-start-1)
		fill(row, start, end, power.Rand())

		for e := 1; e < p.MaxEvents; e++ {
			idle := idleIntervals(row)
			if len(idle) == 0 {
				break
			}
			s := idle[r.IntN(len(idle))]
			stop := min(s+1+r.IntN(3), T)
			kw := power.Rand()
			for k := s; k < stop; k++ {
				if row[k] == 0 {
					row[k] = kw
				}
			}
		}
	}

	calibrate(sessions, avg, p)
	seedIdleVehicles(sessions, avg, p, r, power)
	fillIdleVehicles(sessions)
	return sessions
}

// calibrate pulls each interval's fleet mean into [0.9·avg, avg] by
// switching chargers off (too high) or to nominal power (too low).
func calibrate(sessions [][]float64, avg []float64, p Params) {
	for k := range avg {
		lower, upper := 0.9*avg[k], avg[k]
		mean := columnMean(sessions, k)
		switch {
		case mean > upper:
			for _, row := range sessions {
				if row[k] <= 0 {
					continue
				}
				row[k] = 0
				if columnMean(sessions, k) <= upper {
					break
				}
			}
		case mean < lower:
			for _, row := range sessions {
				if row[k] >= p.NominalKW {
					continue
				}
				row[k] = p.NominalKW
				if columnMean(sessions, k) >= lower {
					break
				}
			}
		}
	}
}

// seedIdleVehicles gives vehicles left without any charging a few random
// events, reverting any that push the interval above avg.
func seedIdleVehicles(sessions [][]float64, avg []float64, p Params, r *rand.Rand, power distuv.Uniform) {
	T := len(avg)
	for _, row := range sessions {
		for added := 0; added < p.MaxEvents+1 && allZero(row); {
			k := r.IntN(T)
			if row[k] == 0 {
				row[k] = power.Rand()
				added++
			}
			if columnMean(sessions, k) > avg[k] {
				row[k] = 0
			}
		}
	}
}

// fillIdleVehicles assigns still-idle vehicles the fleet's mean energy,
// spread evenly across the intervals where the fleet charges at all.
func fillIdleVehicles(sessions [][]float64) {
	if len(sessions) == 0 {
		return
	}
	T := len(sessions[0])
	profile := make([]float64, T)
	for k := range profile {
		profile[k] = columnMean(sessions, k)
	}
	var nz []int
	for k, v := range profile {
		if v != 0 {
			nz = append(nz, k)
		}
	}
	if len(nz) == 0 {
		return
	}
	level := floats.Sum(profile) / float64(len(nz))
	for _, row := range sessions {
		if !allZero(row) {
			continue
		}
		for _, k := range nz {
			row[k] = level
		}
	}
}

// EqualEnergy returns a copy of profiles in which each row's daily energy
// is spread evenly over that row's non-zero intervals.
func EqualEnergy(profiles [][]float64) [][]float64 {
	out := make([][]float64, len(profiles))
	for i, row := range profiles {
		out[i] = make([]float64, len(row))
		var nz []int
		for k, v := range row {
			if v != 0 {
				nz = append(nz, k)
			}
		}
		if len(nz) == 0 {
			continue
		}
		level := floats.Sum(row) / float64(len(nz))
		for _, k := range nz {
			out[i][k] = level
		}
	}
	return out
}

// EnsureRows returns exactly n rows: truncating, tiling, or producing
// all-zero rows of width Intervals when profiles is empty.
func EnsureRows(profiles [][]float64, n int) [][]float64 {
	if n <= 0 {
		return nil
	}
	out := make([][]float64, n)
	if len(profiles) == 0 {
		for i := range out {
			out[i] = make([]float64, Intervals)
		}
		return out
	}
	for i := range out {
		out[i] = profiles[i%len(profiles)]
	}
	return out
}

// FormatRow renders a profile as a DSS mult list body with four decimals.
func FormatRow(row []float64) string {
	parts := make([]string, len(row))
	for i, v := range row {
		parts[i] = strconv.FormatFloat(v, 'f', 4, 64)
	}
	return strings.Join(parts, " ")
}

// DefaultAverageDemand is a weekday per-vehicle Level 2 demand curve with
// a small overnight base and an evening peak around 19:00.
func DefaultAverageDemand() []float64 {
	out := make([]float64, Intervals)
	const peakHour, width = 19.0, 2.5
	for k := range out {
		h := float64(k) * 0.25
		d := math.Min(math.Abs(h-peakHour), 24-math.Abs(h-peakHour))
		out[k] = 0.15 + 0.9*math.Exp(-(d*d)/(2*width*width))
	}
	return out
}

// ParseAverageDemand reads a demand CSV. The value column is the second
// column when present, otherwise the first. Data at finer resolution than
// 15 minutes (e.g. 1440 one-minute rows) is averaged down to Intervals.
func ParseAverageDemand(data []byte) ([]float64, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var values []float64
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse demand: %w", err)
		}
		col := 0
		if len(rec) > 1 {
			col = 1
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[col]), 64)
		if err != nil {
			continue
		}
		values = append(values, v)
	}

	if len(values) == 0 || len(values)%Intervals != 0 {
		return nil, fmt.Errorf("%w: got %d values", ErrBadDemand, len(values))
	}
	step := len(values) / Intervals
	out := make([]float64, Intervals)
	for k := range out {
		out[k] = stat.Mean(values[k*step:(k+1)*step], nil)
	}
	return out, nil
}

func fill(row []float64, start, end int, v float64) {
	for k := start; k < end; k++ {
		row[k] = v
	}
}

func idleIntervals(row []float64) []int {
	var out []int
	for k, v := range row {
		if v == 0 {
			out = append(out, k)
		}
	}
	return out
}

func allZero(row []float64) bool {
	for _, v := range row {
		if v != 0 {
			return false
		}
	}
	return true
}

func columnMean(sessions [][]float64, k int) float64 {
	sum := 0.0
	for _, row := range sessions {
		sum += row[k]
	}
	return sum / float64(len(sessions))
}
