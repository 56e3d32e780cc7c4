// Package leavestats is the read-side projection over completed passes.
// Pure computation: same inputs, same output, no writes.
package leavestats

import (
	"sort"
	"time"

	"github.com/vedantsingh72/Gatepass/models"
)

type Config struct {
	// FlagThreshold: isFlagged when used passes inside the window exceed it.
	FlagThreshold int
	// WindowDays: rolling window measured back from "now" over fromDate.
	WindowDays int
}

// StudentLeaveSummary matches the fields the department dashboard renders.
type StudentLeaveSummary struct {
	StudentID    uint   `json:"studentId"`
	Name         string `json:"name"`
	RollNo       string `json:"rollNo"`
	Year         int    `json:"year"`
	TotalLeaves  int    `json:"totalLeaves"`
	OutOfStation int    `json:"outOfStation"`
	Local        int    `json:"local"`
	IsFlagged    bool   `json:"isFlagged"`
}

// Summarize folds terminal-or-used passes into per-student rows. Only used
// passes count as leaves taken; rejected/expired rows are ignored. Students
// with no passes still get a zero row so the dashboard shows the cohort.
func Summarize(students []models.User, passes []models.Pass, cfg Config, now time.Time) []StudentLeaveSummary {
	cutoff := now.AddDate(0, 0, -cfg.WindowDays).Format(models.DateLayout)

	byStudent := map[uint]*StudentLeaveSummary{}
	order := make([]uint, 0, len(students))
	for _, s := range students {
		byStudent[s.ID] = &StudentLeaveSummary{
			StudentID: s.ID,
			Name:      s.Name,
			RollNo:    s.Identifier,
			Year:      s.Year,
		}
		order = append(order, s.ID)
	}

	for _, p := range passes {
		row, ok := byStudent[p.StudentID]
		if !ok || p.State != models.StateUsed {
			continue
		}
		if p.FromDate < cutoff {
			continue
		}
		row.TotalLeaves++
		switch p.PassType {
		case models.PassOutstation:
			row.OutOfStation++
		case models.PassLocal:
			row.Local++
		}
	}

	out := make([]StudentLeaveSummary, 0, len(order))
	for _, id := range order {
		row := byStudent[id]
		row.IsFlagged = row.TotalLeaves > cfg.FlagThreshold
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out
}
