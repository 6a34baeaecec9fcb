package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/Veraticus/quest/internal/leaderboard"
	"github.com/Veraticus/quest/internal/model"
	"github.com/Veraticus/quest/internal/tracker"
)

func newTable(w io.Writer, headers ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	styled := make([]string, len(headers))
	for i, h := range headers {
		styled[i] = TableHeaderStyle.Render(h)
	}
	_, _ = fmt.Fprintln(tw, strings.Join(styled, "\t"))
	return tw
}

// RenderApplications writes apps as a table.
func RenderApplications(w io.Writer, apps []model.Application) error {
	if len(apps) == 0 {
		_, err := fmt.Fprintln(w, SubtitleStyle.Render("No applications found."))
		return err
	}

	tw := newTable(w, "ID", "COMPANY", "POSITION", "STATUS", "APPLIED", "NOTES")
	for _, app := range apps {
		applied := "-"
		if app.AppliedDate != nil {
			applied = app.AppliedDate.String()
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			app.ID, app.Company, app.Position, app.Status, applied, truncate(app.Notes, 40))
	}
	return tw.Flush()
}

// RenderImportReport writes a bulk import summary followed by the failed and duplicate rows.
func RenderImportReport(w io.Writer, report *model.ImportReport) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Processed: %d\n", report.Summary.TotalProcessed)
	fmt.Fprintf(&b, "%s\n", SuccessStyle.Render(fmt.Sprintf("Imported:   %d", report.Summary.Successful)))
	fmt.Fprintf(&b, "%s\n", WarningStyle.Render(fmt.Sprintf("Duplicates: %d", report.DuplicatesSkipped)))
	fmt.Fprintf(&b, "%s\n", ErrorStyle.Render(fmt.Sprintf("Failed:     %d", report.Summary.Failed)))
	if report.BlankRowsSkipped > 0 {
		fmt.Fprintf(&b, "Blank rows: %d\n", report.BlankRowsSkipped)
	}
	fmt.Fprintf(&b, "XP gained:  %s", XPStyle.Render(fmt.Sprintf("+%d", report.TotalXPGained+report.AchievementXP)))
	fmt.Fprintf(&b, "\nLevel:      %d (%d XP)", report.FinalLevel, report.FinalXP)

	if _, err := fmt.Fprintln(w, RenderBox("Import "+report.ImportID, b.String())); err != nil {
		return err
	}

	for _, a := range report.NewAchievements {
		if _, err := fmt.Fprintln(w, formatUnlock(a)); err != nil {
			return err
		}
	}

	for _, f := range report.FailedImports {
		if _, err := fmt.Fprintln(w, FormatError(fmt.Sprintf("Row %d: %s", f.Row, strings.Join(f.Errors, "; ")))); err != nil {
			return err
		}
	}
	for _, d := range report.Duplicates {
		if _, err := fmt.Fprintln(w, FormatWarning(fmt.Sprintf("Row %d: duplicate of %s - %s", d.Row, d.Company, d.Position))); err != nil {
			return err
		}
	}
	return nil
}

// RenderResult writes the outcome of a single tracker mutation.
func RenderResult(w io.Writer, verb string, result tracker.Result) error {
	if _, err := fmt.Fprintln(w, FormatSuccess(fmt.Sprintf("%s %s", verb, result.Application))); err != nil {
		return err
	}
	return RenderNotifications(w, result.Notifications)
}

// RenderNotifications writes one line per notification.
func RenderNotifications(w io.Writer, notices []tracker.Notification) error {
	for _, n := range notices {
		var line string
		switch n.Kind {
		case tracker.NotifyXPGained:
			line = XPStyle.Render(fmt.Sprintf("+%d XP", n.XP))
		case tracker.NotifyLevelUp:
			line = SuccessStyle.Render(fmt.Sprintf("%s %s", LevelIcon, n.Message))
		case tracker.NotifyAchievementUnlocked:
			line = SuccessStyle.Render(fmt.Sprintf("%s %s", TrophyIcon, n.Message))
		default:
			line = n.Message
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderProfile writes XP, level and application stats.
func RenderProfile(w io.Writer, p *tracker.Profile) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Level %d  %s\n", p.Level, XPStyle.Render(fmt.Sprintf("%d XP", p.XP)))
	fmt.Fprintf(&b, "%s\n\n", SubtleStyle.Render(fmt.Sprintf("%d XP to level %d", p.XPToNextLevel, p.Level+1)))
	fmt.Fprintf(&b, "Applications: %d\n", p.Stats.TotalApplications)
	for _, s := range model.Statuses {
		fmt.Fprintf(&b, "  %-13s %d\n", s, p.Stats.ByStatus[s])
	}
	fmt.Fprintf(&b, "Interview rate: %.1f%%\n", p.Stats.InterviewRate)
	fmt.Fprintf(&b, "Offer rate:     %.1f%%\n", p.Stats.OfferRate)
	fmt.Fprintf(&b, "Achievements:   %d", len(p.Achievements))

	_, err := fmt.Fprintln(w, RenderBox("Profile "+p.UserID, b.String()))
	return err
}

// RenderCatalog writes every achievement with its unlock state.
func RenderCatalog(w io.Writer, c *tracker.Catalog) error {
	if _, err := fmt.Fprintln(w, FormatTitle(fmt.Sprintf("Achievements %d/%d", c.EarnedCount, c.TotalCount))); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, e := range c.Achievements {
		mark := LockIcon
		name := SubtleStyle.Render(e.Name)
		if e.Unlocked {
			mark = e.Icon
			name = SuccessStyle.Render(e.Name)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", mark, name, e.Description, XPStyle.Render(fmt.Sprintf("+%d", e.XPReward)))
	}
	return tw.Flush()
}

// RenderLeaderboard writes ranked entries. The row for highlight, when present, is marked.
func RenderLeaderboard(w io.Writer, ranked []model.LeaderboardEntry, by leaderboard.By, highlight string) error {
	if len(ranked) == 0 {
		_, err := fmt.Fprintln(w, SubtitleStyle.Render("No players yet."))
		return err
	}

	score := "XP"
	if by == leaderboard.ByAchievements {
		score = "ACHIEVEMENTS"
	}
	tw := newTable(w, "RANK", "NAME", "LEVEL", score, "APPLICATIONS")
	for _, e := range ranked {
		value := e.XP
		if by == leaderboard.ByAchievements {
			value = e.Achievements
		}
		name := e.Name
		if name == "" {
			name = e.UserID
		}
		if e.UserID == highlight {
			name = InfoStyle.Render(StarIcon + " " + name)
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\n", e.Rank, name, e.Level, value, e.Applications)
	}
	return tw.Flush()
}

func formatUnlock(a model.Achievement) string {
	return SuccessStyle.Render(fmt.Sprintf("%s %s %s unlocked! +%d XP", TrophyIcon, a.Icon, a.Name, a.XPReward))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
