package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fatih/color"

	"github.com/mwiater/trigbench/internal/scoring"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	bestStyle   = cellStyle.Foreground(lipgloss.Color("46"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))

	improved  = color.New(color.FgGreen).SprintFunc()
	regressed = color.New(color.FgRed).SprintFunc()
)

func newTable(highlightFirst bool, headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case highlightFirst && row == 0:
				return bestStyle
			default:
				return cellStyle
			}
		}).
		Headers(headers...)
}

func formatKm(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}

func formatScore(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 3, 64)
}

// Render prints the report as tables followed by one robustness line per
// model comparing adversarial to clean error.
func Render(w io.Writer, r Report) error {
	if len(r.Leaderboard) == 0 {
		_, err := fmt.Fprintln(w, regressed("No data loaded."))
		return err
	}

	leaderboard := newTable(true, "#", "Model", "Samples", "Predicted", "Mean error (km)", "Median (km)", "Mean WLA", "Mean TBS (km)")
	for _, row := range r.Leaderboard {
		leaderboard.Row(
			strconv.Itoa(row.Rank),
			row.Model,
			strconv.Itoa(row.Samples),
			strconv.Itoa(row.Predicted),
			formatKm(row.MeanErrorKm),
			formatKm(row.MedianErrorKm),
			formatScore(row.MeanWLA),
			formatKm(row.MeanTBS),
		)
	}

	headers := []string{"Model"}
	for _, kind := range r.AttackTypes {
		headers = append(headers, string(kind))
	}
	robustness := newTable(false, headers...)
	for _, row := range r.Robustness {
		cells := []string{row.Model}
		for _, kind := range r.AttackTypes {
			cell, ok := row.ByAttack[kind]
			if !ok {
				cells = append(cells, "-")
				continue
			}
			cells = append(cells, fmt.Sprintf("%s (n=%d)", formatKm(cell.MeanErrorKm), cell.Samples))
		}
		robustness.Row(cells...)
	}

	fmt.Fprintln(w, titleStyle.Render("Leaderboard: mean geodesic distance (lower is better)"))
	fmt.Fprintln(w, leaderboard.Render())
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("Robustness: mean error (km) by attack type"))
	fmt.Fprintln(w, robustness.Render())

	if len(r.AdversarialCDF) > 0 {
		cdfHeaders := []string{"Model", "Samples"}
		for _, km := range r.ThresholdsKm {
			cdfHeaders = append(cdfHeaders, "< "+strconv.FormatFloat(km, 'f', -1, 64)+" km")
		}
		cdf := newTable(false, cdfHeaders...)
		for _, row := range r.AdversarialCDF {
			cells := []string{row.Model, strconv.Itoa(row.Samples)}
			for _, share := range row.Shares {
				cells = append(cells, strconv.FormatFloat(share*100, 'f', 1, 64)+"%")
			}
			cdf.Row(cells...)
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, titleStyle.Render("Adversarial samples: share within distance"))
		fmt.Fprintln(w, cdf.Render())
	}

	fmt.Fprintln(w)
	for _, row := range r.Robustness {
		fmt.Fprintln(w, robustnessLine(row))
	}
	return nil
}

// robustnessLine reports how much the adversarial mean error moved from the
// clean one.
func robustnessLine(row RobustnessRow) string {
	clean := row.ByAttack[scoring.AttackClean].MeanErrorKm
	adv := row.ByAttack[scoring.AttackAdversarial].MeanErrorKm
	if clean == nil || adv == nil {
		return fmt.Sprintf("%s: clean vs adversarial not comparable", row.Model)
	}
	delta := *adv - *clean
	text := fmt.Sprintf("%+.1f km", delta)
	if delta > 0 {
		text = regressed(text)
	} else {
		text = improved(text)
	}
	return fmt.Sprintf("%s: adversarial %s vs clean", row.Model, text)
}
