package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	nameStyle   = lipgloss.NewStyle().Bold(true)
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// Summary renders a compact terminal overview of an analysis.
func Summary(a *Analysis) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Customer segments") + "\n")
	b.WriteString(mutedStyle.Render(fmt.Sprintf("%d customers from %s", len(a.Customers), a.Dataset)) + "\n\n")

	choice := "elbow"
	if !a.ElbowFound {
		choice = "configured"
	}
	b.WriteString(headerStyle.Render("K-Means") + "\n")
	b.WriteString(fmt.Sprintf("  K=%d (%s)  inertia %.2f  silhouette %s\n", a.K, choice, a.KMeans.Inertia, a.KMeansSilhouette))
	for _, seg := range a.Segments {
		size := 0
		for _, p := range a.KMeansProfiles {
			if p.Label == seg.Label {
				size = p.Size
			}
		}
		b.WriteString(fmt.Sprintf("  %s %s %s\n",
			mutedStyle.Render(fmt.Sprintf("[%s]", seg.Label)),
			nameStyle.Render(seg.Name),
			mutedStyle.Render(fmt.Sprintf("(%d)", size))))
	}
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("DBSCAN") + "\n")
	b.WriteString(fmt.Sprintf("  eps %.2f  min samples %d  clusters %d  noise %d  silhouette %s\n",
		a.DBSCANConfig.Eps, a.DBSCANConfig.MinSamples, a.DBSCAN.NumClusters, a.DBSCAN.NoiseCount(), a.DBSCANSilhouette))

	if a.RunID != "" {
		b.WriteString("\n" + mutedStyle.Render("run "+a.RunID))
	}

	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// SweepTable renders the K sweep for the terminal.
func SweepTable(a *Analysis) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%4s  %14s  %10s", "K", "Inertia", "Silhouette")) + "\n")
	for _, p := range a.Sweep.Points {
		line := fmt.Sprintf("%4d  %14.3f  %10s", p.K, p.Inertia, Score{Value: p.Silhouette, OK: p.SilhouetteOK})
		if a.ElbowFound && p.K == a.K {
			line = nameStyle.Render(line + "  ← elbow")
		}
		b.WriteString(line + "\n")
	}
	if !a.ElbowFound && a.Sweep.ElbowErr != nil {
		b.WriteString(mutedStyle.Render(a.Sweep.ElbowErr.Error()) + "\n")
	}
	if best, ok := a.Sweep.BestSilhouetteK(); ok {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("best silhouette at K=%d", best)) + "\n")
	}
	return b.String()
}
