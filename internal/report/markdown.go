package report

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"segmenter/internal/clustering"
	"segmenter/internal/core"
)

// RenderMarkdown builds the analysis report.
func RenderMarkdown(a *Analysis) string {
	var md strings.Builder

	md.WriteString("# Customer Segmentation Report\n\n")
	md.WriteString(fmt.Sprintf("- **Generated:** %s\n", a.GeneratedAt.UTC().Format("2006-01-02 15:04 MST")))
	if a.RunID != "" {
		md.WriteString(fmt.Sprintf("- **Run:** `%s`\n", a.RunID))
	}
	md.WriteString(fmt.Sprintf("- **Dataset:** %s (%d customers)\n\n", a.Dataset, len(a.Customers)))

	md.WriteString("## Choosing K\n\n")
	if a.Sweep != nil && len(a.Sweep.Points) > 0 {
		md.WriteString("| K | Inertia | Silhouette |\n|---|---|---|\n")
		for _, p := range a.Sweep.Points {
			sil := Score{Value: p.Silhouette, OK: p.SilhouetteOK}
			marker := ""
			if a.ElbowFound && p.K == a.K {
				marker = " ←"
			}
			md.WriteString(fmt.Sprintf("| %d%s | %.2f | %s |\n", p.K, marker, p.Inertia, sil))
		}
		md.WriteString("\n")
	}
	if a.ElbowFound {
		md.WriteString(fmt.Sprintf("The elbow of the inertia curve is at **K = %d**.", a.K))
	} else {
		md.WriteString(fmt.Sprintf("No elbow was found in the inertia curve; the configured **K = %d** was used.", a.K))
	}
	if a.Sweep != nil {
		if best, ok := a.Sweep.BestSilhouetteK(); ok && best != a.K {
			md.WriteString(fmt.Sprintf(" The silhouette score peaks at K = %d.", best))
		}
	}
	md.WriteString("\n\n")

	md.WriteString("## K-Means Segments\n\n")
	md.WriteString(fmt.Sprintf("Inertia %.2f, silhouette %s, %d iterations.\n\n",
		a.KMeans.Inertia, a.KMeansSilhouette, a.KMeans.Iterations))
	writeProfileTable(&md, a.KMeansProfiles)
	writeCentroidTable(&md, a.Centroids)
	for _, seg := range a.Segments {
		md.WriteString(fmt.Sprintf("### Cluster %s: %s\n\n", seg.Label, seg.Name))
		md.WriteString(seg.Description + "\n\n")
		md.WriteString(fmt.Sprintf("**Recommendation:** %s\n\n", seg.Recommendation))
	}

	md.WriteString("## DBSCAN\n\n")
	md.WriteString(fmt.Sprintf("eps %.2f, min samples %d: %d clusters, %d noise points, silhouette %s.\n\n",
		a.DBSCANConfig.Eps, a.DBSCANConfig.MinSamples, a.DBSCAN.NumClusters, a.DBSCAN.NoiseCount(), a.DBSCANSilhouette))
	writeProfileTable(&md, a.DBSCANProfiles)

	if a.Projection != nil && len(a.Projection.ExplainedVarianceRatio) >= 2 {
		r := a.Projection.ExplainedVarianceRatio
		md.WriteString("## Projection\n\n")
		md.WriteString(fmt.Sprintf("The first two principal components explain %.1f%% and %.1f%% of the variance. Coordinates are in `%s`.\n",
			r[0]*100, r[1]*100, ProjectionFile))
	}

	return md.String()
}

func writeProfileTable(md *strings.Builder, profiles []core.ClusterProfile) {
	if len(profiles) == 0 {
		md.WriteString("No clusters.\n\n")
		return
	}
	md.WriteString("| Cluster | Size | Share | Age | Income (k$) | Spending | Male |\n")
	md.WriteString("|---|---|---|---|---|---|---|\n")
	for _, p := range profiles {
		md.WriteString(fmt.Sprintf("| %s | %d | %.1f%% | %.1f | %.1f | %.1f | %.0f%% |\n",
			p.Label, p.Size, p.Share*100,
			p.Mean[core.FeatureAge], p.Mean[core.FeatureIncome], p.Mean[core.FeatureSpending],
			p.MaleShare*100))
	}
	md.WriteString("\n")
}

func writeCentroidTable(md *strings.Builder, centroids [][]float64) {
	if len(centroids) == 0 {
		return
	}
	md.WriteString("Centroids in original units:\n\n")
	md.WriteString("| Cluster | Age | Income (k$) | Spending | Male |\n")
	md.WriteString("|---|---|---|---|---|\n")
	for i, c := range centroids {
		md.WriteString(fmt.Sprintf("| %d | %.1f | %.1f | %.1f | %.0f%% |\n",
			i, c[core.FeatureAge], c[core.FeatureIncome], c[core.FeatureSpending], c[core.FeatureGender]*100))
	}
	md.WriteString("\n")
}

// WriteMarkdown writes the report into outputDir and returns its path.
func WriteMarkdown(outputDir string, a *Analysis) (string, error) {
	return writeFile(outputDir, ReportFile, func(w io.Writer) error {
		_, err := io.WriteString(w, RenderMarkdown(a))
		return err
	})
}

// WriteSweepFile writes the inertia curve into outputDir and returns its path.
func WriteSweepFile(outputDir string, sweep *clustering.Sweep) (string, error) {
	return writeFile(outputDir, SweepFile, func(w io.Writer) error { return WriteSweepCSV(w, sweep) })
}

// WriteAll writes the labeled customers, projection, sweep and (optionally)
// markdown files into outputDir and returns the written paths.
func WriteAll(outputDir, labeledFile string, a *Analysis, withReport bool) ([]string, error) {
	if labeledFile == "" {
		labeledFile = LabeledFile
	}
	kmeans, dbscan := a.KMeans.Assignment(), a.DBSCAN.Assignment()

	writers := []outputFile{
		{labeledFile, func(w io.Writer) error { return WriteLabeledCSV(w, a.Customers, kmeans, dbscan) }},
	}
	if a.Projection != nil {
		writers = append(writers, outputFile{ProjectionFile, func(w io.Writer) error {
			return WriteProjectionCSV(w, a.Customers, a.Projection, kmeans, dbscan)
		}})
	}
	if a.Sweep != nil {
		writers = append(writers, outputFile{SweepFile, func(w io.Writer) error { return WriteSweepCSV(w, a.Sweep) }})
	}

	var paths []string
	for _, wr := range writers {
		path, err := writeFile(outputDir, wr.name, wr.write)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	if withReport {
		path, err := WriteMarkdown(outputDir, a)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

type outputFile struct {
	name  string
	write func(io.Writer) error
}

func writeFile(outputDir, name string, write func(io.Writer) error) (string, error) {
	if outputDir == "" {
		outputDir = "output"
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}

	filePath := filepath.Join(outputDir, name)
	if err := os.WriteFile(filePath, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", filePath, err)
	}
	return filePath, nil
}
