package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"segmenter/internal/clustering"
	"segmenter/internal/core"
	"segmenter/internal/dataset"
	"segmenter/internal/reduce"
)

// Output file names inside the output directory.
const (
	LabeledFile    = "segmented_customers.csv"
	ProjectionFile = "pca_projection.csv"
	SweepFile      = "elbow.csv"
	ReportFile     = "report.md"
)

// LabeledHeader is the header of the labeled customers file.
var LabeledHeader = append(append([]string(nil), dataset.Header...), "KMeans_Cluster", "DBSCAN_Cluster")

// WriteLabeledCSV writes every customer with its K-Means and DBSCAN labels, noise as -1.
func WriteLabeledCSV(w io.Writer, customers []core.Customer, kmeans, dbscan core.Assignment) error {
	if len(kmeans.Labels) != len(customers) || len(dbscan.Labels) != len(customers) {
		return fmt.Errorf("label count mismatch: %d customers, %d kmeans, %d dbscan",
			len(customers), len(kmeans.Labels), len(dbscan.Labels))
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(LabeledHeader); err != nil {
		return err
	}
	for i, c := range customers {
		row := append(dataset.Row(c), strconv.Itoa(kmeans.Labels[i].Int()), strconv.Itoa(dbscan.Labels[i].Int()))
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteProjectionCSV writes the first two principal coordinates of every customer with both labels.
func WriteProjectionCSV(w io.Writer, customers []core.Customer, proj *reduce.Projection, kmeans, dbscan core.Assignment) error {
	if len(proj.Points) != len(customers) || len(kmeans.Labels) != len(customers) || len(dbscan.Labels) != len(customers) {
		return fmt.Errorf("projection row count mismatch")
	}
	if len(proj.ExplainedVarianceRatio) < 2 {
		return fmt.Errorf("projection has %d components, need 2", len(proj.ExplainedVarianceRatio))
	}

	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"CustomerID", "PC1", "PC2", "KMeans_Cluster", "DBSCAN_Cluster"}); err != nil {
		return err
	}
	for i, c := range customers {
		p := proj.Points[i]
		row := []string{
			strconv.Itoa(c.ID),
			formatFloat(p[0]),
			formatFloat(p[1]),
			strconv.Itoa(kmeans.Labels[i].Int()),
			strconv.Itoa(dbscan.Labels[i].Int()),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteSweepCSV writes the inertia curve; the silhouette is blank where undefined.
func WriteSweepCSV(w io.Writer, sweep *clustering.Sweep) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"K", "Inertia", "Silhouette"}); err != nil {
		return err
	}
	for _, p := range sweep.Points {
		sil := ""
		if p.SilhouetteOK {
			sil = formatFloat(p.Silhouette)
		}
		if err := writer.Write([]string{strconv.Itoa(p.K), formatFloat(p.Inertia), sil}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
