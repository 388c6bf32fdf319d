package training

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/wonny/creditpd/internal/model"
)

// SaveROC draws the ROC curve of one family with its AUC and the chance
// diagonal and writes it as a PNG
func SaveROC(path string, family model.Family, y, scores []float64) error {
	fpr, tpr, err := model.ROCCurve(y, scores)
	if err != nil {
		return err
	}
	auc, err := model.ROCAUC(y, scores)
	if err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("ROC Curve - %s", family)
	p.X.Label.Text = "False Positive Rate"
	p.Y.Label.Text = "True Positive Rate"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(fpr))
	for i := range fpr {
		pts[i].X = fpr[i]
		pts[i].Y = tpr[i]
	}
	curve, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("roc line: %w", err)
	}
	curve.LineStyle.Width = vg.Points(2)
	curve.LineStyle.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}

	chance, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return fmt.Errorf("chance line: %w", err)
	}
	chance.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	chance.LineStyle.Color = color.Gray{Y: 128}

	p.Add(curve, chance)
	p.Legend.Add(fmt.Sprintf("AUC = %.2f", auc), curve)
	p.Legend.Top = false
	p.Legend.Left = false

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	if err := p.Save(6*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save roc plot: %w", err)
	}
	return nil
}
