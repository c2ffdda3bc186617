package document

import (
	"fmt"
	"math"

	"layerkit/internal/progress"
)

// IssueKind classifies a detected problem.
type IssueKind string

const (
	IssueEmptyLayer          IssueKind = "empty-layer"
	IssueZeroExposure        IssueKind = "zero-exposure"
	IssueNonIncreasingZ      IssueKind = "non-increasing-z"
	IssueLayerHeightMismatch IssueKind = "layer-height-mismatch"
)

// Issue is one problem found on one layer.
type Issue struct {
	Kind       IssueKind
	LayerIndex uint32
	Message    string
}

func (i Issue) String() string {
	return fmt.Sprintf("layer %d: %s: %s", i.LayerIndex, i.Kind, i.Message)
}

// heightTolerance absorbs float noise in stored Z positions.
const heightTolerance = 1e-4

// DetectIssues scans every layer once, reporting progress per layer.
func DetectIssues(doc *Document, t *progress.Tracker) ([]Issue, error) {
	t = orNew(t)
	t.Reset("Detecting issues", uint64(doc.LayerCount()))

	var issues []Issue
	lh := doc.Properties.LayerHeight
	for i := uint32(0); i < doc.LayerCount(); i++ {
		if err := t.CheckCancellationOrPause(); err != nil {
			return issues, err
		}
		l := doc.Layers[i]
		if l.PixelCount == 0 {
			issues = append(issues, Issue{Kind: IssueEmptyLayer, LayerIndex: i, Message: "layer has no lit pixels"})
		}
		if l.ExposureTime <= 0 {
			issues = append(issues, Issue{Kind: IssueZeroExposure, LayerIndex: i, Message: "exposure time is zero"})
		}
		if i > 0 {
			prev := doc.Layers[i-1].PositionZ
			step := l.PositionZ - prev
			switch {
			case step <= 0:
				issues = append(issues, Issue{
					Kind: IssueNonIncreasingZ, LayerIndex: i,
					Message: fmt.Sprintf("position %.4fmm is not above previous %.4fmm", l.PositionZ, prev),
				})
			case lh > 0 && math.Abs(step-lh) > heightTolerance:
				issues = append(issues, Issue{
					Kind: IssueLayerHeightMismatch, LayerIndex: i,
					Message: fmt.Sprintf("step %.4fmm differs from layer height %.4fmm", step, lh),
				})
			}
		}
		t.Inc()
	}
	return issues, nil
}
