package capture

import (
	"time"

	"github.com/jwalitptl/dispensing-api/internal/model"
)

// ArtifactView is an artifact without its raw bytes.
type ArtifactView struct {
	ID          string         `json:"id"`
	Category    model.Category `json:"category"`
	Source      Source         `json:"source"`
	FileName    string         `json:"file_name"`
	ContentType string         `json:"content_type"`
	Width       int            `json:"width,omitempty"`
	Height      int            `json:"height,omitempty"`
	SizeBytes   int            `json:"size_bytes"`
	Preview     string         `json:"preview"`
	CreatedAt   time.Time      `json:"created_at"`
}

func viewOf(a *Artifact) ArtifactView {
	return ArtifactView{
		ID:          a.ID,
		Category:    a.Category,
		Source:      a.Source,
		FileName:    a.FileName,
		ContentType: a.ContentType,
		Width:       a.Width,
		Height:      a.Height,
		SizeBytes:   len(a.Data),
		Preview:     a.Preview,
		CreatedAt:   a.CreatedAt,
	}
}

// Snapshot is what the capture page renders.
type Snapshot struct {
	ID          string                            `json:"id"`
	State       State                             `json:"state"`
	Patient     *model.PatientRecord              `json:"patient"`
	Category    model.Category                    `json:"category,omitempty"`
	IDCardStage IDCardStage                       `json:"id_card_stage"`
	CameraOpen  bool                              `json:"camera_open"`
	Documents   map[model.Category][]ArtifactView `json:"documents"`
	Missing     []model.Category                  `json:"missing"`
	LastError   string                            `json:"last_error,omitempty"`
	LastReceipt *model.SaveReceipt                `json:"last_receipt,omitempty"`
}

func (f *Flow) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	docs := make(map[model.Category][]ArtifactView, len(model.Categories))
	for _, c := range model.Categories {
		list := f.store.Get(c)
		views := make([]ArtifactView, 0, len(list))
		for _, a := range list {
			views = append(views, viewOf(a))
		}
		docs[c] = views
	}

	var patient *model.PatientRecord
	if f.patient != nil {
		p := *f.patient
		patient = &p
	}

	missing := f.store.Missing()
	if missing == nil {
		missing = []model.Category{}
	}

	return Snapshot{
		ID:          f.id,
		State:       f.state,
		Patient:     patient,
		Category:    f.category,
		IDCardStage: f.idcard.Stage(),
		CameraOpen:  f.stream != nil,
		Documents:   docs,
		Missing:     missing,
		LastError:   f.lastErr,
		LastReceipt: f.lastReceipt,
	}
}
