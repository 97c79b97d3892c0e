package registrations

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/aura-events/regreview/internal/metrics"
	"github.com/aura-events/regreview/internal/models"
	"github.com/aura-events/regreview/internal/timestamp"
)

// Loader fetches every registration document and normalizes it.
type Loader struct {
	store   Store
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewLoader creates a loader. m may be nil.
func NewLoader(store Store, m *metrics.Metrics, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{store: store, metrics: m, logger: logger}
}

// Load returns all registrations, unsorted. Records without a usable timestamp are kept with
// the sentinel timestamp and logged.
func (l *Loader) Load(ctx context.Context) ([]models.Registration, error) {
	raw, err := l.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	out := make([]models.Registration, 0, len(raw))
	for _, doc := range raw {
		reg, ok := Normalize(doc)
		if !ok {
			l.logger.Warn("registration has no usable timestamp", zap.String("registration_id", doc.ID))
			l.metrics.TimestampFallback()
		}
		out = append(out, reg)
	}
	l.logger.Info("registrations loaded", zap.Int("count", len(out)))
	return out, nil
}

// Normalize applies field defaults to a raw document. ok is false when the timestamp fell back
// to the sentinel.
func Normalize(doc models.RawRecord) (reg models.Registration, ok bool) {
	reg = models.Registration{
		ID:        doc.ID,
		FirstName: text(doc.Data[models.FieldFirstName]),
		LastName:  text(doc.Data[models.FieldLastName]),
		Email:     strings.ToLower(strings.TrimSpace(text(doc.Data[models.FieldEmail]))),
		Phone:     text(doc.Data[models.FieldPhone]),
		Country:   text(doc.Data[models.FieldCountry]),
		Dietary:   text(doc.Data[models.FieldDietary]),
		Status:    models.StatusPending,
	}
	if s := text(doc.Data[models.FieldStatus]); s != "" {
		reg.Status = models.Status(s)
	}
	if s := text(doc.Data[models.FieldRejectionReason]); s != "" {
		reg.RejectionReason = &s
	}
	reg.SubmissionTime, ok = timestamp.Normalize(doc.Data)
	return reg, ok
}

func text(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case bool:
		if !s {
			return ""
		}
	}
	return fmt.Sprint(v)
}
